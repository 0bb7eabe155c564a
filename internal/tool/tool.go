//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool holds helpers shared by tool implementations.
package tool

import (
	"reflect"
	"strings"

	"trpc.group/trpc-go/trpc-agent-app/tool"
)

// GenerateJSONSchema generates a JSON schema from a reflect.Type.
//
// Struct fields are named by their json tag. A field is required unless it
// is a pointer or tagged omitempty, or the jsonschema tag says otherwise.
// The jsonschema tag understands description=..., enum=... and required.
func GenerateJSONSchema(t reflect.Type) *tool.Schema {
	if t == nil {
		return &tool.Schema{Type: "object"}
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return GenerateFieldSchema(t)
	}
	return structSchema(t)
}

// GenerateFieldSchema generates schema for a specific field type.
func GenerateFieldSchema(t reflect.Type) *tool.Schema {
	switch t.Kind() {
	case reflect.String:
		return &tool.Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &tool.Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &tool.Schema{Type: "number"}
	case reflect.Bool:
		return &tool.Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &tool.Schema{
			Type:  "array",
			Items: GenerateFieldSchema(t.Elem()),
		}
	case reflect.Map:
		return &tool.Schema{
			Type:                 "object",
			AdditionalProperties: GenerateFieldSchema(t.Elem()),
		}
	case reflect.Ptr:
		return GenerateFieldSchema(t.Elem())
	case reflect.Struct:
		return structSchema(t)
	default:
		return &tool.Schema{Type: "object"}
	}
}

func structSchema(t reflect.Type) *tool.Schema {
	schema := &tool.Schema{
		Type:       "object",
		Properties: map[string]*tool.Schema{},
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		fieldName := field.Name
		omitEmpty := false
		if jsonTag != "" {
			name, rest, _ := strings.Cut(jsonTag, ",")
			if name != "" {
				fieldName = name
			}
			omitEmpty = strings.Contains(rest, "omitempty")
		}

		fieldSchema := GenerateFieldSchema(field.Type)
		tag := parseSchemaTag(field.Tag.Get("jsonschema"))
		fieldSchema.Description = tag.description
		if len(tag.enum) > 0 {
			fieldSchema.Enum = tag.enum
		}
		schema.Properties[fieldName] = fieldSchema

		if tag.required || (field.Type.Kind() != reflect.Ptr && !omitEmpty) {
			schema.Required = append(schema.Required, fieldName)
		}
	}
	return schema
}

type schemaTag struct {
	description string
	enum        []string
	required    bool
}

// parseSchemaTag splits on commas; a segment that does not start a known
// key belongs to the preceding description.
func parseSchemaTag(tag string) schemaTag {
	var out schemaTag
	var desc []string
	inDesc := false
	for _, part := range strings.Split(tag, ",") {
		switch {
		case strings.HasPrefix(part, "description="):
			desc = append(desc[:0], strings.TrimPrefix(part, "description="))
			inDesc = true
		case strings.HasPrefix(part, "enum="):
			out.enum = append(out.enum, strings.TrimPrefix(part, "enum="))
			inDesc = false
		case part == "required":
			out.required = true
			inDesc = false
		case inDesc:
			desc = append(desc, part)
		}
	}
	out.description = strings.Join(desc, ",")
	return out
}
