//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nested struct {
	Label string `json:"label"`
}

type sample struct {
	Query    string            `json:"query" jsonschema:"description=The query, with a comma"`
	Limit    *int              `json:"limit,omitempty" jsonschema:"description=Max results"`
	Tags     []string          `json:"tags,omitempty"`
	Mode     string            `json:"mode" jsonschema:"enum=fast,enum=slow"`
	Force    bool              `json:"force,omitempty" jsonschema:"required"`
	Meta     map[string]int    `json:"meta,omitempty"`
	Child    nested            `json:"child"`
	Skipped  string            `json:"-"`
	private  string            //nolint:unused
	Untagged float64
	Extra    map[string]nested `json:"extra,omitempty"`
}

func TestGenerateJSONSchema_Struct(t *testing.T) {
	s := GenerateJSONSchema(reflect.TypeOf(sample{}))
	require.Equal(t, "object", s.Type)

	assert.Equal(t, "string", s.Properties["query"].Type)
	assert.Equal(t, "The query, with a comma", s.Properties["query"].Description)
	assert.Equal(t, "integer", s.Properties["limit"].Type)
	assert.Equal(t, "Max results", s.Properties["limit"].Description)
	assert.Equal(t, "array", s.Properties["tags"].Type)
	assert.Equal(t, "string", s.Properties["tags"].Items.Type)
	assert.Equal(t, []string{"fast", "slow"}, s.Properties["mode"].Enum)
	assert.Equal(t, "object", s.Properties["meta"].Type)
	assert.Equal(t, "string", s.Properties["child"].Properties["label"].Type)
	assert.Equal(t, []string{"label"}, s.Properties["child"].Required)
	assert.Equal(t, "number", s.Properties["Untagged"].Type)
	assert.NotContains(t, s.Properties, "Skipped")
	assert.NotContains(t, s.Properties, "private")

	assert.ElementsMatch(t, []string{"query", "mode", "force", "child", "Untagged"}, s.Required)
}

func TestGenerateJSONSchema_Pointer(t *testing.T) {
	s := GenerateJSONSchema(reflect.TypeOf(&sample{}))
	assert.Equal(t, "object", s.Type)
	assert.Contains(t, s.Properties, "query")
}

func TestGenerateJSONSchema_Scalars(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"", "string"},
		{0, "integer"},
		{uint8(0), "integer"},
		{1.5, "number"},
		{true, "boolean"},
		{[]int{}, "array"},
		{map[string]string{}, "object"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GenerateJSONSchema(reflect.TypeOf(tt.in)).Type)
	}
	assert.Equal(t, "object", GenerateJSONSchema(nil).Type)
}
