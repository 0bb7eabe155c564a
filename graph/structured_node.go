//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	itelemetry "trpc.group/trpc-go/trpc-agent-app/internal/telemetry"
	itool "trpc.group/trpc-go/trpc-agent-app/internal/tool"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-app/tool"
)

// PromptFunc builds the complete message list of a structured request.
type PromptFunc func(ctx context.Context, state State) []model.Message

// ApplyFunc turns a decoded structured result into a state update.
type ApplyFunc[T any] func(ctx context.Context, state State, out T) State

// StructuredNodeOption configures NewStructuredNodeFunc.
type StructuredNodeOption func(*structuredNodeOptions)

type structuredNodeOptions struct {
	description      string
	generationConfig model.GenerationConfig
}

// WithOutputDescription describes the requested output to the model.
func WithOutputDescription(description string) StructuredNodeOption {
	return func(o *structuredNodeOptions) {
		o.description = description
	}
}

// WithStructuredGenerationConfig sets the sampling parameters.
func WithStructuredGenerationConfig(cfg model.GenerationConfig) StructuredNodeOption {
	return func(o *structuredNodeOptions) {
		o.generationConfig = cfg
	}
}

// NewStructuredNodeFunc creates a node that asks llm for a JSON object of
// type T, named name, and hands the decoded value to apply.
//
// Every required field of T's schema must be present in the reply. A model
// failure or an undecodable reply is recovered like in NewLLMNodeFunc: the
// update carries an error message and sets last_error.
func NewStructuredNodeFunc[T any](
	llm model.Model,
	name string,
	prompt PromptFunc,
	apply ApplyFunc[T],
	opts ...StructuredNodeOption,
) NodeFunc {
	var o structuredNodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	schema := strictSchema(itool.GenerateJSONSchema(reflect.TypeOf((*T)(nil)).Elem()))
	return func(ctx context.Context, state State) (State, error) {
		ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameCallLLM)
		defer span.End()

		request := &model.Request{
			Messages:         prompt(ctx, state),
			GenerationConfig: o.generationConfig,
			StructuredOutput: &model.StructuredOutput{
				Name:        name,
				Description: o.description,
				Schema:      schema,
				Strict:      true,
			},
		}
		msg, rsp, err := model.Generate(ctx, llm, request)
		info, _ := RunInfoFromContext(ctx)
		itelemetry.TraceCallLLM(span, info.ThreadID, llm.Info(), request, rsp)
		if err != nil {
			return failureUpdate(ctx, span, err), nil
		}
		out, err := decodeStructured[T](msg.Content, schema)
		if err != nil {
			return failureUpdate(ctx, span, fmt.Errorf("invalid %s output: %w", name, err)), nil
		}
		return apply(ctx, state, out), nil
	}
}

// strictSchema closes every object schema, as strict structured output
// requires.
func strictSchema(s *tool.Schema) *tool.Schema {
	if s == nil {
		return nil
	}
	if s.Type == "object" && s.AdditionalProperties == nil {
		s.AdditionalProperties = false
	}
	for _, p := range s.Properties {
		strictSchema(p)
	}
	strictSchema(s.Items)
	return s
}

// decodeStructured parses content into T after checking the required
// fields. A surrounding markdown code fence is tolerated.
func decodeStructured[T any](content string, schema *tool.Schema) (T, error) {
	var out T
	content = stripCodeFence(content)
	if content == "" {
		return out, errors.New("empty response")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return out, fmt.Errorf("response is not a JSON object: %w", err)
	}
	for _, required := range schema.Required {
		if raw, ok := fields[required]; !ok || string(raw) == "null" {
			return out, fmt.Errorf("missing field %s", required)
		}
	}
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return out, err
	}
	return out, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
