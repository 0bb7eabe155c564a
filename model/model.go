//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model provides interfaces for working with LLMs.
package model

import (
	"context"
	"errors"
	"fmt"
)

// Model is the interface for all language models.
//
// Error Handling Strategy:
// This interface uses a dual-layer error handling approach:
//
// 1. Function-level errors (returned as `error`):
//   - System-level failures that prevent communication
//   - Examples: nil request, network issues, invalid parameters
//
// 2. Response-level errors (Response.Error field):
//   - API-level errors returned by the model service
//   - Examples: API rate limits, content filtering, model errors
//
// Adapters in this module are non-streaming: the channel carries exactly
// one final Response and is then closed.
type Model interface {
	// GenerateContent generates content from the given request.
	GenerateContent(ctx context.Context, request *Request) (<-chan *Response, error)

	// Info returns basic information about the model.
	Info() Info
}

// Info contains basic information about a Model.
type Info struct {
	Name     string
	Provider string
}

// ErrEmptyResponse is returned by Generate when the model produced no choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Generate runs the request and collapses the response channel into the
// final assistant message. Both function-level and response-level errors
// are returned as error.
func Generate(ctx context.Context, m Model, request *Request) (Message, *Response, error) {
	if m == nil {
		return Message{}, nil, errors.New("model is nil")
	}
	responseChan, err := m.GenerateContent(ctx, request)
	if err != nil {
		return Message{}, nil, fmt.Errorf("failed to generate content: %w", err)
	}
	var final *Response
	for rsp := range responseChan {
		if rsp == nil {
			continue
		}
		if rsp.Error != nil {
			return Message{}, rsp, fmt.Errorf("model API error: %s", rsp.Error.Message)
		}
		final = rsp
	}
	if final == nil || len(final.Choices) == 0 {
		return Message{}, final, ErrEmptyResponse
	}
	msg := final.Choices[0].Message
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	return msg, final, nil
}
