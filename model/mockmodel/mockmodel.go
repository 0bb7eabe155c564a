//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package mockmodel provides a scripted model.Model for tests and for
// running the service without provider credentials.
package mockmodel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-agent-app/model"
)

// ErrScriptExhausted is returned when every scripted step has been used.
var ErrScriptExhausted = errors.New("mockmodel: no scripted response left")

// Step produces the response to one request.
type Step func(ctx context.Context, req *model.Request) (*model.Response, error)

// Model replays its steps in order, one per GenerateContent call, and
// records every request. It is safe for concurrent use.
type Model struct {
	name string

	mu       sync.Mutex
	steps    []Step
	fallback Step
	requests []*model.Request
}

// New creates a model playing steps in order.
func New(name string, steps ...Step) *Model {
	return &Model{name: name, steps: steps}
}

// WithFallback sets the step used once the script is exhausted, so the
// model can serve any number of requests.
func (m *Model) WithFallback(step Step) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = step
	return m
}

// Append adds steps to the end of the script.
func (m *Model) Append(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.name, Provider: "mock"}
}

// GenerateContent implements model.Model.
func (m *Model) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	m.mu.Lock()
	recorded := *req
	recorded.Messages = append([]model.Message(nil), req.Messages...)
	m.requests = append(m.requests, &recorded)
	step := m.fallback
	if len(m.steps) > 0 {
		step = m.steps[0]
		m.steps = m.steps[1:]
	}
	m.mu.Unlock()

	if step == nil {
		return nil, ErrScriptExhausted
	}
	rsp, err := step(ctx, req)
	if err != nil {
		return nil, err
	}
	return model.Single(rsp), nil
}

// Requests returns the requests received so far.
func (m *Model) Requests() []*model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Request(nil), m.requests...)
}

// Calls returns the number of requests received so far.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Remaining returns the number of unused scripted steps.
func (m *Model) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

// Message answers with msg as the only choice.
func Message(msg model.Message) Step {
	return func(context.Context, *model.Request) (*model.Response, error) {
		return response(msg), nil
	}
}

// Reply answers with a plain assistant message.
func Reply(content string) Step {
	return Message(model.NewAssistantMessage(content))
}

// ToolCalls answers with an assistant message requesting the calls.
func ToolCalls(calls ...model.ToolCall) Step {
	return Message(model.Message{Role: model.RoleAssistant, ToolCalls: calls})
}

// Fail makes GenerateContent return err.
func Fail(err error) Step {
	return func(context.Context, *model.Request) (*model.Response, error) {
		return nil, err
	}
}

// APIError answers with a response carrying an API error.
func APIError(message string) Step {
	return func(context.Context, *model.Request) (*model.Response, error) {
		return model.NewErrorResponse(model.ErrorTypeAPIError, message), nil
	}
}

// Empty answers with a response without choices.
func Empty() Step {
	return func(context.Context, *model.Request) (*model.Response, error) {
		return &model.Response{Object: model.ObjectTypeChatCompletion, Done: true, Timestamp: time.Now()}, nil
	}
}

// Echo answers with the content of the last user message.
func Echo() Step {
	return func(_ context.Context, req *model.Request) (*model.Response, error) {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == model.RoleUser {
				return response(model.NewAssistantMessage(req.Messages[i].Content)), nil
			}
		}
		return nil, fmt.Errorf("mockmodel: no user message to echo")
	}
}

var counter struct {
	sync.Mutex
	n int
}

func response(msg model.Message) *model.Response {
	counter.Lock()
	counter.n++
	id := fmt.Sprintf("mock-%d", counter.n)
	counter.Unlock()
	finish := "stop"
	if msg.HasToolCalls() {
		finish = "tool_calls"
	}
	return &model.Response{
		ID:        id,
		Object:    model.ObjectTypeChatCompletion,
		Created:   time.Now().Unix(),
		Model:     "mock",
		Choices:   []model.Choice{{Message: msg, FinishReason: &finish}},
		Timestamp: time.Now(),
		Done:      true,
	}
}
