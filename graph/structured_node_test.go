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
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/model/mockmodel"
)

type verdict struct {
	Feedback string `json:"feedback" jsonschema:"description=What to improve"`
	Passed   bool   `json:"passed"`
}

func verdictNode(m model.Model) NodeFunc {
	return NewStructuredNodeFunc(m, "verdict",
		func(_ context.Context, s State) []model.Message {
			return []model.Message{model.NewSystemMessage("grade"), model.NewUserMessage(s.String(StateKeyLastResponse))}
		},
		func(_ context.Context, _ State, out verdict) State {
			return State{"feedback": out.Feedback, "passed": out.Passed}
		},
		WithOutputDescription("grading result"),
	)
}

func TestStructuredNode_Success(t *testing.T) {
	m := mockmodel.New("m",
		mockmodel.Reply(`{"feedback":"fine","passed":true}`),
		mockmodel.Reply("```json\n{\"feedback\":\"fenced\",\"passed\":false}\n```"),
	)
	node := verdictNode(m)
	state := State{StateKeyLastResponse: "answer"}

	update, err := node(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, State{"feedback": "fine", "passed": true}, update)

	req := m.Requests()[0]
	require.NotNil(t, req.StructuredOutput)
	so := req.StructuredOutput
	assert.Equal(t, "verdict", so.Name)
	assert.Equal(t, "grading result", so.Description)
	assert.True(t, so.Strict)
	assert.Equal(t, "object", so.Schema.Type)
	assert.Equal(t, false, so.Schema.AdditionalProperties)
	assert.ElementsMatch(t, []string{"feedback", "passed"}, so.Schema.Required)
	assert.Equal(t, "What to improve", so.Schema.Properties["feedback"].Description)
	assert.Equal(t, "answer", req.Messages[1].Content)

	update, err = node(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, "fenced", update["feedback"])
	assert.Equal(t, false, update["passed"])
}

func TestStructuredNode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		step   mockmodel.Step
		detail string
	}{
		{name: "model error", step: mockmodel.Fail(errors.New("timeout")), detail: "timeout"},
		{name: "not json", step: mockmodel.Reply("looks good to me"), detail: "invalid verdict output"},
		{name: "missing field", step: mockmodel.Reply(`{"feedback":"x"}`), detail: "missing field passed"},
		{name: "null field", step: mockmodel.Reply(`{"feedback":null,"passed":true}`), detail: "missing field feedback"},
		{name: "wrong type", step: mockmodel.Reply(`{"feedback":"x","passed":"yes"}`), detail: "invalid verdict output"},
		{name: "empty", step: mockmodel.Reply(""), detail: "empty response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, err := verdictNode(mockmodel.New("m", tt.step))(context.Background(), State{})
			require.NoError(t, err)
			msgs := update[StateKeyMessages].([]model.Message)
			require.Len(t, msgs, 1)
			assert.True(t, strings.HasPrefix(msgs[0].Content, ErrorMessagePrefix))
			assert.Contains(t, update.String(StateKeyLastError), tt.detail)
			_, applied := update["passed"]
			assert.False(t, applied)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence(` {"a":1} `))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}```"))
}
