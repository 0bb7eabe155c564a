//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/tool"
)

type stubTool struct{ decl *tool.Declaration }

func (s stubTool) Declaration() *tool.Declaration { return s.decl }

func newServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			require.NoError(t, json.Unmarshal(raw, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew(t *testing.T) {
	m := New("claude-sonnet-4-0", WithAPIKey("k"), WithBaseURL("https://example.com"))
	assert.Equal(t, "k", m.apiKey)
	assert.Equal(t, "https://example.com", m.baseURL)
	assert.Equal(t, model.Info{Name: "claude-sonnet-4-0", Provider: "anthropic"}, m.Info())

	_, err := m.GenerateContent(context.Background(), nil)
	assert.EqualError(t, err, "request cannot be nil")
}

func TestModel_GenerateContent_ToolUse(t *testing.T) {
	const body = `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-0",
		"content": [
			{"type": "text", "text": "Let me search."},
			{"type": "tool_use", "id": "toolu_1", "name": "search", "input": {"query": "go"}}
		],
		"stop_reason": "tool_use",
		"stop_sequence": null,
		"usage": {"input_tokens": 20, "output_tokens": 7}
	}`
	var captured map[string]any
	srv := newServer(t, http.StatusOK, body, &captured)
	m := New("claude-sonnet-4-0", WithAPIKey("k"), WithBaseURL(srv.URL), WithMaxRetries(0))

	temperature := 0.3
	msg, rsp, err := model.Generate(context.Background(), m, &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage("be helpful"),
			model.NewUserMessage("find go"),
			{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{
				model.NewToolCall("toolu_0", "search", `{"query":"x"}`),
				model.NewToolCall("toolu_9", "search", `{"query":"y"}`),
			}},
			model.NewToolMessage("toolu_0", "search", "result"),
			model.NewToolMessage("toolu_9", "search", "Error: backend down"),
			model.NewAssistantMessage("first answer"),
			{Role: model.RoleAssistant, Name: "evaluator", Content: "Evaluator Feedback on this answer: more"},
		},
		GenerationConfig: model.GenerationConfig{Temperature: &temperature},
		Tools: map[string]tool.Tool{
			"search": stubTool{decl: &tool.Declaration{
				Name:        "search",
				Description: "web search",
				InputSchema: &tool.Schema{
					Type:       "object",
					Properties: map[string]*tool.Schema{"query": {Type: "string"}},
					Required:   []string{"query"},
				},
			}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Let me search.", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "toolu_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "search", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"query":"go"}`, msg.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "msg_1", rsp.ID)
	assert.Equal(t, "tool_use", *rsp.Choices[0].FinishReason)
	require.NotNil(t, rsp.Usage)
	assert.Equal(t, 27, rsp.Usage.TotalTokens)

	assert.Equal(t, "claude-sonnet-4-0", captured["model"])
	assert.EqualValues(t, DefaultMaxTokens, captured["max_tokens"])
	assert.InDelta(t, 0.3, captured["temperature"], 1e-9)
	system := captured["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "be helpful", system[0].(map[string]any)["text"])

	// user, assistant(tool_use x2), user(tool_result x2), assistant(text x2)
	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 4)
	roles := make([]string, len(msgs))
	for i, raw := range msgs {
		roles[i] = raw.(map[string]any)["role"].(string)
	}
	assert.Equal(t, []string{"user", "assistant", "user", "assistant"}, roles)
	results := msgs[2].(map[string]any)["content"].([]any)
	require.Len(t, results, 2)
	first := results[0].(map[string]any)
	assert.Equal(t, "tool_result", first["type"])
	assert.Equal(t, "toolu_0", first["tool_use_id"])
	second := results[1].(map[string]any)
	assert.Equal(t, true, second["is_error"])
	assert.Len(t, msgs[3].(map[string]any)["content"].([]any), 2)

	tools := captured["tools"].([]any)
	require.Len(t, tools, 1)
	declared := tools[0].(map[string]any)
	assert.Equal(t, "search", declared["name"])
	assert.Equal(t, "web search", declared["description"])
}

func TestModel_GenerateContent_StructuredOutput(t *testing.T) {
	const body = `{
		"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-0",
		"content": [{"type": "text", "text": "{\"ok\":true}"}],
		"stop_reason": "end_turn", "stop_sequence": null,
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`
	var captured map[string]any
	srv := newServer(t, http.StatusOK, body, &captured)
	m := New("claude-sonnet-4-0", WithAPIKey("k"), WithBaseURL(srv.URL))

	msg, _, err := model.Generate(context.Background(), m, &model.Request{
		Messages: []model.Message{model.NewUserMessage("grade it")},
		StructuredOutput: &model.StructuredOutput{
			Name:   "verdict",
			Schema: &tool.Schema{Type: "object", Properties: map[string]*tool.Schema{"ok": {Type: "boolean"}}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, msg.Content)
	system := captured["system"].([]any)
	require.Len(t, system, 1)
	text := system[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "verdict")
	assert.Contains(t, text, `"ok":{"type":"boolean"}`)
}

func TestModel_GenerateContent_APIError(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest,
		`{"type": "error", "error": {"type": "invalid_request_error", "message": "bad things"}}`, nil)
	m := New("claude-sonnet-4-0", WithAPIKey("k"), WithBaseURL(srv.URL), WithMaxRetries(0))

	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	rsp := <-ch
	require.NotNil(t, rsp.Error)
	assert.Equal(t, model.ErrorTypeAPIError, rsp.Error.Type)
	assert.True(t, rsp.Done)
}

func TestToolInput(t *testing.T) {
	assert.Equal(t, map[string]any{}, toolInput(""))
	assert.Equal(t, map[string]any{"a": float64(1)}, toolInput(`{"a":1}`))
	assert.Equal(t, "not json", toolInput("not json"))
}
