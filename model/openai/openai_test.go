//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openaigo "github.com/openai/openai-go"
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
		assert.Equal(t, "/chat/completions", r.URL.Path)
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
	m := New("gpt-4o-mini", WithAPIKey("test-key"), WithBaseURL("https://api.custom.com"))
	require.NotNil(t, m)
	assert.Equal(t, "gpt-4o-mini", m.name)
	assert.Equal(t, "test-key", m.apiKey)
	assert.Equal(t, "https://api.custom.com", m.baseURL)
	assert.Equal(t, model.Info{Name: "gpt-4o-mini", Provider: "openai"}, m.Info())
}

func TestModel_GenerateContent_NilRequest(t *testing.T) {
	m := New("test-model", WithAPIKey("test-key"))
	_, err := m.GenerateContent(context.Background(), nil)
	require.EqualError(t, err, "request cannot be nil")
}

func TestModel_GenerateContent_ToolCalls(t *testing.T) {
	const body = `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "search", "arguments": "{\"query\":\"go\"}"}
				}]
			}
		}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
	}`
	var captured map[string]any
	srv := newServer(t, http.StatusOK, body, &captured)

	var seen *openaigo.ChatCompletionNewParams
	m := New("gpt-4o-mini",
		WithAPIKey("k"),
		WithBaseURL(srv.URL),
		WithChatRequestCallback(func(_ context.Context, req *openaigo.ChatCompletionNewParams) { seen = req }),
	)
	temperature := 0.2
	req := &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage("be helpful"),
			model.NewUserMessage("find go"),
			{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{model.NewToolCall("call_0", "search", `{"query":"x"}`)}},
			model.NewToolMessage("call_0", "search", "result"),
		},
		GenerationConfig: model.GenerationConfig{Temperature: &temperature},
		Tools: map[string]tool.Tool{
			"search": stubTool{decl: &tool.Declaration{
				Name:        "search",
				Description: "web search",
				InputSchema: &tool.Schema{Type: "object", Properties: map[string]*tool.Schema{"query": {Type: "string"}}},
			}},
		},
	}

	msg, rsp, err := model.Generate(context.Background(), m, req)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "chatcmpl-1", rsp.ID)
	require.NotNil(t, rsp.Usage)
	assert.Equal(t, 15, rsp.Usage.TotalTokens)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "search", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"query":"go"}`, msg.ToolCalls[0].Function.Arguments)

	msgs, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	toolMsg := msgs[3].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_0", toolMsg["tool_call_id"])
	tools, ok := captured["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	assert.InDelta(t, 0.2, captured["temperature"], 1e-9)
}

func TestModel_GenerateContent_MissingToolCallIDs(t *testing.T) {
	const body = `{
		"id": "chatcmpl-3",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "local",
		"choices": [{"index": 0, "finish_reason": "tool_calls",
			"message": {"role": "assistant", "content": "", "tool_calls": [
				{"type": "function", "function": {"name": "search", "arguments": "{}"}},
				{"type": "function", "function": {"name": "search", "arguments": "{}"}}
			]}}]
	}`
	srv := newServer(t, http.StatusOK, body, nil)
	m := New("local", WithAPIKey("k"), WithBaseURL(srv.URL))
	req := &model.Request{Messages: []model.Message{model.NewUserMessage("hi")}}

	first, _, err := model.Generate(context.Background(), m, req)
	require.NoError(t, err)
	second, _, err := model.Generate(context.Background(), m, req)
	require.NoError(t, err)

	require.Len(t, first.ToolCalls, 2)
	require.Len(t, second.ToolCalls, 2)
	seen := make(map[string]bool)
	for _, call := range append(first.ToolCalls, second.ToolCalls...) {
		assert.True(t, strings.HasPrefix(call.ID, "call_"), call.ID)
		assert.False(t, seen[call.ID], "duplicate id %s", call.ID)
		seen[call.ID] = true
	}
}

func TestModel_GenerateContent_StructuredOutput(t *testing.T) {
	const body = `{
		"id": "chatcmpl-2",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "{\"ok\":true}"}}]
	}`
	var captured map[string]any
	srv := newServer(t, http.StatusOK, body, &captured)
	m := New("gpt-4o-mini", WithAPIKey("k"), WithBaseURL(srv.URL))

	msg, _, err := model.Generate(context.Background(), m, &model.Request{
		Messages: []model.Message{model.NewUserMessage("grade it")},
		StructuredOutput: &model.StructuredOutput{
			Name:   "verdict",
			Schema: &tool.Schema{Type: "object", Properties: map[string]*tool.Schema{"ok": {Type: "boolean"}}},
			Strict: true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, msg.Content)

	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, "verdict", schema["name"])
	assert.Equal(t, true, schema["strict"])
}

func TestModel_GenerateContent_APIError(t *testing.T) {
	srv := newServer(t, http.StatusBadRequest,
		`{"error": {"message": "bad things", "type": "invalid_request_error"}}`, nil)
	m := New("gpt-4o-mini", WithAPIKey("k"), WithBaseURL(srv.URL), WithOpenAIOptions())

	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	rsp := <-ch
	require.NotNil(t, rsp)
	require.NotNil(t, rsp.Error)
	assert.Equal(t, model.ErrorTypeAPIError, rsp.Error.Type)
	assert.True(t, rsp.Done)
	_, open := <-ch
	assert.False(t, open)
}
