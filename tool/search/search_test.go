//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, opts ...Option) (string, error) {
	t.Helper()
	out, err := NewTool(opts...).Call(context.Background(), []byte(`{"query":"golang"}`))
	if err != nil {
		return "", err
	}
	s, ok := out.(string)
	require.True(t, ok)
	return s, nil
}

func TestSerper_AnswerBox(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))
		var body serperRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "golang", body.Q)
		_, _ = w.Write([]byte(`{"answerBox": {"answer": "A programming language"}}`))
	})
	got, err := call(t, WithAPIKey("secret"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "A programming language", got)
}

func TestSerper_OrganicSnippets(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"knowledgeGraph": {"title": "Go", "type": "Programming language", "description": "Go is statically typed."},
			"organic": [{"title": "a", "snippet": "first"}, {"title": "b", "snippet": "second"}]
		}`))
	})
	got, err := call(t, WithAPIKey("k"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "Go: Programming language. Go is statically typed. first second", got)
}

func TestSerper_NoResult(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	got, err := call(t, WithAPIKey("k"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, noResult, got)
}

func TestSerper_Errors(t *testing.T) {
	_, err := call(t)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err = call(t, WithAPIKey("k"), WithBaseURL(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")

	_, err = NewTool(WithAPIKey("k")).Call(context.Background(), []byte(`{"query":"  "}`))
	require.Error(t, err)
}

func TestDuckDuckGo(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{
			"AbstractText": "Go is a language.",
			"AbstractSource": "Wikipedia",
			"ImageWidth": 0,
			"RelatedTopics": [{"Text": "Go toolchain", "FirstURL": "https://duckduckgo.com/Go_toolchain"}, {"Text": ""}]
		}`))
	})
	got, err := call(t, WithProvider(ProviderDuckDuckGo), WithBaseURL(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "Abstract: Go is a language. (Wikipedia)\nGo toolchain (https://duckduckgo.com/Go_toolchain)", got)
}

func TestDuckDuckGo_Empty(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	got, err := call(t, WithProvider(ProviderDuckDuckGo), WithBaseURL(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, "No results found for query 'golang'", got)
}

func TestNewTool_Declaration(t *testing.T) {
	decl := NewTool().Declaration()
	assert.Equal(t, ToolName, decl.Name)
	assert.Equal(t, []string{"query"}, decl.InputSchema.Required)
}
