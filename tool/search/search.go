//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package search provides the web search tool. Results come from the
// Serper Google Search API, or from the DuckDuckGo Instant Answer API when
// that provider is selected.
package search

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-agent-app/tool"
	"trpc.group/trpc-go/trpc-agent-app/tool/function"
)

const (
	// ToolName is the name the model uses to call the tool.
	ToolName = "search"

	defaultSerperURL     = "https://google.serper.dev"
	defaultDuckDuckGoURL = "https://api.duckduckgo.com"
	defaultUserAgent     = "trpc-agent-app-search/1.0"
	defaultTimeout       = 30 * time.Second
	defaultNumResults    = 10

	noResult = "No good Google Search Result was found"
)

// Provider selects the search backend.
type Provider string

// Supported providers.
const (
	ProviderSerper     Provider = "serper"
	ProviderDuckDuckGo Provider = "duckduckgo"
)

// ErrMissingAPIKey is returned by a call when Serper has no API key.
var ErrMissingAPIKey = errors.New("serper api key is not configured")

// Option is a functional option for configuring the search tool.
type Option func(*config)

type config struct {
	provider   Provider
	apiKey     string
	baseURL    string
	userAgent  string
	numResults int
	httpClient *http.Client
}

// WithProvider selects the backend, default is ProviderSerper.
func WithProvider(p Provider) Option {
	return func(c *config) {
		c.provider = p
	}
}

// WithAPIKey sets the Serper API key.
func WithAPIKey(key string) Option {
	return func(c *config) {
		c.apiKey = key
	}
}

// WithBaseURL overrides the provider endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *config) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithNumResults sets how many organic results Serper returns.
func WithNumResults(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.numResults = n
		}
	}
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *config) {
		c.httpClient = httpClient
	}
}

type searchRequest struct {
	Query string `json:"query" jsonschema:"description=The search query"`
}

type backend interface {
	search(ctx context.Context, query string) (string, error)
}

type searchTool struct {
	backend backend
}

// NewTool creates the search tool. A missing API key does not fail
// construction; the call reports it instead.
func NewTool(opts ...Option) tool.CallableTool {
	cfg := &config{
		provider:   ProviderSerper,
		userAgent:  defaultUserAgent,
		numResults: defaultNumResults,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var b backend
	switch cfg.provider {
	case ProviderDuckDuckGo:
		if cfg.baseURL == "" {
			cfg.baseURL = defaultDuckDuckGoURL
		}
		b = &duckDuckGo{cfg: cfg}
	default:
		if cfg.baseURL == "" {
			cfg.baseURL = defaultSerperURL
		}
		b = &serper{cfg: cfg}
	}
	st := &searchTool{backend: b}
	return function.NewFunctionTool(
		st.search,
		function.WithName(ToolName),
		function.WithDescription("Use this tool when you want to get the results of an online web search. "+
			"Input is a search query."),
	)
}

func (t *searchTool) search(ctx context.Context, req searchRequest) (string, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", errors.New("empty search query provided")
	}
	return t.backend.search(ctx, query)
}
