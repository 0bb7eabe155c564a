//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package wikipedia provides a tool that looks up page summaries through
// the MediaWiki API.
package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-agent-app/tool"
	"trpc.group/trpc-go/trpc-agent-app/tool/function"
)

const (
	// ToolName is the name the model uses to call the tool.
	ToolName = "wikipedia"

	defaultBaseURL   = "https://en.wikipedia.org"
	defaultTopK      = 3
	defaultMaxChars  = 4000
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "trpc-agent-app-wikipedia/1.0"

	noResult = "No good Wikipedia Search Result was found"
)

// Option is a functional option for configuring the wikipedia tool.
type Option func(*wikiTool)

// WithBaseURL sets the wiki site, default is https://en.wikipedia.org.
func WithBaseURL(u string) Option {
	return func(w *wikiTool) {
		w.baseURL = strings.TrimRight(u, "/")
	}
}

// WithTopK sets how many pages are summarized.
func WithTopK(k int) Option {
	return func(w *wikiTool) {
		if k > 0 {
			w.topK = k
		}
	}
}

// WithMaxChars caps the returned text.
func WithMaxChars(n int) Option {
	return func(w *wikiTool) {
		if n > 0 {
			w.maxChars = n
		}
	}
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(c *http.Client) Option {
	return func(w *wikiTool) {
		w.httpClient = c
	}
}

type wikiRequest struct {
	Query string `json:"query" jsonschema:"description=The search query for Wikipedia"`
}

type wikiTool struct {
	baseURL    string
	topK       int
	maxChars   int
	httpClient *http.Client
}

// NewTool creates the wikipedia tool.
func NewTool(opts ...Option) tool.CallableTool {
	w := &wikiTool{
		baseURL:    defaultBaseURL,
		topK:       defaultTopK,
		maxChars:   defaultMaxChars,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(w)
	}
	return function.NewFunctionTool(
		w.lookup,
		function.WithName(ToolName),
		function.WithDescription("A wrapper around Wikipedia. Useful for when you need to answer general "+
			"questions about people, places, companies, facts, historical events, or other subjects. "+
			"Input should be a search query."),
	)
}

type searchResult struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type extractResult struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

func (w *wikiTool) lookup(ctx context.Context, req wikiRequest) (string, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", errors.New("empty wikipedia query provided")
	}
	var sr searchResult
	if err := w.get(ctx, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprint(w.topK)},
	}, &sr); err != nil {
		return "", err
	}
	var summaries []string
	for _, hit := range sr.Query.Search {
		summary, err := w.summary(ctx, hit.Title)
		if err != nil {
			return "", err
		}
		if summary != "" {
			summaries = append(summaries, fmt.Sprintf("Page: %s\nSummary: %s", hit.Title, summary))
		}
	}
	if len(summaries) == 0 {
		return noResult, nil
	}
	out := strings.Join(summaries, "\n\n")
	if runes := []rune(out); len(runes) > w.maxChars {
		out = string(runes[:w.maxChars])
	}
	return out, nil
}

func (w *wikiTool) summary(ctx context.Context, title string) (string, error) {
	var er extractResult
	if err := w.get(ctx, url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"redirects":   {"1"},
		"titles":      {title},
	}, &er); err != nil {
		return "", err
	}
	for _, page := range er.Query.Pages {
		return strings.TrimSpace(page.Extract), nil
	}
	return "", nil
}

func (w *wikiTool) get(ctx context.Context, params url.Values, out any) error {
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/w/api.php?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
