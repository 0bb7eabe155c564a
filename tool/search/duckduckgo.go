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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const maxDuckDuckGoTopics = 5

type duckDuckGo struct {
	cfg *config
}

// ddgResponse is the subset of the Instant Answer payload the tool uses.
type ddgResponse struct {
	Heading          string `json:"Heading"`
	AbstractText     string `json:"AbstractText"`
	AbstractSource   string `json:"AbstractSource"`
	Answer           string `json:"Answer"`
	Definition       string `json:"Definition"`
	DefinitionSource string `json:"DefinitionSource"`
	RelatedTopics    []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

func (d *duckDuckGo) search(ctx context.Context, query string) (string, error) {
	reqURL := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		d.cfg.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.cfg.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := d.cfg.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	var r ddgResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	var parts []string
	if r.Answer != "" {
		parts = append(parts, "Answer: "+r.Answer)
	}
	if r.AbstractText != "" {
		abstract := "Abstract: " + r.AbstractText
		if r.AbstractSource != "" {
			abstract += " (" + r.AbstractSource + ")"
		}
		parts = append(parts, abstract)
	}
	if r.Definition != "" {
		parts = append(parts, "Definition: "+r.Definition)
	}
	n := 0
	for _, topic := range r.RelatedTopics {
		if n >= maxDuckDuckGoTopics {
			break
		}
		if topic.Text == "" || topic.FirstURL == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", topic.Text, topic.FirstURL))
		n++
	}
	if len(parts) == 0 {
		return fmt.Sprintf("No results found for query '%s'", query), nil
	}
	return strings.Join(parts, "\n"), nil
}
