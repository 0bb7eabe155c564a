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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type serper struct {
	cfg *config
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
}

type serperResponse struct {
	AnswerBox *struct {
		Answer             string   `json:"answer"`
		Snippet            string   `json:"snippet"`
		SnippetHighlighted []string `json:"snippetHighlighted"`
	} `json:"answerBox"`
	KnowledgeGraph *struct {
		Title       string            `json:"title"`
		Type        string            `json:"type"`
		Description string            `json:"description"`
		Attributes  map[string]string `json:"attributes"`
	} `json:"knowledgeGraph"`
	Organic []struct {
		Title      string            `json:"title"`
		Link       string            `json:"link"`
		Snippet    string            `json:"snippet"`
		Attributes map[string]string `json:"attributes"`
	} `json:"organic"`
}

func (s *serper) search(ctx context.Context, query string) (string, error) {
	if s.cfg.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	body, err := json.Marshal(serperRequest{Q: query, Num: s.cfg.numResults})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.cfg.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.cfg.userAgent)

	resp, err := s.cfg.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("serper returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	var out serperResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return formatSerper(&out), nil
}

// formatSerper prefers a direct answer, then the knowledge graph and
// organic snippets.
func formatSerper(r *serperResponse) string {
	if box := r.AnswerBox; box != nil {
		switch {
		case box.Answer != "":
			return box.Answer
		case box.Snippet != "":
			return strings.ReplaceAll(box.Snippet, "\n", " ")
		case len(box.SnippetHighlighted) > 0:
			return strings.Join(box.SnippetHighlighted, " ")
		}
	}

	var snippets []string
	if kg := r.KnowledgeGraph; kg != nil {
		if kg.Type != "" {
			snippets = append(snippets, fmt.Sprintf("%s: %s.", kg.Title, kg.Type))
		}
		if kg.Description != "" {
			snippets = append(snippets, kg.Description)
		}
		for k, v := range kg.Attributes {
			snippets = append(snippets, fmt.Sprintf("%s %s: %s.", kg.Title, k, v))
		}
	}
	for _, res := range r.Organic {
		if res.Snippet != "" {
			snippets = append(snippets, res.Snippet)
		}
		for k, v := range res.Attributes {
			snippets = append(snippets, fmt.Sprintf("%s: %s.", k, v))
		}
	}
	if len(snippets) == 0 {
		return noResult
	}
	return strings.Join(snippets, " ")
}
