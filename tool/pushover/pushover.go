//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package pushover provides a tool that sends push notifications through
// the Pushover API.
package pushover

import (
	"context"
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
	ToolName = "send_push_notification"

	defaultURL     = "https://api.pushover.net/1/messages.json"
	defaultTimeout = 10 * time.Second

	successMessage = "Push notification sent successfully."
)

// ErrMissingCredentials is returned by a call when token or user is unset.
var ErrMissingCredentials = errors.New("pushover token and user are not configured")

// Option is a functional option for configuring the pushover tool.
type Option func(*pushTool)

// WithToken sets the application token.
func WithToken(token string) Option {
	return func(p *pushTool) {
		p.token = token
	}
}

// WithUser sets the user key that receives notifications.
func WithUser(user string) Option {
	return func(p *pushTool) {
		p.user = user
	}
}

// WithURL overrides the messages endpoint.
func WithURL(u string) Option {
	return func(p *pushTool) {
		p.url = u
	}
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(c *http.Client) Option {
	return func(p *pushTool) {
		p.httpClient = c
	}
}

type pushRequest struct {
	Message string `json:"message" jsonschema:"description=The text of the notification"`
}

type pushTool struct {
	token      string
	user       string
	url        string
	httpClient *http.Client
}

// NewTool creates the push notification tool.
func NewTool(opts ...Option) tool.CallableTool {
	p := &pushTool{
		url:        defaultURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return function.NewFunctionTool(
		p.push,
		function.WithName(ToolName),
		function.WithDescription("Use this tool when you want to send a push notification to the user."),
	)
}

func (p *pushTool) push(ctx context.Context, req pushRequest) (string, error) {
	if p.token == "" || p.user == "" {
		return "", ErrMissingCredentials
	}
	form := url.Values{
		"token":   {p.token},
		"user":    {p.user},
		"message": {req.Message},
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("failed to send push notification: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return successMessage, nil
}
