//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package agent defines the conversational agent facade shared by the HTTP
// API and the CLI.
package agent

import (
	"context"
	"errors"

	"trpc.group/trpc-go/trpc-agent-app/model"
)

// ErrNotInitialized is returned when an agent is used before Initialize.
var ErrNotInitialized = errors.New("agent is not initialized")

// Info contains basic information about an agent.
type Info struct {
	Name        string
	Description string
}

// Agent is a conversational agent whose conversations are kept per thread.
type Agent interface {
	// Info returns the basic information about this agent.
	Info() Info

	// Initialize builds the tools and the execution graph. It is safe to
	// call more than once; only the first successful call does work.
	Initialize(ctx context.Context) error

	// Run sends message to the conversation threadID and returns the reply.
	// Failures of the model or the tools come back as a Reply whose Error
	// is set. The returned error is reserved for misuse and persistence
	// failures.
	Run(ctx context.Context, threadID string, message string, opts ...RunOption) (*Reply, error)

	// Messages returns the full history of a thread. An unknown thread has
	// no messages.
	Messages(ctx context.Context, threadID string) ([]model.Message, error)

	// Threads lists the thread ids starting with prefix in sorted order.
	Threads(ctx context.Context, prefix string) ([]string, error)

	// DeleteThread removes a thread and its history.
	DeleteThread(ctx context.Context, threadID string) error

	// Close releases the resources of the agent.
	Close() error
}

// Reply is the outcome of one run.
type Reply struct {
	ThreadID string `json:"thread_id"`
	// Content is the final assistant answer of the run.
	Content string `json:"content"`
	// Feedback, SuccessCriteriaMet and UserInputNeeded are set by agents
	// that evaluate their own answers.
	Feedback           string `json:"feedback,omitempty"`
	SuccessCriteriaMet bool   `json:"success_criteria_met,omitempty"`
	UserInputNeeded    bool   `json:"user_input_needed,omitempty"`
	// Error holds the recovered failure of the run, if any.
	Error string `json:"error,omitempty"`
}
