//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package graphagent provides an agent.Agent that runs an execution graph
// with per-thread checkpoints.
package graphagent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"trpc.group/trpc-go/trpc-agent-app/agent"
	"trpc.group/trpc-go/trpc-agent-app/graph"
	"trpc.group/trpc-go/trpc-agent-app/log"
	"trpc.group/trpc-go/trpc-agent-app/model"
)

// BuildFunc constructs the graph of the agent. cleanup, when not nil, is
// called by Close.
type BuildFunc func(ctx context.Context) (g *graph.Graph, cleanup func() error, err error)

// InputFunc turns the user message of a run into the state update merged
// before the graph starts.
type InputFunc func(message string, opts agent.RunOptions) graph.State

// ReplyFunc extracts the reply from the final state of a run.
type ReplyFunc func(threadID string, state graph.State) *agent.Reply

// Option is a function that configures a GraphAgent.
type Option func(*Options)

// Options contains configuration options for creating a GraphAgent.
type Options struct {
	// Description is a description of the agent.
	Description string
	// CheckpointSaver persists the threads. Without one nothing is
	// remembered between runs.
	CheckpointSaver graph.CheckpointSaver
	// MaxSteps bounds the nodes executed by one run.
	MaxSteps int
	// InputFunc defaults to MessageInput.
	InputFunc InputFunc
	// ReplyFunc defaults to LastResponseReply.
	ReplyFunc ReplyFunc
}

// WithDescription sets the description of the agent.
func WithDescription(description string) Option {
	return func(opts *Options) {
		opts.Description = description
	}
}

// WithCheckpointSaver sets the checkpoint saver.
func WithCheckpointSaver(saver graph.CheckpointSaver) Option {
	return func(opts *Options) {
		opts.CheckpointSaver = saver
	}
}

// WithMaxSteps sets the step limit of a run.
func WithMaxSteps(maxSteps int) Option {
	return func(opts *Options) {
		opts.MaxSteps = maxSteps
	}
}

// WithInputFunc sets how a run input becomes a state update.
func WithInputFunc(fn InputFunc) Option {
	return func(opts *Options) {
		opts.InputFunc = fn
	}
}

// WithReplyFunc sets how the reply is read from the final state.
func WithReplyFunc(fn ReplyFunc) Option {
	return func(opts *Options) {
		opts.ReplyFunc = fn
	}
}

// MessageInput appends the message as a user message and clears the error
// of the previous run.
func MessageInput(message string, _ agent.RunOptions) graph.State {
	return graph.State{
		graph.StateKeyMessages:  []model.Message{model.NewUserMessage(message)},
		graph.StateKeyLastError: "",
	}
}

// LastResponseReply answers with the last assistant response.
func LastResponseReply(threadID string, state graph.State) *agent.Reply {
	return &agent.Reply{
		ThreadID: threadID,
		Content:  state.String(graph.StateKeyLastResponse),
		Error:    state.String(graph.StateKeyLastError),
	}
}

// GraphAgent is an agent that executes a graph. The graph is built by
// Initialize and checkpoints are namespaced by the agent name.
type GraphAgent struct {
	name    string
	build   BuildFunc
	options Options

	mu       sync.RWMutex
	executor *graph.Executor
	cleanup  func() error
}

var _ agent.Agent = (*GraphAgent)(nil)

// New creates a GraphAgent. Nothing is built until Initialize.
func New(name string, build BuildFunc, opts ...Option) (*GraphAgent, error) {
	if name == "" {
		return nil, errors.New("agent name is empty")
	}
	if build == nil {
		return nil, errors.New("build func is nil")
	}
	options := Options{
		MaxSteps:  graph.DefaultMaxSteps,
		InputFunc: MessageInput,
		ReplyFunc: LastResponseReply,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &GraphAgent{name: name, build: build, options: options}, nil
}

// Info implements the agent.Agent interface.
func (ga *GraphAgent) Info() agent.Info {
	return agent.Info{Name: ga.name, Description: ga.options.Description}
}

// Initialize implements the agent.Agent interface.
func (ga *GraphAgent) Initialize(ctx context.Context) error {
	ga.mu.Lock()
	defer ga.mu.Unlock()
	if ga.executor != nil {
		return nil
	}
	g, cleanup, err := ga.build(ctx)
	if err != nil {
		return fmt.Errorf("build agent %s: %w", ga.name, err)
	}
	executor, err := graph.NewExecutor(g,
		graph.WithCheckpointSaver(ga.options.CheckpointSaver),
		graph.WithMaxSteps(ga.options.MaxSteps),
		graph.WithNamespace(ga.name),
	)
	if err != nil {
		if cleanup != nil {
			_ = cleanup()
		}
		return fmt.Errorf("failed to create graph executor: %w", err)
	}
	ga.executor = executor
	ga.cleanup = cleanup
	log.Infof("agent %s initialized", ga.name)
	return nil
}

func (ga *GraphAgent) getExecutor() (*graph.Executor, error) {
	ga.mu.RLock()
	defer ga.mu.RUnlock()
	if ga.executor == nil {
		return nil, fmt.Errorf("%s: %w", ga.name, agent.ErrNotInitialized)
	}
	return ga.executor, nil
}

// Run implements the agent.Agent interface. Runs of one thread must be
// serialized by the caller.
func (ga *GraphAgent) Run(ctx context.Context, threadID string, message string, opts ...agent.RunOption) (*agent.Reply, error) {
	executor, err := ga.getExecutor()
	if err != nil {
		return nil, err
	}
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	input := ga.options.InputFunc(message, agent.NewRunOptions(opts...))
	state, err := executor.Invoke(ctx, threadID, input)
	if errors.Is(err, graph.ErrMaxStepsExceeded) {
		log.Warnf("agent %s thread %s: %v", ga.name, threadID, err)
		return &agent.Reply{
			ThreadID: threadID,
			Content:  graph.ErrorMessagePrefix + err.Error(),
			Error:    err.Error(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("agent %s thread %s: %w", ga.name, threadID, err)
	}
	return ga.options.ReplyFunc(threadID, state), nil
}

// Messages implements the agent.Agent interface.
func (ga *GraphAgent) Messages(ctx context.Context, threadID string) ([]model.Message, error) {
	executor, err := ga.getExecutor()
	if err != nil {
		return nil, err
	}
	state, err := executor.State(ctx, threadID)
	if errors.Is(err, graph.ErrCheckpointNotFound) {
		return []model.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return state.Messages(), nil
}

// Threads implements the agent.Agent interface.
func (ga *GraphAgent) Threads(ctx context.Context, prefix string) ([]string, error) {
	executor, err := ga.getExecutor()
	if err != nil {
		return nil, err
	}
	return executor.Threads(ctx, prefix)
}

// DeleteThread implements the agent.Agent interface.
func (ga *GraphAgent) DeleteThread(ctx context.Context, threadID string) error {
	executor, err := ga.getExecutor()
	if err != nil {
		return err
	}
	return executor.DeleteThread(ctx, threadID)
}

// Close implements the agent.Agent interface. The checkpoint saver is not
// closed; it may be shared with other agents.
func (ga *GraphAgent) Close() error {
	ga.mu.Lock()
	defer ga.mu.Unlock()
	cleanup := ga.cleanup
	ga.cleanup = nil
	ga.executor = nil
	if cleanup != nil {
		return cleanup()
	}
	return nil
}
