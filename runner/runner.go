//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package runner is the facade in front of the agents. It creates each
// agent kind once, serializes the runs of a thread and exposes read-only
// views of the stored conversations.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"trpc.group/trpc-go/trpc-agent-app/agent"
	itelemetry "trpc.group/trpc-go/trpc-agent-app/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-app/lock"
	"trpc.group/trpc-go/trpc-agent-app/log"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/telemetry/trace"
)

// ErrUnknownAgent is returned for an agent kind without a factory.
var ErrUnknownAgent = errors.New("unknown agent")

// Factory creates an agent of one kind. Initialize is called by the runner.
type Factory func(ctx context.Context) (agent.Agent, error)

// Runner is the interface for running agents.
type Runner interface {
	// Setup returns the agent of kind, creating and initializing it on
	// first use.
	Setup(ctx context.Context, kind string) (agent.Agent, error)
	// Run sends message to a thread of the agent. Runs of the same thread
	// are serialized.
	Run(ctx context.Context, handle agent.Agent, threadID string, message string, opts ...agent.RunOption) (*agent.Reply, error)
	// ListThreads lists the threads of kind starting with prefix.
	ListThreads(ctx context.Context, kind string, prefix string) ([]string, error)
	// GetMessages returns the user messages and final answers of a thread.
	GetMessages(ctx context.Context, kind string, threadID string) ([]model.Message, error)
	// DeleteThread removes a thread of kind.
	DeleteThread(ctx context.Context, kind string, threadID string) error
	// Kinds returns the registered agent kinds in sorted order.
	Kinds() []string
	// Close closes every agent created so far.
	Close() error
}

// Option is a function that configures a Runner.
type Option func(*Options)

// Options is the options for the Runner.
type Options struct {
	factories map[string]Factory
	locker    lock.Locker
}

// WithAgent registers the factory of an agent kind.
func WithAgent(kind string, factory Factory) Option {
	return func(opts *Options) {
		opts.factories[kind] = factory
	}
}

// WithLocker sets the per-thread locker, default is lock.NewLocal().
func WithLocker(locker lock.Locker) Option {
	return func(opts *Options) {
		opts.locker = locker
	}
}

type runner struct {
	factories map[string]Factory
	locker    lock.Locker

	mu     sync.Mutex
	agents map[string]agent.Agent
	setup  map[string]*sync.Mutex
}

// NewRunner creates a new Runner.
func NewRunner(opts ...Option) Runner {
	options := Options{factories: make(map[string]Factory)}
	for _, opt := range opts {
		opt(&options)
	}
	if options.locker == nil {
		options.locker = lock.NewLocal()
	}
	return &runner{
		factories: options.factories,
		locker:    options.locker,
		agents:    make(map[string]agent.Agent),
		setup:     make(map[string]*sync.Mutex),
	}
}

// Setup implements Runner. Concurrent callers of one kind wait for a single
// construction; a failed construction is retried by the next call.
func (r *runner) Setup(ctx context.Context, kind string) (agent.Agent, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, kind)
	}
	r.mu.Lock()
	if a, ok := r.agents[kind]; ok {
		r.mu.Unlock()
		return a, nil
	}
	kindMu, ok := r.setup[kind]
	if !ok {
		kindMu = &sync.Mutex{}
		r.setup[kind] = kindMu
	}
	r.mu.Unlock()

	kindMu.Lock()
	defer kindMu.Unlock()
	r.mu.Lock()
	a, ok := r.agents[kind]
	r.mu.Unlock()
	if ok {
		return a, nil
	}

	a, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("create agent %s: %w", kind, err)
	}
	if err := a.Initialize(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("setup agent %s: %w", kind, err)
	}
	r.mu.Lock()
	r.agents[kind] = a
	r.mu.Unlock()
	log.Infof("runner: agent %s is ready", kind)
	return a, nil
}

func threadKey(kind, threadID string) string {
	return kind + "/" + threadID
}

// Run implements Runner.
func (r *runner) Run(
	ctx context.Context,
	handle agent.Agent,
	threadID string,
	message string,
	opts ...agent.RunOption,
) (*agent.Reply, error) {
	if handle == nil {
		return nil, errors.New("agent handle is nil")
	}
	if threadID == "" {
		return nil, errors.New("thread id is required")
	}
	kind := handle.Info().Name
	ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameRunAgent)
	defer span.End()
	span.SetAttributes(
		attribute.String(itelemetry.KeyNamespace, kind),
		attribute.String(itelemetry.KeyThreadID, threadID),
	)

	unlock, err := r.locker.Lock(ctx, threadKey(kind, threadID))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("lock thread %s: %w", threadID, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warnf("runner: release lock of thread %s: %v", threadID, err)
		}
	}()

	reply, err := handle.Run(ctx, threadID, message, opts...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if reply.Error != "" {
		span.SetAttributes(attribute.String(itelemetry.KeyError, reply.Error))
	}
	return reply, nil
}

// ListThreads implements Runner.
func (r *runner) ListThreads(ctx context.Context, kind string, prefix string) ([]string, error) {
	a, err := r.Setup(ctx, kind)
	if err != nil {
		return nil, err
	}
	threads, err := a.Threads(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list threads of %s: %w", kind, err)
	}
	if threads == nil {
		threads = []string{}
	}
	return threads, nil
}

// GetMessages implements Runner.
func (r *runner) GetMessages(ctx context.Context, kind string, threadID string) ([]model.Message, error) {
	a, err := r.Setup(ctx, kind)
	if err != nil {
		return nil, err
	}
	history, err := a.Messages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("read thread %s: %w", threadID, err)
	}
	return agent.ConversationMessages(history), nil
}

// DeleteThread implements Runner. It waits for a running turn of the
// thread to finish.
func (r *runner) DeleteThread(ctx context.Context, kind string, threadID string) error {
	a, err := r.Setup(ctx, kind)
	if err != nil {
		return err
	}
	unlock, err := r.locker.Lock(ctx, threadKey(kind, threadID))
	if err != nil {
		return fmt.Errorf("lock thread %s: %w", threadID, err)
	}
	defer func() { _ = unlock(context.WithoutCancel(ctx)) }()
	return a.DeleteThread(ctx, threadID)
}

// Kinds implements Runner.
func (r *runner) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Close implements Runner.
func (r *runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for kind, a := range r.agents {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close agent %s: %w", kind, err))
		}
		delete(r.agents, kind)
	}
	return errors.Join(errs...)
}
