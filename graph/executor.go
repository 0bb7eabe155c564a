//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	itelemetry "trpc.group/trpc-go/trpc-agent-app/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-app/log"
	"trpc.group/trpc-go/trpc-agent-app/telemetry/trace"
)

// DefaultMaxSteps bounds the nodes executed by one run.
const DefaultMaxSteps = 100

// Executor runs a compiled graph for a thread, checkpointing after every
// node. Runs of one thread must not overlap; callers serialize them.
type Executor struct {
	graph     *Graph
	manager   *CheckpointManager
	namespace string
	maxSteps  int
	nodes     instruments
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*ExecutorOptions)

// ExecutorOptions contains configuration options for creating an Executor.
type ExecutorOptions struct {
	// CheckpointSaver persists thread state. Without one every run starts
	// from the schema defaults and nothing is remembered.
	CheckpointSaver CheckpointSaver
	// MaxSteps is the maximum number of nodes executed by one run.
	MaxSteps int
	// Namespace separates the threads of different graphs sharing a saver.
	Namespace string
}

// WithCheckpointSaver sets the checkpoint saver.
func WithCheckpointSaver(saver CheckpointSaver) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.CheckpointSaver = saver
	}
}

// WithMaxSteps sets the maximum number of steps for graph execution.
func WithMaxSteps(maxSteps int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.MaxSteps = maxSteps
	}
}

// WithNamespace sets the checkpoint namespace.
func WithNamespace(namespace string) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Namespace = namespace
	}
}

// NewExecutor creates a new graph executor.
//
// Parameters:
//   - g: a compiled graph.
//   - opts: optional configuration, e.g. WithCheckpointSaver and WithMaxSteps.
//
// Returns:
//   - *Executor on success; error if the graph is invalid or MaxSteps is not positive.
func NewExecutor(g *Graph, opts ...ExecutorOption) (*Executor, error) {
	if g == nil {
		return nil, errors.New("graph is nil")
	}
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	options := ExecutorOptions{MaxSteps: DefaultMaxSteps}
	for _, opt := range opts {
		opt(&options)
	}
	if options.MaxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be positive, got %d", options.MaxSteps)
	}
	e := &Executor{
		graph:     g,
		namespace: options.Namespace,
		maxSteps:  options.MaxSteps,
		nodes:     newInstruments("graph.node", "graph node executions"),
	}
	if options.CheckpointSaver != nil {
		e.manager = NewCheckpointManager(options.CheckpointSaver, g.Schema())
	}
	return e, nil
}

// Namespace returns the checkpoint namespace of the executor.
func (e *Executor) Namespace() string {
	return e.namespace
}

// run is the cursor of one execution.
type run struct {
	threadID string
	seq      int64
	step     int
	state    State
	source   string
}

// Invoke runs the graph for threadID with input merged into the thread's
// latest state and returns the final state.
//
// An interrupted earlier run (its latest checkpoint does not point at End)
// is first finished from where it stopped. Checkpoint failures abort the
// run. When the step limit is hit, a terminal checkpoint is written and an
// error matching ErrMaxStepsExceeded is returned along with the state.
func (e *Executor) Invoke(ctx context.Context, threadID string, input State) (State, error) {
	if threadID == "" {
		return nil, ErrThreadIDRequired
	}
	ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameRunGraph)
	defer span.End()
	span.SetAttributes(
		attribute.String(itelemetry.KeyThreadID, threadID),
		attribute.String(itelemetry.KeyNamespace, e.namespace),
	)

	r, latest, err := e.load(ctx, threadID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if latest != nil && !latest.Position.Complete() {
		log.Infof("thread %s: resuming interrupted run at node %s", threadID, latest.Position.NextNode)
		r.step = latest.Position.Step
		r.source = SourceResume
		err := e.runFrom(ctx, r, latest.Position.NextNode)
		switch {
		case errors.Is(err, ErrMaxStepsExceeded):
			// The interrupted run is closed; the new input still runs.
			log.Warnf("thread %s: abandoned interrupted run: %v", threadID, err)
		case err != nil:
			span.SetStatus(codes.Error, err.Error())
			return r.state, err
		}
	}

	r.step = 0
	r.state = e.graph.Schema().ApplyUpdate(r.state, input)
	entry := e.graph.EntryPoint()
	if err := e.save(ctx, r, Position{LastNode: Start, NextNode: entry}, SourceInput); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return r.state, err
	}
	r.source = SourceLoop
	if err := e.runFrom(ctx, r, entry); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return r.state, err
	}
	return r.state, nil
}

// Resume finishes an interrupted run of threadID, if there is one, and
// returns the thread's latest state.
func (e *Executor) Resume(ctx context.Context, threadID string) (State, error) {
	if threadID == "" {
		return nil, ErrThreadIDRequired
	}
	r, latest, err := e.load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("resume thread %s: %w", threadID, ErrCheckpointNotFound)
	}
	if latest.Position.Complete() {
		return r.state, nil
	}
	r.step = latest.Position.Step
	r.source = SourceResume
	if err := e.runFrom(ctx, r, latest.Position.NextNode); err != nil {
		return r.state, err
	}
	return r.state, nil
}

// State returns the latest state of a thread, or an error matching
// ErrCheckpointNotFound for an unknown thread.
func (e *Executor) State(ctx context.Context, threadID string) (State, error) {
	if e.manager == nil {
		return nil, fmt.Errorf("thread %s: %w", threadID, ErrCheckpointNotFound)
	}
	state, _, err := e.manager.LoadLatest(ctx, e.namespace, threadID)
	return state, err
}

// Threads lists the threads of this executor's namespace with the prefix.
func (e *Executor) Threads(ctx context.Context, prefix string) ([]string, error) {
	if e.manager == nil {
		return nil, nil
	}
	return e.manager.Saver().Threads(ctx, e.namespace, prefix)
}

// DeleteThread removes every checkpoint of a thread.
func (e *Executor) DeleteThread(ctx context.Context, threadID string) error {
	if e.manager == nil {
		return nil
	}
	return e.manager.Saver().DeleteThread(ctx, e.namespace, threadID)
}

// load returns a cursor positioned after the latest checkpoint of a thread.
// For an unknown thread the state holds the schema defaults and the
// returned checkpoint is nil.
func (e *Executor) load(ctx context.Context, threadID string) (*run, *Checkpoint, error) {
	r := &run{threadID: threadID, source: SourceLoop}
	if e.manager == nil {
		r.state = e.graph.Schema().Defaults()
		return r, nil, nil
	}
	state, latest, err := e.manager.LoadLatest(ctx, e.namespace, threadID)
	if errors.Is(err, ErrCheckpointNotFound) {
		r.state = e.graph.Schema().Defaults()
		return r, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	r.state = state
	r.seq = latest.Seq
	return r, latest, nil
}

func (e *Executor) save(ctx context.Context, r *run, pos Position, source string) error {
	if e.manager == nil {
		return nil
	}
	r.seq++
	_, err := e.manager.Save(ctx, e.namespace, r.threadID, r.seq, r.state, pos, source)
	return err
}

// runFrom executes nodes starting at nodeID until End.
func (e *Executor) runFrom(ctx context.Context, r *run, nodeID string) error {
	for nodeID != End {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.step >= e.maxSteps {
			// Close the run so the next invocation does not resume it.
			if err := e.save(ctx, r, Position{LastNode: nodeID, NextNode: End, Step: r.step}, r.source); err != nil {
				return err
			}
			return fmt.Errorf("thread %s: %w (%d)", r.threadID, ErrMaxStepsExceeded, e.maxSteps)
		}
		next, err := e.executeNode(ctx, r, nodeID)
		if err != nil {
			return fmt.Errorf("error executing node %s: %w", nodeID, err)
		}
		r.step++
		if err := e.save(ctx, r, Position{LastNode: nodeID, NextNode: next, Step: r.step}, r.source); err != nil {
			return err
		}
		nodeID = next
	}
	return nil
}

// executeNode runs a node, merges its update and returns the next node.
func (e *Executor) executeNode(ctx context.Context, r *run, nodeID string) (next string, err error) {
	node, exists := e.graph.Node(nodeID)
	if !exists {
		return "", fmt.Errorf("node %s not found", nodeID)
	}
	ctx, span := trace.Tracer.Start(ctx, fmt.Sprintf("%s %s", itelemetry.SpanNamePrefixExecuteNode, nodeID))
	defer span.End()
	span.SetAttributes(
		attribute.String(itelemetry.KeyNodeID, nodeID),
		attribute.String(itelemetry.KeyThreadID, r.threadID),
		attribute.Int(itelemetry.KeyStep, r.step),
	)
	start := time.Now()
	defer func() {
		status := statusOK
		if err != nil {
			status = statusError
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String(itelemetry.KeyError, err.Error()))
		}
		e.nodes.record(ctx, start, status,
			attribute.String("node", nodeID),
			attribute.String("node_type", string(node.Type)),
		)
	}()

	ctx = withRunInfo(ctx, RunInfo{
		Namespace: e.namespace,
		ThreadID:  r.threadID,
		NodeID:    nodeID,
		Step:      r.step,
	})
	log.Debugf("thread %s: executing node %s (step %d)", r.threadID, nodeID, r.step)
	update, err := callNode(ctx, node, r.state)
	if err != nil {
		return "", err
	}
	r.state = e.graph.Schema().ApplyUpdate(r.state, update)

	next, err = e.graph.Next(ctx, nodeID, r.state)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String(itelemetry.KeyNextNode, next))
	return next, nil
}

// callNode converts a node panic into an error.
func callNode(ctx context.Context, node *Node, state State) (update State, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("node %s panicked: %v", node.ID, rec)
		}
	}()
	update, err = node.Function(ctx, state.Clone())
	if err != nil {
		return nil, fmt.Errorf("node function execution failed: %w", err)
	}
	return update, nil
}
