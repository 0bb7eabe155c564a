//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package reactagent provides the reactive tool-using agent: the model
// reasons, calls tools and reasons again until it answers without a tool
// call.
package reactagent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"trpc.group/trpc-go/trpc-agent-app/agent/graphagent"
	"trpc.group/trpc-go/trpc-agent-app/graph"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/tool"
)

const (
	// Name is the agent kind and checkpoint namespace.
	Name = "reactive"

	// NodeReason is the reasoning node.
	NodeReason = "reason"
	// NodeTools is the tool dispatch node.
	NodeTools = "tools"
)

// Option configures the agent.
type Option func(*options)

type options struct {
	instruction    string
	tools          []tool.CallableTool
	toolSets       []tool.ToolSet
	toolTimeout    time.Duration
	toolPoolSize   int
	maxInputTokens int
	tokenCounter   model.TokenCounter
	agentOptions   []graphagent.Option
}

// WithInstruction sets a system instruction. The default sends the
// conversation as it is.
func WithInstruction(instruction string) Option {
	return func(o *options) {
		o.instruction = instruction
	}
}

// WithTools binds tools to the model.
func WithTools(tools ...tool.CallableTool) Option {
	return func(o *options) {
		o.tools = append(o.tools, tools...)
	}
}

// WithToolSets binds every tool of the sets. The sets are closed with the
// agent.
func WithToolSets(toolSets ...tool.ToolSet) Option {
	return func(o *options) {
		o.toolSets = append(o.toolSets, toolSets...)
	}
}

// WithToolTimeout bounds each tool call.
func WithToolTimeout(d time.Duration) Option {
	return func(o *options) {
		o.toolTimeout = d
	}
}

// WithToolPoolSize runs parallel tool calls on a pool of size workers.
// Zero runs them one after the other.
func WithToolPoolSize(size int) Option {
	return func(o *options) {
		o.toolPoolSize = size
	}
}

// WithMaxInputTokens trims old turns so requests fit in maxTokens.
func WithMaxInputTokens(maxTokens int, counter model.TokenCounter) Option {
	return func(o *options) {
		o.maxInputTokens = maxTokens
		o.tokenCounter = counter
	}
}

// WithAgentOptions passes options to the underlying graph agent, e.g. the
// checkpoint saver.
func WithAgentOptions(opts ...graphagent.Option) Option {
	return func(o *options) {
		o.agentOptions = append(o.agentOptions, opts...)
	}
}

// New creates the reactive agent on llm. The graph is built by Initialize.
func New(llm model.Model, opts ...Option) (*graphagent.GraphAgent, error) {
	if llm == nil {
		return nil, errors.New("model is nil")
	}
	o := &options{toolTimeout: graph.DefaultToolTimeout}
	for _, opt := range opts {
		opt(o)
	}
	agentOpts := append([]graphagent.Option{
		graphagent.WithDescription("A reactive agent that answers with the help of tools"),
	}, o.agentOptions...)
	return graphagent.New(Name, func(ctx context.Context) (*graph.Graph, func() error, error) {
		return buildGraph(ctx, llm, o)
	}, agentOpts...)
}

// buildGraph wires reason ⇄ tools: reason goes to tools when the reply has
// tool calls and ends otherwise; tools always return to reason.
func buildGraph(ctx context.Context, llm model.Model, o *options) (*graph.Graph, func() error, error) {
	registry, err := tool.NewRegistry(ctx, o.tools, o.toolSets...)
	if err != nil {
		return nil, nil, fmt.Errorf("register tools: %w", err)
	}
	toolsOpts := []graph.ToolsNodeOption{graph.WithToolTimeout(o.toolTimeout)}
	var pool *ants.Pool
	if o.toolPoolSize > 0 {
		pool, err = ants.NewPool(o.toolPoolSize)
		if err != nil {
			_ = registry.Close()
			return nil, nil, fmt.Errorf("create tool pool: %w", err)
		}
		toolsOpts = append(toolsOpts, graph.WithToolPool(pool))
	}
	cleanup := func() error {
		if pool != nil {
			pool.Release()
		}
		return registry.Close()
	}

	var llmOpts []graph.LLMNodeOption
	if o.maxInputTokens > 0 {
		llmOpts = append(llmOpts, graph.WithMaxInputTokens(o.maxInputTokens, o.tokenCounter))
	}
	tools := registry.ToolMap()
	g, err := graph.NewStateGraph(graph.MessagesStateSchema()).
		AddLLMNode(NodeReason, llm, o.instruction, tools, llmOpts...).
		AddToolsNode(NodeTools, tools, toolsOpts...).
		AddToolsConditionalEdges(NodeReason, NodeTools, graph.End).
		AddEdge(NodeTools, NodeReason).
		SetEntryPoint(NodeReason).
		Compile()
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	return g, cleanup, nil
}
