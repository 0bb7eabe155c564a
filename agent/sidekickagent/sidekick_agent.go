//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package sidekickagent provides the supervised agent. A worker model
// answers with the help of tools and an evaluator model checks every
// answer against the success criteria of the run. Rejected answers go
// back to the worker with the evaluator feedback.
package sidekickagent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"trpc.group/trpc-go/trpc-agent-app/agent"
	"trpc.group/trpc-go/trpc-agent-app/agent/graphagent"
	"trpc.group/trpc-go/trpc-agent-app/graph"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/tool"
)

const (
	// Name is the agent kind and checkpoint namespace.
	Name = "sidekick"

	// NodeWorker answers the user.
	NodeWorker = "worker"
	// NodeTools dispatches the tool calls of the worker.
	NodeTools = "tools"
	// NodeEvaluator grades the answer of the worker.
	NodeEvaluator = "evaluator"

	// DefaultMaxEvaluationCycles bounds the evaluations of one run.
	DefaultMaxEvaluationCycles = 5
)

// Option configures the agent.
type Option func(*options)

type options struct {
	evaluator    model.Model
	maxCycles    int
	tools        []tool.CallableTool
	toolSets     []tool.ToolSet
	toolTimeout  time.Duration
	toolPoolSize int
	maxTokens    int
	tokenCounter model.TokenCounter
	now          func() time.Time
	agentOptions []graphagent.Option
}

// WithEvaluatorModel grades answers with m instead of the worker model.
func WithEvaluatorModel(m model.Model) Option {
	return func(o *options) {
		o.evaluator = m
	}
}

// WithMaxEvaluationCycles sets the cycle cap, default 5. When the cap is
// reached without success the run ends asking for user input.
func WithMaxEvaluationCycles(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxCycles = n
		}
	}
}

// WithTools binds tools to the worker.
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
func WithToolPoolSize(size int) Option {
	return func(o *options) {
		o.toolPoolSize = size
	}
}

// WithClock sets the clock used for the date in the worker prompt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithMaxInputTokens trims old turns from worker requests so they fit in
// maxTokens. A nil counter uses model.SimpleTokenCounter.
func WithMaxInputTokens(maxTokens int, counter model.TokenCounter) Option {
	return func(o *options) {
		o.maxTokens = maxTokens
		o.tokenCounter = counter
	}
}

// WithAgentOptions passes options to the underlying graph agent.
func WithAgentOptions(opts ...graphagent.Option) Option {
	return func(o *options) {
		o.agentOptions = append(o.agentOptions, opts...)
	}
}

// New creates the supervised agent.
//
// Parameters:
//   - worker: the model that drafts answers and calls tools. It also grades
//     the answers unless WithEvaluatorModel sets a separate model.
//   - opts: optional configuration functions.
//
// Returns:
//   - The agent, ready for Initialize; error if worker is nil or the graph
//     does not compile.
func New(worker model.Model, opts ...Option) (*graphagent.GraphAgent, error) {
	if worker == nil {
		return nil, errors.New("model is nil")
	}
	o := &options{
		maxCycles:   DefaultMaxEvaluationCycles,
		toolTimeout: graph.DefaultToolTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.evaluator == nil {
		o.evaluator = worker
	}
	agentOpts := append([]graphagent.Option{
		graphagent.WithDescription("A worker agent whose answers are checked against success criteria"),
		graphagent.WithInputFunc(runInput),
		graphagent.WithReplyFunc(reply),
	}, o.agentOptions...)
	return graphagent.New(Name, func(ctx context.Context) (*graph.Graph, func() error, error) {
		return buildGraph(ctx, worker, o)
	}, agentOpts...)
}

// runInput starts a new task: the message is appended and every
// evaluation field is reset.
func runInput(message string, opts agent.RunOptions) graph.State {
	criteria := opts.SuccessCriteria
	if criteria == "" {
		criteria = DefaultSuccessCriteria
	}
	return graph.State{
		graph.StateKeyMessages:     []model.Message{model.NewUserMessage(message)},
		graph.StateKeyLastError:    "",
		StateKeySuccessCriteria:    criteria,
		StateKeyFeedback:           "",
		StateKeySuccessCriteriaMet: false,
		StateKeyUserInputNeeded:    false,
		StateKeyEvaluationCycles:   0,
	}
}

func reply(threadID string, state graph.State) *agent.Reply {
	return &agent.Reply{
		ThreadID:           threadID,
		Content:            state.String(graph.StateKeyLastResponse),
		Feedback:           state.String(StateKeyFeedback),
		SuccessCriteriaMet: state.Bool(StateKeySuccessCriteriaMet),
		UserInputNeeded:    state.Bool(StateKeyUserInputNeeded),
		Error:              state.String(graph.StateKeyLastError),
	}
}

// buildGraph wires worker → tools|evaluator, tools → worker and
// evaluator → worker|END.
func buildGraph(ctx context.Context, worker model.Model, o *options) (*graph.Graph, func() error, error) {
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

	tools := registry.ToolMap()
	workerOpts := []graph.LLMNodeOption{graph.WithInstructionFunc(workerInstruction(o.now))}
	if o.maxTokens > 0 {
		workerOpts = append(workerOpts, graph.WithMaxInputTokens(o.maxTokens, o.tokenCounter))
	}
	evaluate := graph.NewStructuredNodeFunc(o.evaluator, "evaluator_output", evaluatorMessages,
		applyVerdict(o.maxCycles),
		graph.WithOutputDescription("Verdict on the assistant's last response"))
	g, err := graph.NewStateGraph(StateSchema()).
		AddLLMNode(NodeWorker, worker, "", tools, workerOpts...).
		AddToolsNode(NodeTools, tools, toolsOpts...).
		AddNode(NodeEvaluator, evaluate, graph.WithNodeType(graph.NodeTypeStructured)).
		AddConditionalEdges(NodeWorker, routeWorker, map[string]string{
			NodeTools:     NodeTools,
			NodeEvaluator: NodeEvaluator,
			graph.End:     graph.End,
		}).
		AddEdge(NodeTools, NodeWorker).
		AddConditionalEdges(NodeEvaluator, routeEvaluation, map[string]string{
			NodeWorker: NodeWorker,
			graph.End:  graph.End,
		}).
		SetEntryPoint(NodeWorker).
		Compile()
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	return g, cleanup, nil
}
