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
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	itelemetry "trpc.group/trpc-go/trpc-agent-app/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-app/log"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-app/tool"
)

// DefaultToolTimeout bounds a single tool call.
const DefaultToolTimeout = 60 * time.Second

// ToolErrorPrefix starts the content of a failed tool result.
const ToolErrorPrefix = "Error: "

// ToolsNodeOption configures NewToolsNodeFunc.
type ToolsNodeOption func(*toolsNodeOptions)

type toolsNodeOptions struct {
	timeout time.Duration
	pool    *ants.Pool
}

// WithToolTimeout sets the per-call timeout, default 60s.
func WithToolTimeout(d time.Duration) ToolsNodeOption {
	return func(o *toolsNodeOptions) {
		o.timeout = d
	}
}

// WithToolPool runs the calls of one assistant message concurrently on
// pool. The pool is owned by the caller.
func WithToolPool(pool *ants.Pool) ToolsNodeOption {
	return func(o *toolsNodeOptions) {
		o.pool = pool
	}
}

// NewToolsNodeFunc creates a node that answers every tool call of the last
// assistant message. It never returns an error: unknown tools, handler
// errors, panics and timeouts become tool results starting with
// ToolErrorPrefix. Results are appended in call order.
func NewToolsNodeFunc(tools map[string]tool.Tool, opts ...ToolsNodeOption) NodeFunc {
	o := toolsNodeOptions{timeout: DefaultToolTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	metrics := newInstruments("graph.tool", "tool calls")
	return func(ctx context.Context, state State) (State, error) {
		last, ok := state.LastMessage()
		if !ok || last.Role != model.RoleAssistant || !last.HasToolCalls() {
			return nil, nil
		}
		calls := last.ToolCalls
		results := make([]model.Message, len(calls))
		run := func(i int) {
			results[i] = dispatchToolCall(ctx, tools, calls[i], o.timeout, metrics)
		}
		if o.pool == nil || len(calls) == 1 {
			for i := range calls {
				run(i)
			}
		} else {
			var wg sync.WaitGroup
			for i := range calls {
				wg.Add(1)
				if err := o.pool.Submit(func() {
					defer wg.Done()
					run(i)
				}); err != nil {
					wg.Done()
					run(i)
				}
			}
			wg.Wait()
		}
		return State{StateKeyMessages: results}, nil
	}
}

// dispatchToolCall runs one call and always returns its tool message.
func dispatchToolCall(
	ctx context.Context,
	tools map[string]tool.Tool,
	call model.ToolCall,
	timeout time.Duration,
	metrics instruments,
) model.Message {
	name := call.Function.Name
	ctx, span := trace.Tracer.Start(ctx, fmt.Sprintf("%s %s", itelemetry.SpanNamePrefixExecuteTool, name))
	defer span.End()
	start := time.Now()

	var declaration *tool.Declaration
	content, err := func() (string, error) {
		t, ok := tools[name]
		if !ok || t == nil {
			return "", fmt.Errorf("tool %s not found", name)
		}
		declaration = t.Declaration()
		callable, ok := t.(tool.CallableTool)
		if !ok {
			return "", fmt.Errorf("tool %s is not callable", name)
		}
		result, err := callWithTimeout(ctx, callable, name, []byte(call.Function.Arguments), timeout)
		if err != nil {
			return "", err
		}
		return formatToolResult(result)
	}()

	status := statusOK
	if err != nil {
		status = statusError
		info, _ := RunInfoFromContext(ctx)
		log.Warnf("thread %s: tool %s (call %s) failed: %v", info.ThreadID, name, call.ID, err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(itelemetry.KeyError, err.Error()))
		content = ToolErrorPrefix + err.Error()
	}
	itelemetry.TraceToolCall(span, declaration, call.ID, []byte(call.Function.Arguments), content)
	metrics.record(ctx, start, status, attribute.String("tool", name))
	return model.NewToolMessage(call.ID, name, content)
}

type toolOutcome struct {
	result any
	err    error
}

// callWithTimeout runs the handler on its own goroutine so a stuck tool
// cannot hold the node past the timeout. The goroutine is abandoned then.
func callWithTimeout(
	ctx context.Context,
	t tool.CallableTool,
	name string,
	args []byte,
	timeout time.Duration,
) (any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	done := make(chan toolOutcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- toolOutcome{err: fmt.Errorf("tool %s panicked: %v", name, rec)}
			}
		}()
		result, err := t.Call(ctx, args)
		done <- toolOutcome{result: result, err: err}
	}()
	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("tool %s timed out after %s", name, timeout)
		}
		return nil, fmt.Errorf("tool %s: %w", name, ctx.Err())
	}
}

// formatToolResult uses strings verbatim and JSON-encodes anything else.
func formatToolResult(result any) (string, error) {
	switch v := result.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal tool result: %w", err)
	}
	return string(data), nil
}
