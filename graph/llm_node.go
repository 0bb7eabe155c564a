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
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	itelemetry "trpc.group/trpc-go/trpc-agent-app/internal/telemetry"
	"trpc.group/trpc-go/trpc-agent-app/log"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/telemetry/trace"
	"trpc.group/trpc-go/trpc-agent-app/tool"
)

// ErrorMessagePrefix starts the assistant message a node appends when its
// model call fails.
const ErrorMessagePrefix = "I encountered an error processing your request: "

// InstructionFunc builds the system instruction from the current state.
type InstructionFunc func(ctx context.Context, state State) string

// LLMNodeOption configures NewLLMNodeFunc.
type LLMNodeOption func(*llmNodeOptions)

type llmNodeOptions struct {
	instructionFunc  InstructionFunc
	maxInputTokens   int
	tokenCounter     model.TokenCounter
	generationConfig model.GenerationConfig
}

// WithInstructionFunc computes the system instruction on every call
// instead of using the static one.
func WithInstructionFunc(fn InstructionFunc) LLMNodeOption {
	return func(o *llmNodeOptions) {
		o.instructionFunc = fn
	}
}

// WithMaxInputTokens drops the oldest whole turns of the history until the
// request fits in maxTokens as measured by counter. A nil counter uses
// model.SimpleTokenCounter.
func WithMaxInputTokens(maxTokens int, counter model.TokenCounter) LLMNodeOption {
	return func(o *llmNodeOptions) {
		o.maxInputTokens = maxTokens
		o.tokenCounter = counter
	}
}

// WithGenerationConfig sets the sampling parameters of every request.
func WithGenerationConfig(cfg model.GenerationConfig) LLMNodeOption {
	return func(o *llmNodeOptions) {
		o.generationConfig = cfg
	}
}

// NewLLMNodeFunc creates a reasoning node. It sends the instruction and the
// history to llm with tools bound and appends the assistant reply.
//
// A failed call never fails the node: the update carries an assistant
// message starting with ErrorMessagePrefix and sets last_error.
func NewLLMNodeFunc(llm model.Model, instruction string, tools map[string]tool.Tool, opts ...LLMNodeOption) NodeFunc {
	var o llmNodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return func(ctx context.Context, state State) (State, error) {
		ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameCallLLM)
		defer span.End()

		instr := instruction
		if o.instructionFunc != nil {
			instr = o.instructionFunc(ctx, state)
		}
		messages := buildMessages(state.Messages(), instr)
		if o.maxInputTokens > 0 {
			tailored, err := model.TailorMessages(ctx, o.tokenCounter, messages, o.maxInputTokens)
			if err != nil {
				return failureUpdate(ctx, span, err), nil
			}
			messages = tailored
		}
		request := &model.Request{
			Messages:         messages,
			GenerationConfig: o.generationConfig,
			Tools:            tools,
		}
		msg, rsp, err := model.Generate(ctx, llm, request)
		info, _ := RunInfoFromContext(ctx)
		itelemetry.TraceCallLLM(span, info.ThreadID, llm.Info(), request, rsp)
		if err != nil {
			return failureUpdate(ctx, span, err), nil
		}
		msg.Role = model.RoleAssistant
		return State{
			StateKeyMessages:     []model.Message{msg},
			StateKeyLastResponse: msg.Content,
			StateKeyLastError:    "",
		}, nil
	}
}

// buildMessages prepends the instruction unless the history already starts
// with a system message. The history is not modified.
func buildMessages(history []model.Message, instruction string) []model.Message {
	if instruction == "" || (len(history) > 0 && history[0].Role == model.RoleSystem) {
		return history
	}
	messages := make([]model.Message, 0, len(history)+1)
	messages = append(messages, model.NewSystemMessage(instruction))
	return append(messages, history...)
}

// failureUpdate turns a model failure into the assistant error reply.
func failureUpdate(ctx context.Context, span oteltrace.Span, err error) State {
	info, _ := RunInfoFromContext(ctx)
	log.Warnf("thread %s: node %s recovered from model failure: %v", info.ThreadID, info.NodeID, err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(itelemetry.KeyError, err.Error()))
	content := fmt.Sprintf("%s%v", ErrorMessagePrefix, err)
	return State{
		StateKeyMessages:     []model.Message{model.NewAssistantMessage(content)},
		StateKeyLastResponse: content,
		StateKeyLastError:    err.Error(),
	}
}
