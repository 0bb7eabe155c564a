//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the span names, attribute keys and tracing helpers
// shared by the graph engine and the telemetry exporters.
package telemetry

import (
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/tool"
)

// telemetry service constants.
const (
	ServiceName      = "trpc-agent-app"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-agent"
	InstrumentName   = "trpc.agent.app"

	SpanNameCallLLM           = "call_llm"
	SpanNameRunGraph          = "run_graph"
	SpanNameRunAgent          = "run_agent"
	SpanNamePrefixExecuteNode = "execute_node"
	SpanNamePrefixExecuteTool = "execute_tool"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// telemetry attributes constants.
var (
	KeyThreadID    = "trpc.go.agent.thread_id"
	KeyNamespace   = "trpc.go.agent.namespace"
	KeyNodeID      = "trpc.go.agent.node_id"
	KeyNextNode    = "trpc.go.agent.next_node"
	KeyStep        = "trpc.go.agent.step"
	KeyError       = "trpc.go.agent.error"
	KeyLLMRequest  = "trpc.go.agent.llm_request"
	KeyLLMResponse = "trpc.go.agent.llm_response"
)

// TraceToolCall records a tool invocation and its outcome on span.
func TraceToolCall(span trace.Span, declaration *tool.Declaration, toolID string, args []byte, result string) {
	name, description := "", ""
	if declaration != nil {
		name, description = declaration.Name, declaration.Description
	}
	span.SetAttributes(
		attribute.String("gen_ai.system", "trpc.go.agent"),
		attribute.String("gen_ai.operation.name", "tool.execute"),
		attribute.String("gen_ai.tool.name", name),
		attribute.String("gen_ai.tool.description", description),
		attribute.String("trpc.go.agent.tool_id", toolID),
		attribute.String("trpc.go.agent.tool_call_args", string(args)),
		attribute.String("trpc.go.agent.tool_response", result),
	)
}

// TraceCallLLM records a model request and response on span.
func TraceCallLLM(span trace.Span, threadID string, info model.Info, req *model.Request, rsp *model.Response) {
	span.SetAttributes(
		attribute.String("gen_ai.system", "trpc.go.agent"),
		attribute.String(KeyThreadID, threadID),
		attribute.String("gen_ai.request.model", info.Name),
		attribute.String("gen_ai.provider", info.Provider),
	)
	if bts, err := json.Marshal(req); err == nil {
		span.SetAttributes(attribute.String(KeyLLMRequest, string(bts)))
	} else {
		span.SetAttributes(attribute.String(KeyLLMRequest, "<not json serializable>"))
	}
	if rsp == nil {
		return
	}
	if bts, err := json.Marshal(rsp); err == nil {
		span.SetAttributes(attribute.String(KeyLLMResponse, string(bts)))
	} else {
		span.SetAttributes(attribute.String(KeyLLMResponse, "<not json serializable>"))
	}
	if rsp.Usage != nil {
		span.SetAttributes(
			attribute.Int("gen_ai.usage.input_tokens", rsp.Usage.PromptTokens),
			attribute.Int("gen_ai.usage.output_tokens", rsp.Usage.CompletionTokens),
		)
	}
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// Note the use of insecure transport here. TLS is recommended in production.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}
