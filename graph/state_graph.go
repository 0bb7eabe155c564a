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

	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/tool"
)

// StateGraph provides a fluent interface for building graphs.
//
// Example usage:
//
//	g, err := NewStateGraph(MessagesStateSchema()).
//	  AddLLMNode("reason", m, instruction, tools).
//	  AddToolsNode("tools", tools).
//	  AddToolsConditionalEdges("reason", "tools", End).
//	  AddEdge("tools", "reason").
//	  SetEntryPoint("reason").
//	  Compile()
//
// Builder errors are collected and reported together by Compile.
type StateGraph struct {
	graph *Graph
	errs  []error
}

// NewStateGraph creates a new graph builder with the given state schema.
func NewStateGraph(schema *StateSchema) *StateGraph {
	return &StateGraph{
		graph: newGraph(schema),
	}
}

// Option is a function that configures a Node.
type Option func(*Node)

// WithName sets the name of the node.
func WithName(name string) Option {
	return func(node *Node) {
		node.Name = name
	}
}

// WithDescription sets the description of the node.
func WithDescription(description string) Option {
	return func(node *Node) {
		node.Description = description
	}
}

// WithNodeType sets the type reported in traces and metrics.
func WithNodeType(nodeType NodeType) Option {
	return func(node *Node) {
		node.Type = nodeType
	}
}

func (sg *StateGraph) record(err error) {
	if err != nil {
		sg.errs = append(sg.errs, err)
	}
}

// AddNode adds a node with the given ID and function.
func (sg *StateGraph) AddNode(id string, function NodeFunc, opts ...Option) *StateGraph {
	node := &Node{
		ID:       id,
		Name:     id,
		Type:     NodeTypeFunction,
		Function: function,
	}
	for _, opt := range opts {
		opt(node)
	}
	sg.record(sg.graph.addNode(node))
	return sg
}

// AddLLMNode adds a reasoning node built by NewLLMNodeFunc.
func (sg *StateGraph) AddLLMNode(
	id string,
	llm model.Model,
	instruction string,
	tools map[string]tool.Tool,
	opts ...LLMNodeOption,
) *StateGraph {
	if llm == nil {
		sg.record(fmt.Errorf("llm node %s: model is nil", id))
		return sg
	}
	return sg.AddNode(id, NewLLMNodeFunc(llm, instruction, tools, opts...), WithNodeType(NodeTypeLLM))
}

// AddToolsNode adds a dispatch node built by NewToolsNodeFunc.
func (sg *StateGraph) AddToolsNode(
	id string,
	tools map[string]tool.Tool,
	opts ...ToolsNodeOption,
) *StateGraph {
	return sg.AddNode(id, NewToolsNodeFunc(tools, opts...), WithNodeType(NodeTypeTools))
}

// AddEdge adds a normal edge between two nodes.
func (sg *StateGraph) AddEdge(from, to string) *StateGraph {
	sg.record(sg.graph.addEdge(&Edge{From: from, To: to}))
	return sg
}

// AddConditionalEdges adds conditional routing from a node. Every value the
// condition can return must be a key of pathMap.
func (sg *StateGraph) AddConditionalEdges(
	from string,
	condition ConditionalFunc,
	pathMap map[string]string,
) *StateGraph {
	sg.record(sg.graph.addConditionalEdge(&ConditionalEdge{
		From:      from,
		Condition: condition,
		PathMap:   pathMap,
	}))
	return sg
}

// AddToolsConditionalEdges routes fromLLMNode to toToolsNode when the last
// message has tool calls, and to fallbackNode otherwise.
func (sg *StateGraph) AddToolsConditionalEdges(
	fromLLMNode string,
	toToolsNode string,
	fallbackNode string,
) *StateGraph {
	return sg.AddConditionalEdges(fromLLMNode, ToolsCondition(toToolsNode, fallbackNode), map[string]string{
		toToolsNode:  toToolsNode,
		fallbackNode: fallbackNode,
	})
}

// ToolsCondition returns a ConditionalFunc that picks toolsNode when the
// last message carries tool calls and fallbackNode otherwise.
func ToolsCondition(toolsNode, fallbackNode string) ConditionalFunc {
	return func(_ context.Context, state State) (string, error) {
		if last, ok := state.LastMessage(); ok && last.HasToolCalls() {
			return toolsNode, nil
		}
		return fallbackNode, nil
	}
}

// SetEntryPoint sets the node the graph starts from.
func (sg *StateGraph) SetEntryPoint(nodeID string) *StateGraph {
	if nodeID == "" {
		sg.record(errors.New("entry point cannot be empty"))
		return sg
	}
	sg.graph.entryPoint = nodeID
	return sg
}

// SetFinishPoint adds an edge from the node to End.
func (sg *StateGraph) SetFinishPoint(nodeID string) *StateGraph {
	return sg.AddEdge(nodeID, End)
}

// Compile compiles the graph and returns it for execution.
func (sg *StateGraph) Compile() (*Graph, error) {
	errs := sg.errs
	if len(errs) == 0 {
		if err := sg.graph.validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid graph: %w", errors.Join(errs...))
	}
	return sg.graph, nil
}
