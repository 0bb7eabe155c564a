//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package graph provides graph-based execution functionality: a typed state
// with per-field reducers, nodes joined by static and conditional edges,
// and an executor that checkpoints the state after every node.
package graph

import (
	"context"
	"errors"
	"fmt"
)

// Special node identifiers for graph routing.
const (
	// Start represents the virtual start node for routing.
	Start = "__start__"
	// End represents the virtual end node for routing.
	End = "__end__"
)

// NodeFunc is a function that can be executed by a node.
// It returns the partial state update to merge, or an error that aborts
// the run.
type NodeFunc func(ctx context.Context, state State) (State, error)

// ConditionalFunc is a function that determines the next node based on state.
// Its result is looked up in the edge's path map.
type ConditionalFunc func(ctx context.Context, state State) (string, error)

// NodeType classifies nodes for tracing and metrics.
type NodeType string

// Node types.
const (
	NodeTypeFunction   NodeType = "function"
	NodeTypeLLM        NodeType = "llm"
	NodeTypeTools      NodeType = "tools"
	NodeTypeStructured NodeType = "structured"
)

// Node represents a node in the graph.
type Node struct {
	ID          string
	Name        string
	Description string
	Type        NodeType
	Function    NodeFunc
}

// Edge represents an edge in the graph.
type Edge struct {
	From string
	To   string
}

// ConditionalEdge represents a conditional edge with routing logic.
type ConditionalEdge struct {
	From      string
	Condition ConditionalFunc
	PathMap   map[string]string // Maps condition result to target node.
}

// Graph is the compiled, immutable runtime structure produced by
// StateGraph.Compile and run by an Executor.
type Graph struct {
	schema           *StateSchema
	nodes            map[string]*Node
	edges            map[string]*Edge
	conditionalEdges map[string]*ConditionalEdge
	entryPoint       string
}

func newGraph(schema *StateSchema) *Graph {
	if schema == nil {
		schema = NewStateSchema()
	}
	return &Graph{
		schema:           schema,
		nodes:            make(map[string]*Node),
		edges:            make(map[string]*Edge),
		conditionalEdges: make(map[string]*ConditionalEdge),
	}
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// EntryPoint returns the entry point node ID.
func (g *Graph) EntryPoint() string {
	return g.entryPoint
}

// Schema returns the state schema.
func (g *Graph) Schema() *StateSchema {
	return g.schema
}

// Next returns the node that follows from after its update was merged into
// state. A node without outgoing edges finishes the run.
func (g *Graph) Next(ctx context.Context, from string, state State) (string, error) {
	if condEdge, ok := g.conditionalEdges[from]; ok {
		result, err := condEdge.Condition(ctx, state)
		if err != nil {
			return "", fmt.Errorf("conditional edge from %s: %w", from, err)
		}
		next, ok := condEdge.PathMap[result]
		if !ok {
			return "", fmt.Errorf("condition result %s not found in path map of %s", result, from)
		}
		return next, nil
	}
	if edge, ok := g.edges[from]; ok {
		return edge.To, nil
	}
	return End, nil
}

func (g *Graph) addNode(node *Node) error {
	if node.ID == "" {
		return errors.New("node ID cannot be empty")
	}
	if node.ID == Start || node.ID == End {
		return fmt.Errorf("node ID %s is reserved", node.ID)
	}
	if node.Function == nil {
		return fmt.Errorf("node %s has no function", node.ID)
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("node with ID %s already exists", node.ID)
	}
	g.nodes[node.ID] = node
	return nil
}

func (g *Graph) addEdge(edge *Edge) error {
	if edge.From == "" || edge.To == "" {
		return errors.New("edge from and to cannot be empty")
	}
	if edge.From == End {
		return errors.New("edge cannot leave the end node")
	}
	if _, exists := g.edges[edge.From]; exists {
		return fmt.Errorf("node %s already has an outgoing edge", edge.From)
	}
	if _, exists := g.conditionalEdges[edge.From]; exists {
		return fmt.Errorf("node %s already has conditional edges", edge.From)
	}
	g.edges[edge.From] = edge
	return nil
}

func (g *Graph) addConditionalEdge(condEdge *ConditionalEdge) error {
	if condEdge.From == "" {
		return errors.New("conditional edge from cannot be empty")
	}
	if condEdge.Condition == nil {
		return fmt.Errorf("conditional edge from %s has no condition", condEdge.From)
	}
	if len(condEdge.PathMap) == 0 {
		return fmt.Errorf("conditional edge from %s has an empty path map", condEdge.From)
	}
	if _, exists := g.conditionalEdges[condEdge.From]; exists {
		return fmt.Errorf("node %s already has conditional edges", condEdge.From)
	}
	if _, exists := g.edges[condEdge.From]; exists {
		return fmt.Errorf("node %s already has an outgoing edge", condEdge.From)
	}
	g.conditionalEdges[condEdge.From] = condEdge
	return nil
}

// validate checks that every referenced node exists. Edges may be added
// before their target node, so this runs at compile time.
func (g *Graph) validate() error {
	if g.entryPoint == "" {
		return errors.New("graph must have an entry point")
	}
	if _, exists := g.nodes[g.entryPoint]; !exists {
		return fmt.Errorf("entry point node %s does not exist", g.entryPoint)
	}
	exists := func(id string) bool {
		if id == End {
			return true
		}
		_, ok := g.nodes[id]
		return ok
	}
	for from, edge := range g.edges {
		if !exists(from) {
			return fmt.Errorf("source node %s does not exist", from)
		}
		if !exists(edge.To) {
			return fmt.Errorf("target node %s does not exist", edge.To)
		}
	}
	for from, condEdge := range g.conditionalEdges {
		if !exists(from) {
			return fmt.Errorf("source node %s does not exist", from)
		}
		for _, to := range condEdge.PathMap {
			if !exists(to) {
				return fmt.Errorf("target node %s does not exist", to)
			}
		}
	}
	return nil
}
