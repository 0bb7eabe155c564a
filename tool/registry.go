//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateTool is returned when two tools share a name.
var ErrDuplicateTool = errors.New("duplicate tool name")

// Registry is the fixed name to tool map of an agent. It is built once at
// setup and never modified afterwards, so it is safe for concurrent reads.
type Registry struct {
	tools    map[string]CallableTool
	toolSets []ToolSet
}

// NewRegistry registers the given tools and every tool of the given sets.
func NewRegistry(ctx context.Context, tools []CallableTool, toolSets ...ToolSet) (*Registry, error) {
	r := &Registry{
		tools:    make(map[string]CallableTool),
		toolSets: toolSets,
	}
	for _, t := range tools {
		if err := r.add(t); err != nil {
			return nil, err
		}
	}
	for _, ts := range toolSets {
		for _, t := range ts.Tools(ctx) {
			if err := r.add(t); err != nil {
				return nil, fmt.Errorf("toolset %s: %w", ts.Name(), err)
			}
		}
	}
	return r, nil
}

func (r *Registry) add(t CallableTool) error {
	if t == nil {
		return errors.New("tool cannot be nil")
	}
	decl := t.Declaration()
	if decl == nil || decl.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if _, ok := r.tools[decl.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, decl.Name)
	}
	r.tools[decl.Name] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (CallableTool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns the registry as a map. The map is a copy.
func (r *Registry) Tools() map[string]CallableTool {
	out := make(map[string]CallableTool, len(r.tools))
	for name, t := range r.tools {
		out[name] = t
	}
	return out
}

// ToolMap returns the registry as declarations for a model request.
func (r *Registry) ToolMap() map[string]Tool {
	out := make(map[string]Tool, len(r.tools))
	for name, t := range r.tools {
		out[name] = t
	}
	return out
}

// Close closes every registered tool set.
func (r *Registry) Close() error {
	var errs []error
	for _, ts := range r.toolSets {
		if err := ts.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close toolset %s: %w", ts.Name(), err))
		}
	}
	return errors.Join(errs...)
}
