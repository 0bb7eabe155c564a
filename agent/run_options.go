//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package agent

// RunOptions is the per-run input besides the message.
type RunOptions struct {
	// SuccessCriteria is what an evaluating agent checks the answer
	// against. Empty means the agent default.
	SuccessCriteria string
}

// RunOption configures a single run.
type RunOption func(*RunOptions)

// WithSuccessCriteria sets the success criteria of the run.
func WithSuccessCriteria(criteria string) RunOption {
	return func(o *RunOptions) {
		o.SuccessCriteria = criteria
	}
}

// NewRunOptions applies opts to zero options.
func NewRunOptions(opts ...RunOption) RunOptions {
	var o RunOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
