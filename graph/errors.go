//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "errors"

// Errors.
var (
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	ErrCheckpointConflict = errors.New("checkpoint sequence already exists")
	ErrMaxStepsExceeded   = errors.New("maximum execution steps exceeded")
	ErrThreadIDRequired   = errors.New("thread id is required")
)
