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
	"time"

	"github.com/google/uuid"
)

// Checkpoint sources.
const (
	// SourceInput marks the checkpoint written after merging a run input.
	SourceInput = "input"
	// SourceLoop marks a checkpoint written after a node of a normal run.
	SourceLoop = "loop"
	// SourceResume marks a checkpoint written while finishing an interrupted run.
	SourceResume = "resume"
)

// Position records where a run stands when a checkpoint is written.
type Position struct {
	LastNode string `json:"last_node"`
	NextNode string `json:"next_node"`
	Step     int    `json:"step"`
}

// Complete reports whether the run that wrote the checkpoint reached End.
func (p Position) Complete() bool {
	return p.NextNode == End || p.NextNode == ""
}

// Checkpoint is an immutable snapshot of a thread's state, keyed by
// (Namespace, ThreadID, Seq). Seq strictly increases within a thread.
type Checkpoint struct {
	ID        string         `json:"id"`
	Namespace string         `json:"namespace"`
	ThreadID  string         `json:"thread_id"`
	Seq       int64          `json:"seq"`
	State     map[string]any `json:"state"`
	Position  Position       `json:"position"`
	Source    string         `json:"source"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewCheckpoint creates a checkpoint with a fresh ID.
func NewCheckpoint(namespace, threadID string, seq int64, state State, pos Position, source string) *Checkpoint {
	return &Checkpoint{
		ID:        uuid.NewString(),
		Namespace: namespace,
		ThreadID:  threadID,
		Seq:       seq,
		State:     map[string]any(state),
		Position:  pos,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}

// EncodeCheckpoint serializes a checkpoint for storage.
func EncodeCheckpoint(c *Checkpoint) ([]byte, error) {
	if c == nil {
		return nil, errors.New("checkpoint is nil")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return data, nil
}

// DecodeCheckpoint parses a stored checkpoint. State values come back as
// generic JSON types; CheckpointManager restores them through the schema.
func DecodeCheckpoint(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &c, nil
}

// CheckpointSaver persists checkpoints.
type CheckpointSaver interface {
	// Put stores a checkpoint durably before returning. It returns
	// ErrCheckpointConflict when the (namespace, thread, seq) key exists.
	Put(ctx context.Context, c *Checkpoint) error
	// Latest returns the checkpoint with the highest Seq of a thread, or
	// ErrCheckpointNotFound.
	Latest(ctx context.Context, namespace, threadID string) (*Checkpoint, error)
	// List returns up to limit checkpoints of a thread, newest first.
	// A limit <= 0 returns all of them.
	List(ctx context.Context, namespace, threadID string, limit int) ([]*Checkpoint, error)
	// Threads returns the sorted IDs of the threads whose ID has prefix.
	Threads(ctx context.Context, namespace, prefix string) ([]string, error)
	// DeleteThread removes every checkpoint of a thread.
	DeleteThread(ctx context.Context, namespace, threadID string) error
	// Close releases the resources of the saver.
	Close() error
}

// CheckpointManager saves and loads typed state through a saver.
type CheckpointManager struct {
	saver  CheckpointSaver
	schema *StateSchema
}

// NewCheckpointManager creates a manager restoring state with schema.
func NewCheckpointManager(saver CheckpointSaver, schema *StateSchema) *CheckpointManager {
	if schema == nil {
		schema = NewStateSchema()
	}
	return &CheckpointManager{saver: saver, schema: schema}
}

// Saver returns the underlying saver.
func (cm *CheckpointManager) Saver() CheckpointSaver {
	return cm.saver
}

// Save writes the state as checkpoint seq of the thread.
func (cm *CheckpointManager) Save(
	ctx context.Context,
	namespace, threadID string,
	seq int64,
	state State,
	pos Position,
	source string,
) (*Checkpoint, error) {
	c := NewCheckpoint(namespace, threadID, seq, state, pos, source)
	if err := cm.saver.Put(ctx, c); err != nil {
		return nil, fmt.Errorf("save checkpoint %d of thread %s: %w", seq, threadID, err)
	}
	return c, nil
}

// LoadLatest returns the restored state of the newest checkpoint of a
// thread together with the checkpoint. An unknown thread yields an error
// matching ErrCheckpointNotFound.
func (cm *CheckpointManager) LoadLatest(ctx context.Context, namespace, threadID string) (State, *Checkpoint, error) {
	c, err := cm.saver.Latest(ctx, namespace, threadID)
	if err != nil {
		return nil, nil, fmt.Errorf("load latest checkpoint of thread %s: %w", threadID, err)
	}
	state, err := cm.schema.Restore(c.State)
	if err != nil {
		return nil, nil, fmt.Errorf("restore checkpoint %d of thread %s: %w", c.Seq, threadID, err)
	}
	return state, c, nil
}
