//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-memory checkpoint saver for tests and
// single process deployments. Checkpoints are stored encoded, so callers
// never share state with the saver.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-agent-app/graph"
)

// Saver is an in-memory implementation of graph.CheckpointSaver.
type Saver struct {
	mu sync.RWMutex
	// namespace -> thread -> checkpoints ordered by seq.
	storage map[string]map[string][]entry
}

type entry struct {
	seq  int64
	data []byte
}

// NewSaver creates a new in-memory checkpoint saver.
func NewSaver() *Saver {
	return &Saver{
		storage: make(map[string]map[string][]entry),
	}
}

// Put implements graph.CheckpointSaver.
func (s *Saver) Put(_ context.Context, c *graph.Checkpoint) error {
	data, err := graph.EncodeCheckpoint(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	threads, ok := s.storage[c.Namespace]
	if !ok {
		threads = make(map[string][]entry)
		s.storage[c.Namespace] = threads
	}
	entries := threads[c.ThreadID]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].seq >= c.Seq })
	if i < len(entries) && entries[i].seq == c.Seq {
		return fmt.Errorf("thread %s seq %d: %w", c.ThreadID, c.Seq, graph.ErrCheckpointConflict)
	}
	entries = append(entries, entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = entry{seq: c.Seq, data: data}
	threads[c.ThreadID] = entries
	return nil
}

// Latest implements graph.CheckpointSaver.
func (s *Saver) Latest(_ context.Context, namespace, threadID string) (*graph.Checkpoint, error) {
	s.mu.RLock()
	entries := s.storage[namespace][threadID]
	var data []byte
	if len(entries) > 0 {
		data = entries[len(entries)-1].data
	}
	s.mu.RUnlock()
	if data == nil {
		return nil, fmt.Errorf("thread %s: %w", threadID, graph.ErrCheckpointNotFound)
	}
	return graph.DecodeCheckpoint(data)
}

// List implements graph.CheckpointSaver.
func (s *Saver) List(_ context.Context, namespace, threadID string, limit int) ([]*graph.Checkpoint, error) {
	s.mu.RLock()
	entries := s.storage[namespace][threadID]
	n := len(entries)
	if limit > 0 && limit < n {
		n = limit
	}
	raw := make([][]byte, 0, n)
	for i := len(entries) - 1; i >= 0 && len(raw) < n; i-- {
		raw = append(raw, entries[i].data)
	}
	s.mu.RUnlock()

	result := make([]*graph.Checkpoint, 0, len(raw))
	for _, data := range raw {
		c, err := graph.DecodeCheckpoint(data)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// Threads implements graph.CheckpointSaver.
func (s *Saver) Threads(_ context.Context, namespace, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, entries := range s.storage[namespace] {
		if len(entries) > 0 && strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteThread implements graph.CheckpointSaver.
func (s *Saver) DeleteThread(_ context.Context, namespace, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if threads, ok := s.storage[namespace]; ok {
		delete(threads, threadID)
	}
	return nil
}

// Close implements graph.CheckpointSaver.
func (s *Saver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage = make(map[string]map[string][]entry)
	return nil
}
