//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package redis provides a Redis-backed checkpoint saver, letting several
// service replicas share thread state.
//
// Every thread keeps its checkpoints in a hash keyed by seq next to a
// sorted set of the seqs. A per-namespace sorted set with equal scores
// indexes thread IDs lexicographically for prefix listing.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"trpc.group/trpc-go/trpc-agent-app/graph"
)

const defaultKeyPrefix = "agentapp"

// putScript writes a checkpoint only if its seq is new and indexes it.
// KEYS: data hash, seq index, thread index. ARGV: seq, checkpoint, thread.
var putScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call('ZADD', KEYS[2], ARGV[1], ARGV[1])
redis.call('ZADD', KEYS[3], 0, ARGV[3])
return 1
`)

// Option configures the saver.
type Option func(*Saver)

// WithKeyPrefix sets the prefix of every key written, default "agentapp".
func WithKeyPrefix(prefix string) Option {
	return func(s *Saver) {
		s.prefix = prefix
	}
}

// Saver is a Redis implementation of graph.CheckpointSaver.
type Saver struct {
	client redis.UniversalClient
	prefix string
}

// NewSaver creates a saver on top of client. Close closes the client.
func NewSaver(client redis.UniversalClient, opts ...Option) (*Saver, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	s := &Saver{client: client, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// The namespace is a hash tag so one thread's keys share a cluster slot.
func (s *Saver) dataKey(namespace, threadID string) string {
	return fmt.Sprintf("%s:ckpt:{%s}:%s", s.prefix, namespace, threadID)
}

func (s *Saver) indexKey(namespace, threadID string) string {
	return fmt.Sprintf("%s:ckpt-seq:{%s}:%s", s.prefix, namespace, threadID)
}

func (s *Saver) threadsKey(namespace string) string {
	return fmt.Sprintf("%s:threads:{%s}", s.prefix, namespace)
}

// Put implements graph.CheckpointSaver.
func (s *Saver) Put(ctx context.Context, c *graph.Checkpoint) error {
	data, err := graph.EncodeCheckpoint(c)
	if err != nil {
		return err
	}
	keys := []string{
		s.dataKey(c.Namespace, c.ThreadID),
		s.indexKey(c.Namespace, c.ThreadID),
		s.threadsKey(c.Namespace),
	}
	written, err := putScript.Run(ctx, s.client, keys, c.Seq, data, c.ThreadID).Int()
	if err != nil {
		return fmt.Errorf("redis put checkpoint: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("thread %s seq %d: %w", c.ThreadID, c.Seq, graph.ErrCheckpointConflict)
	}
	return nil
}

// Latest implements graph.CheckpointSaver.
func (s *Saver) Latest(ctx context.Context, namespace, threadID string) (*graph.Checkpoint, error) {
	list, err := s.List(ctx, namespace, threadID, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("thread %s: %w", threadID, graph.ErrCheckpointNotFound)
	}
	return list[0], nil
}

// List implements graph.CheckpointSaver.
func (s *Saver) List(ctx context.Context, namespace, threadID string, limit int) ([]*graph.Checkpoint, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	seqs, err := s.client.ZRevRange(ctx, s.indexKey(namespace, threadID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list checkpoint seqs: %w", err)
	}
	if len(seqs) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, s.dataKey(namespace, threadID), seqs...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get checkpoints: %w", err)
	}
	result := make([]*graph.Checkpoint, 0, len(values))
	for i, v := range values {
		data, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("thread %s: checkpoint %s is missing from %s",
				threadID, seqs[i], s.dataKey(namespace, threadID))
		}
		c, err := graph.DecodeCheckpoint([]byte(data))
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

// Threads implements graph.CheckpointSaver.
func (s *Saver) Threads(ctx context.Context, namespace, prefix string) ([]string, error) {
	by := &redis.ZRangeBy{Min: "-", Max: "+"}
	if prefix != "" {
		by = &redis.ZRangeBy{Min: "[" + prefix, Max: "[" + prefix + "\xff"}
	}
	ids, err := s.client.ZRangeByLex(ctx, s.threadsKey(namespace), by).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list threads: %w", err)
	}
	return ids, nil
}

// DeleteThread implements graph.CheckpointSaver.
func (s *Saver) DeleteThread(ctx context.Context, namespace, threadID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.dataKey(namespace, threadID), s.indexKey(namespace, threadID))
		pipe.ZRem(ctx, s.threadsKey(namespace), threadID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete thread %s: %w", threadID, err)
	}
	return nil
}

// Close implements graph.CheckpointSaver.
func (s *Saver) Close() error {
	return s.client.Close()
}
