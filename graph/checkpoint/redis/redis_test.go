//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-agent-app/graph"
	"trpc.group/trpc-go/trpc-agent-app/graph/checkpoint/checkpointtest"
	sredis "trpc.group/trpc-go/trpc-agent-app/storage/redis"
)

func newTestSaver(t *testing.T, mr *miniredis.Miniredis, opts ...Option) *Saver {
	t.Helper()
	client, err := sredis.Connect(context.Background(), sredis.WithClientBuilderURL("redis://"+mr.Addr()))
	require.NoError(t, err)
	s, err := NewSaver(client, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaver(t *testing.T) {
	checkpointtest.Run(t, func(t *testing.T) graph.CheckpointSaver {
		return newTestSaver(t, miniredis.RunT(t))
	})
}

func TestNewSaver_NilClient(t *testing.T) {
	_, err := NewSaver(nil)
	assert.Error(t, err)
}

func TestSaver_KeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestSaver(t, mr, WithKeyPrefix("test"))
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, graph.NewCheckpoint("ns", "t1", 1, graph.State{}, graph.Position{}, graph.SourceInput)))

	assert.True(t, mr.Exists("test:ckpt:{ns}:t1"))
	assert.True(t, mr.Exists("test:ckpt-seq:{ns}:t1"))
	assert.True(t, mr.Exists("test:threads:{ns}"))

	require.NoError(t, s.DeleteThread(ctx, "ns", "t1"))
	assert.False(t, mr.Exists("test:ckpt:{ns}:t1"))
	assert.False(t, mr.Exists("test:ckpt-seq:{ns}:t1"))
}

func TestSaver_MissingData(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newTestSaver(t, mr)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, graph.NewCheckpoint("ns", "t1", 1, graph.State{}, graph.Position{}, graph.SourceInput)))
	mr.Del("agentapp:ckpt:{ns}:t1")

	_, err := s.Latest(ctx, "ns", "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
