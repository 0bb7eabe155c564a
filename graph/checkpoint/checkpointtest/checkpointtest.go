//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package checkpointtest holds the behavior every graph.CheckpointSaver
// must have, run against each backend by its own tests.
package checkpointtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-agent-app/graph"
	"trpc.group/trpc-go/trpc-agent-app/model"
)

// Run runs the saver suite. newSaver must return an empty saver.
func Run(t *testing.T, newSaver func(t *testing.T) graph.CheckpointSaver) {
	t.Run("PutLatest", func(t *testing.T) { testPutLatest(t, newSaver(t)) })
	t.Run("Conflict", func(t *testing.T) { testConflict(t, newSaver(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newSaver(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newSaver(t)) })
	t.Run("Threads", func(t *testing.T) { testThreads(t, newSaver(t)) })
	t.Run("DeleteThread", func(t *testing.T) { testDeleteThread(t, newSaver(t)) })
	t.Run("RestoreMessages", func(t *testing.T) { testRestoreMessages(t, newSaver(t)) })
}

func put(t *testing.T, s graph.CheckpointSaver, ns, thread string, seq int64, state graph.State) *graph.Checkpoint {
	t.Helper()
	c := graph.NewCheckpoint(ns, thread, seq, state,
		graph.Position{LastNode: "n", NextNode: graph.End, Step: int(seq)}, graph.SourceLoop)
	require.NoError(t, s.Put(context.Background(), c))
	return c
}

func testPutLatest(t *testing.T, s graph.CheckpointSaver) {
	put(t, s, "ns", "t1", 1, graph.State{"k": "one"})
	put(t, s, "ns", "t1", 3, graph.State{"k": "three"})
	put(t, s, "ns", "t1", 2, graph.State{"k": "two"})

	latest, err := s.Latest(context.Background(), "ns", "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest.Seq)
	assert.Equal(t, "three", latest.State["k"])
	assert.Equal(t, "t1", latest.ThreadID)
	assert.Equal(t, "ns", latest.Namespace)
	assert.Equal(t, graph.End, latest.Position.NextNode)
	assert.Equal(t, graph.SourceLoop, latest.Source)
	assert.NotEmpty(t, latest.ID)
}

func testConflict(t *testing.T, s graph.CheckpointSaver) {
	put(t, s, "ns", "t1", 1, graph.State{"k": "a"})
	c := graph.NewCheckpoint("ns", "t1", 1, graph.State{"k": "b"}, graph.Position{}, graph.SourceLoop)
	err := s.Put(context.Background(), c)
	require.ErrorIs(t, err, graph.ErrCheckpointConflict)

	latest, err := s.Latest(context.Background(), "ns", "t1")
	require.NoError(t, err)
	assert.Equal(t, "a", latest.State["k"])

	// Same seq in another namespace is a different key.
	put(t, s, "other", "t1", 1, graph.State{"k": "c"})
}

func testNotFound(t *testing.T, s graph.CheckpointSaver) {
	_, err := s.Latest(context.Background(), "ns", "missing")
	require.ErrorIs(t, err, graph.ErrCheckpointNotFound)

	list, err := s.List(context.Background(), "ns", "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testList(t *testing.T, s graph.CheckpointSaver) {
	for i := int64(1); i <= 5; i++ {
		put(t, s, "ns", "t1", i, graph.State{"i": float64(i)})
	}
	all, err := s.List(context.Background(), "ns", "t1", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, c := range all {
		assert.Equal(t, int64(5-i), c.Seq)
	}

	two, err := s.List(context.Background(), "ns", "t1", 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, int64(5), two[0].Seq)
	assert.Equal(t, int64(4), two[1].Seq)
}

func testThreads(t *testing.T, s graph.CheckpointSaver) {
	for _, id := range []string{"user-b-2", "user-a-1", "user-a-2", "other"} {
		put(t, s, "ns", id, 1, graph.State{})
	}
	put(t, s, "elsewhere", "user-a-3", 1, graph.State{})
	ctx := context.Background()

	ids, err := s.Threads(ctx, "ns", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "user-a-1", "user-a-2", "user-b-2"}, ids)

	ids, err = s.Threads(ctx, "ns", "user-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a-1", "user-a-2"}, ids)

	ids, err = s.Threads(ctx, "ns", "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func testDeleteThread(t *testing.T, s graph.CheckpointSaver) {
	ctx := context.Background()
	put(t, s, "ns", "t1", 1, graph.State{})
	put(t, s, "ns", "t1", 2, graph.State{})
	put(t, s, "ns", "t2", 1, graph.State{})

	require.NoError(t, s.DeleteThread(ctx, "ns", "t1"))
	_, err := s.Latest(ctx, "ns", "t1")
	require.ErrorIs(t, err, graph.ErrCheckpointNotFound)
	ids, err := s.Threads(ctx, "ns", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, ids)

	// Deleting an unknown thread is not an error, and a deleted thread
	// can start over from seq 1.
	require.NoError(t, s.DeleteThread(ctx, "ns", "t1"))
	put(t, s, "ns", "t1", 1, graph.State{})
}

func testRestoreMessages(t *testing.T, s graph.CheckpointSaver) {
	schema := graph.MessagesStateSchema()
	cm := graph.NewCheckpointManager(s, schema)
	ctx := context.Background()
	msgs := []model.Message{
		model.NewUserMessage("hi"),
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{model.NewToolCall("c1", "search", `{"q":"x"}`)}},
		model.NewToolMessage("c1", "search", "found"),
		model.NewAssistantMessage("done"),
	}
	state := schema.ApplyUpdate(schema.Defaults(), graph.State{
		graph.StateKeyMessages:     msgs,
		graph.StateKeyLastResponse: "done",
	})
	for i := int64(1); i <= 3; i++ {
		_, err := cm.Save(ctx, "ns", "t1", i, state, graph.Position{NextNode: graph.End}, graph.SourceLoop)
		require.NoError(t, err, fmt.Sprintf("save %d", i))
	}

	restored, c, err := cm.LoadLatest(ctx, "ns", "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.Seq)
	assert.Equal(t, msgs, restored.Messages())
	assert.Equal(t, "done", restored.String(graph.StateKeyLastResponse))
	assert.Equal(t, "", restored.String(graph.StateKeyLastError))
}
