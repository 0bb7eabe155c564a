//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-agent-app/graph"
	"trpc.group/trpc-go/trpc-agent-app/graph/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-agent-app/model"
)

// recorder appends one assistant message per node call and remembers the
// order of the calls.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) node(id string) graph.NodeFunc {
	return func(ctx context.Context, _ graph.State) (graph.State, error) {
		info, ok := graph.RunInfoFromContext(ctx)
		if !ok || info.NodeID != id {
			return nil, errors.New("missing run info")
		}
		r.mu.Lock()
		r.calls = append(r.calls, id)
		r.mu.Unlock()
		return graph.State{graph.StateKeyMessages: model.NewAssistantMessage(id)}, nil
	}
}

func (r *recorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newLinearGraph(t *testing.T, r *recorder) *graph.Graph {
	t.Helper()
	g, err := graph.NewStateGraph(graph.MessagesStateSchema()).
		AddNode("a", r.node("a")).
		AddNode("b", r.node("b")).
		AddEdge("a", "b").
		SetEntryPoint("a").
		SetFinishPoint("b").
		Compile()
	require.NoError(t, err)
	return g
}

func userInput(content string) graph.State {
	return graph.State{graph.StateKeyMessages: []model.Message{model.NewUserMessage(content)}}
}

func contents(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestExecutor_CheckpointsEveryNode(t *testing.T) {
	r := &recorder{}
	saver := inmemory.NewSaver()
	exec, err := graph.NewExecutor(newLinearGraph(t, r),
		graph.WithCheckpointSaver(saver), graph.WithNamespace("test"))
	require.NoError(t, err)
	assert.Equal(t, "test", exec.Namespace())
	ctx := context.Background()

	state, err := exec.Invoke(ctx, "t1", userInput("hi"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "a", "b"}, contents(state.Messages()))

	list, err := saver.List(ctx, "test", "t1", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, int64(3), list[0].Seq)
	assert.Equal(t, graph.Position{LastNode: "b", NextNode: graph.End, Step: 2}, list[0].Position)
	assert.Equal(t, graph.SourceLoop, list[0].Source)
	assert.Equal(t, graph.Position{LastNode: "a", NextNode: "b", Step: 1}, list[1].Position)
	assert.Equal(t, graph.Position{LastNode: graph.Start, NextNode: "a", Step: 0}, list[2].Position)
	assert.Equal(t, graph.SourceInput, list[2].Source)

	// A second run continues the thread.
	state, err = exec.Invoke(ctx, "t1", userInput("again"))
	require.NoError(t, err)
	assert.Equal(t, []string{"hi", "a", "b", "again", "a", "b"}, contents(state.Messages()))
	latest, err := saver.Latest(ctx, "test", "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), latest.Seq)

	loaded, err := exec.State(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, state.Messages(), loaded.Messages())
}

func TestExecutor_ResumesInterruptedRun(t *testing.T) {
	r := &recorder{}
	saver := inmemory.NewSaver()
	g := newLinearGraph(t, r)
	exec, err := graph.NewExecutor(g, graph.WithCheckpointSaver(saver))
	require.NoError(t, err)
	ctx := context.Background()

	// A run that crashed after node a: its latest checkpoint points at b.
	cm := graph.NewCheckpointManager(saver, g.Schema())
	crashed := g.Schema().ApplyUpdate(g.Schema().Defaults(), graph.State{
		graph.StateKeyMessages: []model.Message{model.NewUserMessage("first"), model.NewAssistantMessage("a")},
	})
	_, err = cm.Save(ctx, "", "t1", 1, crashed, graph.Position{LastNode: "a", NextNode: "b", Step: 1}, graph.SourceLoop)
	require.NoError(t, err)

	state, err := exec.Invoke(ctx, "t1", userInput("second"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "b"}, r.order())
	assert.Equal(t, []string{"first", "a", "b", "second", "a", "b"}, contents(state.Messages()))

	list, err := saver.List(ctx, "", "t1", 0)
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.Equal(t, graph.SourceResume, list[3].Source)
	assert.Equal(t, graph.SourceInput, list[2].Source)
}

func TestExecutor_Resume(t *testing.T) {
	r := &recorder{}
	saver := inmemory.NewSaver()
	g := newLinearGraph(t, r)
	exec, err := graph.NewExecutor(g, graph.WithCheckpointSaver(saver))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = exec.Resume(ctx, "missing")
	assert.ErrorIs(t, err, graph.ErrCheckpointNotFound)

	cm := graph.NewCheckpointManager(saver, g.Schema())
	_, err = cm.Save(ctx, "", "t1", 1, userInput("x"), graph.Position{LastNode: graph.Start, NextNode: "a"}, graph.SourceInput)
	require.NoError(t, err)

	state, err := exec.Resume(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "a", "b"}, contents(state.Messages()))

	// Nothing left to resume.
	state, err = exec.Resume(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, r.order())
	assert.Len(t, state.Messages(), 3)
}

func TestExecutor_MaxSteps(t *testing.T) {
	r := &recorder{}
	g, err := graph.NewStateGraph(graph.MessagesStateSchema()).
		AddNode("loop", r.node("loop")).
		AddEdge("loop", "loop").
		SetEntryPoint("loop").
		Compile()
	require.NoError(t, err)
	saver := inmemory.NewSaver()
	exec, err := graph.NewExecutor(g, graph.WithCheckpointSaver(saver), graph.WithMaxSteps(3))
	require.NoError(t, err)
	ctx := context.Background()

	state, err := exec.Invoke(ctx, "t1", userInput("go"))
	require.ErrorIs(t, err, graph.ErrMaxStepsExceeded)
	assert.Len(t, state.Messages(), 4)

	latest, err := saver.Latest(ctx, "", "t1")
	require.NoError(t, err)
	assert.True(t, latest.Position.Complete())

	// The closed run is not resumed by the next invocation.
	_, err = exec.Invoke(ctx, "t1", userInput("again"))
	require.ErrorIs(t, err, graph.ErrMaxStepsExceeded)
	assert.Len(t, r.order(), 6)

	_, err = graph.NewExecutor(g, graph.WithMaxSteps(0))
	assert.Error(t, err)
}

func TestExecutor_NoSaver(t *testing.T) {
	r := &recorder{}
	exec, err := graph.NewExecutor(newLinearGraph(t, r))
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		state, err := exec.Invoke(ctx, "t1", userInput("hi"))
		require.NoError(t, err)
		assert.Equal(t, []string{"hi", "a", "b"}, contents(state.Messages()))
	}
	_, err = exec.State(ctx, "t1")
	assert.ErrorIs(t, err, graph.ErrCheckpointNotFound)
	threads, err := exec.Threads(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, threads)
	assert.NoError(t, exec.DeleteThread(ctx, "t1"))
}

func TestExecutor_Errors(t *testing.T) {
	ctx := context.Background()
	_, err := graph.NewExecutor(nil)
	assert.Error(t, err)

	failing, err := graph.NewStateGraph(nil).
		AddNode("fail", func(context.Context, graph.State) (graph.State, error) {
			return nil, errors.New("boom")
		}).
		SetEntryPoint("fail").
		Compile()
	require.NoError(t, err)
	exec, err := graph.NewExecutor(failing, graph.WithCheckpointSaver(inmemory.NewSaver()))
	require.NoError(t, err)

	_, err = exec.Invoke(ctx, "", nil)
	assert.ErrorIs(t, err, graph.ErrThreadIDRequired)

	_, err = exec.Invoke(ctx, "t1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error executing node fail")
	assert.Contains(t, err.Error(), "boom")

	panicking, err := graph.NewStateGraph(nil).
		AddNode("panic", func(context.Context, graph.State) (graph.State, error) { panic("oops") }).
		SetEntryPoint("panic").
		Compile()
	require.NoError(t, err)
	exec, err = graph.NewExecutor(panicking)
	require.NoError(t, err)
	_, err = exec.Invoke(ctx, "t1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node panic panicked: oops")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = exec.Invoke(cancelled, "t1", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_ThreadsAndDelete(t *testing.T) {
	saver := inmemory.NewSaver()
	exec, err := graph.NewExecutor(newLinearGraph(t, &recorder{}),
		graph.WithCheckpointSaver(saver), graph.WithNamespace("reactive"))
	require.NoError(t, err)
	ctx := context.Background()
	for _, id := range []string{"alice_1", "alice_2", "bob_1"} {
		_, err := exec.Invoke(ctx, id, userInput("hi"))
		require.NoError(t, err)
	}

	threads, err := exec.Threads(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice_1", "alice_2"}, threads)

	require.NoError(t, exec.DeleteThread(ctx, "alice_1"))
	threads, err = exec.Threads(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice_2", "bob_1"}, threads)

	other, err := graph.NewExecutor(newLinearGraph(t, &recorder{}),
		graph.WithCheckpointSaver(saver), graph.WithNamespace("sidekick"))
	require.NoError(t, err)
	threads, err = other.Threads(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, threads)
}

// failingSaver rejects every write.
type failingSaver struct{ *inmemory.Saver }

func (failingSaver) Put(context.Context, *graph.Checkpoint) error { return errors.New("disk full") }

func TestExecutor_CheckpointFailureIsFatal(t *testing.T) {
	r := &recorder{}
	exec, err := graph.NewExecutor(newLinearGraph(t, r),
		graph.WithCheckpointSaver(failingSaver{inmemory.NewSaver()}))
	require.NoError(t, err)
	_, err = exec.Invoke(context.Background(), "t1", userInput("hi"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, r.order())
}
