//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-agent-app/agent"
	"trpc.group/trpc-go/trpc-agent-app/agent/graphagent"
	"trpc.group/trpc-go/trpc-agent-app/agent/reactagent"
	"trpc.group/trpc-go/trpc-agent-app/graph/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/model/mockmodel"
)

// slowAgent records how many runs overlap per thread.
type slowAgent struct {
	name        string
	initErr     error
	initialized atomic.Int32
	closed      atomic.Int32

	mu        sync.Mutex
	active    map[string]int
	maxActive map[string]int
}

func newSlowAgent(name string) *slowAgent {
	return &slowAgent{name: name, active: map[string]int{}, maxActive: map[string]int{}}
}

func (s *slowAgent) Info() agent.Info { return agent.Info{Name: s.name} }

func (s *slowAgent) Initialize(context.Context) error {
	s.initialized.Add(1)
	return s.initErr
}

func (s *slowAgent) Run(_ context.Context, threadID, message string, _ ...agent.RunOption) (*agent.Reply, error) {
	s.mu.Lock()
	s.active[threadID]++
	if s.active[threadID] > s.maxActive[threadID] {
		s.maxActive[threadID] = s.active[threadID]
	}
	s.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	s.active[threadID]--
	s.mu.Unlock()
	return &agent.Reply{ThreadID: threadID, Content: "echo: " + message}, nil
}

func (s *slowAgent) Messages(context.Context, string) ([]model.Message, error) { return nil, nil }

func (s *slowAgent) Threads(context.Context, string) ([]string, error) { return nil, nil }

func (s *slowAgent) DeleteThread(context.Context, string) error { return nil }

func (s *slowAgent) Close() error {
	s.closed.Add(1)
	return nil
}

func TestRunner_SetupOncePerKind(t *testing.T) {
	var created atomic.Int32
	sa := newSlowAgent("slow")
	r := NewRunner(WithAgent("slow", func(context.Context) (agent.Agent, error) {
		created.Add(1)
		return sa, nil
	}))
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := r.Setup(context.Background(), "slow")
			assert.NoError(t, err)
			assert.Same(t, sa, a)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(1), sa.initialized.Load())

	require.NoError(t, r.Close())
	assert.Equal(t, int32(1), sa.closed.Load())
}

func TestRunner_SetupErrors(t *testing.T) {
	failing := newSlowAgent("bad")
	failing.initErr = errors.New("no key")
	r := NewRunner(
		WithAgent("bad", func(context.Context) (agent.Agent, error) { return failing, nil }),
		WithAgent("broken", func(context.Context) (agent.Agent, error) { return nil, errors.New("boom") }),
	)
	assert.Equal(t, []string{"bad", "broken"}, r.Kinds())

	_, err := r.Setup(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownAgent)

	_, err = r.Setup(context.Background(), "broken")
	assert.ErrorContains(t, err, "boom")

	_, err = r.Setup(context.Background(), "bad")
	assert.ErrorContains(t, err, "no key")
	assert.Equal(t, int32(1), failing.closed.Load())

	// Not cached: the next call tries again.
	_, err = r.Setup(context.Background(), "bad")
	assert.Error(t, err)
	assert.Equal(t, int32(2), failing.initialized.Load())

	_, err = r.ListThreads(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestRunner_RunSerializesThread(t *testing.T) {
	sa := newSlowAgent("slow")
	r := NewRunner(WithAgent("slow", func(context.Context) (agent.Agent, error) { return sa, nil }))
	ctx := context.Background()
	a, err := r.Setup(ctx, "slow")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		for _, thread := range []string{"t1", "t2"} {
			wg.Add(1)
			go func(thread string) {
				defer wg.Done()
				reply, err := r.Run(ctx, a, thread, "hi")
				assert.NoError(t, err)
				assert.Equal(t, "echo: hi", reply.Content)
			}(thread)
		}
	}
	wg.Wait()
	assert.Equal(t, 1, sa.maxActive["t1"])
	assert.Equal(t, 1, sa.maxActive["t2"])
}

func TestRunner_RunErrors(t *testing.T) {
	r := NewRunner()
	_, err := r.Run(context.Background(), nil, "t1", "hi")
	assert.Error(t, err)
	_, err = r.Run(context.Background(), newSlowAgent("slow"), "", "hi")
	assert.Error(t, err)
}

func TestRunner_ReactiveConversation(t *testing.T) {
	m := mockmodel.New("m",
		mockmodel.ToolCalls(model.NewToolCall("c1", "missing", `{}`)),
		mockmodel.Reply("4"),
	)
	r := NewRunner(WithAgent(reactagent.Name, func(context.Context) (agent.Agent, error) {
		return reactagent.New(m, reactagent.WithAgentOptions(
			graphagent.WithCheckpointSaver(inmemory.NewSaver())))
	}))
	t.Cleanup(func() { _ = r.Close() })
	ctx := context.Background()

	a, err := r.Setup(ctx, reactagent.Name)
	require.NoError(t, err)
	reply, err := r.Run(ctx, a, "carol_abc", "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", reply.Content)

	first, err := r.GetMessages(ctx, reactagent.Name, "carol_abc")
	require.NoError(t, err)
	second, err := r.GetMessages(ctx, reactagent.Name, "carol_abc")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	assert.Equal(t, model.RoleUser, first[0].Role)
	assert.Equal(t, "4", first[1].Content)

	threads, err := r.ListThreads(ctx, reactagent.Name, "carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol_abc"}, threads)
	threads, err = r.ListThreads(ctx, reactagent.Name, "dave")
	require.NoError(t, err)
	assert.Equal(t, []string{}, threads)

	require.NoError(t, r.DeleteThread(ctx, reactagent.Name, "carol_abc"))
	msgs, err := r.GetMessages(ctx, reactagent.Name, "carol_abc")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
