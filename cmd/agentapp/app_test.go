//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"trpc.group/trpc-go/trpc-agent-app/agent"
	"trpc.group/trpc-go/trpc-agent-app/agent/graphagent"
	"trpc.group/trpc-go/trpc-agent-app/agent/reactagent"
	"trpc.group/trpc-go/trpc-agent-app/agent/sidekickagent"
	"trpc.group/trpc-go/trpc-agent-app/config"
	"trpc.group/trpc-go/trpc-agent-app/graph/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/model/mockmodel"
	"trpc.group/trpc-go/trpc-agent-app/model/tiktoken"
	"trpc.group/trpc-go/trpc-agent-app/runner"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Backend = backend
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "app.db")
	cfg.Server.PublicDir = filepath.Join(t.TempDir(), "sandbox")
	cfg.Models.Reactive.APIKey = "test"
	cfg.Models.Worker.APIKey = "test"
	cfg.Models.Evaluator.APIKey = "test"
	return cfg
}

func TestNewApp_Backends(t *testing.T) {
	mr := miniredis.RunT(t)
	for _, backend := range []string{config.BackendMemory, config.BackendSQLite, config.BackendRedis} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			cfg.Storage.RedisURL = "redis://" + mr.Addr()
			cfg.Agents.MaxInputTokens = 4000
			ctx := context.Background()

			a, err := newApp(ctx, cfg)
			require.NoError(t, err)
			defer func() { assert.NoError(t, a.Close()) }()

			assert.Equal(t, []string{reactagent.Name, sidekickagent.Name}, a.runner.Kinds())
			for _, kind := range a.runner.Kinds() {
				handle, err := a.runner.Setup(ctx, kind)
				require.NoError(t, err)
				assert.Equal(t, kind, handle.Info().Name)
				threads, err := a.runner.ListThreads(ctx, kind, "")
				require.NoError(t, err)
				assert.Empty(t, threads)
			}
			// The sidekick creates the file sandbox.
			assert.DirExists(t, cfg.Server.PublicDir)

			u, err := a.users.Create(ctx, "Ada", "ada", "pw")
			require.NoError(t, err)
			assert.Equal(t, "ada", u.Username)
		})
	}
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	cfg := testConfig(t, config.BackendRedis)
	cfg.Storage.RedisURL = "redis://127.0.0.1:1/0"
	_, err := newApp(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewModel(t *testing.T) {
	ctx := context.Background()
	for _, provider := range []string{config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGemini} {
		m, err := newModel(ctx, config.ModelConfig{Provider: provider, Name: "m", APIKey: "k", BaseURL: "http://127.0.0.1:1"})
		require.NoError(t, err, provider)
		assert.Equal(t, provider, m.Info().Provider)
		assert.Equal(t, "m", m.Info().Name)
	}
	_, err := newModel(ctx, config.ModelConfig{Provider: "llama", Name: "m"})
	assert.Error(t, err)
}

func TestTokenCounter(t *testing.T) {
	_, ok := tokenCounter(config.ModelConfig{Provider: config.ProviderAnthropic, Name: "claude"}).(*model.SimpleTokenCounter)
	assert.True(t, ok)
	counter := tokenCounter(config.ModelConfig{Provider: config.ProviderOpenAI, Name: "gpt-4o-mini"})
	switch counter.(type) {
	case *tiktoken.Counter, *model.SimpleTokenCounter:
	default:
		t.Fatalf("unexpected counter %T", counter)
	}
}

func mockRunner(t *testing.T, m model.Model) runner.Runner {
	t.Helper()
	r := runner.NewRunner(runner.WithAgent(reactagent.Name, func(context.Context) (agent.Agent, error) {
		return reactagent.New(m, reactagent.WithAgentOptions(
			graphagent.WithCheckpointSaver(inmemory.NewSaver())))
	}))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestChat(t *testing.T) {
	m := mockmodel.New("m", mockmodel.Reply("4"), mockmodel.Reply("8"))
	r := mockRunner(t, m)
	var out bytes.Buffer
	in := strings.NewReader("What is 2+2?\n\nDouble it\nexit\nignored\n")

	require.NoError(t, chat(context.Background(), r, reactagent.Name, "cli_1", "", in, &out))
	assert.Contains(t, out.String(), "Thread cli_1 with the reactive agent.")
	assert.Contains(t, out.String(), "> 4\n")
	assert.Contains(t, out.String(), "> 8\n")
	assert.Equal(t, 2, m.Calls())

	var listed bytes.Buffer
	require.NoError(t, listThreads(context.Background(), r, reactagent.Name, "cli", &listed))
	assert.Equal(t, "- cli_1\n", listed.String())
	listed.Reset()
	require.NoError(t, listThreads(context.Background(), r, reactagent.Name, "bob", &listed))
	assert.Equal(t, "No threads found.\n", listed.String())
}

func TestChat_UnknownAgent(t *testing.T) {
	r := mockRunner(t, mockmodel.New("m"))
	err := chat(context.Background(), r, "planner", "t", "", strings.NewReader(""), &bytes.Buffer{})
	assert.ErrorIs(t, err, runner.ErrUnknownAgent)
}
