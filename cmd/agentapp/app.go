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
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"
	"trpc.group/trpc-go/trpc-agent-app/agent"
	"trpc.group/trpc-go/trpc-agent-app/agent/graphagent"
	"trpc.group/trpc-go/trpc-agent-app/agent/reactagent"
	"trpc.group/trpc-go/trpc-agent-app/agent/sidekickagent"
	"trpc.group/trpc-go/trpc-agent-app/config"
	"trpc.group/trpc-go/trpc-agent-app/graph"
	ckptinmemory "trpc.group/trpc-go/trpc-agent-app/graph/checkpoint/inmemory"
	ckptredis "trpc.group/trpc-go/trpc-agent-app/graph/checkpoint/redis"
	ckptsqlite "trpc.group/trpc-go/trpc-agent-app/graph/checkpoint/sqlite"
	"trpc.group/trpc-go/trpc-agent-app/lock"
	lockredis "trpc.group/trpc-go/trpc-agent-app/lock/redis"
	"trpc.group/trpc-go/trpc-agent-app/log"
	"trpc.group/trpc-go/trpc-agent-app/model"
	"trpc.group/trpc-go/trpc-agent-app/model/anthropic"
	"trpc.group/trpc-go/trpc-agent-app/model/gemini"
	"trpc.group/trpc-go/trpc-agent-app/model/openai"
	"trpc.group/trpc-go/trpc-agent-app/model/tiktoken"
	"trpc.group/trpc-go/trpc-agent-app/runner"
	storageredis "trpc.group/trpc-go/trpc-agent-app/storage/redis"
	"trpc.group/trpc-go/trpc-agent-app/storage/sqlite"
	"trpc.group/trpc-go/trpc-agent-app/tool"
	"trpc.group/trpc-go/trpc-agent-app/tool/file"
	"trpc.group/trpc-go/trpc-agent-app/tool/pushover"
	"trpc.group/trpc-go/trpc-agent-app/tool/search"
	"trpc.group/trpc-go/trpc-agent-app/tool/wikipedia"
	"trpc.group/trpc-go/trpc-agent-app/user"
	userinmemory "trpc.group/trpc-go/trpc-agent-app/user/inmemory"
	usersqlite "trpc.group/trpc-go/trpc-agent-app/user/sqlite"
)

// app holds everything built from a configuration.
type app struct {
	cfg     *config.Config
	runner  runner.Runner
	users   user.Store
	closers []func() error
}

// stores is the persistence chosen by the storage backend.
type stores struct {
	saver  graph.CheckpointSaver
	locker lock.Locker
	users  user.Store
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	st, err := a.openStores(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.users = st.users
	a.runner = runner.NewRunner(
		runner.WithLocker(st.locker),
		runner.WithAgent(reactagent.Name, a.reactiveFactory(st.saver)),
		runner.WithAgent(sidekickagent.Name, a.sidekickFactory(st.saver)),
	)
	// Agents are closed before the stores they write to.
	a.closers = append([]func() error{a.runner.Close}, a.closers...)
	return a, nil
}

// Close releases the agents and the stores.
func (a *app) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) openStores(ctx context.Context) (*stores, error) {
	sc := a.cfg.Storage
	switch sc.Backend {
	case config.BackendMemory:
		return &stores{
			saver:  ckptinmemory.NewSaver(),
			locker: lock.NewLocal(),
			users:  userinmemory.NewStore(),
		}, nil
	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, sc.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		saver, err := ckptsqlite.NewSaver(db)
		if err != nil {
			return nil, err
		}
		users, err := usersqlite.NewStore(db)
		if err != nil {
			return nil, err
		}
		return &stores{saver: saver, locker: lock.NewLocal(), users: users}, nil
	case config.BackendRedis:
		client, err := storageredis.Connect(ctx,
			storageredis.WithClientBuilderURL(sc.RedisURL),
			storageredis.WithClientName(sc.KeyPrefix),
		)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return a.redisStores(ctx, client)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
	}
}

// redisStores keeps checkpoints and locks in redis so several replicas can
// share threads. Users stay in SQLite.
func (a *app) redisStores(ctx context.Context, client redis.UniversalClient) (*stores, error) {
	sc := a.cfg.Storage
	saver, err := ckptredis.NewSaver(client, ckptredis.WithKeyPrefix(sc.KeyPrefix))
	if err != nil {
		return nil, err
	}
	locker, err := lockredis.New(client, lockredis.WithKeyPrefix(sc.KeyPrefix))
	if err != nil {
		return nil, err
	}
	db, err := sqlite.Open(ctx, sc.SQLitePath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	users, err := usersqlite.NewStore(db)
	if err != nil {
		return nil, err
	}
	return &stores{saver: saver, locker: locker, users: users}, nil
}

func (a *app) graphOptions(saver graph.CheckpointSaver) []graphagent.Option {
	return []graphagent.Option{
		graphagent.WithCheckpointSaver(saver),
		graphagent.WithMaxSteps(a.cfg.Agents.MaxSteps),
	}
}

func (a *app) reactiveFactory(saver graph.CheckpointSaver) runner.Factory {
	return func(ctx context.Context) (agent.Agent, error) {
		m, err := newModel(ctx, a.cfg.Models.Reactive)
		if err != nil {
			return nil, fmt.Errorf("reactive model: %w", err)
		}
		opts := []reactagent.Option{
			reactagent.WithTools(a.searchTool(), a.pushoverTool()),
			reactagent.WithToolTimeout(a.cfg.Agents.ToolTimeout),
			reactagent.WithToolPoolSize(a.cfg.Agents.ToolPoolSize),
			reactagent.WithAgentOptions(a.graphOptions(saver)...),
		}
		if n := a.cfg.Agents.MaxInputTokens; n > 0 {
			opts = append(opts, reactagent.WithMaxInputTokens(n, tokenCounter(a.cfg.Models.Reactive)))
		}
		return reactagent.New(m, opts...)
	}
}

func (a *app) sidekickFactory(saver graph.CheckpointSaver) runner.Factory {
	return func(ctx context.Context) (agent.Agent, error) {
		worker, err := newModel(ctx, a.cfg.Models.Worker)
		if err != nil {
			return nil, fmt.Errorf("worker model: %w", err)
		}
		evaluator, err := newModel(ctx, a.cfg.Models.Evaluator)
		if err != nil {
			return nil, fmt.Errorf("evaluator model: %w", err)
		}
		files, err := file.NewToolSet(
			file.WithBaseDir(a.cfg.Server.PublicDir),
			file.WithBaseURL(a.cfg.Server.BaseURL),
			file.WithCreateBaseDir(true),
		)
		if err != nil {
			return nil, fmt.Errorf("file tools: %w", err)
		}
		opts := []sidekickagent.Option{
			sidekickagent.WithEvaluatorModel(evaluator),
			sidekickagent.WithMaxEvaluationCycles(a.cfg.Agents.MaxEvaluationCycles),
			sidekickagent.WithTools(a.searchTool(), a.wikipediaTool(), a.pushoverTool()),
			sidekickagent.WithToolSets(files),
			sidekickagent.WithToolTimeout(a.cfg.Agents.ToolTimeout),
			sidekickagent.WithToolPoolSize(a.cfg.Agents.ToolPoolSize),
			sidekickagent.WithAgentOptions(a.graphOptions(saver)...),
		}
		if n := a.cfg.Agents.MaxInputTokens; n > 0 {
			opts = append(opts, sidekickagent.WithMaxInputTokens(n, tokenCounter(a.cfg.Models.Worker)))
		}
		return sidekickagent.New(worker, opts...)
	}
}

func (a *app) searchTool() tool.CallableTool {
	tc := a.cfg.Tools
	opts := []search.Option{
		search.WithProvider(search.Provider(tc.SearchProvider)),
		search.WithAPIKey(tc.SerperAPIKey),
	}
	if tc.SerperURL != "" {
		opts = append(opts, search.WithBaseURL(tc.SerperURL))
	}
	return search.NewTool(opts...)
}

func (a *app) pushoverTool() tool.CallableTool {
	tc := a.cfg.Tools
	opts := []pushover.Option{pushover.WithToken(tc.PushoverToken), pushover.WithUser(tc.PushoverUser)}
	if tc.PushoverURL != "" {
		opts = append(opts, pushover.WithURL(tc.PushoverURL))
	}
	return pushover.NewTool(opts...)
}

func (a *app) wikipediaTool() tool.CallableTool {
	if u := a.cfg.Tools.WikipediaURL; u != "" {
		return wikipedia.NewTool(wikipedia.WithBaseURL(u))
	}
	return wikipedia.NewTool()
}

// newModel builds the chat model of one role.
func newModel(ctx context.Context, mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case config.ProviderOpenAI:
		opts := []openai.Option{openai.WithAPIKey(mc.APIKey)}
		if mc.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(mc.BaseURL))
		}
		return openai.New(mc.Name, opts...), nil
	case config.ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithAPIKey(mc.APIKey)}
		if mc.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(mc.BaseURL))
		}
		return anthropic.New(mc.Name, opts...), nil
	case config.ProviderGemini:
		opts := []gemini.Option{gemini.WithAPIKey(mc.APIKey)}
		if mc.BaseURL != "" {
			opts = append(opts, gemini.WithClientOptions(&genai.ClientConfig{
				APIKey:      mc.APIKey,
				HTTPOptions: genai.HTTPOptions{BaseURL: mc.BaseURL},
			}))
		}
		return gemini.New(ctx, mc.Name, opts...)
	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

// tokenCounter uses tiktoken for OpenAI models and the heuristic counter
// for the others.
func tokenCounter(mc config.ModelConfig) model.TokenCounter {
	if mc.Provider != config.ProviderOpenAI {
		return model.NewSimpleTokenCounter()
	}
	counter, err := tiktoken.New(mc.Name)
	if err != nil {
		log.Warnf("tiktoken unavailable for %s, using the heuristic counter: %v", mc.Name, err)
		return model.NewSimpleTokenCounter()
	}
	return counter
}
