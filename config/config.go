//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads the service configuration.
//
// The file is YAML. ${VAR} references are expanded from the environment
// before parsing, and a fixed set of environment variables (API keys,
// BASE_URL, LOG_LEVEL, REDIS_URL) override the file afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Environment variables read by Load.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvSerperAPIKey    = "SERPER_API_KEY"
	EnvPushoverToken   = "PUSHOVER_TOKEN"
	EnvPushoverUser    = "PUSHOVER_USER"
	EnvBaseURL         = "BASE_URL"
	EnvLogLevel        = "LOG_LEVEL"
	EnvRedisURL        = "REDIS_URL"
)

// Config is the whole service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Models    ModelsConfig    `yaml:"models"`
	Agents    AgentsConfig    `yaml:"agents"`
	Tools     ToolsConfig     `yaml:"tools"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
	// PublicDir is the file tool sandbox, served under /public/.
	PublicDir string `yaml:"public_dir"`
	// BaseURL is the public URL of PublicDir, used in file links.
	BaseURL         string        `yaml:"base_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig selects where checkpoints, users and thread locks live.
// The memory backend keeps users in memory too; redis keeps users in
// SQLite.
type StorageConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
	RedisURL   string `yaml:"redis_url"`
	KeyPrefix  string `yaml:"key_prefix"`
}

// ModelConfig names one chat model.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	Name     string `yaml:"name"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

// ModelsConfig holds the model of each agent role.
type ModelsConfig struct {
	Reactive  ModelConfig `yaml:"reactive"`
	Worker    ModelConfig `yaml:"worker"`
	Evaluator ModelConfig `yaml:"evaluator"`
}

// AgentsConfig tunes graph execution.
type AgentsConfig struct {
	MaxSteps            int           `yaml:"max_steps"`
	MaxEvaluationCycles int           `yaml:"max_evaluation_cycles"`
	ToolTimeout         time.Duration `yaml:"tool_timeout"`
	ToolPoolSize        int           `yaml:"tool_pool_size"`
	// MaxInputTokens trims old turns from model requests; 0 disables it.
	MaxInputTokens int `yaml:"max_input_tokens"`
}

// ToolsConfig holds tool credentials and endpoints. Empty URLs use the
// public services.
type ToolsConfig struct {
	// SearchProvider is "serper" or "duckduckgo".
	SearchProvider string `yaml:"search_provider"`
	SerperAPIKey   string `yaml:"serper_api_key"`
	SerperURL      string `yaml:"serper_url"`
	PushoverToken  string `yaml:"pushover_token"`
	PushoverUser   string `yaml:"pushover_user"`
	PushoverURL    string `yaml:"pushover_url"`
	WikipediaURL   string `yaml:"wikipedia_url"`
}

// TelemetryConfig enables OTLP export when an endpoint is set.
type TelemetryConfig struct {
	TracesEndpoint  string `yaml:"traces_endpoint"`
	TracesProtocol  string `yaml:"traces_protocol"`
	MetricsEndpoint string `yaml:"metrics_endpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	model := ModelConfig{Provider: ProviderOpenAI, Name: "gpt-4o-mini"}
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			CORSOrigins:     []string{"http://localhost:3000"},
			PublicDir:       "sandbox",
			BaseURL:         "http://localhost:8000/public/",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "console"},
		Storage: StorageConfig{
			Backend:    BackendSQLite,
			SQLitePath: "data/agentapp.db",
			KeyPrefix:  "agentapp",
		},
		Models: ModelsConfig{Reactive: model, Worker: model, Evaluator: model},
		Agents: AgentsConfig{
			MaxSteps:            100,
			MaxEvaluationCycles: 5,
			ToolTimeout:         30 * time.Second,
			ToolPoolSize:        8,
		},
		Tools:     ToolsConfig{SearchProvider: "serper"},
		Telemetry: TelemetryConfig{TracesProtocol: "grpc"},
	}
}

// Load reads the file at path over Default and applies the environment.
// An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Server.BaseURL, EnvBaseURL)
	set(&c.Log.Level, EnvLogLevel)
	set(&c.Storage.RedisURL, EnvRedisURL)
	set(&c.Tools.SerperAPIKey, EnvSerperAPIKey)
	set(&c.Tools.PushoverToken, EnvPushoverToken)
	set(&c.Tools.PushoverUser, EnvPushoverUser)

	keys := map[string]string{
		ProviderOpenAI:    EnvOpenAIAPIKey,
		ProviderAnthropic: EnvAnthropicAPIKey,
		ProviderGemini:    EnvGeminiAPIKey,
	}
	for _, m := range []*ModelConfig{&c.Models.Reactive, &c.Models.Worker, &c.Models.Evaluator} {
		if m.APIKey != "" {
			continue
		}
		if env, ok := keys[m.Provider]; ok {
			set(&m.APIKey, env)
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is empty")
	}
	if c.Server.PublicDir == "" {
		return errors.New("server.public_dir is empty")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is empty")
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("storage.redis_url is empty")
		}
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is empty")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	for role, m := range map[string]ModelConfig{
		"reactive":  c.Models.Reactive,
		"worker":    c.Models.Worker,
		"evaluator": c.Models.Evaluator,
	} {
		switch m.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		default:
			return fmt.Errorf("models.%s: unknown provider %q", role, m.Provider)
		}
		if m.Name == "" {
			return fmt.Errorf("models.%s: name is empty", role)
		}
	}
	switch c.Tools.SearchProvider {
	case "serper", "duckduckgo":
	default:
		return fmt.Errorf("unknown tools.search_provider %q", c.Tools.SearchProvider)
	}
	if c.Agents.MaxSteps <= 0 {
		return errors.New("agents.max_steps must be positive")
	}
	if c.Agents.MaxEvaluationCycles <= 0 {
		return errors.New("agents.max_evaluation_cycles must be positive")
	}
	if c.Agents.ToolPoolSize < 0 {
		return errors.New("agents.tool_pool_size is negative")
	}
	if c.Agents.MaxInputTokens < 0 {
		return errors.New("agents.max_input_tokens is negative")
	}
	return nil
}
