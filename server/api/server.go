//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package api provides the HTTP API of the agent service: agent runs,
// thread introspection, user management, the public sandbox files and
// prometheus metrics.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"trpc.group/trpc-go/trpc-agent-app/log"
	"trpc.group/trpc-go/trpc-agent-app/runner"
	"trpc.group/trpc-go/trpc-agent-app/user"
)

const (
	// ServiceName is reported by /health.
	ServiceName = "agentic-app"
	// Version is reported by /health.
	Version = "0.1.0"

	defaultPublicDir = "sandbox"
	// anonymousUser prefixes threads of requests without a username.
	anonymousUser = "anonymous"
)

// Server exposes the runner and the user store over HTTP.
type Server struct {
	runner runner.Runner
	users  user.Store
	router *mux.Router

	corsOrigins []string
	publicDir   string
	registry    *prometheus.Registry
	newThreadID func() string
	metrics     *httpMetrics
}

// Option configures the Server instance.
type Option func(*Server)

// WithCORSOrigins sets the allowed CORS origins, default is
// http://localhost:3000.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithPublicDir sets the directory served under /public/.
func WithPublicDir(dir string) Option {
	return func(s *Server) { s.publicDir = dir }
}

// WithRegistry sets the prometheus registry exposed at /metrics. A fresh
// registry with the Go and process collectors is used when omitted.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) { s.registry = registry }
}

// WithThreadIDFunc sets the generator of the conversation part of new
// thread ids.
func WithThreadIDFunc(fn func() string) Option {
	return func(s *Server) { s.newThreadID = fn }
}

// New creates the API server.
func New(r runner.Runner, users user.Store, opts ...Option) *Server {
	s := &Server{
		runner:      r,
		users:       users,
		router:      mux.NewRouter(),
		corsOrigins: []string{"http://localhost:3000"},
		publicDir:   defaultPublicDir,
		newThreadID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = newHTTPMetrics(s.registry)
	s.router.Use(s.metrics.middleware)
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for the server. CORS wraps the router
// so that preflight requests are answered for every route.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowCredentials: true,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(s.router)
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Agent APIs.
	s.router.HandleFunc("/agent/run", s.handleRun).Methods(http.MethodPost)
	s.router.HandleFunc("/agent/sidekick/run", s.handleSidekickRun).Methods(http.MethodPost)
	s.router.HandleFunc("/agent/threads", s.handleListThreads).Methods(http.MethodGet)
	s.router.HandleFunc("/agent/threads/{thread_id}/messages", s.handleGetMessages).Methods(http.MethodGet)

	// User APIs.
	s.router.HandleFunc("/users", s.handleCreateUser).Methods(http.MethodPost)
	s.router.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	s.router.HandleFunc("/users/{username}", s.handleGetUser).Methods(http.MethodGet)
	s.router.HandleFunc("/users/{username}/password", s.handleUpdatePassword).Methods(http.MethodPatch)
	s.router.HandleFunc("/users/{username}", s.handleDeleteUser).Methods(http.MethodDelete)

	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).
		Methods(http.MethodGet)
	s.router.PathPrefix("/public/").
		Handler(http.StripPrefix("/public/", http.FileServer(http.Dir(s.publicDir)))).
		Methods(http.MethodGet, http.MethodHead)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Agentic App is running!",
		"status":  "healthy",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
		"version": Version,
	})
}

// detailResponse is the body of every non-2xx response.
type detailResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("api: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	if status >= http.StatusInternalServerError {
		log.Errorf("api: %s", detail)
	}
	writeJSON(w, status, detailResponse{Detail: detail})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
