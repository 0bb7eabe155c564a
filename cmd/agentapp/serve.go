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
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"trpc.group/trpc-go/trpc-agent-app/config"
	"trpc.group/trpc-go/trpc-agent-app/log"
	"trpc.group/trpc-go/trpc-agent-app/server/api"
	"trpc.group/trpc-go/trpc-agent-app/telemetry/metric"
	"trpc.group/trpc-go/trpc-agent-app/telemetry/trace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on, overrides server.addr")
}

// startTelemetry starts the OTLP exporters that have an endpoint.
func startTelemetry(ctx context.Context, tc config.TelemetryConfig) (func(), error) {
	var cleanups []func() error
	stop := func() {
		for _, clean := range cleanups {
			if err := clean(); err != nil {
				log.Warnf("telemetry shutdown: %v", err)
			}
		}
	}
	if tc.TracesEndpoint != "" {
		clean, err := trace.Start(ctx, trace.WithEndpoint(tc.TracesEndpoint), trace.WithProtocol(tc.TracesProtocol))
		if err != nil {
			return nil, fmt.Errorf("start tracing: %w", err)
		}
		cleanups = append(cleanups, clean)
	}
	if tc.MetricsEndpoint != "" {
		clean, err := metric.Start(ctx, metric.WithEndpoint(tc.MetricsEndpoint))
		if err != nil {
			stop()
			return nil, fmt.Errorf("start metrics: %w", err)
		}
		cleanups = append(cleanups, clean)
	}
	return stop, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	stopTelemetry, err := startTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer stopTelemetry()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warnf("close app: %v", err)
		}
	}()
	if err := os.MkdirAll(cfg.Server.PublicDir, 0o755); err != nil {
		return fmt.Errorf("create public dir: %w", err)
	}

	s := api.New(a.runner, a.users,
		api.WithCORSOrigins(cfg.Server.CORSOrigins...),
		api.WithPublicDir(cfg.Server.PublicDir),
	)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: s.Handler()}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("listening on %s, serving %s under /public/", srv.Addr, cfg.Server.PublicDir)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case sig := <-shutdown:
		log.Infof("shutting down on %v", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("graceful shutdown did not complete in %v: %v", cfg.Server.ShutdownTimeout, err)
			return srv.Close()
		}
		return nil
	}
}
