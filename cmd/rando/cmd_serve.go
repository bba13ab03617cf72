// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/RandoForge/services/rando/service"
	"github.com/AleutianAI/RandoForge/services/rando/telemetry"
)

const shutdownTimeout = 15 * time.Second

// serveOptions are the flags of the serve command.
type serveOptions struct {
	addr          string
	worldDir      string
	cacheDir      string
	maxConcurrent int64
	watch         bool
	debug         bool
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve generation over HTTP",
		Long: `Starts an HTTP server for the world files in --worlds.

Endpoints:
  GET  /v1/rando/health
  GET  /v1/rando/worlds
  POST /v1/rando/generate
  GET  /v1/rando/generate/stream   (websocket)
  POST /v1/rando/verify
  POST /v1/rando/reach
  GET  /v1/rando/layouts/:key      (requires --cache-dir)
  GET  /metrics

Examples:
  rando serve --worlds worlds/
  rando serve --worlds worlds/ --addr :9090 --cache-dir ~/.rando/layouts
  rando serve --worlds worlds/ --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&opts.worldDir, "worlds", "", "Directory of world files")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", "", "Store layouts in this directory")
	cmd.Flags().Int64Var(&opts.maxConcurrent, "max-concurrent", 2, "Generations running at once")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload world files when they change")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Gin debug mode and request logging")
	_ = cmd.MarkFlagRequired("worlds")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	shutdownTelemetry, err := startTelemetry(ctx, true)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	store, err := openStore(opts.cacheDir)
	if err != nil {
		return fmt.Errorf("opening layout store: %w", err)
	}
	cfg := service.DefaultServiceConfig()
	cfg.MaxConcurrent = opts.maxConcurrent
	var svc *service.Service
	if store != nil {
		defer store.Close()
		svc = service.NewService(cfg, store)
	} else {
		svc = service.NewService(cfg, nil)
	}
	worlds, err := svc.LoadWorldDir(opts.worldDir)
	if err != nil {
		return err
	}
	if len(worlds) == 0 {
		return fmt.Errorf("no world files in %s", opts.worldDir)
	}
	if opts.watch {
		watcher, err := service.NewWorldWatcher(svc, opts.worldDir, service.WatcherConfig{})
		if err != nil {
			return fmt.Errorf("watching %s: %w", opts.worldDir, err)
		}
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	if opts.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           newRouter(svc, opts.debug),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("rando server listening",
			slog.String("addr", opts.addr),
			slog.Int("worlds", len(worlds)),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down rando server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// newRouter builds the HTTP handler: otel tracing, the rando API under /v1
// and Prometheus metrics at /metrics.
func newRouter(svc *service.Service, debug bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if debug {
		router.Use(gin.Logger())
	}
	router.Use(otelgin.Middleware("rando"))

	v1 := router.Group("/v1")
	service.RegisterRoutes(v1, service.NewHandlers(svc))

	metrics := telemetry.MetricsHandler()
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	router.GET("/metrics", gin.WrapH(metrics))
	return router
}
