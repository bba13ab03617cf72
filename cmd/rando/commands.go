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
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/RandoForge/pkg/logging"
	"github.com/AleutianAI/RandoForge/services/rando/layoutstore"
	"github.com/AleutianAI/RandoForge/services/rando/service"
	"github.com/AleutianAI/RandoForge/services/rando/telemetry"
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

// cli holds the global flags and process resources of one invocation.
type cli struct {
	logLevel string
	logDir   string
	logJSON  bool

	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "rando",
		Short: "Generate and check randomized item layouts",
		Long: `rando shuffles the pickups of a game world so the game stays completable.

World files describe regions, areas, nodes, requirements and the pickup
pool. Presets choose the filler mode, tricks, starting items and
generation limits. Layouts are written as JSON.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(*cobra.Command, []string) { c.teardown() },
	}

	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&c.logDir, "log-dir", "", "Also write JSON logs to this directory")
	root.PersistentFlags().BoolVar(&c.logJSON, "log-json", false, "Write console logs as JSON")

	root.AddCommand(
		newGenerateCmd(),
		newVerifyCmd(),
		newReachCmd(),
		newWorldsCmd(),
		newServeCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	level, err := logging.ParseLevel(c.logLevel)
	if err != nil {
		return err
	}
	c.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  c.logDir,
		Service: "rando",
		JSON:    c.logJSON,
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(c.logger.Slog())
	return nil
}

func (c *cli) teardown() {
	if c.logger != nil {
		_ = c.logger.Close()
	}
}

// startTelemetry initializes tracing from the environment. Metrics go to
// the Prometheus registry only when withMetrics is set.
func startTelemetry(ctx context.Context, withMetrics bool) (func(context.Context) error, error) {
	cfg := telemetry.DefaultConfig()
	if !withMetrics {
		cfg.MetricExporter = "none"
	}
	return telemetry.Init(ctx, cfg)
}

// openStore opens the layout store in dir, or returns nil for an empty dir.
func openStore(dir string) (*layoutstore.Store, error) {
	if dir == "" {
		return nil, nil
	}
	return layoutstore.Open(layoutstore.DefaultConfig(dir))
}

// newService builds a Service over an optional store. The returned close
// function releases the store.
func newService(cacheDir string) (*service.Service, func(), error) {
	store, err := openStore(cacheDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening layout store: %w", err)
	}
	if store == nil {
		return service.NewService(service.DefaultServiceConfig(), nil), func() {}, nil
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing layout store", slog.String("error", err.Error()))
		}
	}
	return service.NewService(service.DefaultServiceConfig(), store), closeStore, nil
}

// statusPrinter returns a status function writing to w when w is a
// terminal or force is set, and nil otherwise.
func statusPrinter(w io.Writer, force bool) func(string) {
	if !force {
		f, ok := w.(*os.File)
		if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
			return nil
		}
	}
	return func(message string) {
		fmt.Fprintf(w, "  %s\n", message)
	}
}
