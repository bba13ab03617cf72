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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/RandoForge/pkg/ux"
	"github.com/AleutianAI/RandoForge/services/rando/service"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

func newGenerateCmd() *cobra.Command {
	var (
		players  playerFlags
		seed     uint64
		output   string
		cacheDir string
		progress bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a completable layout",
		Long: `Generates a layout for one or more players. Each --world adds a player;
several players make a multiworld where pickups may land in other worlds.

Without --output the full result (layout and playthrough) is printed as
JSON. With --output the layout is written to the file and a summary is
printed.

Examples:
  rando generate --world sample.yaml --seed 42
  rando generate --world sample.yaml --preset hard.yaml -o layout.json
  rando generate --world a.yaml --world b.yaml --cache-dir ~/.rando/layouts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			shutdown, err := startTelemetry(ctx, false)
			if err != nil {
				return err
			}
			defer shutdown(context.Background())

			svc, closeSvc, err := newService(cacheDir)
			if err != nil {
				return err
			}
			defer closeSvc()

			reqPlayers, err := players.players(svc)
			if err != nil {
				return err
			}
			req := &service.GenerateRequest{Players: reqPlayers}
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}

			resp, err := svc.Generate(ctx, req, statusPrinter(cmd.ErrOrStderr(), progress))
			if err != nil {
				return err
			}
			return writeGenerate(cmd.OutOrStdout(), resp, output)
		},
	}
	cmd.Flags().StringArrayVarP(&players.worlds, "world", "w", nil, "World file; repeat for each player")
	cmd.Flags().StringArrayVarP(&players.presets, "preset", "p", nil, "Preset file; once for all players or once per world")
	cmd.Flags().Uint64VarP(&seed, "seed", "s", 0, "Base seed (default: random)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the layout JSON to this file")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Reuse and store layouts in this directory")
	cmd.Flags().BoolVar(&progress, "progress", false, "Print progress even when stderr is not a terminal")
	_ = cmd.MarkFlagRequired("world")
	return cmd
}

func writeGenerate(out io.Writer, resp *service.GenerateResponse, path string) error {
	if path == "" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	data, err := json.MarshalIndent(resp.Layout, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding layout: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing layout: %w", err)
	}
	source := "generated"
	if resp.FromCache {
		source = "loaded from cache"
	}
	pr := ux.NewPrinter(out)
	pr.Success("Seed %d %s (attempt %d) in %dms", resp.Seed, source, resp.Attempt+1, resp.DurationMS)
	pr.Info("Layout written to %s", path)
	pr.Muted("Cache key: %s", resp.CacheKey)
	return nil
}
