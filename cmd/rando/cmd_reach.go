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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/RandoForge/pkg/ux"
	"github.com/AleutianAI/RandoForge/services/rando/service"
)

func newReachCmd() *cobra.Command {
	var players playerFlags
	cmd := &cobra.Command{
		Use:   "reach",
		Short: "List the nodes accessible from the start",
		Long: `Shows which nodes a player can walk to from the starting location with the
preset's starting items and tricks, before any pickup is placed. Useful
for checking world files and presets.

Examples:
  rando reach --world sample.yaml
  rando reach --world sample.yaml --preset tricks.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(players.worlds) != 1 {
				return fmt.Errorf("reach takes exactly one --world")
			}
			svc, closeSvc, err := newService("")
			if err != nil {
				return err
			}
			defer closeSvc()
			reqPlayers, err := players.players(svc)
			if err != nil {
				return err
			}

			resp, err := svc.Reach(cmd.Context(), &service.ReachRequest{Player: reqPlayers[0]})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d nodes reachable\n", len(resp.Nodes))
			for _, n := range resp.Nodes {
				fmt.Fprintf(out, "  %s (energy %d)\n", n.Node, n.Energy)
			}
			fmt.Fprintf(out, "%d collectable\n", len(resp.Collectable))
			for _, n := range resp.Collectable {
				fmt.Fprintf(out, "  %s\n", n)
			}
			if resp.Victory {
				ux.NewPrinter(out).Success("Victory is reachable without pickups")
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&players.worlds, "world", "w", nil, "World file")
	cmd.Flags().StringArrayVarP(&players.presets, "preset", "p", nil, "Preset file")
	_ = cmd.MarkFlagRequired("world")
	return cmd
}

func newWorldsCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "worlds",
		Short: "Check and list the world files in a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := service.NewService(service.DefaultServiceConfig(), nil)
			worlds, err := svc.LoadWorldDir(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			ux.NewPrinter(out).Title("%-20s %-20s %6s %9s %5s", "NAME", "GAME", "NODES", "LOCATIONS", "POOL")
			for _, w := range worlds {
				fmt.Fprintf(out, "%-20s %-20s %6d %9d %5d\n", w.Name, w.Game, w.Nodes, w.PickupLocations, w.PoolSize)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "worlds", ".", "Directory of world files")
	return cmd
}
