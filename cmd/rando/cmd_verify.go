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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/RandoForge/pkg/ux"
	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/service"
)

// errNotCompletable is returned by verify for a layout without a route to
// victory. It exits with status 2.
var errNotCompletable = errors.New("layout is not completable")

func newVerifyCmd() *cobra.Command {
	var (
		players    playerFlags
		layoutPath string
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that a single-player layout can be completed",
		Long: `Rebuilds a layout against its world and preset and searches for a route
to victory. Prints the playthrough when one exists. Exits with status 2
when the layout cannot be completed.

Examples:
  rando verify --world sample.yaml --layout layout.json
  rando verify --world sample.yaml --preset hard.yaml --layout layout.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			layout, err := readLayout(layoutPath)
			if err != nil {
				return err
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

			resp, err := svc.Verify(cmd.Context(), &service.VerifyRequest{Players: reqPlayers, Layout: layout})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			pr := ux.NewPrinter(out)
			if !resp.Completable {
				pr.Error("Not completable (%d states explored)", resp.Explored)
				return &exitError{code: 2, err: errNotCompletable}
			}
			pr.Success("Completable in %d steps (%d states explored)", len(resp.Playthrough), resp.Explored)
			printPlaythrough(out, resp.Playthrough)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&players.worlds, "world", "w", nil, "World file the layout was generated for")
	cmd.Flags().StringArrayVarP(&players.presets, "preset", "p", nil, "Preset file the layout was generated with")
	cmd.Flags().StringVarP(&layoutPath, "layout", "l", "", "Layout JSON file")
	_ = cmd.MarkFlagRequired("world")
	_ = cmd.MarkFlagRequired("layout")
	return cmd
}

func readLayout(path string) (*patches.Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout: %w", err)
	}
	var layout patches.Layout
	if err := json.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("decoding layout %s: %w", path, err)
	}
	return &layout, nil
}

func printPlaythrough(out io.Writer, steps []service.PlaythroughStep) {
	for i, st := range steps {
		if st.Pickup != "" {
			fmt.Fprintf(out, "%3d. %-8s %s: %s\n", i+1, st.Action, st.Node, st.Pickup)
			continue
		}
		fmt.Fprintf(out, "%3d. %-8s %s\n", i+1, st.Action, st.Node)
	}
}
