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
	"os"

	"github.com/AleutianAI/RandoForge/services/rando/preset"
	"github.com/AleutianAI/RandoForge/services/rando/service"
)

// playerFlags are the world and preset flags shared by the commands that
// work on players.
type playerFlags struct {
	worlds  []string
	presets []string
}

// players registers every world file with svc and pairs it with its preset.
//
// Description:
//
//	One --world flag is given per player. Presets are either omitted
//	(default preset), given once (shared by every player) or once per
//	player. A world file used by several players is registered once.
func (f *playerFlags) players(svc *service.Service) ([]service.PlayerRequest, error) {
	if len(f.worlds) == 0 {
		return nil, fmt.Errorf("at least one --world is required")
	}
	if n := len(f.presets); n > 1 && n != len(f.worlds) {
		return nil, fmt.Errorf("got %d presets for %d worlds; give one preset or one per world", n, len(f.worlds))
	}

	names := make(map[string]string)
	out := make([]service.PlayerRequest, len(f.worlds))
	for i, path := range f.worlds {
		name, ok := names[path]
		if !ok {
			summary, err := svc.LoadWorldFile(path)
			if err != nil {
				return nil, err
			}
			name = summary.Name
			names[path] = name
		}
		out[i].World = name

		var presetPath string
		switch len(f.presets) {
		case 0:
		case 1:
			presetPath = f.presets[0]
		default:
			presetPath = f.presets[i]
		}
		if presetPath == "" {
			continue
		}
		data, err := os.ReadFile(presetPath)
		if err != nil {
			return nil, fmt.Errorf("reading preset: %w", err)
		}
		if len(data) > preset.MaxPresetBytes {
			return nil, fmt.Errorf("preset %s: %w", presetPath, preset.ErrPresetTooLarge)
		}
		out[i].Preset = string(data)
	}
	return out, nil
}
