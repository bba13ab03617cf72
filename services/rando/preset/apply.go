// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package preset

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/zyedidia/generic/mapset"

	"github.com/AleutianAI/RandoForge/services/rando/filler"
	"github.com/AleutianAI/RandoForge/services/rando/generator"
	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// FillerConfig translates the placement settings into a filler config.
//
// Inputs:
//
//	g - The frozen world graph. Excluded locations must exist in it.
//	logger - Logger for the filler. Nil uses slog.Default().
//
// Outputs:
//
//	*filler.Config - The filler configuration.
//	error - *filler.ConfigurationError for bad enum names, or
//	        ErrUnknownName for an excluded location the world lacks.
func (p *Preset) FillerConfig(g *world.Graph, logger *slog.Logger) (*filler.Config, error) {
	mode, err := filler.ParseMode(p.Mode)
	if err != nil {
		return nil, err
	}
	placement, err := filler.ParseLogicalPlacement(p.LogicalPlacement)
	if err != nil {
		return nil, err
	}
	policy, err := filler.ParseResourcePolicy(p.ResourcePolicy)
	if err != nil {
		return nil, err
	}

	excluded := mapset.New[world.PickupIndex]()
	for _, i := range p.ExcludedLocations {
		idx := world.PickupIndex(i)
		if _, ok := g.PickupNode(idx); !ok {
			return nil, fmt.Errorf("%w: excluded location %d", ErrUnknownName, i)
		}
		excluded.Put(idx)
	}

	cfg := filler.DefaultConfig()
	cfg.Mode = mode
	cfg.LogicalPlacement = placement
	cfg.ResourcePolicy = policy
	cfg.ExcludedLocations = excluded
	cfg.MaxRandomStartingPickups = p.MaxRandomStartingPickups
	cfg.MultiPickupPlacement = p.MultiPickupPlacement
	cfg.MaxPickupsPerRound = p.MaxPickupsPerRound
	cfg.VictoryWeight = p.VictoryWeight
	cfg.Logger = logger
	return cfg, nil
}

// StartingResources returns the trick levels and misc flags as a gain,
// in name order.
func (p *Preset) StartingResources(db *resources.Database) (resources.Gain, error) {
	var gain resources.Gain
	add := func(t resources.Type, values map[string]int) error {
		for _, name := range sortedKeys(values) {
			r, ok := db.Get(t, name)
			if !ok {
				return fmt.Errorf("%w: %s %q", ErrUnknownName, t, name)
			}
			if v := values[name]; v > 0 {
				gain = append(gain, resources.Quantity{Resource: r, Amount: v})
			}
		}
		return nil
	}
	if err := add(resources.TypeTrick, p.Tricks); err != nil {
		return nil, err
	}
	if err := add(resources.TypeMisc, p.Misc); err != nil {
		return nil, err
	}
	return gain, nil
}

// ApplyEnergy writes the energy settings into db. Call it before the
// database is shared.
func (p *Preset) ApplyEnergy(db *resources.Database) {
	db.BaseEnergy = p.Energy.Base
	db.EnergyPerTank = p.Energy.PerTank
}

// Pools splits a world's pickup pool into the shuffled pool and the
// starting pickups.
//
// Description:
//
//	PickupCounts replaces the number of copies of a pickup; the copies
//	take the place of the first original copy. Each StartingPickups name
//	then moves one copy out of the result.
//
// Outputs:
//
//	pool - The pool to shuffle.
//	starting - Pickups granted at the start.
//	error - ErrUnknownName for a pickup missing from base.
func (p *Preset) Pools(base pickup.Pool) (pool, starting pickup.Pool, err error) {
	seen := make(map[string]bool)
	for _, e := range base {
		n, override := p.PickupCounts[e.Name]
		if !override {
			pool = append(pool, e)
			continue
		}
		if seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		for i := 0; i < n; i++ {
			pool = append(pool, e)
		}
	}
	for _, name := range sortedKeys(p.PickupCounts) {
		if !seen[name] {
			return nil, nil, fmt.Errorf("%w: pickup count for %q", ErrUnknownName, name)
		}
	}

	for _, name := range p.StartingPickups {
		i := indexOf(pool, name)
		if i < 0 {
			return nil, nil, fmt.Errorf("%w: starting pickup %q is not in the pool", ErrUnknownName, name)
		}
		starting = append(starting, pool[i])
		pool = append(pool[:i:i], pool[i+1:]...)
	}
	return pool, starting, nil
}

// Prepare returns the per-attempt patch customization for the dock
// overrides, or nil when there are none.
func (p *Preset) Prepare(g *world.Graph) (func(*patches.GamePatches), error) {
	if len(p.DockWeaknesses) == 0 {
		return nil, nil
	}
	type override struct {
		node     world.NodeIndex
		weakness *world.DockWeakness
	}
	overrides := make([]override, 0, len(p.DockWeaknesses))
	for _, d := range p.DockWeaknesses {
		id := world.NodeIdentifier{Region: d.Region, Area: d.Area, Node: d.Node}
		n, ok := g.NodeByIdentifier(id)
		if !ok {
			return nil, fmt.Errorf("%w: dock %s", ErrUnknownName, id)
		}
		dock, ok := n.Payload.(*world.Dock)
		if !ok {
			return nil, fmt.Errorf("%w: %s is a %s node, not a dock", ErrUnknownName, id, n.Kind())
		}
		w, ok := g.DockWeakness(dock.DockType, d.Weakness)
		if !ok {
			return nil, fmt.Errorf("%w: weakness %s/%s", ErrUnknownName, dock.DockType, d.Weakness)
		}
		overrides = append(overrides, override{node: n.Index, weakness: w})
	}
	return func(gp *patches.GamePatches) {
		for _, o := range overrides {
			gp.SetDockWeakness(o.node, o.weakness)
		}
	}, nil
}

// PlayerSpec builds the generator input of one player from a frozen
// world and its pickup pool. It applies the energy settings to the
// world's database.
func (p *Preset) PlayerSpec(g *world.Graph, base pickup.Pool) (generator.PlayerSpec, error) {
	p.ApplyEnergy(g.Resources())
	start, err := p.StartingResources(g.Resources())
	if err != nil {
		return generator.PlayerSpec{}, err
	}
	pool, starting, err := p.Pools(base)
	if err != nil {
		return generator.PlayerSpec{}, err
	}
	prepare, err := p.Prepare(g)
	if err != nil {
		return generator.PlayerSpec{}, err
	}
	return generator.PlayerSpec{
		Graph:             g,
		Pool:              pool,
		StartingPickups:   starting,
		StartingResources: start,
		Prepare:           prepare,
	}, nil
}

// Options returns generator options for seed.
func (p *Preset) Options(seed uint64) *generator.Options {
	opts := generator.DefaultOptions()
	opts.Seed = seed
	opts.MaxAttempts = p.Generation.Attempts
	opts.AttemptTimeout = p.Generation.AttemptTimeout
	opts.Parallelism = p.Generation.Parallelism
	opts.SkipValidation = !p.Generation.Validate
	return opts
}

func indexOf(pool pickup.Pool, name string) int {
	for i, e := range pool {
		if e.Name == name {
			return i
		}
	}
	return -1
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
