// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/zyedidia/generic/mapset"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// Placement records one pickup put into a location.
type Placement struct {
	Round int

	// Owner is the player whose world holds the location.
	Owner    int
	Location world.PickupIndex

	// Player receives the pickup.
	Player int
	Pickup string

	// Logical is false for the remaining-pool and Nothing fill.
	Logical bool
}

// Result is the outcome of a successful Fill.
type Result struct {
	Players    []*PlayerState
	Placements []Placement

	// Rounds is the number of logical rounds run.
	Rounds int

	Duration time.Duration
}

// Patches returns the filled patches in player order.
func (r *Result) Patches() []*patches.GamePatches {
	out := make([]*patches.GamePatches, len(r.Players))
	for i, ps := range r.Players {
		out[i] = ps.Patches
	}
	return out
}

type filler struct {
	cfg     *Config
	rng     *rand.Rand
	players []*PlayerState
	ages    map[location]float64
	logger  *slog.Logger

	round      int
	placements []Placement
}

// Fill places every pool pickup of every player.
//
// Description:
//
//	Players take turns in index order. A turn evaluates the player's
//	candidate actions against the current reach of every world, draws one
//	by weight, puts its pickups into reachable empty locations drawn by
//	age, and refreshes every player. An action may instead walk the player
//	to an event or location with no way back. With MultiPickupPlacement a turn
//	repeats the draw up to MaxPickupsPerRound times. When no action fits,
//	a random progression pickup may become a starting pickup instead.
//	After every player reaches its logical target the rest of the pool is
//	spread randomly and empty locations get NothingPickup.
//
// Inputs:
//
//	ctx - Checked between rounds.
//	rng - The attempt's random source. The same seed, inputs and config
//	      always produce the same patches.
//	inputs - One entry per player, in player order.
//	cfg - Configuration. Nil uses DefaultConfig().
//
// Outputs:
//
//	*Result - The filled players and the placement log.
//	error - *ConfigurationError before any search, *GenerationFailure on a
//	        dead end or cancellation, or a world error from the logic build.
func Fill(ctx context.Context, rng *rand.Rand, inputs []PlayerInput, cfg *Config) (*Result, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateInputs(inputs, cfg); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "filler.Fill",
		trace.WithAttributes(
			attribute.Int("rando.players", len(inputs)),
			attribute.String("rando.mode", cfg.Mode.String()),
		),
	)
	defer span.End()
	start := time.Now()

	f := &filler{
		cfg:    cfg,
		rng:    rng,
		ages:   make(map[location]float64),
		logger: cfg.Logger.With(slog.String("component", "filler")),
	}
	for i, in := range inputs {
		ps, err := newPlayerState(i, in)
		if err != nil {
			return nil, fmt.Errorf("building logic for player %d: %w", i, err)
		}
		f.players = append(f.players, ps)
	}

	if err := f.run(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fill failed")
		recordFill(ctx, false, time.Since(start))
		return nil, err
	}
	f.placeRemaining()
	f.fillNothing()

	result := &Result{
		Players:    f.players,
		Placements: f.placements,
		Rounds:     f.round,
		Duration:   time.Since(start),
	}
	recordFill(ctx, true, result.Duration)
	span.SetAttributes(
		attribute.Int("rando.rounds", result.Rounds),
		attribute.Int("rando.placements", len(result.Placements)),
	)
	return result, nil
}

// run places pickups logically until every player reached its target.
func (f *filler) run(ctx context.Context) error {
	f.refreshAll()
	for !f.done() {
		if err := ctx.Err(); err != nil {
			return &GenerationFailure{Reason: ReasonCancelled, Player: -1, PickupsLeft: f.pickupsLeft(), Cause: err}
		}
		f.round++
		recordRound(ctx)
		for _, ps := range f.players {
			if ps.targetReached(f.cfg.LogicalPlacement) {
				continue
			}
			if err := f.turn(ctx, ps); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *filler) done() bool {
	for _, ps := range f.players {
		if !ps.targetReached(f.cfg.LogicalPlacement) {
			return false
		}
	}
	return true
}

// turn runs one player's part of a round.
func (f *filler) turn(ctx context.Context, ps *PlayerState) error {
	locations := f.reachableLocations()
	actions := f.actions(ps, locations)

	limit := 1
	if f.cfg.MultiPickupPlacement {
		limit = f.cfg.MaxPickupsPerRound
	}

	done := 0
	for done < limit && len(actions) > 0 {
		weights := make([]float64, len(actions))
		for i, a := range actions {
			weights[i] = a.weight
		}
		i := weightedIndex(f.rng, weights)
		a := actions[i]
		actions = append(actions[:i], actions[i+1:]...)

		if a.kind == actionNode {
			if done > 0 {
				continue
			}
			f.logger.Debug("walking to node",
				slog.Int("round", f.round),
				slog.Int("player", ps.Index),
				slog.String("node", ps.Logic.Graph().Node(a.node).Identifier.String()),
			)
			ps.commitNode(a.node)
			done++
			break
		}

		if !f.canFit(a, locations) {
			continue
		}
		for _, e := range a.copies {
			loc := f.drawLocation(f.fitting(e, locations))
			locations = removeLocation(locations, loc)
			f.place(ctx, ps, e, loc, true)
			for _, other := range locations {
				f.ages[other] += e.Params.IndexAgeImpact
			}
		}
		done++
	}

	if done == 0 {
		if !f.addRandomStartingPickup(ps) {
			return &GenerationFailure{Reason: ReasonNoSafeAction, Player: ps.Index, PickupsLeft: f.pickupsLeft()}
		}
	}
	for _, loc := range locations {
		f.ages[loc]++
	}
	f.refreshAll()
	return nil
}

// place assigns e, belonging to ps, to loc.
func (f *filler) place(ctx context.Context, ps *PlayerState, e *pickup.Entry, loc location, logical bool) {
	f.players[loc.owner].Patches.AssignPickup(loc.index, patches.Target{Pickup: e, Player: ps.Index})
	ps.removePickup(e)
	delete(f.ages, loc)
	f.placements = append(f.placements, Placement{
		Round:    f.round,
		Owner:    loc.owner,
		Location: loc.index,
		Player:   ps.Index,
		Pickup:   e.Name,
		Logical:  logical,
	})
	recordPlacement(ctx, logical)
	f.logger.Debug("placed pickup",
		slog.Int("round", f.round),
		slog.String("pickup", e.Name),
		slog.Int("player", ps.Index),
		slog.Int("owner", loc.owner),
		slog.Int("location", int(loc.index)),
		slog.Bool("logical", logical),
	)
}

// drawLocation draws a location weighted by 1 + age.
func (f *filler) drawLocation(candidates []location) location {
	weights := make([]float64, len(candidates))
	for i, loc := range candidates {
		weights[i] = 1 + f.ages[loc]
	}
	return candidates[weightedIndex(f.rng, weights)]
}

// addRandomStartingPickup moves one progression pickup of ps to its
// starting items. Reports false when the limit is used up or no pickup
// would open anything.
func (f *filler) addRandomStartingPickup(ps *PlayerState) bool {
	if ps.StartingPickupsAdded >= f.cfg.MaxRandomStartingPickups {
		return false
	}
	var candidates []*pickup.Entry
	var weights []float64
	for _, g := range ps.distinctPickups() {
		ev := ps.evaluate(ps.trialPickups(g.copies[:1]))
		if ev.regresses || (ev.unlock == 0 && !ev.victory) {
			continue
		}
		candidates = append(candidates, g.entry)
		weights = append(weights, g.entry.Params.Multiplier())
	}
	if len(candidates) == 0 {
		return false
	}
	e := candidates[weightedIndex(f.rng, weights)]
	ps.addStartingPickup(e)
	f.logger.Debug("added random starting pickup",
		slog.Int("round", f.round),
		slog.Int("player", ps.Index),
		slog.String("pickup", e.Name),
	)
	return true
}

// refreshAll recomputes every player until pickups delivered between
// worlds stop changing anything.
func (f *filler) refreshAll() {
	delivered := make(map[int][]delivery, len(f.players))
	seen := mapset.New[location]()
	for {
		for _, ps := range f.players {
			ps.refresh(delivered[ps.Index])
		}
		changed := false
		for _, ps := range f.players {
			for _, d := range ps.foreignDeliveries() {
				if seen.Has(d.location) {
					continue
				}
				seen.Put(d.location)
				delivered[d.player] = append(delivered[d.player], d)
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// reachableLocations returns the empty locations reachable by their owner,
// in (owner, index) order.
func (f *filler) reachableLocations() []location {
	var out []location
	for _, ps := range f.players {
		out = append(out, ps.emptyLocations(f.cfg)...)
	}
	return out
}

// allEmptyLocations returns every unassigned, non-excluded location.
func (f *filler) allEmptyLocations() []location {
	var out []location
	for _, ps := range f.players {
		for _, n := range ps.Logic.Graph().PickupNodes() {
			p := n.Payload.(*world.PickupLocation)
			if f.cfg.ExcludedLocations.Has(p.Index) {
				continue
			}
			if _, assigned := ps.Patches.Pickup(p.Index); assigned {
				continue
			}
			out = append(out, location{owner: ps.Index, index: p.Index, category: p.Category})
		}
	}
	return out
}

// placeRemaining spreads every unplaced pickup over the empty locations.
// Input validation guarantees enough locations of each category.
func (f *filler) placeRemaining() {
	free := f.allEmptyLocations()
	for _, ps := range f.players {
		left := ps.PickupsLeft.Clone()
		f.rng.Shuffle(len(left), func(i, j int) { left[i], left[j] = left[j], left[i] })
		for _, e := range left {
			candidates := f.fitting(e, free)
			if len(candidates) == 0 {
				candidates = free
			}
			loc := candidates[f.rng.IntN(len(candidates))]
			free = removeLocation(free, loc)
			f.place(context.Background(), ps, e, loc, false)
		}
	}
}

// fillNothing puts NothingPickup into every location still empty,
// excluded locations included.
func (f *filler) fillNothing() {
	for _, ps := range f.players {
		for _, n := range ps.Logic.Graph().PickupNodes() {
			p := n.Payload.(*world.PickupLocation)
			if _, assigned := ps.Patches.Pickup(p.Index); assigned {
				continue
			}
			ps.Patches.AssignPickup(p.Index, patches.Target{Pickup: f.cfg.NothingPickup, Player: ps.Index})
		}
	}
}

func (f *filler) pickupsLeft() int {
	n := 0
	for _, ps := range f.players {
		n += len(ps.PickupsLeft)
	}
	return n
}

func removeLocation(locations []location, loc location) []location {
	out := make([]location, 0, len(locations))
	for _, l := range locations {
		if l != loc {
			out = append(out, l)
		}
	}
	return out
}

// ValidateInputs rejects inputs that can never be filled.
//
// Description:
//
//	Checks that player numbers match their positions, that the combined
//	pool fits the non-excluded locations (per category in major/minor
//	mode), and that every pool's locks are wired.
//
// Outputs:
//
//	error - *ConfigurationError, or nil.
func ValidateInputs(inputs []PlayerInput, cfg *Config) error {
	cfg = cfg.withDefaults()
	if len(inputs) == 0 {
		return &ConfigurationError{Field: "players", Reason: "at least one player is required"}
	}

	pool := make(map[world.LocationCategory]int, 2)
	slots := make(map[world.LocationCategory]int, 2)
	for i, in := range inputs {
		if in.Patches == nil {
			return &ConfigurationError{Field: "players", Reason: fmt.Sprintf("player %d has no patches", i)}
		}
		if in.Patches.Player != i {
			return &ConfigurationError{Field: "players", Reason: fmt.Sprintf("patches at position %d belong to player %d", i, in.Patches.Player)}
		}
		if err := in.Pool.ValidateLocks(in.Patches.StartingPickups); err != nil {
			return &ConfigurationError{Field: "pool", Reason: err.Error()}
		}
		for c, n := range in.Pool.CountByCategory() {
			pool[c] += n
		}
		for _, n := range in.Patches.Graph().PickupNodes() {
			p := n.Payload.(*world.PickupLocation)
			if cfg.ExcludedLocations.Has(p.Index) {
				continue
			}
			if _, assigned := in.Patches.Pickup(p.Index); assigned {
				continue
			}
			slots[p.Category]++
		}
	}

	totalPool := pool[world.CategoryMajor] + pool[world.CategoryMinor]
	totalSlots := slots[world.CategoryMajor] + slots[world.CategoryMinor]
	if totalPool > totalSlots {
		return &ConfigurationError{Field: "pool", Reason: fmt.Sprintf("%d pickups for %d locations", totalPool, totalSlots)}
	}
	if cfg.Mode == ModeMajorMinor {
		for _, c := range []world.LocationCategory{world.CategoryMajor, world.CategoryMinor} {
			if pool[c] > slots[c] {
				return &ConfigurationError{Field: "pool", Reason: fmt.Sprintf("%d %s pickups for %d %s locations", pool[c], c, slots[c], c)}
			}
		}
	}
	return nil
}
