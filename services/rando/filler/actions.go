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
	"math/rand/v2"

	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/resolver"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

type actionKind int

const (
	actionPickup actionKind = iota
	actionNode
)

// action is one candidate move of a player's turn.
type action struct {
	kind actionKind

	// copies are placed together for actionPickup.
	copies []*pickup.Entry

	// node is walked to and collected for actionNode.
	node world.NodeIndex

	// unlock is the number of nodes the action adds to the reach.
	unlock  int
	victory bool
	weight  float64
}

// evaluation is the outcome of applying a hypothetical change.
type evaluation struct {
	unlock    int
	victory   bool
	regresses bool
}

// evaluate settles s and compares the resulting reach with the current one.
func (ps *PlayerState) evaluate(s *resolver.State) evaluation {
	settled, reach := ps.settle(s)
	unlock := 0
	for _, n := range reach.Nodes() {
		if !ps.reach.Contains(n) {
			unlock++
		}
	}
	return evaluation{
		unlock:    unlock,
		victory:   !ps.Victory() && ps.Logic.IsVictory(settled),
		regresses: !ps.reach.IsSubsetOf(reach),
	}
}

// trialPickups applies copies in order on top of the current state. Each
// copy sees the resources granted by the previous ones.
func (ps *PlayerState) trialPickups(copies []*pickup.Entry) *resolver.State {
	s := ps.state
	for _, e := range copies {
		s = s.AssumeGain(e.Gain(s.Resources))
	}
	return s
}

// pickupActions evaluates placing each distinct remaining pickup.
//
// Description:
//
//	Before victory only progression actions qualify: pickups whose
//	placement opens new nodes or reaches victory. A pickup with
//	RequiredProgression N is evaluated and placed as N copies at once.
//	After victory, with a target beyond minimal, every remaining pickup
//	the target still requires qualifies with its multiplier as weight.
//	Placements that would make a reached node unreachable are rejected.
func (f *filler) pickupActions(ps *PlayerState) []action {
	var out []action
	for _, g := range ps.distinctPickups() {
		n := g.entry.Params.Copies()
		if n > len(g.copies) {
			n = len(g.copies)
		}
		copies := g.copies[:n]

		ev := ps.evaluate(ps.trialPickups(copies))
		if ev.regresses {
			continue
		}

		params := g.entry.Params
		switch {
		case ev.unlock > 0 || ev.victory:
			weight := float64(ev.unlock)
			if ev.victory {
				weight += f.cfg.VictoryWeight
			}
			weight = weight*params.Multiplier() + params.ProbabilityOffset
			if weight <= 0 {
				continue
			}
			out = append(out, action{kind: actionPickup, copies: copies, unlock: ev.unlock, victory: ev.victory, weight: weight})
		case ps.Victory() && f.requiredAfterVictory(g.entry):
			out = append(out, action{kind: actionPickup, copies: copies[:1], weight: params.Multiplier()})
		}
	}
	return out
}

func (f *filler) requiredAfterVictory(e *pickup.Entry) bool {
	switch f.cfg.LogicalPlacement {
	case PlacementAll:
		return true
	case PlacementMajors:
		return e.IsMajor()
	default:
		return false
	}
}

// nodeActions evaluates walking to each pending node and collecting it.
// Actions whose gain is dangerous are returned apart so the resource policy
// can hold them back.
func (f *filler) nodeActions(ps *PlayerState) (safe, dangerous []action) {
	if ps.Victory() {
		return nil, nil
	}
	for _, node := range ps.pendingNodes() {
		trial := ps.state.CollectNode(node, ps.reach.EnergyAt(node), nil)
		ev := ps.evaluate(trial)
		if ev.unlock == 0 && !ev.victory {
			continue
		}
		weight := float64(ev.unlock)
		if ev.victory {
			weight += f.cfg.VictoryWeight
		}
		a := action{kind: actionNode, node: node, unlock: ev.unlock, victory: ev.victory, weight: weight}
		gain, _ := ps.Logic.NodeGain(node, ps.state.Resources)
		if ps.Logic.GainIsDangerous(gain) {
			dangerous = append(dangerous, a)
		} else {
			safe = append(safe, a)
		}
	}
	return safe, dangerous
}

// actions returns the candidate actions of ps under the resource policy.
func (f *filler) actions(ps *PlayerState, locations []location) []action {
	var out []action
	for _, a := range f.pickupActions(ps) {
		if f.canFit(a, locations) {
			out = append(out, a)
		}
	}
	safe, dangerous := f.nodeActions(ps)
	out = append(out, safe...)
	switch f.cfg.ResourcePolicy {
	case PolicyNever:
		return out
	case PolicyLastResort:
		if len(out) > 0 {
			return out
		}
	}
	return append(out, dangerous...)
}

// canFit reports whether the reachable empty locations can hold every copy
// of a pickup action, respecting the major/minor split.
func (f *filler) canFit(a action, locations []location) bool {
	if a.kind != actionPickup {
		return true
	}
	return len(f.fitting(a.copies[0], locations)) >= len(a.copies)
}

// fitting returns the locations e may be placed in.
func (f *filler) fitting(e *pickup.Entry, locations []location) []location {
	if f.cfg.Mode != ModeMajorMinor {
		return locations
	}
	want := e.Params.PreferredLocationCategory
	out := make([]location, 0, len(locations))
	for _, loc := range locations {
		if loc.category == want {
			out = append(out, loc)
		}
	}
	return out
}

// weightedIndex draws an index with probability proportional to weights.
// Equal weights give every index the same chance; a zero total falls back
// to a uniform draw.
func weightedIndex(rng *rand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return rng.IntN(len(weights))
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return i
		}
	}
	return len(weights) - 1
}
