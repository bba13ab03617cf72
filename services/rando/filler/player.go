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
	"sort"

	"github.com/zyedidia/generic/mapset"

	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/resolver"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// PlayerInput is one world to fill.
type PlayerInput struct {
	// Patches are filled in place. Patches.Player is the player number and
	// must equal the position in the input slice.
	Patches *patches.GamePatches

	// Pool is the pickups belonging to this player.
	Pool pickup.Pool
}

// location is a pickup location in one player's world.
type location struct {
	owner    int
	index    world.PickupIndex
	category world.LocationCategory
}

// delivery is a pickup for some player collected in another player's world.
type delivery struct {
	location location
	player   int
	entry    *pickup.Entry
}

// PlayerState is the filler's view of one player.
//
// Description:
//
//	base is the committed resolver state: the start, plus triggered
//	node actions and random starting pickups. Every refresh recomputes
//	the reach from base, applying pickups delivered from other worlds and
//	collecting in place every reachable assigned location and every event
//	whose gain is not dangerous, as long as the player can walk back from
//	it. Unassigned locations are never collected, so a pickup placed there
//	later is picked up by the next refresh. Only locations the player can
//	walk back from receive logical placements.
type PlayerState struct {
	Index   int
	Patches *patches.GamePatches
	Logic   *resolver.Logic

	// PickupsLeft are the pickups of this player not yet placed.
	PickupsLeft pickup.Pool

	// StartingPickupsAdded counts pickups moved to the starting items.
	StartingPickupsAdded int

	base    *resolver.State
	reacher *resolver.Reacher

	// absorbed are deliveries already contained in base.
	absorbed mapset.Set[location]

	// applied are the deliveries contained in state.
	applied []location

	// state and reach are the result of the last refresh.
	state *resolver.State
	reach *resolver.Reach
}

func newPlayerState(index int, in PlayerInput) (*PlayerState, error) {
	l, err := resolver.NewLogic(in.Patches)
	if err != nil {
		return nil, err
	}
	return &PlayerState{
		Index:       index,
		Patches:     in.Patches,
		Logic:       l,
		PickupsLeft: in.Pool.Clone(),
		base:        l.StartState(),
		reacher:     resolver.NewReacher(l),
		absorbed:    mapset.New[location](),
	}, nil
}

// Reach returns the reach of the last refresh.
func (ps *PlayerState) Reach() *resolver.Reach {
	return ps.reach
}

// State returns the state of the last refresh.
func (ps *PlayerState) State() *resolver.State {
	return ps.state
}

// Victory reports whether the last refresh satisfies the victory condition.
func (ps *PlayerState) Victory() bool {
	return ps.Logic.IsVictory(ps.state)
}

// refresh recomputes state and reach from base and the given deliveries.
func (ps *PlayerState) refresh(delivered []delivery) {
	s := ps.base
	ps.applied = ps.applied[:0]
	for _, d := range delivered {
		ps.applied = append(ps.applied, d.location)
		if ps.absorbed.Has(d.location) {
			continue
		}
		s = s.AssumeGain(d.entry.Gain(s.Resources))
	}
	ps.state, ps.reach = ps.settle(s)
}

// commitNode moves the player to an event or assigned location and
// collects it. The current state, including its deliveries, becomes the
// new base.
func (ps *PlayerState) commitNode(node world.NodeIndex) {
	ps.base = ps.state.CollectNode(node, ps.reach.EnergyAt(node), ps.reach.Route(node))
	for _, loc := range ps.applied {
		ps.absorbed.Put(loc)
	}
}

// addStartingPickup grants e from the start.
func (ps *PlayerState) addStartingPickup(e *pickup.Entry) {
	ps.Patches.AddStartingPickup(e)
	ps.base = ps.base.AssumeGain(e.Gain(ps.base.Resources))
	ps.removePickup(e)
	ps.StartingPickupsAdded++
}

// settle collects every safe reachable node in place until nothing changes.
func (ps *PlayerState) settle(s *resolver.State) (*resolver.State, *resolver.Reach) {
	for {
		reach := ps.reacher.Calculate(s)
		progressed := false
		for _, node := range reach.CollectableNodes() {
			if !ps.autoCollectable(node, s.Resources) {
				continue
			}
			next := s.CollectInPlace(node, nil)
			if !ps.reacher.Returns(next, node, reach.EnergyAt(node)) {
				continue
			}
			s = next
			progressed = true
		}
		if !progressed {
			return s, reach
		}
	}
}

func (ps *PlayerState) autoCollectable(node world.NodeIndex, c *resources.Collection) bool {
	if !ps.assigned(node) {
		return false
	}
	gain, _ := ps.Logic.NodeGain(node, c)
	return !ps.Logic.GainIsDangerous(gain)
}

// assigned reports whether node is an event or a pickup location that
// already holds a pickup.
func (ps *PlayerState) assigned(node world.NodeIndex) bool {
	if p, ok := ps.Logic.Graph().Node(node).Payload.(*world.PickupLocation); ok {
		_, assigned := ps.Patches.Pickup(p.Index)
		return assigned
	}
	return true
}

// emptyLocations returns the reachable, unassigned, non-excluded locations
// the player can walk back from.
func (ps *PlayerState) emptyLocations(cfg *Config) []location {
	var out []location
	for _, node := range ps.reach.Nodes() {
		p, ok := ps.Logic.Graph().Node(node).Payload.(*world.PickupLocation)
		if !ok || cfg.ExcludedLocations.Has(p.Index) {
			continue
		}
		if _, assigned := ps.Patches.Pickup(p.Index); assigned {
			continue
		}
		if !ps.reacher.Returns(ps.state, node, ps.reach.EnergyAt(node)) {
			continue
		}
		out = append(out, location{owner: ps.Index, index: p.Index, category: p.Category})
	}
	return out
}

// foreignDeliveries returns the collected locations of this world holding
// another player's pickup, sorted by index.
func (ps *PlayerState) foreignDeliveries() []delivery {
	var out []delivery
	for _, a := range ps.Patches.Assignments() {
		if a.Target.Player == ps.Index {
			continue
		}
		node, ok := ps.Logic.Graph().PickupNode(a.Index)
		if !ok || !ps.state.IsCollected(node.Index) {
			continue
		}
		out = append(out, delivery{
			location: location{owner: ps.Index, index: a.Index},
			player:   a.Target.Player,
			entry:    a.Target.Pickup,
		})
	}
	return out
}

// pendingNodes returns the reachable events and assigned locations the
// last refresh left uncollected, sorted by index. These are the dangerous
// ones and the ones the player cannot walk back from.
func (ps *PlayerState) pendingNodes() []world.NodeIndex {
	var out []world.NodeIndex
	for _, node := range ps.reach.CollectableNodes() {
		if ps.assigned(node) {
			out = append(out, node)
		}
	}
	return out
}

// removePickup drops one copy of e from PickupsLeft.
func (ps *PlayerState) removePickup(e *pickup.Entry) {
	for i, left := range ps.PickupsLeft {
		if left == e {
			ps.PickupsLeft = append(ps.PickupsLeft[:i], ps.PickupsLeft[i+1:]...)
			return
		}
	}
}

// distinctPickups returns one representative per pickup name with the
// number of copies left, in name order.
func (ps *PlayerState) distinctPickups() []pickupGroup {
	byName := make(map[string]*pickupGroup)
	for _, e := range ps.PickupsLeft {
		g, ok := byName[e.Name]
		if !ok {
			g = &pickupGroup{entry: e}
			byName[e.Name] = g
		}
		g.copies = append(g.copies, e)
	}
	out := make([]pickupGroup, 0, len(byName))
	for _, g := range byName {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].entry.Name < out[j].entry.Name })
	return out
}

// pickupGroup is every remaining copy of one pickup name.
type pickupGroup struct {
	entry  *pickup.Entry
	copies []*pickup.Entry
}

// targetReached reports whether this player's logical placement is done.
func (ps *PlayerState) targetReached(target LogicalPlacement) bool {
	if !ps.Victory() {
		return false
	}
	switch target {
	case PlacementMajors:
		for _, e := range ps.PickupsLeft {
			if e.IsMajor() {
				return false
			}
		}
		return true
	case PlacementAll:
		return len(ps.PickupsLeft) == 0
	default:
		return true
	}
}
