// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patches provides GamePatches, the per-generation overlay on top of
// a frozen world graph.
//
// GamePatches record which pickup occupies each pickup location, which dock
// has which weakness, where shuffled docks and teleporters lead, how
// configurable nodes resolve, and the starting state. The world graph itself
// is never modified, so one graph can back any number of concurrent
// generation attempts, each owning its own GamePatches.
//
// # Thread Safety
//
// GamePatches are NOT safe for concurrent mutation. An attempt owns its
// patches exclusively; Duplicate them to hand a snapshot elsewhere.
package patches

import (
	"fmt"
	"sort"

	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/requirements"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// Target is a pickup destined for a player.
type Target struct {
	Pickup *pickup.Entry

	// Player is the index of the player receiving the pickup.
	Player int
}

// Assignment pairs a pickup location with its target.
type Assignment struct {
	Index  world.PickupIndex
	Target Target
}

// GamePatches is the mutable overlay of one player's world.
type GamePatches struct {
	// Player is the index of the player owning this world.
	Player int

	// StartingLocation is where the player starts.
	StartingLocation world.NodeIndex

	// StartingResources are held from the start, including the gains of
	// StartingPickups and static settings such as trick levels.
	StartingResources *resources.Collection

	// StartingPickups were granted at the start instead of being placed.
	StartingPickups pickup.Pool

	graph          *world.Graph
	pickups        map[world.PickupIndex]Target
	dockWeakness   map[world.NodeIndex]*world.DockWeakness
	dockConnection map[world.NodeIndex]world.NodeIndex
	configurable   map[world.NodeIndex]requirements.Requirement
	extra          map[world.NodeIndex][]world.Connection
}

// New creates empty patches for a frozen graph.
func New(graph *world.Graph, player int) *GamePatches {
	return &GamePatches{
		Player:            player,
		StartingLocation:  graph.StartingLocation(),
		StartingResources: resources.NewCollection(graph.Resources()),
		graph:             graph,
		pickups:           make(map[world.PickupIndex]Target),
		dockWeakness:      make(map[world.NodeIndex]*world.DockWeakness),
		dockConnection:    make(map[world.NodeIndex]world.NodeIndex),
		configurable:      make(map[world.NodeIndex]requirements.Requirement),
		extra:             make(map[world.NodeIndex][]world.Connection),
	}
}

// Graph returns the world graph the patches apply to.
func (p *GamePatches) Graph() *world.Graph {
	return p.graph
}

// Duplicate returns an independent deep copy.
func (p *GamePatches) Duplicate() *GamePatches {
	out := &GamePatches{
		Player:            p.Player,
		StartingLocation:  p.StartingLocation,
		StartingResources: p.StartingResources.Duplicate(),
		StartingPickups:   p.StartingPickups.Clone(),
		graph:             p.graph,
		pickups:           make(map[world.PickupIndex]Target, len(p.pickups)),
		dockWeakness:      make(map[world.NodeIndex]*world.DockWeakness, len(p.dockWeakness)),
		dockConnection:    make(map[world.NodeIndex]world.NodeIndex, len(p.dockConnection)),
		configurable:      make(map[world.NodeIndex]requirements.Requirement, len(p.configurable)),
		extra:             make(map[world.NodeIndex][]world.Connection, len(p.extra)),
	}
	for k, v := range p.pickups {
		out.pickups[k] = v
	}
	for k, v := range p.dockWeakness {
		out.dockWeakness[k] = v
	}
	for k, v := range p.dockConnection {
		out.dockConnection[k] = v
	}
	for k, v := range p.configurable {
		out.configurable[k] = v
	}
	for k, v := range p.extra {
		out.extra[k] = append([]world.Connection(nil), v...)
	}
	return out
}

// ---- Pickups ----

// AssignPickup places a pickup at a location.
//
// Panics if the location already holds a pickup; double assignment is a
// programming error.
func (p *GamePatches) AssignPickup(idx world.PickupIndex, target Target) {
	if existing, ok := p.pickups[idx]; ok {
		panic(fmt.Sprintf("patches: pickup index %d already holds %s", idx, existing.Pickup))
	}
	p.pickups[idx] = target
}

// WithPickup returns a copy with one more assignment. p is not modified.
// Only the pickup map is copied; the other overlays stay shared with p.
func (p *GamePatches) WithPickup(idx world.PickupIndex, target Target) *GamePatches {
	out := *p
	out.pickups = make(map[world.PickupIndex]Target, len(p.pickups)+1)
	for k, v := range p.pickups {
		out.pickups[k] = v
	}
	out.AssignPickup(idx, target)
	return &out
}

// Pickup returns the target at a location.
func (p *GamePatches) Pickup(idx world.PickupIndex) (Target, bool) {
	t, ok := p.pickups[idx]
	return t, ok
}

// PickupCount returns the number of assigned locations.
func (p *GamePatches) PickupCount() int {
	return len(p.pickups)
}

// Assignments returns every assignment sorted by pickup index.
func (p *GamePatches) Assignments() []Assignment {
	out := make([]Assignment, 0, len(p.pickups))
	for idx, t := range p.pickups {
		out = append(out, Assignment{Index: idx, Target: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// AddStartingPickup grants a pickup at the start.
func (p *GamePatches) AddStartingPickup(e *pickup.Entry) {
	p.StartingPickups = append(p.StartingPickups, e)
	e.ApplyInPlace(p.StartingResources)
}

// ---- Docks, teleporters and configurable nodes ----

// SetDockWeakness overrides the weakness of a dock node.
func (p *GamePatches) SetDockWeakness(node world.NodeIndex, w *world.DockWeakness) {
	p.dockWeakness[node] = w
}

// DockWeakness returns the effective weakness of a dock node, or nil for
// other kinds.
func (p *GamePatches) DockWeakness(node world.NodeIndex) *world.DockWeakness {
	if w, ok := p.dockWeakness[node]; ok {
		return w
	}
	if d, ok := p.graph.Node(node).Payload.(*world.Dock); ok {
		return d.DefaultWeakness
	}
	return nil
}

// SetConnection overrides where a dock or teleporter node leads.
func (p *GamePatches) SetConnection(node, target world.NodeIndex) {
	p.dockConnection[node] = target
}

// Connection returns the effective target of a dock or teleporter node.
// Reports false when the target is unresolved.
func (p *GamePatches) Connection(node world.NodeIndex) (world.NodeIndex, bool) {
	if t, ok := p.dockConnection[node]; ok {
		return t, t != world.NoNode
	}
	return p.graph.DefaultTarget(node)
}

// SetConfigurable resolves a configurable node to a requirement.
func (p *GamePatches) SetConfigurable(node world.NodeIndex, req requirements.Requirement) {
	p.configurable[node] = req
}

// Configurable returns the requirement a configurable node resolves to.
// Unresolved nodes fall back to the node default, then to impossible.
func (p *GamePatches) Configurable(node world.NodeIndex) requirements.Requirement {
	if req, ok := p.configurable[node]; ok {
		return req
	}
	if c, ok := p.graph.Node(node).Payload.(*world.Configurable); ok && c.Default != nil {
		return c.Default
	}
	return requirements.Impossible()
}

// AddExtraConnection adds a non-vanilla one-way link.
func (p *GamePatches) AddExtraConnection(from, to world.NodeIndex, req requirements.Requirement) {
	if req == nil {
		req = requirements.Trivial()
	}
	edges := append(p.extra[from], world.Connection{Target: to, Requirement: req})
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
	p.extra[from] = edges
}

// ExtraConnections returns the non-vanilla links leaving a node.
func (p *GamePatches) ExtraConnections(from world.NodeIndex) []world.Connection {
	return p.extra[from]
}
