// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patches

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// ErrLayoutMismatch is returned when a layout does not fit the world graph.
var ErrLayoutMismatch = errors.New("layout does not match world")

// Layout is the serializable result of one generation.
type Layout struct {
	// RunID identifies the generation run.
	RunID string `json:"run_id,omitempty"`

	Game string `json:"game"`

	// Seed is the seed number the layout was generated from.
	Seed uint64 `json:"seed"`

	// Attempt is the zero-based attempt that succeeded.
	Attempt int `json:"attempt"`

	Players []PlayerLayout `json:"players"`
}

// PlayerLayout is one player's share of a Layout.
type PlayerLayout struct {
	Player           int                  `json:"player"`
	StartingLocation world.NodeIdentifier `json:"starting_location"`
	StartingPickups  []string             `json:"starting_pickups,omitempty"`
	Locations        []LocationLayout     `json:"locations"`
	DockWeaknesses   []DockWeaknessLayout `json:"dock_weaknesses,omitempty"`
	Connections      []ConnectionLayout   `json:"connections,omitempty"`
}

// LocationLayout is one filled pickup location.
type LocationLayout struct {
	Index  world.PickupIndex    `json:"index"`
	Node   world.NodeIdentifier `json:"node"`
	Pickup string               `json:"pickup"`
	Owner  int                  `json:"owner"`
}

// DockWeaknessLayout is one overridden dock weakness.
type DockWeaknessLayout struct {
	Node     world.NodeIdentifier `json:"node"`
	Weakness string               `json:"weakness"`
}

// ConnectionLayout is one overridden dock or teleporter target.
type ConnectionLayout struct {
	Node   world.NodeIdentifier `json:"node"`
	Target world.NodeIdentifier `json:"target"`
}

// Export renders the patches as a PlayerLayout in canonical order.
func (p *GamePatches) Export() PlayerLayout {
	out := PlayerLayout{
		Player:           p.Player,
		StartingLocation: p.graph.Node(p.StartingLocation).Identifier,
		Locations:        make([]LocationLayout, 0, len(p.pickups)),
	}
	for _, e := range p.StartingPickups {
		out.StartingPickups = append(out.StartingPickups, e.Name)
	}
	for _, a := range p.Assignments() {
		node, ok := p.graph.PickupNode(a.Index)
		if !ok {
			continue
		}
		out.Locations = append(out.Locations, LocationLayout{
			Index:  a.Index,
			Node:   node.Identifier,
			Pickup: a.Target.Pickup.Name,
			Owner:  a.Target.Player,
		})
	}
	for _, n := range p.graph.Nodes() {
		if w, ok := p.dockWeakness[n.Index]; ok {
			out.DockWeaknesses = append(out.DockWeaknesses, DockWeaknessLayout{
				Node:     n.Identifier,
				Weakness: w.Name,
			})
		}
		if t, ok := p.dockConnection[n.Index]; ok && t != world.NoNode {
			out.Connections = append(out.Connections, ConnectionLayout{
				Node:   n.Identifier,
				Target: p.graph.Node(t).Identifier,
			})
		}
	}
	return out
}

// Catalog maps pickup names to definitions for each receiving player.
type Catalog map[int]map[string]*pickup.Entry

// Lookup returns the definition of name for player.
func (c Catalog) Lookup(player int, name string) (*pickup.Entry, bool) {
	e, ok := c[player][name]
	return e, ok
}

// FromLayout rebuilds patches from an exported PlayerLayout.
//
// Inputs:
//
//	graph - The frozen world graph the layout was generated for.
//	layout - The exported layout.
//	catalog - Pickup definitions by receiving player and name.
//
// Outputs:
//
//	*GamePatches - The rebuilt patches.
//	error - ErrLayoutMismatch when a node, weakness or pickup is unknown.
func FromLayout(graph *world.Graph, layout PlayerLayout, catalog Catalog) (*GamePatches, error) {
	p := New(graph, layout.Player)

	start, ok := graph.NodeByIdentifier(layout.StartingLocation)
	if !ok {
		return nil, fmt.Errorf("%w: starting location %s", ErrLayoutMismatch, layout.StartingLocation)
	}
	p.StartingLocation = start.Index

	for _, name := range layout.StartingPickups {
		e, ok := catalog.Lookup(layout.Player, name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown pickup %q", ErrLayoutMismatch, name)
		}
		p.AddStartingPickup(e)
	}
	for _, loc := range layout.Locations {
		if _, ok := graph.PickupNode(loc.Index); !ok {
			return nil, fmt.Errorf("%w: unknown pickup index %d", ErrLayoutMismatch, loc.Index)
		}
		if _, taken := p.Pickup(loc.Index); taken {
			return nil, fmt.Errorf("%w: pickup index %d listed twice", ErrLayoutMismatch, loc.Index)
		}
		e, ok := catalog.Lookup(loc.Owner, loc.Pickup)
		if !ok {
			return nil, fmt.Errorf("%w: unknown pickup %q", ErrLayoutMismatch, loc.Pickup)
		}
		p.AssignPickup(loc.Index, Target{Pickup: e, Player: loc.Owner})
	}
	for _, dw := range layout.DockWeaknesses {
		n, ok := graph.NodeByIdentifier(dw.Node)
		if !ok {
			return nil, fmt.Errorf("%w: dock %s", ErrLayoutMismatch, dw.Node)
		}
		dock, ok := n.Payload.(*world.Dock)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a dock", ErrLayoutMismatch, dw.Node)
		}
		w, ok := graph.DockWeakness(dock.DockType, dw.Weakness)
		if !ok {
			return nil, fmt.Errorf("%w: weakness %s/%s", ErrLayoutMismatch, dock.DockType, dw.Weakness)
		}
		p.SetDockWeakness(n.Index, w)
	}
	for _, c := range layout.Connections {
		n, ok := graph.NodeByIdentifier(c.Node)
		if !ok {
			return nil, fmt.Errorf("%w: node %s", ErrLayoutMismatch, c.Node)
		}
		t, ok := graph.NodeByIdentifier(c.Target)
		if !ok {
			return nil, fmt.Errorf("%w: target %s", ErrLayoutMismatch, c.Target)
		}
		p.SetConnection(n.Index, t.Index)
	}
	return p, nil
}
