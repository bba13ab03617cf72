// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/requirements"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// Edge is one precomputed outgoing edge.
type Edge struct {
	Target      world.NodeIndex
	Requirement requirements.Set

	// damage is set when any alternative costs energy.
	damage bool
}

// Logic is the traversal table of one patched world.
//
// Description:
//
//	For every node the outgoing edges are collected from the area
//	connection table, the dock or teleporter target, and the extra
//	connections of the patches. Edges to the same target are merged with
//	OR. Configurable nodes AND their resolved requirement into every
//	outgoing edge; event nodes AND their own event resource, so an event
//	node can only be left once it was triggered. Requirements are
//	constant-folded against the static starting resources and impossible
//	edges are dropped.
//
// Thread Safety: Read-only after NewLogic returns.
type Logic struct {
	graph   *world.Graph
	patches *patches.GamePatches
	db      *resources.Database

	edges     [][]Edge
	victory   requirements.Set
	dangerous []bool
	heal      []bool

	// Pruned counts dock and teleporter edges dropped for unresolved targets.
	Pruned int
}

// NewLogic builds the traversal table for p.
//
// Outputs:
//
//	*Logic - The table.
//	error - ErrNilPatches, or world.ErrGraphNotFrozen for a graph still
//	        being built.
func NewLogic(p *patches.GamePatches) (*Logic, error) {
	if p == nil {
		return nil, ErrNilPatches
	}
	graph := p.Graph()
	if !graph.IsFrozen() {
		return nil, world.ErrGraphNotFrozen
	}
	db := graph.Resources()
	logger := slog.Default().With(slog.String("component", "resolver"))

	static := staticResources(db, p.StartingResources)
	fold := func(r requirements.Requirement) requirements.Set {
		if r == nil {
			return requirements.TrivialSet()
		}
		return r.Patch(static).AsSet()
	}

	l := &Logic{
		graph:     graph,
		patches:   p,
		db:        db,
		edges:     make([][]Edge, graph.NodeCount()),
		victory:   fold(graph.VictoryCondition()),
		dangerous: make([]bool, db.Len()),
		heal:      make([]bool, graph.NodeCount()),
	}
	for _, r := range graph.DangerousResources() {
		l.dangerous[r.Index] = true
	}

	for _, node := range graph.Nodes() {
		l.heal[node.Index] = node.Heal
		merged := make(map[world.NodeIndex]requirements.Set)
		add := func(target world.NodeIndex, set requirements.Set) {
			if set.IsImpossible() || target == node.Index {
				return
			}
			if prev, ok := merged[target]; ok {
				set = prev.Union(set)
			}
			merged[target] = set
		}

		for _, c := range graph.Connections(node.Index) {
			add(c.Target, fold(c.Requirement))
		}
		for _, c := range p.ExtraConnections(node.Index) {
			add(c.Target, fold(c.Requirement))
		}

		leave := requirements.TrivialSet()
		switch payload := node.Payload.(type) {
		case *world.Dock:
			target, ok := p.Connection(node.Index)
			if !ok {
				l.Pruned++
				logger.Warn("pruning dock with unresolved target",
					slog.String("node", node.Identifier.String()))
				break
			}
			weakness := p.DockWeakness(node.Index)
			add(target, fold(weakness.Requirement))
		case *world.Teleporter:
			target, ok := p.Connection(node.Index)
			if !ok {
				l.Pruned++
				logger.Warn("pruning teleporter with unresolved target",
					slog.String("node", node.Identifier.String()))
				break
			}
			add(target, fold(payload.Requirement))
		case *world.Configurable:
			leave = fold(p.Configurable(node.Index))
		case *world.Event:
			leave = requirements.NewResource(payload.Resource, 1, false).AsSet()
		}

		edges := make([]Edge, 0, len(merged))
		for target, set := range merged {
			if !leave.IsTrivial() {
				set = set.Intersect(leave)
				if set.IsImpossible() {
					continue
				}
			}
			edges = append(edges, Edge{Target: target, Requirement: set, damage: hasDamage(set)})
		}
		sort.Slice(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
		l.edges[node.Index] = edges
	}

	if l.Pruned > 0 {
		logger.Warn("logic built with pruned edges", slog.Int("pruned", l.Pruned))
	}
	return l, nil
}

// staticResources extracts the static part (tricks, versions, misc) of the
// starting resources.
func staticResources(db *resources.Database, start *resources.Collection) *resources.Collection {
	static := resources.NewCollection(db)
	for _, r := range db.All() {
		if r.Type.IsStatic() {
			static.Set(r, start.Get(r))
		}
	}
	return static
}

func hasDamage(set requirements.Set) bool {
	for _, alt := range set.Alternatives() {
		for _, item := range alt.Items() {
			if item.IsDamage() {
				return true
			}
		}
	}
	return false
}

// Graph returns the world graph.
func (l *Logic) Graph() *world.Graph {
	return l.graph
}

// Patches returns the patches the table was built for.
func (l *Logic) Patches() *patches.GamePatches {
	return l.patches
}

// Resources returns the resource database.
func (l *Logic) Resources() *resources.Database {
	return l.db
}

// PotentialNodesFrom returns the outgoing edges of node in target order.
// The slice MUST NOT be modified.
func (l *Logic) PotentialNodesFrom(node world.NodeIndex) []Edge {
	return l.edges[node]
}

// Victory returns the folded victory condition.
func (l *Logic) Victory() requirements.Set {
	return l.victory
}

// IsVictory reports whether s satisfies the victory condition.
func (l *Logic) IsVictory(s *State) bool {
	return l.victory.Satisfied(s.Resources, s.Energy, l.db)
}

// IsDangerous reports whether gaining r can make something unreachable.
func (l *Logic) IsDangerous(r *resources.Info) bool {
	return r.Index < len(l.dangerous) && l.dangerous[r.Index]
}

// GainIsDangerous reports whether any positive entry of g is dangerous.
func (l *Logic) GainIsDangerous(g resources.Gain) bool {
	for _, q := range g {
		if q.Amount > 0 && l.IsDangerous(q.Resource) {
			return true
		}
	}
	return false
}

// NodeGain returns what collecting node yields with current resources c.
//
// Outputs:
//
//	resources.Gain - The gain. Empty for nodes that yield nothing for this
//	                 player, such as a location holding another player's item.
//	bool - False when node is not collectible at all.
func (l *Logic) NodeGain(node world.NodeIndex, c *resources.Collection) (resources.Gain, bool) {
	switch payload := l.graph.Node(node).Payload.(type) {
	case *world.PickupLocation:
		target, ok := l.patches.Pickup(payload.Index)
		if !ok || target.Player != l.patches.Player {
			return nil, true
		}
		return target.Pickup.Gain(c), true
	case *world.Event:
		return resources.Gain{{Resource: payload.Resource, Amount: 1}}, true
	default:
		return nil, false
	}
}

// String summarizes the table for logs.
func (l *Logic) String() string {
	total := 0
	for _, e := range l.edges {
		total += len(e)
	}
	return fmt.Sprintf("logic(%s: %d nodes, %d edges, %d pruned)", l.graph.Name(), len(l.edges), total, l.Pruned)
}
