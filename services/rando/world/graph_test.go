// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package world

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/RandoForge/services/rando/requirements"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
)

func id(area, node string) NodeIdentifier {
	return NodeIdentifier{Region: "Tallon", Area: area, Node: node}
}

// twoAreaGraph builds Landing{Ship, Door A, Item} <-> Canyon{Door B, Boss}.
func twoAreaGraph(t *testing.T) (*Graph, *resources.Database) {
	t.Helper()
	db := resources.NewDatabase()
	bossEvent := db.MustAdd(resources.TypeEvent, "Boss", "", 1)
	bombs := db.MustAdd(resources.TypeItem, "Bombs", "", 1)
	locked := db.MustAdd(resources.TypeItem, "Curse", "", 1)

	g := NewGraph(db, WithName("test"))
	door, err := g.AddDockWeakness("door", "Normal", requirements.Trivial())
	require.NoError(t, err)

	mustAdd := func(spec NodeSpec) *Node {
		n, err := g.AddNode(spec)
		require.NoError(t, err)
		return n
	}
	mustAdd(NodeSpec{Identifier: id("Landing", "Ship"), Heal: true})
	mustAdd(NodeSpec{Identifier: id("Landing", "Door A"), Payload: &Dock{DockType: "door", Target: id("Canyon", "Door B"), DefaultWeakness: door}})
	mustAdd(NodeSpec{Identifier: id("Landing", "Item"), Payload: &PickupLocation{Index: 3, Category: CategoryMinor}})
	mustAdd(NodeSpec{Identifier: id("Canyon", "Door B"), Payload: &Dock{DockType: "door", Target: id("Landing", "Door A"), DefaultWeakness: door}})
	mustAdd(NodeSpec{Identifier: id("Canyon", "Boss"), Payload: &Event{Resource: bossEvent}})
	mustAdd(NodeSpec{Identifier: id("Canyon", "Item"), Payload: &PickupLocation{Index: 1, Category: CategoryMajor}})

	require.NoError(t, g.Connect(id("Landing", "Ship"), id("Landing", "Door A"), nil))
	require.NoError(t, g.Connect(id("Landing", "Ship"), id("Landing", "Item"), requirements.NewResource(bombs, 1, false)))
	require.NoError(t, g.Connect(id("Landing", "Door A"), id("Landing", "Ship"), nil))
	require.NoError(t, g.Connect(id("Canyon", "Door B"), id("Canyon", "Boss"), requirements.NewResource(locked, 1, true)))
	require.NoError(t, g.Connect(id("Canyon", "Door B"), id("Canyon", "Item"), nil))

	g.SetStartingLocation(id("Landing", "Ship"))
	g.SetVictoryCondition(requirements.NewResource(bossEvent, 1, false))
	return g, db
}

func TestGraph_Freeze(t *testing.T) {
	g, _ := twoAreaGraph(t)
	require.NoError(t, g.Freeze())
	assert.True(t, g.IsFrozen())
	assert.Equal(t, "readonly", g.State().String())

	t.Run("indices", func(t *testing.T) {
		assert.Equal(t, 6, g.NodeCount())
		ship, ok := g.NodeByIdentifier(id("Landing", "Ship"))
		require.True(t, ok)
		assert.Equal(t, ship.Index, g.StartingLocation())
		assert.Equal(t, "Landing", g.AreaOf(ship.Index).Name)
		assert.Len(t, g.Regions(), 1)
		assert.Len(t, g.Regions()[0].Areas, 2)
	})

	t.Run("docks resolve both ways", func(t *testing.T) {
		a, _ := g.NodeByIdentifier(id("Landing", "Door A"))
		b, _ := g.NodeByIdentifier(id("Canyon", "Door B"))
		target, ok := g.DefaultTarget(a.Index)
		require.True(t, ok)
		assert.Equal(t, b.Index, target)
		target, ok = g.DefaultTarget(b.Index)
		require.True(t, ok)
		assert.Equal(t, a.Index, target)
		assert.Empty(t, g.Unresolved())
	})

	t.Run("pickup nodes sorted by pickup index", func(t *testing.T) {
		nodes := g.PickupNodes()
		require.Len(t, nodes, 2)
		first, _ := nodes[0].PickupIndex()
		assert.Equal(t, PickupIndex(1), first)
		n, ok := g.PickupNode(3)
		require.True(t, ok)
		assert.Equal(t, "Tallon/Landing/Item", n.String())
	})

	t.Run("dangerous resources", func(t *testing.T) {
		dangerous := g.DangerousResources()
		require.Len(t, dangerous, 1)
		assert.Equal(t, "Curse", dangerous[0].ShortName)
	})

	t.Run("connections sorted by target", func(t *testing.T) {
		ship, _ := g.NodeByIdentifier(id("Landing", "Ship"))
		edges := g.Connections(ship.Index)
		require.Len(t, edges, 2)
		assert.Less(t, edges[0].Target, edges[1].Target)
	})

	t.Run("frozen graph rejects changes", func(t *testing.T) {
		_, err := g.AddNode(NodeSpec{Identifier: id("Landing", "New")})
		assert.True(t, errors.Is(err, ErrGraphFrozen))
		assert.True(t, errors.Is(g.Connect(id("Landing", "Ship"), id("Landing", "Item"), nil), ErrGraphFrozen))
	})
}

func TestGraph_BuildErrors(t *testing.T) {
	db := resources.NewDatabase()
	g := NewGraph(db, WithMaxNodes(3))

	_, err := g.AddNode(NodeSpec{Identifier: id("A", "1")})
	require.NoError(t, err)
	_, err = g.AddNode(NodeSpec{Identifier: id("A", "1")})
	assert.True(t, errors.Is(err, ErrDuplicateNode))

	_, err = g.AddNode(NodeSpec{Identifier: id("B", "1")})
	require.NoError(t, err)
	assert.True(t, errors.Is(g.Connect(id("A", "1"), id("B", "1"), nil), ErrCrossAreaConnection))
	assert.True(t, errors.Is(g.Connect(id("A", "1"), id("A", "nope"), nil), ErrNodeNotFound))

	_, err = g.AddNode(NodeSpec{Identifier: id("A", "dock"), Payload: &Dock{DockType: "door"}})
	assert.True(t, errors.Is(err, ErrInvalidNode))

	_, err = g.AddNode(NodeSpec{Identifier: id("A", "2")})
	require.NoError(t, err)
	_, err = g.AddNode(NodeSpec{Identifier: id("A", "3")})
	assert.True(t, errors.Is(err, ErrMaxNodesExceeded))

	assert.True(t, errors.Is(g.Freeze(), ErrNoVictoryCondition))
	g.SetVictoryCondition(requirements.Trivial())
	assert.True(t, errors.Is(g.Freeze(), ErrNodeNotFound))
	g.SetStartingLocation(id("A", "1"))
	assert.NoError(t, g.Freeze())
}

func TestGraph_UnresolvedDockIsRecorded(t *testing.T) {
	db := resources.NewDatabase()
	g := NewGraph(db)
	w, err := g.AddDockWeakness("door", "Normal", nil)
	require.NoError(t, err)
	_, err = g.AddDockWeakness("door", "Normal", nil)
	assert.True(t, errors.Is(err, ErrDuplicateWeakness))

	_, err = g.AddNode(NodeSpec{Identifier: id("A", "Door"), Payload: &Dock{DockType: "door", Target: id("Missing", "Door"), DefaultWeakness: w}})
	require.NoError(t, err)
	g.SetStartingLocation(id("A", "Door"))
	g.SetVictoryCondition(requirements.Impossible())

	require.NoError(t, g.Freeze())
	assert.Equal(t, []NodeIdentifier{id("A", "Door")}, g.Unresolved())
	_, ok := g.DefaultTarget(0)
	assert.False(t, ok)
}

func TestGraph_DuplicatePickupIndex(t *testing.T) {
	db := resources.NewDatabase()
	g := NewGraph(db)
	_, err := g.AddNode(NodeSpec{Identifier: id("A", "1"), Payload: &PickupLocation{Index: 0}})
	require.NoError(t, err)
	_, err = g.AddNode(NodeSpec{Identifier: id("A", "2"), Payload: &PickupLocation{Index: 0}})
	require.NoError(t, err)
	g.SetStartingLocation(id("A", "1"))
	g.SetVictoryCondition(requirements.Trivial())
	assert.True(t, errors.Is(g.Freeze(), ErrDuplicatePickupIndex))
	assert.False(t, g.IsFrozen())
}
