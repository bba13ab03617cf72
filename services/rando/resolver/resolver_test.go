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
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/requirements"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// builder wraps world.Graph construction for tests.
type builder struct {
	t  *testing.T
	db *resources.Database
	g  *world.Graph
}

func newBuilder(t *testing.T) *builder {
	db := resources.NewDatabase()
	return &builder{t: t, db: db, g: world.NewGraph(db, world.WithName("test"))}
}

func nid(area, node string) world.NodeIdentifier {
	return world.NodeIdentifier{Region: "World", Area: area, Node: node}
}

func (b *builder) node(area, name string, payload world.Payload) world.NodeIndex {
	b.t.Helper()
	n, err := b.g.AddNode(world.NodeSpec{Identifier: nid(area, name), Payload: payload})
	require.NoError(b.t, err)
	return n.Index
}

func (b *builder) both(area, x, y string, req requirements.Requirement) {
	b.t.Helper()
	require.NoError(b.t, b.g.Connect(nid(area, x), nid(area, y), req))
	require.NoError(b.t, b.g.Connect(nid(area, y), nid(area, x), req))
}

func (b *builder) freeze(start world.NodeIdentifier, victory requirements.Requirement) {
	b.t.Helper()
	b.g.SetStartingLocation(start)
	b.g.SetVictoryCondition(victory)
	require.NoError(b.t, b.g.Freeze())
}

func itemEntry(r *resources.Info) *pickup.Entry {
	return &pickup.Entry{
		Name:        r.ShortName,
		Progression: []pickup.Conditional{{Resources: resources.Gain{{Resource: r, Amount: 1}}}},
	}
}

// linearWorld is Start(slot 0) -> Door(Key) -> Goal(event). The key goes to
// keySlot (0 at Start, 1 behind the door).
type linearWorld struct {
	graph *world.Graph
	key   *resources.Info
	start world.NodeIndex
	goal  world.NodeIndex
}

func newLinearWorld(t *testing.T) linearWorld {
	b := newBuilder(t)
	key := b.db.MustAdd(resources.TypeItem, "Key", "", 1)
	goalEvent := b.db.MustAdd(resources.TypeEvent, "Goal", "", 1)
	keyDoor, err := b.g.AddDockWeakness("door", "Key Door", requirements.NewResource(key, 1, false))
	require.NoError(t, err)

	start := b.node("Entrance", "Start", &world.PickupLocation{Index: 0})
	b.node("Entrance", "Door", &world.Dock{DockType: "door", Target: nid("Vault", "Door"), DefaultWeakness: keyDoor})
	b.node("Vault", "Door", &world.Dock{DockType: "door", Target: nid("Entrance", "Door"), DefaultWeakness: keyDoor})
	goal := b.node("Vault", "Goal", &world.Event{Resource: goalEvent})
	b.node("Vault", "Shelf", &world.PickupLocation{Index: 1})

	b.both("Entrance", "Start", "Door", nil)
	b.both("Vault", "Door", "Goal", nil)
	b.both("Vault", "Door", "Shelf", nil)
	b.freeze(nid("Entrance", "Start"), requirements.NewResource(goalEvent, 1, false))
	return linearWorld{graph: b.g, key: key, start: start, goal: goal}
}

func (w linearWorld) logic(t *testing.T, keySlot world.PickupIndex) *Logic {
	p := patches.New(w.graph, 0)
	p.AssignPickup(keySlot, patches.Target{Pickup: itemEntry(w.key)})
	l, err := NewLogic(p)
	require.NoError(t, err)
	return l
}

func TestResolve_KeyAtStart(t *testing.T) {
	w := newLinearWorld(t)
	result, err := Resolve(context.Background(), w.logic(t, 0), nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeVictory, result.Outcome)

	require.Len(t, result.Path, 2)
	assert.Equal(t, StepCollectPickup, result.Path[0].Kind)
	assert.Equal(t, w.start, result.Path[0].Node)
	assert.Equal(t, "Key", result.Path[0].Pickup.Name)

	assert.Equal(t, StepTriggerEvent, result.Path[1].Kind)
	assert.Equal(t, w.goal, result.Path[1].Node)

	route := result.Path[1].Route
	require.NotEmpty(t, route)
	assert.Equal(t, w.start, route[0])
	assert.Equal(t, w.goal, route[len(route)-1])
	door, _ := w.graph.NodeByIdentifier(nid("Vault", "Door"))
	assert.Contains(t, route, door.Index)
}

func TestResolve_KeyBehindDoor(t *testing.T) {
	w := newLinearWorld(t)
	result, err := Resolve(context.Background(), w.logic(t, 1), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeImpossible, result.Outcome)
	assert.Nil(t, result.State)
	assert.Empty(t, result.Path)
}

// pitWorld has a one-way drop from Start into Pit, which holds slot 0.
// Goal sits next to Start behind a Key door; keySlot places the key.
type pitWorld struct {
	graph *world.Graph
	key   *resources.Info
	start world.NodeIndex
	pit   world.NodeIndex
	goal  world.NodeIndex
}

func newPitWorld(t *testing.T) pitWorld {
	b := newBuilder(t)
	key := b.db.MustAdd(resources.TypeItem, "Key", "", 1)
	goalEvent := b.db.MustAdd(resources.TypeEvent, "Goal", "", 1)

	start := b.node("Cave", "Start", &world.PickupLocation{Index: 1})
	pit := b.node("Cave", "Pit", &world.PickupLocation{Index: 0})
	goal := b.node("Cave", "Goal", &world.Event{Resource: goalEvent})

	require.NoError(t, b.g.Connect(nid("Cave", "Start"), nid("Cave", "Pit"), nil))
	b.both("Cave", "Start", "Goal", requirements.NewResource(key, 1, false))
	b.freeze(nid("Cave", "Start"), requirements.NewResource(goalEvent, 1, false))
	return pitWorld{graph: b.g, key: key, start: start, pit: pit, goal: goal}
}

func (w pitWorld) logic(t *testing.T, keySlot world.PickupIndex) *Logic {
	p := patches.New(w.graph, 0)
	p.AssignPickup(keySlot, patches.Target{Pickup: itemEntry(w.key)})
	l, err := NewLogic(p)
	require.NoError(t, err)
	return l
}

func TestResolve_KeyBeyondOneWayDrop(t *testing.T) {
	w := newPitWorld(t)
	result, err := Resolve(context.Background(), w.logic(t, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeImpossible, result.Outcome)
	assert.Empty(t, result.Path)
}

func TestResolve_KeyBesideOneWayDrop(t *testing.T) {
	w := newPitWorld(t)
	result, err := Resolve(context.Background(), w.logic(t, 1), nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeVictory, result.Outcome)
	for _, step := range result.Path {
		assert.NotEqual(t, w.pit, step.Node, "the pit is never entered on the way to the goal")
	}
}

func TestResolve_GoalBeyondOneWayDrop(t *testing.T) {
	b := newBuilder(t)
	goalEvent := b.db.MustAdd(resources.TypeEvent, "Goal", "", 1)
	b.node("Cave", "Start", world.Generic{})
	b.node("Cave", "Goal", &world.Event{Resource: goalEvent})
	require.NoError(t, b.g.Connect(nid("Cave", "Start"), nid("Cave", "Goal"), nil))
	b.freeze(nid("Cave", "Start"), requirements.NewResource(goalEvent, 1, false))

	l, err := NewLogic(patches.New(b.g, 0))
	require.NoError(t, err)
	result, err := Resolve(context.Background(), l, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVictory, result.Outcome)
	assert.Len(t, result.Path, 1)
}

func TestReacher_Returns(t *testing.T) {
	w := newPitWorld(t)
	l := w.logic(t, 0)
	state := l.StartState()
	reacher := NewReacher(l)
	reach := reacher.Calculate(state)

	assert.True(t, reacher.Returns(state, w.start, state.Energy))
	assert.False(t, reacher.Returns(state, w.pit, reach.EnergyAt(w.pit)))

	goalEvent, _ := w.graph.Node(w.goal).EventResource()
	withKey := state.AssumeGain(resources.Gain{{Resource: w.key, Amount: 1}})
	assert.False(t, reacher.Returns(withKey, w.goal, withKey.Energy), "leaving an event node needs its event")
	triggered := withKey.AssumeGain(resources.Gain{{Resource: goalEvent, Amount: 1}})
	assert.True(t, reacher.Returns(triggered, w.goal, triggered.Energy))

	assert.True(t, reach.Contains(w.pit), "a return check leaves earlier reaches intact")
	assert.Equal(t, []world.NodeIndex{w.start, w.pit}, reach.Route(w.pit))
}

// eventOrderWorld needs event B before the key slot opens, and the slot
// closes for good once event A fires. Both events close something off, so
// neither is collected without branching. Trying A first is a dead end.
func eventOrderWorld(t *testing.T) *Logic {
	b := newBuilder(t)
	key := b.db.MustAdd(resources.TypeItem, "Key", "", 1)
	evA := b.db.MustAdd(resources.TypeEvent, "A", "", 1)
	evB := b.db.MustAdd(resources.TypeEvent, "B", "", 1)

	b.node("Hub", "Start", world.Generic{})
	b.node("Hub", "Lever A", &world.Event{Resource: evA})
	b.node("Hub", "Lever B", &world.Event{Resource: evB})
	b.node("Hub", "Slot", &world.PickupLocation{Index: 0})
	b.node("Hub", "Ledge", world.Generic{})

	b.both("Hub", "Start", "Lever A", nil)
	b.both("Hub", "Start", "Lever B", nil)
	b.both("Hub", "Start", "Slot", requirements.And{Items: []requirements.Requirement{
		requirements.NewResource(evB, 1, false),
		requirements.NewResource(evA, 1, true),
	}})
	b.both("Hub", "Start", "Ledge", requirements.NewResource(evB, 1, true))
	b.freeze(nid("Hub", "Start"), requirements.And{Items: []requirements.Requirement{
		requirements.NewResource(evA, 1, false),
		requirements.NewResource(key, 1, false),
	}})

	p := patches.New(b.g, 0)
	p.AssignPickup(0, patches.Target{Pickup: itemEntry(key)})
	l, err := NewLogic(p)
	require.NoError(t, err)
	return l
}

func TestResolve_Backtracks(t *testing.T) {
	l := eventOrderWorld(t)
	result, err := Resolve(context.Background(), l, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeVictory, result.Outcome)

	var names []string
	for _, step := range result.Path {
		names = append(names, l.Graph().Node(step.Node).Identifier.Node)
	}
	assert.Equal(t, []string{"Lever B", "Slot", "Lever A"}, names)
	assert.Greater(t, result.Explored, 1)
}

func TestResolve_Cancelled(t *testing.T) {
	l := eventOrderWorld(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Resolve(ctx, l, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestReach_Idempotent(t *testing.T) {
	w := newLinearWorld(t)
	l := w.logic(t, 0)
	state := l.StartState()

	reacher := NewReacher(l)
	first := reacher.Calculate(state)
	second := reacher.Calculate(state)
	assert.Equal(t, first.Nodes(), second.Nodes())
	assert.Equal(t, CalculateReach(state).Nodes(), first.Nodes())
	assert.Equal(t, 2, first.Len())
	assert.False(t, first.Victory())

	withKey := state.CollectInPlace(w.start, nil)
	bigger := reacher.Calculate(withKey)
	assert.True(t, first.IsSubsetOf(bigger))
	assert.True(t, bigger.Contains(w.goal))
	assert.Equal(t, 2, first.Len(), "earlier reach must not change")
}

func TestLogic_EventNodeGatesLeaving(t *testing.T) {
	w := newLinearWorld(t)
	l := w.logic(t, 0)

	edges := l.PotentialNodesFrom(w.goal)
	require.Len(t, edges, 1)
	empty := resources.NewCollection(l.Resources())
	assert.False(t, edges[0].Requirement.Satisfied(empty, 99, l.Resources()))

	goalEvent, _ := w.graph.Node(w.goal).EventResource()
	triggered := resources.CollectionOf(l.Resources(), resources.Quantity{Resource: goalEvent, Amount: 1})
	assert.True(t, edges[0].Requirement.Satisfied(triggered, 99, l.Resources()))
}

func TestLogic_PrunesUnresolvedDocks(t *testing.T) {
	b := newBuilder(t)
	w, err := b.g.AddDockWeakness("door", "Open", nil)
	require.NoError(t, err)
	b.node("A", "Start", world.Generic{})
	dock := b.node("A", "Broken", &world.Dock{DockType: "door", Target: nid("Nowhere", "Door"), DefaultWeakness: w})
	b.both("A", "Start", "Broken", nil)
	b.freeze(nid("A", "Start"), requirements.Impossible())

	l, err := NewLogic(patches.New(b.g, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, l.Pruned)
	assert.Len(t, l.PotentialNodesFrom(dock), 1, "only the in-area edge remains")

	result, err := Resolve(context.Background(), l, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeImpossible, result.Outcome)
}

func TestReach_DamageAndHeal(t *testing.T) {
	build := func(t *testing.T, healMiddle bool) (*Logic, world.NodeIndex, world.NodeIndex) {
		b := newBuilder(t)
		heat := b.db.MustAdd(resources.TypeDamage, "Heat", "", 1)
		hot := requirements.NewResource(heat, 60, false)

		b.node("Lava", "Start", world.Generic{})
		n, err := b.g.AddNode(world.NodeSpec{Identifier: nid("Lava", "Middle"), Heal: healMiddle})
		require.NoError(t, err)
		far := b.node("Lava", "Far", world.Generic{})
		require.NoError(t, b.g.Connect(nid("Lava", "Start"), nid("Lava", "Middle"), hot))
		require.NoError(t, b.g.Connect(nid("Lava", "Middle"), nid("Lava", "Far"), hot))
		b.freeze(nid("Lava", "Start"), requirements.Impossible())

		l, err := NewLogic(patches.New(b.g, 0))
		require.NoError(t, err)
		return l, n.Index, far
	}

	t.Run("energy runs out", func(t *testing.T) {
		l, middle, far := build(t, false)
		reach := CalculateReach(l.StartState())
		assert.Equal(t, resources.DefaultBaseEnergy-60, reach.EnergyAt(middle))
		assert.False(t, reach.Contains(far))
	})

	t.Run("heal node restores energy", func(t *testing.T) {
		l, middle, far := build(t, true)
		reach := CalculateReach(l.StartState())
		assert.Equal(t, resources.DefaultBaseEnergy, reach.EnergyAt(middle))
		assert.Equal(t, resources.DefaultBaseEnergy-60, reach.EnergyAt(far))
	})
}

func TestState_CollectTwicePanics(t *testing.T) {
	w := newLinearWorld(t)
	l := w.logic(t, 0)
	s := l.StartState().CollectInPlace(w.start, nil)
	assert.True(t, s.IsCollected(w.start))
	assert.Equal(t, 1, s.CollectedCount())
	assert.Equal(t, 1, s.Depth())
	assert.Panics(t, func() { s.CollectInPlace(w.start, nil) })
	assert.Panics(t, func() { s.CollectNode(0, 99, nil) })
}

func TestState_SignatureDistinguishesResources(t *testing.T) {
	w := newLinearWorld(t)
	l := w.logic(t, 0)
	start := l.StartState()
	assert.Equal(t, start.Signature(), l.StartState().Signature())
	assert.NotEqual(t, start.Signature(), start.CollectInPlace(w.start, nil).Signature())
	assert.NotEqual(t, start.Signature(), start.AssumeGain(resources.Gain{{Resource: w.key, Amount: 1}}).Signature())
}
