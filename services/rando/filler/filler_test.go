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
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/requirements"
	"github.com/AleutianAI/RandoForge/services/rando/resolver"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

func nid(area, node string) world.NodeIdentifier {
	return world.NodeIdentifier{Region: "World", Area: area, Node: node}
}

func item(r *resources.Info, category world.LocationCategory) *pickup.Entry {
	return &pickup.Entry{
		Name:        r.ShortName,
		Category:    category.String(),
		Progression: []pickup.Conditional{{Resources: resources.Gain{{Resource: r, Amount: 1}}}},
		Params:      pickup.Params{PreferredLocationCategory: category},
	}
}

type testWorld struct {
	graph *world.Graph
	items map[string]*resources.Info
}

func (w testWorld) entry(name string, category world.LocationCategory) *pickup.Entry {
	return item(w.items[name], category)
}

// keyWorld is Start -> Door(Key) -> Goal. The start holds slot 0; when
// shelf is set, slot 1 sits behind the door.
func keyWorld(t *testing.T, shelf bool) testWorld {
	t.Helper()
	db := resources.NewDatabase()
	key := db.MustAdd(resources.TypeItem, "Key", "", 1)
	goal := db.MustAdd(resources.TypeEvent, "Goal", "", 1)
	g := world.NewGraph(db, world.WithName("key"))
	door, err := g.AddDockWeakness("door", "Key Door", requirements.NewResource(key, 1, false))
	require.NoError(t, err)

	add := func(area, name string, p world.Payload) {
		_, err := g.AddNode(world.NodeSpec{Identifier: nid(area, name), Payload: p})
		require.NoError(t, err)
	}
	link := func(area, a, b string) {
		require.NoError(t, g.Connect(nid(area, a), nid(area, b), nil))
		require.NoError(t, g.Connect(nid(area, b), nid(area, a), nil))
	}

	startPayload := world.Payload(&world.PickupLocation{Index: 0, Category: world.CategoryMajor})
	if shelf {
		startPayload = world.Generic{}
	}
	add("Entrance", "Start", startPayload)
	add("Entrance", "Door", &world.Dock{DockType: "door", Target: nid("Vault", "Door"), DefaultWeakness: door})
	add("Vault", "Door", &world.Dock{DockType: "door", Target: nid("Entrance", "Door"), DefaultWeakness: door})
	add("Vault", "Goal", &world.Event{Resource: goal})
	link("Entrance", "Start", "Door")
	link("Vault", "Door", "Goal")
	if shelf {
		add("Vault", "Shelf", &world.PickupLocation{Index: 1, Category: world.CategoryMajor})
		link("Vault", "Door", "Shelf")
	}

	g.SetStartingLocation(nid("Entrance", "Start"))
	g.SetVictoryCondition(requirements.NewResource(goal, 1, false))
	require.NoError(t, g.Freeze())
	return testWorld{graph: g, items: map[string]*resources.Info{"Key": key}}
}

// chainWorld is rooms 0..rooms-1, each holding a major and a minor slot and
// a door to the next room opened by that room's key. The last room after
// them holds the goal. A Curse item, when held, closes the first door.
func chainWorld(t *testing.T, rooms int) testWorld {
	t.Helper()
	db := resources.NewDatabase()
	items := make(map[string]*resources.Info)
	for i := 0; i < rooms; i++ {
		name := fmt.Sprintf("Key%d", i)
		items[name] = db.MustAdd(resources.TypeItem, name, "", 1)
	}
	items["Missile"] = db.MustAdd(resources.TypeItem, "Missile", "", 10)
	items["Curse"] = db.MustAdd(resources.TypeItem, "Curse", "", 1)
	goal := db.MustAdd(resources.TypeEvent, "Goal", "", 1)

	g := world.NewGraph(db, world.WithName("chain"))
	room := func(i int) string { return fmt.Sprintf("Room %d", i) }
	add := func(area, name string, p world.Payload) {
		_, err := g.AddNode(world.NodeSpec{Identifier: nid(area, name), Payload: p})
		require.NoError(t, err)
	}
	hub := func(area, name string, req requirements.Requirement) {
		require.NoError(t, g.Connect(nid(area, "Hub"), nid(area, name), req))
		require.NoError(t, g.Connect(nid(area, name), nid(area, "Hub"), nil))
	}

	for i := 0; i <= rooms; i++ {
		add(room(i), "Hub", world.Generic{})
	}
	for i := 0; i < rooms; i++ {
		req := requirements.Requirement(requirements.NewResource(items[fmt.Sprintf("Key%d", i)], 1, false))
		if i == 0 {
			req = requirements.And{Items: []requirements.Requirement{req, requirements.NewResource(items["Curse"], 1, true)}}
		}
		w, err := g.AddDockWeakness("door", fmt.Sprintf("Door %d", i), req)
		require.NoError(t, err)

		add(room(i), "Major", &world.PickupLocation{Index: world.PickupIndex(2 * i), Category: world.CategoryMajor})
		add(room(i), "Minor", &world.PickupLocation{Index: world.PickupIndex(2*i + 1), Category: world.CategoryMinor})
		add(room(i), "Exit", &world.Dock{DockType: "door", Target: nid(room(i+1), "Entry"), DefaultWeakness: w})
		add(room(i+1), "Entry", &world.Dock{DockType: "door", Target: nid(room(i), "Exit"), DefaultWeakness: w})
		hub(room(i), "Major", nil)
		hub(room(i), "Minor", nil)
		hub(room(i), "Exit", nil)
		hub(room(i+1), "Entry", nil)
	}
	add(room(rooms), "Goal", &world.Event{Resource: goal})
	hub(room(rooms), "Goal", nil)

	g.SetStartingLocation(nid(room(0), "Hub"))
	g.SetVictoryCondition(requirements.NewResource(goal, 1, false))
	require.NoError(t, g.Freeze())
	return testWorld{graph: g, items: items}
}

func chainPool(w testWorld, rooms, missiles int) pickup.Pool {
	var pool pickup.Pool
	for i := 0; i < rooms; i++ {
		pool = append(pool, w.entry(fmt.Sprintf("Key%d", i), world.CategoryMajor))
	}
	missile := w.entry("Missile", world.CategoryMinor)
	for i := 0; i < missiles; i++ {
		pool = append(pool, missile)
	}
	return pool
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func fillOne(t *testing.T, g *world.Graph, pool pickup.Pool, seed uint64, cfg *Config) (*Result, error) {
	t.Helper()
	return Fill(context.Background(), newRNG(seed), []PlayerInput{{Patches: patches.New(g, 0), Pool: pool}}, cfg)
}

func assignedNames(p *patches.GamePatches) map[world.PickupIndex]string {
	out := make(map[world.PickupIndex]string)
	for _, a := range p.Assignments() {
		out[a.Index] = a.Target.Pickup.Name
	}
	return out
}

func TestFill_KeyAtStart(t *testing.T) {
	w := keyWorld(t, false)
	result, err := fillOne(t, w.graph, pickup.Pool{w.entry("Key", world.CategoryMajor)}, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Rounds)
	require.Len(t, result.Placements, 1)
	assert.Equal(t, Placement{Round: 1, Owner: 0, Location: 0, Player: 0, Pickup: "Key", Logical: true}, result.Placements[0])
	assert.True(t, result.Players[0].Victory())
	assert.Empty(t, result.Players[0].PickupsLeft)
}

func TestFill_ChainIsCompletable(t *testing.T) {
	const rooms = 5
	w := chainWorld(t, rooms)

	for seed := uint64(0); seed < 25; seed++ {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			pool := chainPool(w, rooms, 3)
			result, err := fillOne(t, w.graph, pool, seed, nil)
			require.NoError(t, err)
			p := result.Patches()[0]

			// Pool conservation: every pickup placed once, the rest is Nothing.
			counts := make(map[string]int)
			for _, name := range assignedNames(p) {
				counts[name]++
			}
			for i := 0; i < rooms; i++ {
				assert.Equal(t, 1, counts[fmt.Sprintf("Key%d", i)])
			}
			assert.Equal(t, 3, counts["Missile"])
			assert.Equal(t, 2*rooms-rooms-3, counts[pickup.NothingName])
			assert.Equal(t, 2*rooms, p.PickupCount())

			logic, err := resolver.NewLogic(p)
			require.NoError(t, err)
			res, err := resolver.Resolve(context.Background(), logic, nil)
			require.NoError(t, err)
			assert.Equal(t, resolver.OutcomeVictory, res.Outcome)
		})
	}
}

func TestFill_Deterministic(t *testing.T) {
	w := chainWorld(t, 4)
	cfg := DefaultConfig()
	cfg.MultiPickupPlacement = true

	first, err := fillOne(t, w.graph, chainPool(w, 4, 3), 42, cfg)
	require.NoError(t, err)
	second, err := fillOne(t, w.graph, chainPool(w, 4, 3), 42, cfg)
	require.NoError(t, err)

	assert.Equal(t, assignedNames(first.Patches()[0]), assignedNames(second.Patches()[0]))
	assert.Equal(t, first.Placements, second.Placements)
	assert.Equal(t, first.Rounds, second.Rounds)
}

func TestFill_MajorMinorSplit(t *testing.T) {
	w := chainWorld(t, 4)
	cfg := DefaultConfig()
	cfg.Mode = ModeMajorMinor
	cfg.LogicalPlacement = PlacementAll

	for seed := uint64(0); seed < 10; seed++ {
		result, err := fillOne(t, w.graph, chainPool(w, 4, 2), seed, cfg)
		require.NoError(t, err)
		for idx, name := range assignedNames(result.Patches()[0]) {
			switch name {
			case "Missile":
				assert.Equal(t, 1, int(idx)%2, "missile in a major slot")
			case pickup.NothingName:
			default:
				assert.Equal(t, 0, int(idx)%2, "%s in a minor slot", name)
			}
		}
		for _, pl := range result.Placements {
			assert.True(t, pl.Logical)
		}
	}
}

func TestFill_ExcludedLocations(t *testing.T) {
	w := chainWorld(t, 3)
	cfg := DefaultConfig()
	cfg.ExcludedLocations.Put(1)
	cfg.ExcludedLocations.Put(3)

	for seed := uint64(0); seed < 10; seed++ {
		result, err := fillOne(t, w.graph, chainPool(w, 3, 1), seed, cfg)
		require.NoError(t, err)
		names := assignedNames(result.Patches()[0])
		assert.Equal(t, pickup.NothingName, names[1])
		assert.Equal(t, pickup.NothingName, names[3])
	}
}

func TestFill_RejectsRegressingPickup(t *testing.T) {
	w := chainWorld(t, 2)
	curse := w.entry("Curse", world.CategoryMinor)
	pool := pickup.Pool{w.entry("Key1", world.CategoryMajor), curse}

	p := patches.New(w.graph, 0)
	p.AssignPickup(0, patches.Target{Pickup: w.entry("Key0", world.CategoryMajor)})
	f := &filler{cfg: DefaultConfig().withDefaults(), rng: newRNG(1), ages: map[location]float64{}}
	ps, err := newPlayerState(0, PlayerInput{Patches: p, Pool: pool})
	require.NoError(t, err)
	f.players = []*PlayerState{ps}
	f.refreshAll()

	var names []string
	for _, a := range f.pickupActions(ps) {
		names = append(names, a.copies[0].Name)
	}
	assert.Equal(t, []string{"Key1"}, names)

	ev := ps.evaluate(ps.trialPickups(pickup.Pool{curse}))
	assert.True(t, ev.regresses, "holding the curse closes the first door")
}

func TestFill_RequiredProgressionPlacesCopiesTogether(t *testing.T) {
	db := resources.NewDatabase()
	gem := db.MustAdd(resources.TypeItem, "Gem", "", 3)
	goal := db.MustAdd(resources.TypeEvent, "Goal", "", 1)
	g := world.NewGraph(db)
	for i := 0; i < 4; i++ {
		_, err := g.AddNode(world.NodeSpec{Identifier: nid("Hall", fmt.Sprintf("Slot %d", i)), Payload: &world.PickupLocation{Index: world.PickupIndex(i)}})
		require.NoError(t, err)
	}
	_, err := g.AddNode(world.NodeSpec{Identifier: nid("Hall", "Goal"), Payload: &world.Event{Resource: goal}})
	require.NoError(t, err)
	for i := 1; i < 4; i++ {
		require.NoError(t, g.Connect(nid("Hall", "Slot 0"), nid("Hall", fmt.Sprintf("Slot %d", i)), nil))
		require.NoError(t, g.Connect(nid("Hall", fmt.Sprintf("Slot %d", i)), nid("Hall", "Slot 0"), nil))
	}
	require.NoError(t, g.Connect(nid("Hall", "Slot 0"), nid("Hall", "Goal"), requirements.NewResource(gem, 3, false)))
	require.NoError(t, g.Connect(nid("Hall", "Goal"), nid("Hall", "Slot 0"), nil))
	g.SetStartingLocation(nid("Hall", "Slot 0"))
	g.SetVictoryCondition(requirements.NewResource(goal, 1, false))
	require.NoError(t, g.Freeze())

	e := item(gem, world.CategoryMajor)
	e.Params.RequiredProgression = 3
	result, err := fillOne(t, g, pickup.Pool{e, e, e}, 7, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Rounds)
	require.Len(t, result.Placements, 3)
	for _, pl := range result.Placements {
		assert.Equal(t, "Gem", pl.Pickup)
		assert.True(t, pl.Logical)
	}
}

// pitWorld drops one way from Start into Pit (slot 0). Start holds slot 1
// and Goal, next to Start, needs the key. With goalOneWay the goal room has
// no way back either.
func pitWorld(t *testing.T, goalOneWay bool) testWorld {
	t.Helper()
	db := resources.NewDatabase()
	key := db.MustAdd(resources.TypeItem, "Key", "", 1)
	goal := db.MustAdd(resources.TypeEvent, "Goal", "", 1)
	g := world.NewGraph(db, world.WithName("pit"))

	add := func(name string, p world.Payload) {
		_, err := g.AddNode(world.NodeSpec{Identifier: nid("Cave", name), Payload: p})
		require.NoError(t, err)
	}
	add("Start", &world.PickupLocation{Index: 1, Category: world.CategoryMajor})
	add("Pit", &world.PickupLocation{Index: 0, Category: world.CategoryMajor})
	add("Goal", &world.Event{Resource: goal})

	require.NoError(t, g.Connect(nid("Cave", "Start"), nid("Cave", "Pit"), nil))
	require.NoError(t, g.Connect(nid("Cave", "Start"), nid("Cave", "Goal"), requirements.NewResource(key, 1, false)))
	if !goalOneWay {
		require.NoError(t, g.Connect(nid("Cave", "Goal"), nid("Cave", "Start"), nil))
	}
	g.SetStartingLocation(nid("Cave", "Start"))
	g.SetVictoryCondition(requirements.NewResource(goal, 1, false))
	require.NoError(t, g.Freeze())
	return testWorld{graph: g, items: map[string]*resources.Info{"Key": key}}
}

func TestFill_KeyNeverBeyondOneWayDrop(t *testing.T) {
	w := pitWorld(t, false)
	for seed := uint64(0); seed < 50; seed++ {
		result, err := fillOne(t, w.graph, pickup.Pool{w.entry("Key", world.CategoryMajor)}, seed, nil)
		require.NoError(t, err, "seed %d", seed)

		p := result.Patches()[0]
		assert.Equal(t, map[world.PickupIndex]string{0: pickup.NothingName, 1: "Key"}, assignedNames(p), "seed %d", seed)

		logic, err := resolver.NewLogic(p)
		require.NoError(t, err)
		res, err := resolver.Resolve(context.Background(), logic, nil)
		require.NoError(t, err)
		assert.Equal(t, resolver.OutcomeVictory, res.Outcome, "seed %d", seed)
	}
}

func TestFill_PitIsNotCollectedFromStart(t *testing.T) {
	w := pitWorld(t, false)
	p := patches.New(w.graph, 0)
	p.AssignPickup(0, patches.Target{Pickup: w.entry("Key", world.CategoryMajor)})
	ps, err := newPlayerState(0, PlayerInput{Patches: p})
	require.NoError(t, err)
	ps.refresh(nil)

	pit, _ := w.graph.NodeByIdentifier(nid("Cave", "Pit"))
	assert.False(t, ps.State().IsCollected(pit.Index))
	assert.False(t, ps.Victory())
	assert.Equal(t, []world.NodeIndex{pit.Index}, ps.pendingNodes())
	assert.Equal(t, []location{{owner: 0, index: 1, category: world.CategoryMajor}}, ps.emptyLocations(DefaultConfig().withDefaults()))
}

func TestFill_GoalBeyondOneWayDoor(t *testing.T) {
	w := pitWorld(t, true)
	result, err := fillOne(t, w.graph, pickup.Pool{w.entry("Key", world.CategoryMajor)}, 3, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Rounds, "the goal is walked to in a round of its own")
	assert.True(t, result.Players[0].Victory())
	assert.Equal(t, "Key", assignedNames(result.Patches()[0])[1])
}

func TestFill_Failures(t *testing.T) {
	t.Run("no safe action", func(t *testing.T) {
		w := keyWorld(t, true)
		_, err := fillOne(t, w.graph, pickup.Pool{w.entry("Key", world.CategoryMajor)}, 1, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrGenerationFailed))
		var failure *GenerationFailure
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, ReasonNoSafeAction, failure.Reason)
		assert.Equal(t, 0, failure.Player)
		assert.Equal(t, 1, failure.PickupsLeft)
	})

	t.Run("random starting pickup rescues", func(t *testing.T) {
		w := keyWorld(t, true)
		cfg := DefaultConfig()
		cfg.MaxRandomStartingPickups = 1
		result, err := fillOne(t, w.graph, pickup.Pool{w.entry("Key", world.CategoryMajor)}, 1, cfg)
		require.NoError(t, err)
		p := result.Patches()[0]
		require.Len(t, p.StartingPickups, 1)
		assert.Equal(t, "Key", p.StartingPickups[0].Name)
		assert.Equal(t, map[world.PickupIndex]string{1: pickup.NothingName}, assignedNames(p))
	})

	t.Run("pool larger than locations", func(t *testing.T) {
		w := keyWorld(t, false)
		key := w.entry("Key", world.CategoryMajor)
		_, err := fillOne(t, w.graph, pickup.Pool{key, key}, 1, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfiguration))
		assert.False(t, errors.Is(err, ErrGenerationFailed))
	})

	t.Run("major minor overflow", func(t *testing.T) {
		w := chainWorld(t, 2)
		cfg := DefaultConfig()
		cfg.Mode = ModeMajorMinor
		_, err := fillOne(t, w.graph, append(chainPool(w, 2, 0), w.entry("Missile", world.CategoryMajor)), 1, cfg)
		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "pool", cfgErr.Field)
	})

	t.Run("cancelled", func(t *testing.T) {
		w := chainWorld(t, 2)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Fill(ctx, newRNG(1), []PlayerInput{{Patches: patches.New(w.graph, 0), Pool: chainPool(w, 2, 0)}}, nil)
		var failure *GenerationFailure
		require.True(t, errors.As(err, &failure))
		assert.Equal(t, ReasonCancelled, failure.Reason)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestFill_Multiworld(t *testing.T) {
	// Player 0 only has a slot behind its door; player 1 only has one at
	// its start. Player 0's key must go to player 1's start, which then
	// opens player 0's shelf for player 1's key.
	closed := keyWorld(t, true)
	open := keyWorld(t, false)

	for seed := uint64(0); seed < 5; seed++ {
		inputs := []PlayerInput{
			{Patches: patches.New(closed.graph, 0), Pool: pickup.Pool{closed.entry("Key", world.CategoryMajor)}},
			{Patches: patches.New(open.graph, 1), Pool: pickup.Pool{open.entry("Key", world.CategoryMajor)}},
		}
		result, err := Fill(context.Background(), newRNG(seed), inputs, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Rounds)
		for _, ps := range result.Players {
			assert.True(t, ps.Victory(), "player %d", ps.Index)
		}

		target, ok := result.Players[1].Patches.Pickup(0)
		require.True(t, ok)
		assert.Equal(t, 0, target.Player)
		target, ok = result.Players[0].Patches.Pickup(1)
		require.True(t, ok)
		assert.Equal(t, 1, target.Player)
	}
}

func TestConfig_Parse(t *testing.T) {
	m, err := ParseMode("major_minor")
	require.NoError(t, err)
	assert.Equal(t, ModeMajorMinor, m)
	_, err = ParseMode("chaos")
	assert.True(t, errors.Is(err, ErrInvalidConfiguration))

	lp, err := ParseLogicalPlacement("majors")
	require.NoError(t, err)
	assert.Equal(t, PlacementMajors, lp)

	rp, err := ParseResourcePolicy("last_resort")
	require.NoError(t, err)
	assert.Equal(t, PolicyLastResort, rp)

	bad := DefaultConfig()
	bad.MaxRandomStartingPickups = -1
	assert.Error(t, bad.Validate())
}

func TestConfig_NilUsesDefaults(t *testing.T) {
	var cfg *Config
	got := cfg.withDefaults()
	require.NotNil(t, got.Logger)
	assert.Equal(t, 3, got.MaxPickupsPerRound)
	assert.NotNil(t, got.NothingPickup)
	assert.NotNil(t, DefaultConfig().Logger)

	w := keyWorld(t, false)
	assert.NotPanics(t, func() {
		_, err := Fill(context.Background(), newRNG(1), []PlayerInput{{Patches: patches.New(w.graph, 0), Pool: pickup.Pool{w.entry("Key", world.CategoryMajor)}}}, nil)
		assert.NoError(t, err)
	})
}

func TestWeightedIndex(t *testing.T) {
	rng := newRNG(3)
	counts := make([]int, 3)
	for i := 0; i < 3000; i++ {
		counts[weightedIndex(rng, []float64{1, 0, 2})]++
	}
	assert.Zero(t, counts[1])
	assert.Greater(t, counts[2], counts[0])

	for i := 0; i < 10; i++ {
		idx := weightedIndex(rng, []float64{0, 0})
		assert.True(t, idx == 0 || idx == 1)
	}
}
