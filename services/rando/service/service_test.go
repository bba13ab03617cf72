// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/RandoForge/pkg/validation"
	"github.com/AleutianAI/RandoForge/services/rando/generator"
	"github.com/AleutianAI/RandoForge/services/rando/layoutstore"
	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/preset"
	"github.com/AleutianAI/RandoForge/services/rando/world"
	"github.com/AleutianAI/RandoForge/services/rando/worldio"
)

// chainWorld has one open slot and one behind a key. Boots win.
const chainWorld = `
game: Chain
resources:
  items: [{short: Key}, {short: Boots}]
starting_location: {region: R, area: A, node: Start}
victory: {item: Boots}
regions:
  - name: R
    areas:
      - name: A
        nodes:
          - {name: Start}
          - {name: Near, pickup: {}}
          - {name: Far, pickup: {}}
        connections:
          - {from: Start, to: Near, both: true}
          - {from: Start, to: Far, requirement: {item: Key}}
          - {from: Far, to: Start}
pickups:
  - name: Key
    progression: [{gain: [{item: Key, amount: 1}]}]
  - name: Boots
    progression: [{gain: [{item: Boots, amount: 1}]}]
`

// tinyWorld has a single open slot holding the winning key.
const tinyWorld = `
game: Tiny
resources:
  items: [{short: Key}]
starting_location: {region: R, area: A, node: Start}
victory: {item: Key}
regions:
  - name: R
    areas:
      - name: A
        nodes:
          - {name: Start}
          - {name: Slot, pickup: {}}
        connections:
          - {from: Start, to: Slot, both: true}
pickups:
  - name: Key
    progression: [{gain: [{item: Key, amount: 1}]}]
`

func node(name string) world.NodeIdentifier {
	return world.NodeIdentifier{Region: "R", Area: "A", Node: name}
}

func seed(v uint64) *uint64 { return &v }

func newTestService(t *testing.T, cache generator.LayoutCache) *Service {
	t.Helper()
	svc := NewService(ServiceConfig{}, cache)
	_, err := svc.AddWorld("chain", []byte(chainWorld))
	require.NoError(t, err)
	_, err = svc.AddWorld("", []byte(tinyWorld))
	require.NoError(t, err)
	return svc
}

func openStore(t *testing.T) *layoutstore.Store {
	t.Helper()
	s, err := layoutstore.Open(layoutstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestService_Worlds(t *testing.T) {
	svc := newTestService(t, nil)

	worlds := svc.Worlds()
	require.Len(t, worlds, 2)
	assert.Equal(t, "Tiny", worlds[0].Name)
	assert.Equal(t, "chain", worlds[1].Name)
	assert.Equal(t, "Chain", worlds[1].Game)
	assert.Equal(t, 3, worlds[1].Nodes)
	assert.Equal(t, 2, worlds[1].PickupLocations)
	assert.Equal(t, 2, worlds[1].PoolSize)
	assert.Len(t, worlds[1].Digest, 16)

	_, err := svc.AddWorld("chain", []byte(chainWorld))
	assert.ErrorIs(t, err, ErrDuplicateWorld)

	_, err = svc.AddWorld("broken", []byte("game: [unclosed"))
	assert.ErrorIs(t, err, worldio.ErrInvalidWorld)

	_, err = svc.AddWorld("../chain", []byte(chainWorld))
	assert.ErrorIs(t, err, validation.ErrInvalidName)

	summary, err := svc.AddWorld("  padded  ", []byte(chainWorld))
	require.NoError(t, err)
	assert.Equal(t, "padded", summary.Name)
}

func TestService_LoadWorldDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chain.yaml"), []byte(chainWorld), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.yml"), []byte(tinyWorld), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0600))

	svc := NewService(ServiceConfig{}, nil)
	loaded, err := svc.LoadWorldDir(dir)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "chain", loaded[0].Name)
	assert.Equal(t, "tiny", loaded[1].Name)

	summary, err := svc.LoadWorldFile("../worldio/testdata/sample_world.yaml")
	require.NoError(t, err)
	assert.Equal(t, "sample_world", summary.Name)
	assert.Equal(t, "Sample", summary.Game)
}

func TestService_Generate(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Generate(context.Background(), &GenerateRequest{
		Players: []PlayerRequest{{World: "chain"}},
		Seed:    seed(7),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(7), resp.Seed)
	assert.False(t, resp.FromCache)
	assert.Contains(t, resp.CacheKey, "Chain:")
	assert.Contains(t, resp.CacheKey, ":7")
	require.Len(t, resp.Layout.Players, 1)
	assert.Len(t, resp.Layout.Players[0].Locations, 2)

	require.NotEmpty(t, resp.Playthrough)
	last := resp.Playthrough[len(resp.Playthrough)-1]
	assert.Equal(t, "collect", last.Action)
	assert.Equal(t, "Boots", last.Pickup)

	again, err := svc.Generate(context.Background(), &GenerateRequest{
		Players: []PlayerRequest{{World: "chain"}},
		Seed:    seed(7),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, resp.Layout.Players, again.Layout.Players)
}

func TestService_GeneratePresetChangesKey(t *testing.T) {
	svc := newTestService(t, nil)
	players := func(p string) []PlayerRequest { return []PlayerRequest{{World: "chain", Preset: p}} }

	a, err := svc.Generate(context.Background(), &GenerateRequest{Players: players(""), Seed: seed(1)}, nil)
	require.NoError(t, err)
	b, err := svc.Generate(context.Background(), &GenerateRequest{Players: players("victory_weight: 3\n"), Seed: seed(1)}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, a.CacheKey, b.CacheKey)

	named, err := svc.Generate(context.Background(), &GenerateRequest{Players: players("name: Renamed\n"), Seed: seed(1)}, nil)
	require.NoError(t, err)
	assert.Equal(t, a.CacheKey, named.CacheKey)
}

func TestService_GenerateErrors(t *testing.T) {
	svc := NewService(ServiceConfig{MaxPlayers: 1}, nil)
	_, err := svc.AddWorld("tiny", []byte(tinyWorld))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Generate(ctx, &GenerateRequest{Players: []PlayerRequest{{World: "missing"}}}, nil)
	assert.ErrorIs(t, err, ErrUnknownWorld)

	_, err = svc.Generate(ctx, &GenerateRequest{}, nil)
	assert.ErrorIs(t, err, generator.ErrNoPlayers)

	_, err = svc.Generate(ctx, &GenerateRequest{Players: []PlayerRequest{{World: "tiny"}, {World: "tiny"}}}, nil)
	assert.ErrorIs(t, err, ErrTooManyPlayers)

	_, err = svc.Generate(ctx, &GenerateRequest{Players: []PlayerRequest{{World: "tiny", Preset: "mode: chaos\n"}}}, nil)
	assert.ErrorIs(t, err, preset.ErrInvalidPreset)

	_, err = svc.Generate(ctx, &GenerateRequest{Players: []PlayerRequest{{World: "tiny", Preset: "starting_pickups: [Boots]\n"}}}, nil)
	assert.ErrorIs(t, err, preset.ErrUnknownName)
}

func TestService_GenerateMultiworld(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Generate(context.Background(), &GenerateRequest{
		Players: []PlayerRequest{{World: "Tiny"}, {World: "Tiny"}},
		Seed:    seed(3),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Tiny+Tiny", resp.Layout.Game)
	assert.Len(t, resp.Layout.Players, 2)
	assert.Empty(t, resp.Playthrough)
}

func TestService_GenerateCachedAndShared(t *testing.T) {
	store := openStore(t)
	svc := newTestService(t, store)
	req := &GenerateRequest{Players: []PlayerRequest{{World: "chain"}}, Seed: seed(21)}

	var wg sync.WaitGroup
	results := make([]*GenerateResponse, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Generate(context.Background(), req, nil)
			assert.NoError(t, err)
			results[i] = resp
		}()
	}
	wg.Wait()
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, results[0].Layout.Players, r.Layout.Players)
	}

	cached, err := svc.Generate(context.Background(), req, nil)
	require.NoError(t, err)
	assert.True(t, cached.FromCache)
	assert.NotEmpty(t, cached.Playthrough)

	stored, err := svc.Layout(context.Background(), cached.CacheKey)
	require.NoError(t, err)
	assert.Equal(t, cached.Layout.Players, stored.Players)

	_, err = svc.Layout(context.Background(), "Chain:none:0")
	assert.ErrorIs(t, err, ErrLayoutNotFound)

	_, err = svc.Layout(context.Background(), "Chain\n:0")
	assert.ErrorIs(t, err, validation.ErrInvalidKey)

	_, err = NewService(ServiceConfig{}, nil).Layout(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoLayoutStore)
}

func TestService_GenerateStatus(t *testing.T) {
	svc := newTestService(t, nil)
	var messages []string
	_, err := svc.Generate(context.Background(), &GenerateRequest{
		Players: []PlayerRequest{{World: "chain"}},
		Seed:    seed(5),
	}, func(m string) { messages = append(messages, m) })
	require.NoError(t, err)
	require.NotEmpty(t, messages)
	assert.Equal(t, "Generating seed 5", messages[0])
}

func TestService_Verify(t *testing.T) {
	svc := newTestService(t, nil)
	players := []PlayerRequest{{World: "chain"}}

	gen, err := svc.Generate(context.Background(), &GenerateRequest{Players: players, Seed: seed(9)}, nil)
	require.NoError(t, err)

	ok, err := svc.Verify(context.Background(), &VerifyRequest{Players: players, Layout: gen.Layout})
	require.NoError(t, err)
	assert.True(t, ok.Completable)
	assert.Equal(t, gen.Playthrough, ok.Playthrough)

	stuck := &patches.Layout{
		Game: "Chain",
		Players: []patches.PlayerLayout{{
			StartingLocation: node("Start"),
			Locations: []patches.LocationLayout{
				{Index: 0, Node: node("Near"), Pickup: "Key"},
				{Index: 1, Node: node("Far"), Pickup: pickup.NothingName},
			},
		}},
	}
	bad, err := svc.Verify(context.Background(), &VerifyRequest{Players: players, Layout: stuck})
	require.NoError(t, err)
	assert.False(t, bad.Completable)
	assert.Empty(t, bad.Playthrough)

	stuck.Players[0].Locations[0].Pickup = "Hammer"
	_, err = svc.Verify(context.Background(), &VerifyRequest{Players: players, Layout: stuck})
	assert.ErrorIs(t, err, patches.ErrLayoutMismatch)

	_, err = svc.Verify(context.Background(), &VerifyRequest{Players: append(players, players...), Layout: gen.Layout})
	assert.ErrorIs(t, err, ErrMultiworldVerify)
}

func TestService_Reach(t *testing.T) {
	svc := newTestService(t, nil)

	resp, err := svc.Reach(context.Background(), &ReachRequest{Player: PlayerRequest{World: "chain"}})
	require.NoError(t, err)
	assert.False(t, resp.Victory)

	var reached []world.NodeIdentifier
	for _, n := range resp.Nodes {
		reached = append(reached, n.Node)
		assert.Positive(t, n.Energy)
	}
	assert.ElementsMatch(t, []world.NodeIdentifier{node("Start"), node("Near")}, reached)
	assert.Equal(t, []world.NodeIdentifier{node("Near")}, resp.Collectable)

	withKey, err := svc.Reach(context.Background(), &ReachRequest{
		Player: PlayerRequest{World: "chain", Preset: "starting_pickups: [Key]\n"},
	})
	require.NoError(t, err)
	assert.Len(t, withKey.Nodes, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Reach(ctx, &ReachRequest{Player: PlayerRequest{World: "chain"}})
	assert.ErrorIs(t, err, context.Canceled)
}
