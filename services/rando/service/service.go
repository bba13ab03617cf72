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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/RandoForge/pkg/validation"
	"github.com/AleutianAI/RandoForge/services/rando/generator"
	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/preset"
	"github.com/AleutianAI/RandoForge/services/rando/resolver"
	"github.com/AleutianAI/RandoForge/services/rando/world"
	"github.com/AleutianAI/RandoForge/services/rando/worldio"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// MaxConcurrent bounds the generations running at once.
	// Default: 2
	MaxConcurrent int64

	// MaxPlayers bounds the players of one request.
	// Default: 8
	MaxPlayers int

	// GenerateTimeout bounds one Generate call, including the wait for a
	// slot.
	// Default: 5 minutes
	GenerateTimeout time.Duration

	// Logger is the base logger. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxConcurrent:   2,
		MaxPlayers:      8,
		GenerateTimeout: 5 * time.Minute,
	}
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	d := DefaultServiceConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = d.MaxPlayers
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = d.GenerateTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// worldSource is a registered world kept as YAML.
type worldSource struct {
	summary WorldSummary
	data    []byte
}

// Service owns the world catalog and the layout cache.
type Service struct {
	config ServiceConfig
	cache  generator.LayoutCache
	logger *slog.Logger
	slots  *semaphore.Weighted
	flight singleflight.Group

	mu     sync.RWMutex
	worlds map[string]*worldSource
}

// NewService creates a Service.
//
// Inputs:
//
//	config - Service configuration. Zero fields take defaults.
//	cache - Layout cache for generation. May be nil.
//
// Outputs:
//
//	*Service - A service with an empty world catalog.
func NewService(config ServiceConfig, cache generator.LayoutCache) *Service {
	config = config.withDefaults()
	return &Service{
		config: config,
		cache:  cache,
		logger: config.Logger.With(slog.String("component", "service")),
		slots:  semaphore.NewWeighted(config.MaxConcurrent),
		worlds: make(map[string]*worldSource),
	}
}

// -----------------------------------------------------------------------------
// World catalog
// -----------------------------------------------------------------------------

// AddWorld registers a world under name. An empty name uses the game name.
//
// Outputs:
//
//	WorldSummary - The registered world.
//	error - A worldio error for a broken world, or ErrDuplicateWorld.
func (s *Service) AddWorld(name string, data []byte) (WorldSummary, error) {
	return s.register(name, data, false)
}

// PutWorld registers a world under name, replacing any world already
// registered there. Requests in flight keep the world they started with.
func (s *Service) PutWorld(name string, data []byte) (WorldSummary, error) {
	return s.register(name, data, true)
}

// RemoveWorld unregisters name and reports whether it was registered.
func (s *Service) RemoveWorld(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.worlds[name]; !ok {
		return false
	}
	delete(s.worlds, name)
	s.logger.Info("world removed", slog.String("world", name))
	return true
}

func (s *Service) register(name string, data []byte, replace bool) (WorldSummary, error) {
	w, err := worldio.Parse(data)
	if err != nil {
		return WorldSummary{}, err
	}
	if name == "" {
		name = w.Game
	}
	if name, err = validation.SanitizeName(name); err != nil {
		return WorldSummary{}, fmt.Errorf("registering world: %w", err)
	}
	sum := sha256.Sum256(data)
	summary := WorldSummary{
		Name:            name,
		Game:            w.Game,
		Digest:          hex.EncodeToString(sum[:8]),
		Nodes:           len(w.Graph.Nodes()),
		PickupLocations: len(w.Graph.PickupNodes()),
		PoolSize:        len(w.Pool),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.worlds[name]; ok && !replace {
		return WorldSummary{}, fmt.Errorf("%w: %s", ErrDuplicateWorld, name)
	}
	s.worlds[name] = &worldSource{summary: summary, data: data}
	s.logger.Info("world registered",
		slog.String("world", name),
		slog.String("game", w.Game),
		slog.String("digest", summary.Digest),
		slog.Int("pickup_locations", summary.PickupLocations),
	)
	return summary, nil
}

// LoadWorldFile registers the world file at path, named by its file name
// without extension.
func (s *Service) LoadWorldFile(path string) (WorldSummary, error) {
	return s.loadWorldFile(path, false)
}

func (s *Service) loadWorldFile(path string, replace bool) (WorldSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return WorldSummary{}, fmt.Errorf("opening world: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, worldio.MaxWorldBytes+1))
	if err != nil {
		return WorldSummary{}, fmt.Errorf("reading world %s: %w", path, err)
	}
	summary, err := s.register(worldName(path), data, replace)
	if err != nil {
		return WorldSummary{}, fmt.Errorf("world %s: %w", path, err)
	}
	return summary, nil
}

// worldName is the file name of path without its extension.
func worldName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// isWorldFile reports whether path has a world file extension.
func isWorldFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// LoadWorldDir registers every .yaml and .yml file in dir, in name order.
func (s *Service) LoadWorldDir(dir string) ([]WorldSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading world dir: %w", err)
	}
	var out []WorldSummary
	for _, e := range entries {
		if e.IsDir() || !isWorldFile(e.Name()) {
			continue
		}
		summary, err := s.LoadWorldFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// Worlds returns the registered worlds sorted by name.
func (s *Service) Worlds() []WorldSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WorldSummary, 0, len(s.worlds))
	for _, w := range s.worlds {
		out = append(out, w.summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) source(name string) (*worldSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.worlds[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorld, name)
	}
	return w, nil
}

// -----------------------------------------------------------------------------
// Input construction
// -----------------------------------------------------------------------------

// request is a generator input built from fresh world copies.
type request struct {
	input  *generator.Input
	preset *preset.Preset
}

// build parses a fresh copy of every requested world and applies its preset.
func (s *Service) build(players []PlayerRequest) (*request, error) {
	if len(players) == 0 {
		return nil, generator.ErrNoPlayers
	}
	if len(players) > s.config.MaxPlayers {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyPlayers, len(players), s.config.MaxPlayers)
	}

	in := &generator.Input{Players: make([]generator.PlayerSpec, len(players))}
	var first *preset.Preset
	games := make([]string, len(players))
	parts := make([]string, len(players))
	for i, pr := range players {
		src, err := s.source(pr.World)
		if err != nil {
			return nil, err
		}
		w, err := worldio.Parse(src.data)
		if err != nil {
			return nil, fmt.Errorf("world %s: %w", pr.World, err)
		}
		p := preset.Default()
		if strings.TrimSpace(pr.Preset) != "" {
			if p, err = preset.Parse([]byte(pr.Preset)); err != nil {
				return nil, fmt.Errorf("player %d preset: %w", i, err)
			}
		}
		spec, err := p.PlayerSpec(w.Graph, w.Pool)
		if err != nil {
			return nil, fmt.Errorf("player %d: %w", i, err)
		}
		if i == 0 {
			first = p
			if in.Filler, err = p.FillerConfig(w.Graph, s.logger); err != nil {
				return nil, fmt.Errorf("player %d: %w", i, err)
			}
		}
		in.Players[i] = spec
		games[i] = w.Game
		parts[i] = src.summary.Digest + "/" + p.Fingerprint()
	}
	in.Game = strings.Join(games, "+")
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	in.Fingerprint = hex.EncodeToString(sum[:8])
	return &request{input: in, preset: first}, nil
}

// -----------------------------------------------------------------------------
// Operations
// -----------------------------------------------------------------------------

// Generate creates a layout.
//
// Description:
//
//	Builds the generator input, waits for a generation slot and runs the
//	generator with the first player's generation settings. Seeded
//	requests that are identical to one already running wait for it and
//	share its result; status messages only reach the first caller.
//	Single-player layouts come with a playthrough.
//
// Inputs:
//
//	ctx - Cancellation and deadline.
//	req - The players and seed.
//	status - Receives progress messages. May be nil.
//
// Outputs:
//
//	*GenerateResponse - The layout.
//	error - ErrUnknownWorld, ErrTooManyPlayers, preset or world errors,
//	        or a generator error.
func (s *Service) Generate(ctx context.Context, req *GenerateRequest, status generator.StatusFunc) (*GenerateResponse, error) {
	b, err := s.build(req.Players)
	if err != nil {
		return nil, err
	}

	seed := rand.Uint64()
	if req.Seed != nil {
		seed = *req.Seed
	}
	key := fmt.Sprintf("%s:%s:%d", b.input.Game, b.input.Fingerprint, seed)

	run := func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, s.config.GenerateTimeout)
		defer cancel()
		if err := s.slots.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("waiting for a generation slot: %w", err)
		}
		defer s.slots.Release(1)
		return s.generate(ctx, b, seed, key, status)
	}
	if req.Seed == nil {
		v, err := run()
		if err != nil {
			return nil, err
		}
		return v.(*GenerateResponse), nil
	}

	v, err, shared := s.flight.Do(key, run)
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("generation shared", slog.String("cache_key", key))
	}
	return v.(*GenerateResponse), nil
}

func (s *Service) generate(ctx context.Context, b *request, seed uint64, key string, status generator.StatusFunc) (*GenerateResponse, error) {
	opts := b.preset.Options(seed)
	opts.Status = status
	opts.Cache = s.cache
	opts.Logger = s.logger

	result, err := generator.Generate(ctx, b.input, opts)
	if err != nil {
		return nil, err
	}
	resp := &GenerateResponse{
		RunID:      result.RunID,
		Seed:       result.Seed,
		Attempt:    result.Attempt,
		Attempts:   result.Attempts,
		FromCache:  result.FromCache,
		CacheKey:   key,
		DurationMS: result.Duration.Milliseconds(),
		Layout:     result.Layout,
	}
	if len(result.Patches) == 1 {
		res, err := resolve(ctx, result.Patches[0])
		if err != nil {
			return nil, err
		}
		resp.Playthrough = res.playthrough
	}
	return resp, nil
}

// Verify checks that a single-player layout can be completed.
func (s *Service) Verify(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	if len(req.Players) > 1 {
		return nil, ErrMultiworldVerify
	}
	b, err := s.build(req.Players)
	if err != nil {
		return nil, err
	}
	restored, err := b.input.Restore(req.Layout)
	if err != nil {
		return nil, err
	}
	res, err := resolve(ctx, restored[0])
	if err != nil {
		return nil, err
	}
	s.logger.Info("layout verified",
		slog.Bool("completable", res.result.Outcome == resolver.OutcomeVictory),
		slog.Int("explored", res.result.Explored),
	)
	return &VerifyResponse{
		Completable: res.result.Outcome == resolver.OutcomeVictory,
		Explored:    res.result.Explored,
		DurationMS:  res.result.Duration.Milliseconds(),
		Playthrough: res.playthrough,
	}, nil
}

// Reach reports what the player can access from the starting location
// with the starting items, before any pickup is placed.
func (s *Service) Reach(ctx context.Context, req *ReachRequest) (*ReachResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := s.build([]PlayerRequest{req.Player})
	if err != nil {
		return nil, err
	}
	p := b.input.Players[0].NewPatches(0)
	logic, err := resolver.NewLogic(p)
	if err != nil {
		return nil, err
	}
	reach := resolver.CalculateReach(logic.StartState())

	g := p.Graph()
	resp := &ReachResponse{
		Nodes:       make([]ReachNode, 0, reach.Len()),
		Collectable: []world.NodeIdentifier{},
		Victory:     reach.Victory(),
	}
	for _, n := range reach.Nodes() {
		resp.Nodes = append(resp.Nodes, ReachNode{Node: g.Node(n).Identifier, Energy: reach.EnergyAt(n)})
	}
	for _, n := range reach.CollectableNodes() {
		resp.Collectable = append(resp.Collectable, g.Node(n).Identifier)
	}
	return resp, nil
}

// Layout returns a stored layout by cache key.
func (s *Service) Layout(ctx context.Context, key string) (*patches.Layout, error) {
	if s.cache == nil {
		return nil, ErrNoLayoutStore
	}
	if err := validation.ValidateKey(key); err != nil {
		return nil, err
	}
	l, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLayoutNotFound, key)
	}
	return l, nil
}

// resolution is a resolver result with its rendered playthrough.
type resolution struct {
	result      *resolver.Result
	playthrough []PlaythroughStep
}

func resolve(ctx context.Context, p *patches.GamePatches) (*resolution, error) {
	logic, err := resolver.NewLogic(p)
	if err != nil {
		return nil, err
	}
	result, err := resolver.Resolve(ctx, logic, &resolver.Config{})
	if err != nil {
		return nil, err
	}
	g := p.Graph()
	steps := make([]PlaythroughStep, 0, len(result.Path))
	for _, st := range result.Path {
		step := PlaythroughStep{Action: st.Kind.String(), Node: g.Node(st.Node).Identifier}
		if st.Pickup != nil {
			step.Pickup = st.Pickup.Name
		}
		steps = append(steps, step)
	}
	return &resolution{result: result, playthrough: steps}, nil
}
