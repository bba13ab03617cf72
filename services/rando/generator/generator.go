// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/RandoForge/services/rando/filler"
	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/resolver"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// PlayerSpec describes one player's world before any attempt.
type PlayerSpec struct {
	Graph *world.Graph
	Pool  pickup.Pool

	// StartingPickups are granted before filling.
	StartingPickups pickup.Pool

	// StartingResources are added to the start, typically trick levels.
	StartingResources resources.Gain

	// Prepare customizes the fresh patches of every attempt. Optional.
	Prepare func(p *patches.GamePatches)
}

// Input is everything one generation needs.
type Input struct {
	Game string

	// Fingerprint identifies the configuration for caching. Empty disables
	// the layout cache.
	Fingerprint string

	Players []PlayerSpec
	Filler  *filler.Config
}

// LayoutCache stores successful layouts by key.
type LayoutCache interface {
	Get(ctx context.Context, key string) (*patches.Layout, bool, error)
	Put(ctx context.Context, key string, layout *patches.Layout) error
}

// Options configures Generate.
type Options struct {
	// Seed is the base seed number.
	Seed uint64

	// MaxAttempts is the number of attempts before giving up. Default: 10
	MaxAttempts int

	// AttemptTimeout bounds one attempt. Default: 30s
	AttemptTimeout time.Duration

	// Parallelism is the number of attempts run at once. Default: 1
	Parallelism int

	// SkipValidation skips the full resolver run on filled layouts.
	SkipValidation bool

	// Status receives progress messages. Optional.
	Status StatusFunc

	// StatusRate caps Status messages per second. Default: 5
	StatusRate rate.Limit

	// Cache stores and replays layouts. Optional.
	Cache LayoutCache

	// Logger receives attempt logs. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the default generation options.
func DefaultOptions() *Options {
	return &Options{
		MaxAttempts:    10,
		AttemptTimeout: 30 * time.Second,
		Parallelism:    1,
		StatusRate:     5,
	}
}

func (o *Options) withDefaults() *Options {
	d := DefaultOptions()
	if o == nil {
		d.Logger = slog.Default()
		return d
	}
	out := *o
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = d.MaxAttempts
	}
	if out.AttemptTimeout <= 0 {
		out.AttemptTimeout = d.AttemptTimeout
	}
	if out.Parallelism <= 0 {
		out.Parallelism = d.Parallelism
	}
	if out.StatusRate <= 0 {
		out.StatusRate = d.StatusRate
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}

// Result is a successful generation.
type Result struct {
	RunID string

	// Seed is the base seed; AttemptSeed is the derived seed that succeeded.
	Seed        uint64
	AttemptSeed uint64

	// Attempt is the zero-based attempt that succeeded.
	Attempt int

	// Attempts is the number of attempts run, including concurrent ones.
	Attempts int

	Patches []*patches.GamePatches
	Layout  *patches.Layout

	// Fill is nil when the layout came from the cache.
	Fill      *filler.Result
	FromCache bool

	Duration time.Duration
}

type attemptResult struct {
	fill  *filler.Result
	seed  uint64
	err   error
	fatal error
}

// Generate produces a completable layout.
//
// Description:
//
//	Validates the input once, returns a cached layout when available,
//	then runs attempts in batches of Parallelism. Attempt i uses the seed
//	DeriveSeed(Seed, i) and its own patches. Within a batch the lowest
//	successful attempt wins, so the result equals a sequential run. An
//	attempt that fails, times out or panics is logged and retried.
//
// Inputs:
//
//	ctx - Cancellation for the whole generation.
//	in - The worlds, pools and filler configuration.
//	opts - Options. Nil uses DefaultOptions().
//
// Outputs:
//
//	*Result - The successful layout.
//	error - *filler.ConfigurationError for unfillable input,
//	        *ExhaustedError when every attempt failed, ctx.Err() wrapped
//	        on cancellation, or a world error.
func Generate(ctx context.Context, in *Input, opts *Options) (*Result, error) {
	opts = opts.withDefaults()
	if in == nil || len(in.Players) == 0 {
		return nil, ErrNoPlayers
	}

	runID := uuid.NewString()
	logger := opts.Logger.With(
		slog.String("component", "generator"),
		slog.String("run_id", runID),
		slog.String("game", in.Game),
	)
	ctx, span := tracer.Start(ctx, "generator.Generate",
		trace.WithAttributes(
			attribute.String("rando.run_id", runID),
			attribute.String("rando.game", in.Game),
			attribute.Int64("rando.seed", int64(opts.Seed)),
			attribute.Int("rando.players", len(in.Players)),
		),
	)
	defer span.End()
	start := time.Now()
	st := newStatus(opts.Status, opts.StatusRate)

	if err := filler.ValidateInputs(in.prepare(), in.Filler); err != nil {
		generationsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}

	key := in.cacheKey(opts.Seed)
	if opts.Cache != nil && key != "" {
		if result := in.fromCache(ctx, opts.Cache, key, logger); result != nil {
			result.RunID = runID
			result.Duration = time.Since(start)
			generationsTotal.WithLabelValues(outcomeCached).Inc()
			st.force("Loaded cached layout")
			return result, nil
		}
	}

	st.force(fmt.Sprintf("Generating seed %d", opts.Seed))
	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; {
		if err := ctx.Err(); err != nil {
			generationsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("generation cancelled after %d attempts: %w", attempt, err)
		}

		batch := opts.Parallelism
		if rest := opts.MaxAttempts - attempt; batch > rest {
			batch = rest
		}
		results := make([]attemptResult, batch)
		eg, egCtx := errgroup.WithContext(ctx)
		for i := 0; i < batch; i++ {
			index := attempt + i
			slot := &results[i]
			eg.Go(func() error {
				*slot = in.runAttempt(egCtx, opts, index, logger)
				return slot.fatal
			})
		}
		if err := eg.Wait(); err != nil {
			generationsTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "attempt error")
			return nil, err
		}

		for i, r := range results {
			if r.fill == nil {
				continue
			}
			result := in.success(runID, opts, attempt+i, attempt+batch, r)
			result.Duration = time.Since(start)
			if opts.Cache != nil && key != "" {
				if err := opts.Cache.Put(ctx, key, result.Layout); err != nil {
					logger.Warn("failed to cache layout", slog.String("error", err.Error()))
				}
			}
			generationsTotal.WithLabelValues(outcomeSuccess).Inc()
			span.SetAttributes(attribute.Int("rando.attempt", result.Attempt))
			st.force(fmt.Sprintf("Generated after %d attempts", result.Attempt+1))
			logger.Info("generation finished",
				slog.Int("attempt", result.Attempt),
				slog.Duration("duration", result.Duration),
			)
			return result, nil
		}

		lastErr = results[batch-1].err
		attempt += batch
		st.emit(fmt.Sprintf("Attempt %d of %d failed", attempt, opts.MaxAttempts))
	}

	generationsTotal.WithLabelValues("exhausted").Inc()
	err := &ExhaustedError{Attempts: opts.MaxAttempts, LastError: lastErr}
	span.RecordError(err)
	span.SetStatus(codes.Error, "attempts exhausted")
	st.force(err.Error())
	return nil, err
}

// runAttempt runs one isolated fill and validates it.
func (in *Input) runAttempt(ctx context.Context, opts *Options, index int, logger *slog.Logger) (ar attemptResult) {
	seed := DeriveSeed(opts.Seed, index)
	ctx, cancel := context.WithTimeout(ctx, opts.AttemptTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "generator.attempt",
		trace.WithAttributes(attribute.Int("rando.attempt", index)),
	)
	defer span.End()

	logger = logger.With(slog.Int("attempt", index))
	logger.Info("attempt started", slog.Uint64("seed", seed))
	start := time.Now()
	outcome := outcomeFailure

	defer func() {
		if r := recover(); r != nil {
			outcome = outcomePanic
			ar = attemptResult{seed: seed, err: fmt.Errorf("attempt %d panicked: %v", index, r)}
		}
		duration := time.Since(start)
		attemptsTotal.WithLabelValues(outcome).Inc()
		attemptDuration.WithLabelValues(outcome).Observe(duration.Seconds())
		span.SetAttributes(attribute.String("rando.outcome", outcome))
		if ar.fill == nil {
			errText := ""
			if err := ar.err; err != nil {
				errText = err.Error()
			} else if ar.fatal != nil {
				errText = ar.fatal.Error()
			}
			logger.Warn("attempt failed",
				slog.String("outcome", outcome),
				slog.String("error", errText),
				slog.Duration("duration", duration),
			)
			return
		}
		logger.Info("attempt succeeded", slog.Duration("duration", duration))
	}()

	fill, err := filler.Fill(ctx, NewRNG(seed), in.prepare(), in.Filler)
	if err != nil {
		if !errors.Is(err, filler.ErrGenerationFailed) {
			outcome = outcomeInvalid
			return attemptResult{seed: seed, fatal: err}
		}
		if ctx.Err() != nil {
			outcome = outcomeTimeout
		}
		return attemptResult{seed: seed, err: err}
	}
	if !opts.SkipValidation {
		if err := validate(ctx, fill); err != nil {
			if ctx.Err() != nil {
				outcome = outcomeTimeout
			}
			return attemptResult{seed: seed, err: err}
		}
	}
	outcome = outcomeSuccess
	return attemptResult{seed: seed, fill: fill}
}

// validate confirms the filled worlds are completable.
//
// A single world is checked with the full resolver. Multiworld layouts
// depend on pickups crossing worlds, which the resolver does not model, so
// they are accepted when the filler's final reach of every player
// satisfies victory.
func validate(ctx context.Context, fill *filler.Result) error {
	if len(fill.Players) > 1 {
		for _, ps := range fill.Players {
			if !ps.Victory() {
				return &filler.GenerationFailure{Reason: filler.ReasonValidationFailed, Player: ps.Index}
			}
		}
		return nil
	}

	p := fill.Players[0].Patches
	logic, err := resolver.NewLogic(p)
	if err != nil {
		return err
	}
	result, err := resolver.Resolve(ctx, logic, &resolver.Config{})
	if err != nil {
		return &filler.GenerationFailure{Reason: filler.ReasonCancelled, Player: 0, Cause: err}
	}
	if result.Outcome != resolver.OutcomeVictory {
		return &filler.GenerationFailure{Reason: filler.ReasonValidationFailed, Player: 0}
	}
	return nil
}

// NewPatches returns empty patches for the spec with its starting
// resources, starting pickups and Prepare applied.
func (spec PlayerSpec) NewPatches(player int) *patches.GamePatches {
	p := patches.New(spec.Graph, player)
	p.StartingResources.AddGain(spec.StartingResources)
	for _, e := range spec.StartingPickups {
		p.AddStartingPickup(e)
	}
	if spec.Prepare != nil {
		spec.Prepare(p)
	}
	return p
}

// prepare builds fresh patches for every player.
func (in *Input) prepare() []filler.PlayerInput {
	out := make([]filler.PlayerInput, len(in.Players))
	for i, spec := range in.Players {
		out[i] = filler.PlayerInput{Patches: spec.NewPatches(i), Pool: spec.Pool}
	}
	return out
}

func (in *Input) success(runID string, opts *Options, attempt, attempts int, r attemptResult) *Result {
	ps := r.fill.Patches()
	return &Result{
		RunID:       runID,
		Seed:        opts.Seed,
		AttemptSeed: r.seed,
		Attempt:     attempt,
		Attempts:    attempts,
		Patches:     ps,
		Layout:      in.layout(runID, opts.Seed, attempt, ps),
		Fill:        r.fill,
	}
}

func (in *Input) layout(runID string, seed uint64, attempt int, ps []*patches.GamePatches) *patches.Layout {
	l := &patches.Layout{RunID: runID, Game: in.Game, Seed: seed, Attempt: attempt}
	for _, p := range ps {
		l.Players = append(l.Players, p.Export())
	}
	return l
}

func (in *Input) cacheKey(seed uint64) string {
	if in.Fingerprint == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%d", in.Game, in.Fingerprint, seed)
}

// catalog indexes every pickup a layout of this input can name.
func (in *Input) catalog() patches.Catalog {
	nothing := pickup.NewNothing()
	if in.Filler != nil && in.Filler.NothingPickup != nil {
		nothing = in.Filler.NothingPickup
	}
	c := make(patches.Catalog, len(in.Players))
	for i, spec := range in.Players {
		names := map[string]*pickup.Entry{nothing.Name: nothing}
		for _, e := range spec.Pool {
			names[e.Name] = e
		}
		for _, e := range spec.StartingPickups {
			names[e.Name] = e
		}
		c[i] = names
	}
	return c
}

// Restore rebuilds the patches of every player from an exported layout.
//
// Description:
//
//	Each player's layout is matched against the graph and pools of the
//	same player in the Input. Starting resources and Prepare are applied
//	again, since neither is part of the layout.
//
// Outputs:
//
//	[]*patches.GamePatches - One per player, in player order.
//	error - patches.ErrLayoutMismatch when the layout was made for other input.
func (in *Input) Restore(layout *patches.Layout) ([]*patches.GamePatches, error) {
	if layout == nil || len(layout.Players) != len(in.Players) {
		return nil, fmt.Errorf("%w: layout has a different player count", patches.ErrLayoutMismatch)
	}
	catalog := in.catalog()
	out := make([]*patches.GamePatches, len(layout.Players))
	for i, pl := range layout.Players {
		if pl.Player != i {
			return nil, fmt.Errorf("%w: player %d listed at position %d", patches.ErrLayoutMismatch, pl.Player, i)
		}
		spec := in.Players[i]
		p, err := patches.FromLayout(spec.Graph, pl, catalog)
		if err != nil {
			return nil, err
		}
		p.StartingResources.AddGain(spec.StartingResources)
		if spec.Prepare != nil {
			spec.Prepare(p)
		}
		out[i] = p
	}
	return out, nil
}

// fromCache rebuilds a cached layout. A miss or a broken entry returns nil.
func (in *Input) fromCache(ctx context.Context, cache LayoutCache, key string, logger *slog.Logger) *Result {
	layout, ok, err := cache.Get(ctx, key)
	if err != nil {
		logger.Warn("layout cache read failed", slog.String("error", err.Error()))
		return nil
	}
	if !ok {
		return nil
	}
	out, err := in.Restore(layout)
	if err != nil {
		logger.Warn("cached layout does not match input",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &Result{
		Seed:      layout.Seed,
		Attempt:   layout.Attempt,
		Patches:   out,
		Layout:    layout,
		FromCache: true,
	}
}

// DeriveSeed returns the seed of attempt number attempt, mixed with
// SplitMix64 so neighbouring attempts get unrelated streams.
func DeriveSeed(base uint64, attempt int) uint64 {
	z := base + uint64(attempt+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// NewRNG returns the attempt RNG for seed.
func NewRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xda942042e4dd58b5))
}
