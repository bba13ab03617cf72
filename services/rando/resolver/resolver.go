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
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/zyedidia/generic/mapset"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// Outcome is the conclusive result of a resolve.
type Outcome int

const (
	// OutcomeImpossible means every branch was exhausted without victory.
	OutcomeImpossible Outcome = iota

	// OutcomeVictory means a state satisfying the victory condition exists.
	OutcomeVictory
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeImpossible:
		return "impossible"
	case OutcomeVictory:
		return "victory"
	default:
		return "unknown"
	}
}

// Config configures Resolve.
type Config struct {
	// RecordRoutes stores the walked route in every Step.
	// Default: true
	RecordRoutes bool

	// Logger receives Debug diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default resolver configuration.
func DefaultConfig() *Config {
	return &Config{RecordRoutes: true}
}

// Result is the outcome of Resolve.
type Result struct {
	Outcome Outcome

	// State is the victorious state. Nil for OutcomeImpossible.
	State *State

	// Path is the action sequence leading to State.
	Path []Step

	// Explored is the number of distinct states expanded.
	Explored int

	Duration time.Duration
}

// action is one branch of a frame.
type action struct {
	node       world.NodeIndex
	energy     int
	difficulty int
	route      []world.NodeIndex
}

// frame is one level of the explicit search stack.
type frame struct {
	state   *State
	actions []action
	next    int
}

type search struct {
	logic   *Logic
	cfg     *Config
	reacher *Reacher
	memo    mapset.Set[uint64]
	logger  *slog.Logger
}

// Resolve searches for a sequence of actions reaching victory.
//
// Description:
//
//	Depth-first search over collect/trigger actions. At every state the
//	reach is computed; a reachable collectible node is taken without
//	branching when its gain is not dangerous and the player can walk back
//	to where they stood after collecting it. Nodes behind one-way paths
//	are always branched on. The remaining actions are tried in
//	(difficulty, node index) order. States are memoized by signature so
//	equivalent states are never explored twice. The stack is explicit and
//	ctx is checked before every action.
//
// Inputs:
//
//	ctx - Cancellation. A done context ends the search with ErrCancelled.
//	logic - The traversal table of the patched world.
//	cfg - Configuration. Nil uses DefaultConfig().
//
// Outputs:
//
//	*Result - OutcomeVictory with the path, or OutcomeImpossible.
//	error - ErrCancelled wrapping ctx.Err(). Never set for Impossible.
func Resolve(ctx context.Context, logic *Logic, cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, span := tracer.Start(ctx, "resolver.Resolve",
		trace.WithAttributes(
			attribute.String("rando.game", logic.graph.Name()),
			attribute.Int("rando.nodes", logic.graph.NodeCount()),
		),
	)
	defer span.End()
	start := time.Now()

	s := &search{
		logic:   logic,
		cfg:     cfg,
		reacher: NewReacher(logic),
		memo:    mapset.New[uint64](),
		logger:  logger.With(slog.String("component", "resolver")),
	}

	result, err := s.run(ctx)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		recordResolve(ctx, "cancelled", duration, s.memo.Size())
		return nil, err
	}
	result.Duration = duration
	result.Explored = s.memo.Size()

	span.SetAttributes(
		attribute.String("rando.outcome", result.Outcome.String()),
		attribute.Int("rando.explored", result.Explored),
	)
	recordResolve(ctx, result.Outcome.String(), duration, result.Explored)
	s.logger.Debug("resolve finished",
		slog.String("outcome", result.Outcome.String()),
		slog.Int("explored", result.Explored),
		slog.Int("path_length", len(result.Path)),
		slog.Duration("duration", duration),
	)
	return result, nil
}

func (s *search) run(ctx context.Context) (*Result, error) {
	root, won := s.expand(s.logic.StartState())
	if won != nil {
		return s.victory(won), nil
	}
	if root == nil {
		return &Result{Outcome: OutcomeImpossible}, nil
	}

	stack := []*frame{root}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		top := stack[len(stack)-1]
		if top.next >= len(top.actions) {
			stack = stack[:len(stack)-1]
			continue
		}
		a := top.actions[top.next]
		top.next++

		child := top.state.CollectNode(a.node, a.energy, a.route)
		next, won := s.expand(child)
		if won != nil {
			return s.victory(won), nil
		}
		if next != nil {
			stack = append(stack, next)
		}
	}
	return &Result{Outcome: OutcomeImpossible}, nil
}

// expand takes safe actions until none are left, then builds the frame of
// branching actions.
//
// Outputs:
//
//	*frame - The frame to push, nil for a dead end or an explored state.
//	*State - The victorious state, when victory was reached.
func (s *search) expand(state *State) (*frame, *State) {
	reach := s.reacher.Calculate(state)
	for {
		if reach.Victory() {
			return nil, state
		}
		next, nextReach := s.safeAction(state, reach)
		if next == nil {
			break
		}
		state, reach = next, nextReach
	}

	sig := state.Signature()
	if s.memo.Has(sig) {
		return nil, nil
	}
	s.memo.Put(sig)

	var actions []action
	for _, node := range reach.CollectableNodes() {
		actions = append(actions, action{
			node:       node,
			energy:     reach.EnergyAt(node),
			difficulty: reach.DifficultyAt(node),
			route:      s.route(reach, node),
		})
	}
	if len(actions) == 0 {
		return nil, nil
	}
	sort.SliceStable(actions, func(i, j int) bool {
		if actions[i].difficulty != actions[j].difficulty {
			return actions[i].difficulty < actions[j].difficulty
		}
		return actions[i].node < actions[j].node
	})
	return &frame{state: state, actions: actions}, nil
}

// safeAction returns the first reachable node, in index order, whose gain
// is not dangerous and from which the start of state is reachable again
// once collected. The returned state stands at that node.
func (s *search) safeAction(state *State, reach *Reach) (*State, *Reach) {
	for _, node := range reach.CollectableNodes() {
		gain, _ := s.logic.NodeGain(node, state.Resources)
		if s.logic.GainIsDangerous(gain) {
			continue
		}
		next := state.CollectNode(node, reach.EnergyAt(node), s.route(reach, node))
		nextReach := s.reacher.Calculate(next)
		if nextReach.Contains(state.Node) {
			return next, nextReach
		}
	}
	return nil, nil
}

func (s *search) route(reach *Reach, node world.NodeIndex) []world.NodeIndex {
	if !s.cfg.RecordRoutes {
		return nil
	}
	return reach.Route(node)
}

func (s *search) victory(state *State) *Result {
	return &Result{
		Outcome: OutcomeVictory,
		State:   state,
		Path:    state.Path(),
	}
}
