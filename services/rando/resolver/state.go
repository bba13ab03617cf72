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
	"hash/fnv"
	"math/bits"

	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// StepKind classifies an action taken by the resolver.
type StepKind int

const (
	// StepCollectPickup collects the pickup at a pickup node.
	StepCollectPickup StepKind = iota

	// StepTriggerEvent triggers the event of an event node.
	StepTriggerEvent
)

// String returns the string representation of the StepKind.
func (k StepKind) String() string {
	switch k {
	case StepCollectPickup:
		return "collect"
	case StepTriggerEvent:
		return "trigger"
	default:
		return "unknown"
	}
}

// Step is one action on the path to a state.
type Step struct {
	Kind StepKind
	Node world.NodeIndex

	// Pickup is the collected pickup, nil for events and empty locations.
	Pickup *pickup.Entry

	// Route is the node sequence walked from the previous position to Node.
	Route []world.NodeIndex
}

// State is one immutable point of the search.
//
// Description:
//
//	A State is the current node, the held resources, the set of collected
//	nodes and the current energy. Every action derives a new State; the
//	collections referenced by an existing State are never modified.
type State struct {
	Node      world.NodeIndex
	Resources *resources.Collection
	Energy    int

	// Previous is the state this one was derived from, nil for the start.
	Previous *State

	// Step is the action that produced this state. Zero for the start.
	Step Step

	logic     *Logic
	collected []uint64
	depth     int
}

// StartState returns the initial state: the starting location of the
// patches, the starting resources and full energy.
func (l *Logic) StartState() *State {
	res := l.patches.StartingResources.Duplicate()
	return &State{
		Node:      l.patches.StartingLocation,
		Resources: res,
		Energy:    l.db.MaxEnergy(res),
		logic:     l,
		collected: make([]uint64, (len(l.edges)+63)/64),
	}
}

// Logic returns the table the state belongs to.
func (s *State) Logic() *Logic {
	return s.logic
}

// Depth returns the number of actions taken since the start.
func (s *State) Depth() int {
	return s.depth
}

// IsCollected reports whether node was already collected.
func (s *State) IsCollected(node world.NodeIndex) bool {
	return s.collected[node/64]&(1<<(uint(node)%64)) != 0
}

// CollectedCount returns the number of collected nodes.
func (s *State) CollectedCount() int {
	n := 0
	for _, w := range s.collected {
		n += bits.OnesCount64(w)
	}
	return n
}

// CanCollect reports whether node is collectible and not yet collected.
func (s *State) CanCollect(node world.NodeIndex) bool {
	if s.IsCollected(node) {
		return false
	}
	_, ok := s.logic.NodeGain(node, s.Resources)
	return ok
}

// CollectNode moves to node and collects it.
//
// Inputs:
//
//	node - The pickup or event node to collect.
//	energy - The energy left on arrival, as computed by the reach.
//	route - The walked route, for diagnostics.
//
// Panics with ErrAlreadyCollected when node was already collected, or when
// node is not collectible.
func (s *State) CollectNode(node world.NodeIndex, energy int, route []world.NodeIndex) *State {
	next := s.collect(node, route)
	next.Node = node
	next.Energy = energy + next.energyGain(s)
	return next
}

// CollectInPlace collects node without moving or spending energy.
func (s *State) CollectInPlace(node world.NodeIndex, route []world.NodeIndex) *State {
	next := s.collect(node, route)
	next.Energy = s.Energy + next.energyGain(s)
	return next
}

// AssumeGain returns a state holding extra resources without any action.
// The path is unchanged. Used by the filler to evaluate hypothetical
// placements.
func (s *State) AssumeGain(g resources.Gain) *State {
	next := *s
	next.Resources = s.Resources.WithGain(g)
	next.Energy = s.Energy + next.energyGain(s)
	return &next
}

func (s *State) collect(node world.NodeIndex, route []world.NodeIndex) *State {
	if s.IsCollected(node) {
		panic(fmt.Errorf("%w: %s", ErrAlreadyCollected, s.logic.graph.Node(node)))
	}
	gain, ok := s.logic.NodeGain(node, s.Resources)
	if !ok {
		panic(fmt.Sprintf("resolver: node %s is not collectible", s.logic.graph.Node(node)))
	}

	collected := make([]uint64, len(s.collected))
	copy(collected, s.collected)
	collected[node/64] |= 1 << (uint(node) % 64)

	step := Step{Kind: StepTriggerEvent, Node: node, Route: route}
	if p, isPickup := s.logic.graph.Node(node).Payload.(*world.PickupLocation); isPickup {
		step.Kind = StepCollectPickup
		if target, assigned := s.logic.patches.Pickup(p.Index); assigned && target.Player == s.logic.patches.Player {
			step.Pickup = target.Pickup
		}
	}

	return &State{
		Node:      s.Node,
		Resources: s.Resources.WithGain(gain),
		Previous:  s,
		Step:      step,
		logic:     s.logic,
		collected: collected,
		depth:     s.depth + 1,
	}
}

// energyGain returns the maximum energy increase from prev to s, so an
// energy tank refills by its own amount.
func (s *State) energyGain(prev *State) int {
	before := s.logic.db.MaxEnergy(prev.Resources)
	after := s.logic.db.MaxEnergy(s.Resources)
	if after > before {
		return after - before
	}
	return 0
}

// Path returns the steps from the start to s in order.
func (s *State) Path() []Step {
	steps := make([]Step, s.depth)
	for cur := s; cur.Previous != nil; cur = cur.Previous {
		if cur.depth == 0 {
			break
		}
		steps[cur.depth-1] = cur.Step
	}
	return steps
}

// Signature fingerprints the position, energy, collected nodes and
// resources for memoization.
func (s *State) Signature() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	put(uint64(s.Node))
	put(uint64(int64(s.Energy)))
	for _, w := range s.collected {
		put(w)
	}
	put(s.Resources.Signature())
	return h.Sum64()
}
