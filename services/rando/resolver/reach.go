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
	"sort"

	"github.com/zyedidia/generic/heap"

	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

const unreached = -1

type frontierItem struct {
	node   world.NodeIndex
	energy int
}

// Reacher computes reaches while reusing its buffers between calls.
//
// Thread Safety: NOT safe for concurrent use. Use one Reacher per goroutine.
type Reacher struct {
	logic      *Logic
	frontier   *heap.Heap[frontierItem]
	energy     []int
	parent     []world.NodeIndex
	difficulty []int
	touched    []world.NodeIndex
}

// NewReacher creates a Reacher for l.
func NewReacher(l *Logic) *Reacher {
	n := len(l.edges)
	r := &Reacher{
		logic: l,
		frontier: heap.New[frontierItem](func(a, b frontierItem) bool {
			if a.energy != b.energy {
				return a.energy > b.energy
			}
			return a.node < b.node
		}),
		energy:     make([]int, n),
		parent:     make([]world.NodeIndex, n),
		difficulty: make([]int, n),
		touched:    make([]world.NodeIndex, 0, n),
	}
	for i := range r.energy {
		r.energy[i] = unreached
	}
	return r
}

// Reach is the set of nodes accessible from a state without resource changes.
//
// Description:
//
//	Only the reached nodes are stored: nodes sorted by index, a membership
//	bitset, and the per-node labels at the same positions. A Reach stays
//	valid after its Reacher computes another one.
//
// Thread Safety: Immutable, safe for concurrent readers.
type Reach struct {
	logic *Logic
	state *State

	nodes      []world.NodeIndex
	in         []uint64
	energy     []int
	parent     []world.NodeIndex
	difficulty []int
}

// CalculateReach computes the reach of s with a fresh Reacher.
func CalculateReach(s *State) *Reach {
	return NewReacher(s.logic).Calculate(s)
}

// Calculate computes the reach of s.
//
// Description:
//
//	Max-energy label-correcting traversal from s.Node. A node is
//	expanded whenever it is reached with more energy than before, so the
//	energy recorded per node is the best achievable. Damage atoms cost
//	energy through the cheapest satisfied alternative; heal nodes restore
//	full energy on arrival. The frontier is ordered by (energy desc, node
//	index asc), which makes parents and routes deterministic. The reached
//	set does not depend on that order.
func (r *Reacher) Calculate(s *State) *Reach {
	r.traverse(s.Node, s.Energy, s.Resources)

	k := len(r.touched)
	reach := &Reach{
		logic:      r.logic,
		state:      s,
		nodes:      make([]world.NodeIndex, k),
		in:         make([]uint64, (len(r.energy)+63)/64),
		energy:     make([]int, k),
		parent:     make([]world.NodeIndex, k),
		difficulty: make([]int, k),
	}
	copy(reach.nodes, r.touched)
	sort.Slice(reach.nodes, func(i, j int) bool { return reach.nodes[i] < reach.nodes[j] })
	for i, n := range reach.nodes {
		reach.in[n/64] |= 1 << (uint(n) % 64)
		reach.energy[i] = r.energy[n]
		reach.parent[i] = r.parent[n]
		reach.difficulty[i] = r.difficulty[n]
	}
	recordReach()
	return reach
}

// Returns reports whether a player holding the resources of s, standing at
// node with energy left, can walk back to s.Node.
//
// The Reacher's buffers are reused and no Reach is built.
func (r *Reacher) Returns(s *State, node world.NodeIndex, energy int) bool {
	if node == s.Node {
		return true
	}
	r.traverse(node, energy, s.Resources)
	return r.energy[s.Node] != unreached
}

// traverse labels every node reachable from node into the Reacher buffers.
func (r *Reacher) traverse(from world.NodeIndex, energy int, res *resources.Collection) {
	l := r.logic
	db := l.db
	maxEnergy := db.MaxEnergy(res)

	for _, n := range r.touched {
		r.energy[n] = unreached
	}
	r.touched = r.touched[:0]

	if l.heal[from] {
		energy = maxEnergy
	}
	r.visit(from, energy, world.NoNode, 0)

	for r.frontier.Size() > 0 {
		item, _ := r.frontier.Pop()
		if item.energy < r.energy[item.node] {
			continue
		}
		cur := item.energy
		for _, e := range l.edges[item.node] {
			if r.energy[e.Target] >= cur {
				continue
			}
			next := cur
			if e.damage {
				cost, ok := e.Requirement.MinimumDamage(res, cur, db)
				if !ok {
					continue
				}
				next = cur - cost
			} else if !e.Requirement.Satisfied(res, cur, db) {
				continue
			}
			if l.heal[e.Target] {
				next = maxEnergy
			}
			if next <= r.energy[e.Target] {
				continue
			}
			difficulty := r.difficulty[item.node]
			if d := e.Requirement.Difficulty(); d > difficulty {
				difficulty = d
			}
			r.visit(e.Target, next, item.node, difficulty)
		}
	}
}

// visit records a better energy for node. Parents are fixed at first
// discovery so they always form a tree rooted at the start node.
func (r *Reacher) visit(node world.NodeIndex, energy int, parent world.NodeIndex, difficulty int) {
	if r.energy[node] == unreached {
		r.touched = append(r.touched, node)
		r.parent[node] = parent
		r.difficulty[node] = difficulty
	}
	r.energy[node] = energy
	r.frontier.Push(frontierItem{node: node, energy: energy})
}

// State returns the state the reach was computed from.
func (r *Reach) State() *State {
	return r.state
}

// Nodes returns the reached nodes sorted by index. MUST NOT be modified.
func (r *Reach) Nodes() []world.NodeIndex {
	return r.nodes
}

// Len returns the number of reached nodes.
func (r *Reach) Len() int {
	return len(r.nodes)
}

// Contains reports whether node was reached.
func (r *Reach) Contains(node world.NodeIndex) bool {
	if node < 0 || int(node/64) >= len(r.in) {
		return false
	}
	return r.in[node/64]&(1<<(uint(node)%64)) != 0
}

// position returns the index of node in nodes, or -1.
func (r *Reach) position(node world.NodeIndex) int {
	if !r.Contains(node) {
		return -1
	}
	return sort.Search(len(r.nodes), func(i int) bool { return r.nodes[i] >= node })
}

// EnergyAt returns the best energy on arrival at node, or -1.
func (r *Reach) EnergyAt(node world.NodeIndex) int {
	i := r.position(node)
	if i < 0 {
		return unreached
	}
	return r.energy[i]
}

// DifficultyAt returns the highest trick level used on the route to node.
func (r *Reach) DifficultyAt(node world.NodeIndex) int {
	i := r.position(node)
	if i < 0 {
		return 0
	}
	return r.difficulty[i]
}

// Route returns the node sequence from the state's node to node, both
// included. Nil when node was not reached.
func (r *Reach) Route(node world.NodeIndex) []world.NodeIndex {
	if !r.Contains(node) {
		return nil
	}
	var route []world.NodeIndex
	for cur := node; cur != world.NoNode; cur = r.parent[r.position(cur)] {
		route = append(route, cur)
	}
	for i, j := 0, len(route)-1; i < j; i, j = i+1, j-1 {
		route[i], route[j] = route[j], route[i]
	}
	return route
}

// CollectableNodes returns the reached nodes that can still be collected,
// sorted by index.
func (r *Reach) CollectableNodes() []world.NodeIndex {
	out := make([]world.NodeIndex, 0)
	for _, n := range r.nodes {
		if r.state.CanCollect(n) {
			out = append(out, n)
		}
	}
	return out
}

// Victory reports whether the state's resources satisfy the victory condition.
func (r *Reach) Victory() bool {
	return r.logic.IsVictory(r.state)
}

// IsSubsetOf reports whether every node of r is also in other.
func (r *Reach) IsSubsetOf(other *Reach) bool {
	for _, n := range r.nodes {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}
