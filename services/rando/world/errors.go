// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package world provides the game-world graph: regions, areas and nodes.
//
// The world graph is a three-level hierarchy. Regions contain areas, areas
// contain nodes, and every area carries a directional connection table
// gating traversal between two of its nodes with a requirement. Dock and
// teleporter nodes additionally lead to a node in another area.
//
// # Ownership Model
//
// Requirements and dock weaknesses are stored by reference and MUST NOT be
// mutated after being added. Per-generation changes (dock weaknesses,
// configurable nodes, pickup placement) live in an overlay owned by the
// search, never in the graph.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. It is designed for:
//   - Single-writer access during build phase (AddNode, Connect calls)
//   - Read-only access after Freeze() is called
//
// After Freeze(), the graph can be safely shared by any number of concurrent
// generation attempts.
//
// # Lifecycle
//
//  1. Create with NewGraph(db)
//  2. Build with AddDockWeakness(), AddNode() and Connect() calls
//  3. Set the starting location and victory condition
//  4. Call Freeze() to resolve docks and build indices
//  5. Query with Node(), Connections(), PickupNodes(), etc.
package world

import "errors"

// Sentinel errors for world graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	ErrGraphFrozen = errors.New("world graph is frozen and cannot be modified")

	// ErrGraphNotFrozen is returned by queries that need resolved indices.
	ErrGraphNotFrozen = errors.New("world graph is not frozen")

	// ErrNodeNotFound is returned when an identifier does not name a node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when adding a node whose identifier
	// already exists.
	ErrDuplicateNode = errors.New("duplicate node identifier")

	// ErrDuplicatePickupIndex is returned when two pickup nodes share an index.
	ErrDuplicatePickupIndex = errors.New("duplicate pickup index")

	// ErrDuplicateWeakness is returned when a dock weakness name is reused
	// within a dock type.
	ErrDuplicateWeakness = errors.New("duplicate dock weakness")

	// ErrCrossAreaConnection is returned when Connect is given nodes of
	// two different areas.
	ErrCrossAreaConnection = errors.New("connection endpoints are in different areas")

	// ErrInvalidNode is returned for nodes with an incomplete payload.
	ErrInvalidNode = errors.New("invalid node")

	// ErrMaxNodesExceeded is returned when the graph has reached its
	// configured maximum node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrNoVictoryCondition is returned by Freeze when no victory condition
	// was set.
	ErrNoVictoryCondition = errors.New("victory condition not set")

	// ErrUnresolvedDock marks a dock or teleporter whose target does not
	// exist. Freeze records these instead of failing.
	ErrUnresolvedDock = errors.New("unresolved dock target")
)
