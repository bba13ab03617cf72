// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolver decides completability of a patched world.
//
// The resolver works on three layers:
//
//   - Logic: the per-node outgoing edge table of one (graph, patches) pair,
//     with every requirement constant-folded against the static resources
//     and normalized to sum-of-products form. Built once, read-only.
//   - Reach: the set of nodes accessible from a State without any resource
//     change, computed by a max-energy work-list traversal.
//   - Resolve: a depth-first search over collect/trigger actions with an
//     explicit frame stack and a memo of already explored states.
//
// An exhausted search is a normal Impossible outcome, not an error. Only
// cancellation and invalid input are returned as errors.
//
// # Thread Safety
//
// Logic is safe for concurrent readers. States are immutable once created.
// A Reacher owns reusable buffers and is NOT safe for concurrent use.
package resolver

import "errors"

// Sentinel errors for resolver operations.
var (
	// ErrCancelled is returned when the context is done before the search
	// finishes. It wraps the context error.
	ErrCancelled = errors.New("resolve cancelled")

	// ErrNilPatches is returned when NewLogic is given nil patches.
	ErrNilPatches = errors.New("patches must not be nil")

	// ErrAlreadyCollected is the panic value for collecting a node twice.
	ErrAlreadyCollected = errors.New("node already collected")
)
