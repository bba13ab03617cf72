// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package service runs generation, verification and reach queries against
// a catalog of named worlds, and exposes them over HTTP.
//
// Worlds are registered once as YAML. Every request parses its own copy,
// so presets that change energy settings never leak between requests.
// The first player's preset controls the filler and generation settings
// of a multiworld request.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Concurrent generations are bounded
//	by ServiceConfig.MaxConcurrent, and identical seeded requests in flight
//	at the same time share one generation.
package service

import "errors"

var (
	// ErrUnknownWorld is returned for a world name that is not registered.
	ErrUnknownWorld = errors.New("unknown world")

	// ErrDuplicateWorld is returned when a world name is registered twice.
	ErrDuplicateWorld = errors.New("world already registered")

	// ErrTooManyPlayers is returned when a request exceeds MaxPlayers.
	ErrTooManyPlayers = errors.New("too many players")

	// ErrMultiworldVerify is returned when verifying a multiworld layout.
	ErrMultiworldVerify = errors.New("multiworld layouts cannot be verified")

	// ErrNoLayoutStore is returned for layout lookups without a store.
	ErrNoLayoutStore = errors.New("no layout store configured")

	// ErrLayoutNotFound is returned when a stored layout does not exist.
	ErrLayoutNotFound = errors.New("layout not found")
)
