// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package worldio loads world descriptions from YAML.
//
// A world file declares the resource catalog, dock weaknesses, shared
// requirement templates, the region/area/node hierarchy with its
// connections, the victory condition and the pickup pool. Load returns a
// frozen world.Graph ready to be shared by generation attempts.
//
// # Requirements
//
// A requirement is either the scalar "trivial" or "impossible", or a
// mapping with exactly one of the keys and, or, item, event, trick,
// damage, version, misc or template:
//
//	and: [{item: Morph Ball}, {item: Bombs}]
//	or:  [{template: Can Bomb}, {trick: Bomb Jump, amount: 1}]
//	item: Missiles
//	amount: 5
//	negate: false
//
// amount defaults to 1.
package worldio

import "errors"

var (
	// ErrWorldTooLarge is returned when a world file exceeds MaxWorldBytes.
	ErrWorldTooLarge = errors.New("world file too large")

	// ErrInvalidWorld is returned when a world description is inconsistent.
	// The wrapping error names the offending element.
	ErrInvalidWorld = errors.New("invalid world description")
)
