// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resources

import "errors"

// Sentinel errors for resource catalog operations.
var (
	// ErrDuplicateResource is returned when a short name is already in use
	// for the same resource type.
	ErrDuplicateResource = errors.New("duplicate resource")

	// ErrUnknownResource is returned when a lookup by name fails.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrInvalidCapacity is returned when a resource is declared with a
	// maximum capacity below 1.
	ErrInvalidCapacity = errors.New("resource capacity must be at least 1")
)
