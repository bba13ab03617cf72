// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package preset loads generation presets.
//
// A preset is the YAML configuration object that selects the filler
// policy, trick levels, excluded locations, starting pickups and attempt
// limits of a generation. Presets are layered over the embedded default
// preset, so a file only names what it changes.
//
// Thread Safety:
//
//	A loaded Preset is read-only and safe for concurrent use.
package preset

import "errors"

var (
	// ErrPresetTooLarge is returned when preset data exceeds MaxPresetBytes.
	ErrPresetTooLarge = errors.New("preset too large")

	// ErrInvalidPreset is returned when a preset fails validation.
	ErrInvalidPreset = errors.New("invalid preset")

	// ErrUnknownName is returned when a preset names a resource, pickup or
	// node the world does not have.
	ErrUnknownName = errors.New("unknown name in preset")
)
