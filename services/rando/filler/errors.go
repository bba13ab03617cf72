// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filler assigns a pool of pickups to the pickup locations of one or
// more worlds while keeping every world completable.
//
// The filler works in rounds. Each round it computes what every player can
// currently reach, evaluates which pickups would open new nodes, places one
// (or a few) of them into reachable empty locations chosen by a weighted
// draw, and repeats. A location only counts as reachable when the player
// can also walk back from it. Once the logical target is met the remaining pool is
// spread over the remaining locations and empty locations get the
// "Nothing" pickup.
//
// Ownership Model:
//
//	Fill mutates the GamePatches it is given. Callers create fresh patches
//	per attempt; patches are never shared between concurrent attempts.
//
// Thread Safety:
//
//	Fill is single-threaded. Independent calls with independent patches
//	and RNGs may run concurrently against the same frozen world graph.
package filler

import (
	"errors"
	"fmt"
)

var (
	// ErrGenerationFailed is matched by every GenerationFailure.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrInvalidConfiguration is matched by every ConfigurationError.
	ErrInvalidConfiguration = errors.New("invalid filler configuration")
)

// Reason classifies a GenerationFailure.
type Reason string

const (
	// ReasonNoSafeAction means a round had no placeable pickup while
	// pickups remained.
	ReasonNoSafeAction Reason = "no_safe_action"

	// ReasonCancelled means the context ended between rounds.
	ReasonCancelled Reason = "cancelled"

	// ReasonValidationFailed means the full resolver could not finish the
	// filled world.
	ReasonValidationFailed Reason = "validation_failed"
)

// GenerationFailure is the expected, retryable failure of one attempt.
type GenerationFailure struct {
	Reason Reason

	// Player is the player whose turn failed, or -1.
	Player int

	// PickupsLeft is the number of unplaced pickups at the time of failure.
	PickupsLeft int

	// Cause is the underlying error if any.
	Cause error
}

// Error implements the error interface.
func (e *GenerationFailure) Error() string {
	msg := fmt.Sprintf("generation failed: %s (player %d, %d pickups left)", e.Reason, e.Player, e.PickupsLeft)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *GenerationFailure) Unwrap() error {
	return e.Cause
}

// Is matches ErrGenerationFailed.
func (e *GenerationFailure) Is(target error) bool {
	return target == ErrGenerationFailed
}

// ConfigurationError reports an input that can never produce a layout.
// It is raised before any search and retrying does not help.
type ConfigurationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "invalid filler configuration: " + e.Field + ": " + e.Reason
}

// Is matches ErrInvalidConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}
