// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generator runs filler attempts until one produces a completable
// layout.
//
// Every attempt gets fresh patches and an RNG seeded from the base seed
// and the attempt number, so a (seed, input) pair always yields the same
// layout no matter how many attempts run in parallel. Failed attempts are
// expected; they are logged, counted and retried.
//
// Thread Safety:
//
//	Generate is safe for concurrent use. The world graphs in Input are
//	shared read-only between attempts.
package generator

import (
	"errors"
	"strconv"
)

var (
	// ErrAttemptsExhausted is matched by ExhaustedError.
	ErrAttemptsExhausted = errors.New("all generation attempts failed")

	// ErrNoPlayers is returned when Input has no players.
	ErrNoPlayers = errors.New("no players to generate")
)

// ExhaustedError reports that every attempt failed.
type ExhaustedError struct {
	// Attempts is the number of attempts made.
	Attempts int

	// LastError is the failure of the highest-numbered attempt.
	LastError error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	msg := "all " + strconv.Itoa(e.Attempts) + " generation attempts failed"
	if e.LastError != nil {
		msg += ": " + e.LastError.Error()
	}
	return msg
}

// Unwrap returns the last error.
func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

// Is matches ErrAttemptsExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAttemptsExhausted
}
