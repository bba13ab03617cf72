// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generator

import (
	"sync"

	"golang.org/x/time/rate"
)

// StatusFunc receives human-readable progress messages.
type StatusFunc func(message string)

// status throttles a StatusFunc. Forced messages bypass the limiter.
//
// Thread Safety: Safe for concurrent use.
type status struct {
	mu      sync.Mutex
	fn      StatusFunc
	limiter *rate.Limiter
}

func newStatus(fn StatusFunc, limit rate.Limit) *status {
	if limit <= 0 {
		limit = rate.Inf
	}
	return &status{fn: fn, limiter: rate.NewLimiter(limit, 1)}
}

// emit sends message unless the limiter drops it.
func (s *status) emit(message string) {
	if s == nil || s.fn == nil || !s.limiter.Allow() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn(message)
}

// force always sends message.
func (s *status) force(message string) {
	if s == nil || s.fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn(message)
}
