// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package layoutstore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrInvalidGC is returned by Open for an unusable GCDiscardRatio.
var ErrInvalidGC = errors.New("gc discard ratio must be between 0 and 1")

// compactionsTotal counts value log GC passes.
// Labels: result (rewritten, noop, error)
var compactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "rando",
	Subsystem: "layoutstore",
	Name:      "compactions_total",
	Help:      "Total value log garbage collection passes by result",
}, []string{"result"})

// validateGC checks the GC settings of a persistent store with GC enabled.
func (c Config) validateGC() error {
	if c.InMemory || c.GCInterval <= 0 {
		return nil
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidGC, c.GCDiscardRatio)
	}
	return nil
}

// Compact runs one value log garbage collection pass.
//
// Description:
//
//	Rewrites at most one value log file whose discardable share is at
//	least Config.GCDiscardRatio (0.5 when unset). Expired layouts only
//	free disk space once their log file is rewritten. In-memory stores
//	have no value log and always report false.
//
// Outputs:
//
//	bool - Whether a log file was rewritten.
//	error - A BadgerDB error other than "nothing to rewrite".
func (s *Store) Compact() (bool, error) {
	if s.cfg.InMemory {
		return false, nil
	}
	ratio := s.cfg.GCDiscardRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	err := s.db.RunValueLogGC(ratio)
	switch {
	case err == nil:
		compactionsTotal.WithLabelValues("rewritten").Inc()
		return true, nil
	case errors.Is(err, badger.ErrNoRewrite):
		compactionsTotal.WithLabelValues("noop").Inc()
		return false, nil
	default:
		compactionsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("compact layout store: %w", err)
	}
}

// startCompaction runs Compact every Config.GCInterval until Close.
func (s *Store) startCompaction() {
	s.stopGC = make(chan struct{})
	s.gcDone = make(chan struct{})
	go func() {
		defer close(s.gcDone)
		ticker := time.NewTicker(s.cfg.GCInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopGC:
				return
			case <-ticker.C:
				// Each pass rewrites at most one file.
				for {
					rewritten, err := s.Compact()
					if err != nil {
						s.logger.Warn("layout store compaction failed", slog.String("error", err.Error()))
						break
					}
					if !rewritten {
						break
					}
					s.logger.Debug("layout store value log rewritten")
				}
			}
		}
	}()
}

// stopCompaction halts the compaction loop and waits for it. Safe to call
// more than once and without a running loop.
func (s *Store) stopCompaction() {
	if s.stopGC == nil {
		return
	}
	s.gcOnce.Do(func() { close(s.stopGC) })
	<-s.gcDone
}
