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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/RandoForge/services/rando/generator"
	"github.com/AleutianAI/RandoForge/services/rando/patches"
)

const keyPrefix = "layout/"

var _ generator.LayoutCache = (*Store)(nil)

var (
	// lookupsTotal counts cache reads.
	// Labels: result (hit, miss, error)
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rando",
		Subsystem: "layoutstore",
		Name:      "lookups_total",
		Help:      "Total layout cache lookups by result",
	}, []string{"result"})

	// writesTotal counts stored layouts.
	writesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rando",
		Subsystem: "layoutstore",
		Name:      "writes_total",
		Help:      "Total layouts written to the cache",
	})
)

// Store is a BadgerDB-backed layout cache.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger

	stopGC chan struct{}
	gcDone chan struct{}
	gcOnce sync.Once
}

// Open opens a Store.
//
// Description:
//
//	Opens the BadgerDB at cfg.Path, or in memory when cfg.InMemory is
//	set, and runs Compact every cfg.GCInterval on a persistent store.
//
// Outputs:
//
//	*Store - The store. Call Close() when done.
//	error - ErrPathRequired, ErrInvalidGC, or a BadgerDB error.
func Open(cfg Config) (*Store, error) {
	if err := cfg.validateGC(); err != nil {
		return nil, err
	}
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:     db,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "layoutstore")),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startCompaction()
	}
	return s, nil
}

// Close stops compaction and closes the database.
func (s *Store) Close() error {
	s.stopCompaction()
	return s.db.Close()
}

// Get returns the layout stored under key.
//
// Outputs:
//
//	*patches.Layout - The layout, nil on a miss.
//	bool - Whether the key was found.
//	error - Non-nil on a database or decoding error.
func (s *Store) Get(ctx context.Context, key string) (*patches.Layout, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context cancelled: %w", err)
	}
	var layout patches.Layout
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &layout)
		})
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		lookupsTotal.WithLabelValues("miss").Inc()
		return nil, false, nil
	case err != nil:
		lookupsTotal.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("read layout %s: %w", key, err)
	}
	lookupsTotal.WithLabelValues("hit").Inc()
	return &layout, true, nil
}

// Put stores layout under key, replacing any previous value. Entries
// expire after Config.TTL when it is set.
func (s *Store) Put(ctx context.Context, key string, layout *patches.Layout) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	data, err := json.Marshal(layout)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+key), data)
		if s.cfg.TTL > 0 {
			e = e.WithTTL(s.cfg.TTL)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("write layout %s: %w", key, err)
	}
	writesTotal.Inc()
	s.logger.Debug("layout cached", slog.String("key", key), slog.Int("bytes", len(data)))
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
}

// Keys returns every cached key starting with prefix, in key order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix + prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), keyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list layouts: %w", err)
	}
	return keys, nil
}
