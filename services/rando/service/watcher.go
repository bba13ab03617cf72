// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package service

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeOp is what a reload did to one world.
type ChangeOp int

const (
	// ChangeLoaded means the world was registered or replaced.
	ChangeLoaded ChangeOp = iota

	// ChangeRemoved means the world file was deleted and the world
	// unregistered.
	ChangeRemoved

	// ChangeFailed means the file could not be loaded. The previously
	// registered world, if any, stays in place.
	ChangeFailed
)

// String returns the string representation of the operation.
func (op ChangeOp) String() string {
	switch op {
	case ChangeLoaded:
		return "loaded"
	case ChangeRemoved:
		return "removed"
	case ChangeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// WorldChange is the result of reloading one world file.
type WorldChange struct {
	Name string
	Path string
	Op   ChangeOp
	Err  error
}

// WatcherConfig configures a WorldWatcher.
type WatcherConfig struct {
	// Debounce is how long to wait for more events before reloading.
	// Default: 200ms
	Debounce time.Duration

	// OnReload is called with the results of each reload batch. Optional.
	OnReload func(changes []WorldChange)
}

// WorldWatcher keeps a Service's catalog in sync with the world files of
// one directory.
//
// # Description
//
// Events are collected until the directory has been quiet for the debounce
// window, then each changed .yaml or .yml file is reloaded once. Files
// that fail to load keep their previous world registered. Subdirectories
// are not watched.
//
// # Thread Safety
//
// Start and Stop are safe for concurrent use. OnReload is called from a
// single goroutine.
type WorldWatcher struct {
	svc     *Service
	dir     string
	watcher *fsnotify.Watcher
	config  WatcherConfig
	logger  *slog.Logger

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewWorldWatcher creates a watcher for dir. Call Start to begin watching.
//
// Inputs:
//
//	svc - The service whose catalog is updated.
//	dir - Directory of world files.
//	config - Watcher configuration. Zero fields take defaults.
//
// Outputs:
//
//	*WorldWatcher - The watcher.
//	error - Non-nil if dir cannot be watched.
func NewWorldWatcher(svc *Service, dir string, config WatcherConfig) (*WorldWatcher, error) {
	if config.Debounce <= 0 {
		config.Debounce = 200 * time.Millisecond
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}
	return &WorldWatcher{
		svc:     svc,
		dir:     dir,
		watcher: watcher,
		config:  config,
		logger:  svc.logger.With(slog.String("watch_dir", dir)),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. It returns immediately; watching stops when ctx
// is cancelled or Stop is called.
func (w *WorldWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop stops watching and waits for a reload in progress to finish.
func (w *WorldWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.watcher.Close()
	})
}

func (w *WorldWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isWorldFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.config.Debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("world watcher error", slog.String("error", err.Error()))
		case <-timerC:
			timer, timerC = nil, nil
			w.reload(pending)
			pending = make(map[string]struct{})
		}
	}
}

// reload applies one batch of changed paths in name order.
func (w *WorldWatcher) reload(pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var changes []WorldChange
	for _, path := range paths {
		name := worldName(path)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if w.svc.RemoveWorld(name) {
				changes = append(changes, WorldChange{Name: name, Path: path, Op: ChangeRemoved})
			}
			continue
		}
		summary, err := w.svc.loadWorldFile(path, true)
		if err != nil {
			w.logger.Warn("world reload failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			changes = append(changes, WorldChange{Name: name, Path: path, Op: ChangeFailed, Err: err})
			continue
		}
		changes = append(changes, WorldChange{Name: summary.Name, Path: path, Op: ChangeLoaded})
	}

	if len(changes) > 0 && w.config.OnReload != nil {
		w.config.OnReload(changes)
	}
}
