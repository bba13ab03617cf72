// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pickup defines collectible item definitions and item pools.
//
// A pickup Entry describes what a player gains when collecting it. Gains may
// be progressive (each copy collected yields the next stage) and may be
// locked behind another item, as with ammunition that only works once its
// launcher is held.
package pickup

import (
	"errors"
	"fmt"
	"sort"

	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// ErrInvalidLock is returned by ValidateLocks for inconsistent lock wiring.
var ErrInvalidLock = errors.New("invalid resource lock")

// NothingName is the name of the filler pickup placed in empty locations.
const NothingName = "Nothing"

// Conditional is one stage of a progressive pickup.
type Conditional struct {
	// Item is the resource that must be held for this stage. Nil for the
	// first stage.
	Item *resources.Info

	// Resources is the gain of this stage.
	Resources resources.Gain
}

// Lock redirects gains of ItemToLock into TemporaryItem until LockedBy is held.
type Lock struct {
	LockedBy      *resources.Info
	TemporaryItem *resources.Info
	ItemToLock    *resources.Info
}

// Params are the filler parameters of a pickup.
type Params struct {
	// PreferredLocationCategory is where the pickup goes in major/minor mode.
	PreferredLocationCategory world.LocationCategory

	// ProbabilityOffset is added to the action weight.
	ProbabilityOffset float64

	// ProbabilityMultiplier scales the action weight. Zero reads as 1.
	ProbabilityMultiplier float64

	// IndexAgeImpact is added to the age of every other reachable empty
	// location when this pickup is placed.
	IndexAgeImpact float64

	// RequiredProgression is the number of copies that must be placed
	// together for the pickup to make progress. Zero reads as 1.
	RequiredProgression int
}

// Multiplier returns ProbabilityMultiplier, defaulting to 1.
func (p Params) Multiplier() float64 {
	if p.ProbabilityMultiplier == 0 {
		return 1
	}
	return p.ProbabilityMultiplier
}

// Copies returns RequiredProgression, defaulting to 1.
func (p Params) Copies() int {
	if p.RequiredProgression < 1 {
		return 1
	}
	return p.RequiredProgression
}

// Entry is one collectible pickup definition.
//
// Thread Safety: Immutable after construction, safe for concurrent use.
type Entry struct {
	Name     string
	Model    string
	Category string

	// Progression lists the stages. The Nth copy collected yields the Nth
	// stage, driven by which stage items are already held.
	Progression []Conditional

	// ExtraResources are gained with every stage.
	ExtraResources resources.Gain

	// Lock, when set, applies lock semantics to the gain.
	Lock *Lock

	// UnlocksResource marks the pickup that lifts Lock: collecting it moves
	// the temporary amount into the real item.
	UnlocksResource bool

	Params Params
}

// NewNothing returns the filler pickup granting no resources.
func NewNothing() *Entry {
	return &Entry{
		Name:     NothingName,
		Model:    NothingName,
		Category: "nothing",
		Params:   Params{PreferredLocationCategory: world.CategoryMinor},
	}
}

// String returns the pickup name.
func (e *Entry) String() string {
	return e.Name
}

// IsMajor reports whether the pickup prefers major locations.
func (e *Entry) IsMajor() bool {
	return e.Params.PreferredLocationCategory == world.CategoryMajor
}

// ConditionalFor returns the stage applying to a player holding c.
//
// Stages are scanned in order; the last stage whose item is held wins and
// scanning stops at the first stage whose item is missing.
func (e *Entry) ConditionalFor(c *resources.Collection) Conditional {
	if len(e.Progression) == 0 {
		return Conditional{}
	}
	last := e.Progression[0]
	for _, cond := range e.Progression[1:] {
		if cond.Item != nil && !c.Has(cond.Item) {
			break
		}
		last = cond
	}
	return last
}

// Gain returns the resources gained by collecting one copy while holding c.
func (e *Entry) Gain(c *resources.Collection) resources.Gain {
	cond := e.ConditionalFor(c)
	gain := make(resources.Gain, 0, len(cond.Resources)+len(e.ExtraResources)+2)
	gain = append(gain, cond.Resources...)
	gain = append(gain, e.ExtraResources...)

	if e.Lock == nil {
		return gain
	}
	if e.UnlocksResource {
		held := c.Get(e.Lock.TemporaryItem)
		if held != 0 {
			gain = append(gain,
				resources.Quantity{Resource: e.Lock.TemporaryItem, Amount: -held},
				resources.Quantity{Resource: e.Lock.ItemToLock, Amount: held},
			)
		}
		return gain
	}
	if c.Has(e.Lock.LockedBy) {
		return gain
	}
	for i, q := range gain {
		if q.Resource == e.Lock.ItemToLock {
			gain[i].Resource = e.Lock.TemporaryItem
		}
	}
	return gain
}

// Apply returns a new collection holding c plus the gain of one copy.
func (e *Entry) Apply(c *resources.Collection) *resources.Collection {
	return c.WithGain(e.Gain(c))
}

// ApplyInPlace adds the gain of one copy to c.
func (e *Entry) ApplyInPlace(c *resources.Collection) {
	c.AddGain(e.Gain(c))
}

// Provides reports whether any stage or extra gain grants r.
func (e *Entry) Provides(r *resources.Info) bool {
	for _, cond := range e.Progression {
		for _, q := range cond.Resources {
			if q.Resource == r && q.Amount > 0 {
				return true
			}
		}
	}
	for _, q := range e.ExtraResources {
		if q.Resource == r && q.Amount > 0 {
			return true
		}
	}
	return false
}

// ---- Pool ----

// Pool is a list of pickups to place. Duplicate entries are separate copies.
type Pool []*Entry

// CountByCategory counts the pickups preferring each location category.
func (p Pool) CountByCategory() map[world.LocationCategory]int {
	counts := make(map[world.LocationCategory]int, 2)
	for _, e := range p {
		counts[e.Params.PreferredLocationCategory]++
	}
	return counts
}

// Names returns the distinct pickup names, sorted.
func (p Pool) Names() []string {
	seen := make(map[string]struct{}, len(p))
	names := make([]string, 0, len(p))
	for _, e := range p {
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a shallow copy of the pool slice.
func (p Pool) Clone() Pool {
	out := make(Pool, len(p))
	copy(out, p)
	return out
}

// ValidateLocks checks the lock wiring of every pickup in the pool.
//
// Description:
//
//	Every lock must name all three resources, and every locked pickup must
//	have a pickup in the pool or in starting that unlocks it and grants the
//	LockedBy item.
//
// Outputs:
//
//	error - ErrInvalidLock describing the first problem found, or nil.
func (p Pool) ValidateLocks(starting Pool) error {
	all := make(Pool, 0, len(p)+len(starting))
	all = append(all, p...)
	all = append(all, starting...)

	unlockers := make(map[*resources.Info]bool)
	for _, e := range all {
		if e.Lock == nil {
			continue
		}
		l := e.Lock
		if l.LockedBy == nil || l.TemporaryItem == nil || l.ItemToLock == nil {
			return fmt.Errorf("%w: %s has an incomplete lock", ErrInvalidLock, e.Name)
		}
		if l.TemporaryItem == l.ItemToLock {
			return fmt.Errorf("%w: %s locks %s into itself", ErrInvalidLock, e.Name, l.ItemToLock)
		}
		if e.UnlocksResource {
			if !e.Provides(l.LockedBy) {
				return fmt.Errorf("%w: %s unlocks %s without granting it", ErrInvalidLock, e.Name, l.LockedBy)
			}
			unlockers[l.LockedBy] = true
		}
	}
	for _, e := range all {
		if e.Lock == nil || e.UnlocksResource {
			continue
		}
		if !unlockers[e.Lock.LockedBy] {
			return fmt.Errorf("%w: nothing in the pool unlocks %s for %s", ErrInvalidLock, e.Lock.LockedBy, e.Name)
		}
	}
	return nil
}
