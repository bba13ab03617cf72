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

import (
	"hash/fnv"
	"strings"
)

// Collection holds the amount of every resource for one in-progress state.
//
// Description:
//
//	A dense vector indexed by Info.Index. Resources added to the database
//	after the collection was created read as zero and grow the vector on
//	first write. Amounts are clamped to [0, MaxCapacity], or to
//	[-MaxCapacity, MaxCapacity] for resources with AllowNegative.
//
// Thread Safety: NOT safe for concurrent mutation.
type Collection struct {
	amounts []int
}

// NewCollection creates an empty collection sized for db.
func NewCollection(db *Database) *Collection {
	size := 0
	if db != nil {
		size = db.Len()
	}
	return &Collection{amounts: make([]int, size)}
}

// CollectionOf creates a collection from a list of quantities.
func CollectionOf(db *Database, quantities ...Quantity) *Collection {
	c := NewCollection(db)
	for _, q := range quantities {
		c.Add(q.Resource, q.Amount)
	}
	return c
}

// Get returns the amount held of r. Missing entries read as zero.
func (c *Collection) Get(r *Info) int {
	if c == nil || r == nil || r.Index >= len(c.amounts) {
		return 0
	}
	return c.amounts[r.Index]
}

// Has reports whether at least one unit of r is held.
func (c *Collection) Has(r *Info) bool {
	return c.Get(r) > 0
}

// Set stores amount for r, clamped to the resource's capacity.
func (c *Collection) Set(r *Info, amount int) {
	if r.Index >= len(c.amounts) {
		grown := make([]int, r.Index+1)
		copy(grown, c.amounts)
		c.amounts = grown
	}
	c.amounts[r.Index] = clamp(r, amount)
}

// Add adds delta (which may be negative) to the amount held of r.
func (c *Collection) Add(r *Info, delta int) {
	c.Set(r, c.Get(r)+delta)
}

// AddGain adds every quantity of g in order.
func (c *Collection) AddGain(g Gain) {
	for _, q := range g {
		c.Add(q.Resource, q.Amount)
	}
}

// WithGain returns a new collection holding c plus g. c is not modified.
func (c *Collection) WithGain(g Gain) *Collection {
	out := c.Duplicate()
	out.AddGain(g)
	return out
}

// Duplicate returns an independent copy of c.
func (c *Collection) Duplicate() *Collection {
	amounts := make([]int, len(c.amounts))
	copy(amounts, c.amounts)
	return &Collection{amounts: amounts}
}

// Covers reports whether c holds at least as much as other of every resource.
func (c *Collection) Covers(other *Collection) bool {
	for i, amount := range other.amounts {
		mine := 0
		if i < len(c.amounts) {
			mine = c.amounts[i]
		}
		if mine < amount {
			return false
		}
	}
	return true
}

// Equal reports whether both collections hold exactly the same amounts.
func (c *Collection) Equal(other *Collection) bool {
	return c.Covers(other) && other.Covers(c)
}

// Signature returns a 64-bit FNV-1a fingerprint of the non-zero entries.
//
// Equal collections have equal signatures regardless of vector length.
func (c *Collection) Signature() uint64 {
	h := fnv.New64a()
	var buf [16]byte
	for i, amount := range c.amounts {
		if amount == 0 {
			continue
		}
		putUint64(buf[:8], uint64(i))
		putUint64(buf[8:], uint64(int64(amount)))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// Entries returns the non-zero quantities in database order.
func (c *Collection) Entries(db *Database) []Quantity {
	out := make([]Quantity, 0)
	for i, amount := range c.amounts {
		if amount == 0 || i >= db.Len() {
			continue
		}
		out = append(out, Quantity{Resource: db.All()[i], Amount: amount})
	}
	return out
}

// Format renders the non-zero entries as "Name x1, Other x3".
func (c *Collection) Format(db *Database) string {
	entries := c.Entries(db)
	parts := make([]string, len(entries))
	for i, q := range entries {
		parts[i] = q.String()
	}
	return strings.Join(parts, ", ")
}

func clamp(r *Info, amount int) int {
	if amount > r.MaxCapacity {
		return r.MaxCapacity
	}
	low := 0
	if r.AllowNegative {
		low = -r.MaxCapacity
	}
	if amount < low {
		return low
	}
	return amount
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
