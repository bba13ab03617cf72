// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package requirements

import (
	"sort"
	"strings"

	"github.com/AleutianAI/RandoForge/services/rando/resources"
)

// List is a conjunction of atoms: every item must hold.
//
// Items are kept sorted by resource index with at most one atom per
// (resource, negate) pair. Merging keeps the strictest threshold, except for
// damage atoms whose amounts add up.
type List struct {
	items []Individual
}

// NewList builds a normalized List.
func NewList(items ...Individual) List {
	if len(items) == 0 {
		return List{}
	}
	sorted := make([]Individual, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].less(sorted[j])
	})

	merged := sorted[:0:0]
	for _, item := range sorted {
		n := len(merged)
		if n > 0 && merged[n-1].Resource == item.Resource && merged[n-1].Negate == item.Negate {
			prev := &merged[n-1]
			switch {
			case item.IsDamage():
				prev.Amount += item.Amount
			case item.Negate:
				if item.Amount < prev.Amount {
					prev.Amount = item.Amount
				}
			default:
				if item.Amount > prev.Amount {
					prev.Amount = item.Amount
				}
			}
			continue
		}
		merged = append(merged, item)
	}
	return List{items: merged}
}

// Items returns the atoms. The slice MUST NOT be modified.
func (l List) Items() []Individual {
	return l.items
}

// Len returns the number of atoms.
func (l List) Len() int {
	return len(l.items)
}

// Difficulty is the highest trick level required by the list.
func (l List) Difficulty() int {
	difficulty := 0
	for _, item := range l.items {
		if item.Resource.Type == resources.TypeTrick && !item.Negate && item.Amount > difficulty {
			difficulty = item.Amount
		}
	}
	return difficulty
}

// DamageCost returns the total energy cost of the damage atoms for c.
func (l List) DamageCost(c *resources.Collection, db *resources.Database) int {
	total := 0
	for _, item := range l.items {
		total += item.Damage(c, db)
	}
	return total
}

// Satisfied reports whether every non-damage atom holds for c and the total
// damage leaves at least 1 energy.
func (l List) Satisfied(c *resources.Collection, energy int, db *resources.Database) bool {
	_, ok := l.cost(c, energy, db)
	return ok
}

// cost returns the damage cost when the list is satisfied.
func (l List) cost(c *resources.Collection, energy int, db *resources.Database) (int, bool) {
	damage := 0
	for _, item := range l.items {
		if item.IsDamage() {
			damage += item.Damage(c, db)
			continue
		}
		if !item.Satisfied(c) {
			return 0, false
		}
	}
	if damage > 0 && energy-damage < 1 {
		return 0, false
	}
	return damage, true
}

// And returns the conjunction of l and o.
func (l List) And(o List) List {
	if len(l.items) == 0 {
		return o
	}
	if len(o.items) == 0 {
		return l
	}
	combined := make([]Individual, 0, len(l.items)+len(o.items))
	combined = append(combined, l.items...)
	combined = append(combined, o.items...)
	return NewList(combined...)
}

// weakerOrEqual reports whether satisfying o always satisfies l, i.e. every
// atom of l is covered by an atom of o. Damage atoms must match exactly.
func (l List) weakerOrEqual(o List) bool {
	for _, mine := range l.items {
		covered := false
		for _, theirs := range o.items {
			if mine.IsDamage() {
				if theirs.Resource == mine.Resource && theirs.Amount >= mine.Amount {
					covered = true
					break
				}
				continue
			}
			if mine.covers(theirs) {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
	}
	return true
}

// dangerous appends the resources this list tests negated.
func (l List) dangerous(out []*resources.Info) []*resources.Info {
	for _, item := range l.items {
		if item.Negate {
			out = append(out, item.Resource)
		}
	}
	return out
}

// String renders the list as "A >= 1 and B >= 2", or "Trivial" when empty.
func (l List) String() string {
	if len(l.items) == 0 {
		return "Trivial"
	}
	parts := make([]string, len(l.items))
	for i, item := range l.items {
		parts[i] = item.String()
	}
	return strings.Join(parts, " and ")
}
