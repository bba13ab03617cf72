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

// Set is a disjunction of Lists: any one alternative suffices.
//
// Description:
//
//	A Set with a single empty List is trivially satisfied. A Set with no
//	Lists is impossible. Alternatives are kept in a canonical order by
//	(difficulty, length, rendered text) so iteration is deterministic, and
//	alternatives implied by a weaker alternative are removed.
//
// Thread Safety: Immutable value, safe for concurrent use.
type Set struct {
	alternatives []List
}

// TrivialSet returns the set that every collection satisfies.
func TrivialSet() Set {
	return Set{alternatives: []List{{}}}
}

// ImpossibleSet returns the set that no collection satisfies.
func ImpossibleSet() Set {
	return Set{}
}

// NewSet builds a normalized set from the given alternatives.
func NewSet(alternatives ...List) Set {
	if len(alternatives) == 0 {
		return Set{}
	}

	for _, alt := range alternatives {
		if alt.Len() == 0 {
			return TrivialSet()
		}
	}

	type keyed struct {
		list       List
		difficulty int
		text       string
	}
	sorted := make([]keyed, len(alternatives))
	for i, alt := range alternatives {
		sorted[i] = keyed{list: alt, difficulty: alt.Difficulty(), text: alt.String()}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.difficulty != b.difficulty {
			return a.difficulty < b.difficulty
		}
		if a.list.Len() != b.list.Len() {
			return a.list.Len() < b.list.Len()
		}
		return a.text < b.text
	})

	// An alternative is dropped when another one is weaker. Of two
	// equivalent alternatives the first in canonical order survives.
	kept := make([]List, 0, len(sorted))
	for i, k := range sorted {
		redundant := false
		for j, other := range sorted {
			if i == j || !other.list.weakerOrEqual(k.list) {
				continue
			}
			if j < i || !k.list.weakerOrEqual(other.list) {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, k.list)
		}
	}
	return Set{alternatives: kept}
}

// Alternatives returns the lists. The slice MUST NOT be modified.
func (s Set) Alternatives() []List {
	return s.alternatives
}

// IsTrivial reports whether the set always holds.
func (s Set) IsTrivial() bool {
	return len(s.alternatives) == 1 && s.alternatives[0].Len() == 0
}

// IsImpossible reports whether the set never holds.
func (s Set) IsImpossible() bool {
	return len(s.alternatives) == 0
}

// Satisfied reports whether any alternative holds. Short-circuits on the
// first satisfied alternative.
func (s Set) Satisfied(c *resources.Collection, energy int, db *resources.Database) bool {
	for _, alt := range s.alternatives {
		if alt.Satisfied(c, energy, db) {
			return true
		}
	}
	return false
}

// MinimumDamage returns the lowest damage cost among satisfied alternatives.
//
// Outputs:
//
//	int - Damage cost of the cheapest satisfied alternative.
//	bool - False when no alternative is satisfied.
func (s Set) MinimumDamage(c *resources.Collection, energy int, db *resources.Database) (int, bool) {
	best, found := 0, false
	for _, alt := range s.alternatives {
		damage, ok := alt.cost(c, energy, db)
		if !ok {
			continue
		}
		if !found || damage < best {
			best, found = damage, true
			if best == 0 {
				break
			}
		}
	}
	return best, found
}

// Difficulty returns the difficulty of the easiest alternative, or 0.
func (s Set) Difficulty() int {
	if len(s.alternatives) == 0 {
		return 0
	}
	return s.alternatives[0].Difficulty()
}

// Union returns the disjunction of s and o.
func (s Set) Union(o Set) Set {
	combined := make([]List, 0, len(s.alternatives)+len(o.alternatives))
	combined = append(combined, s.alternatives...)
	combined = append(combined, o.alternatives...)
	return NewSet(combined...)
}

// Intersect returns the conjunction of s and o, distributing AND over OR.
func (s Set) Intersect(o Set) Set {
	if s.IsImpossible() || o.IsImpossible() {
		return ImpossibleSet()
	}
	if s.IsTrivial() {
		return o
	}
	if o.IsTrivial() {
		return s
	}
	product := make([]List, 0, len(s.alternatives)*len(o.alternatives))
	for _, a := range s.alternatives {
		for _, b := range o.alternatives {
			product = append(product, a.And(b))
		}
	}
	return NewSet(product...)
}

// Patch constant-folds atoms on static resources against static.
//
// Description:
//
//	Atoms on static resources (tricks, versions, misc) are evaluated once.
//	A false atom drops its whole alternative, a true atom is removed from its
//	alternative. An alternative left empty makes the whole set trivial.
func (s Set) Patch(static *resources.Collection) Set {
	out := make([]List, 0, len(s.alternatives))
	for _, alt := range s.alternatives {
		items := make([]Individual, 0, alt.Len())
		possible := true
		for _, item := range alt.items {
			if !item.Resource.Type.IsStatic() {
				items = append(items, item)
				continue
			}
			if !item.Satisfied(static) {
				possible = false
				break
			}
		}
		if !possible {
			continue
		}
		if len(items) == 0 {
			return TrivialSet()
		}
		out = append(out, List{items: items})
	}
	return NewSet(out...)
}

// DangerousResources returns the resources tested negated by any alternative.
func (s Set) DangerousResources() []*resources.Info {
	var out []*resources.Info
	for _, alt := range s.alternatives {
		out = alt.dangerous(out)
	}
	return out
}

// String renders the set as "(A) or (B)", or "Trivial"/"Impossible".
func (s Set) String() string {
	if s.IsImpossible() {
		return "Impossible"
	}
	if s.IsTrivial() {
		return "Trivial"
	}
	if len(s.alternatives) == 1 {
		return s.alternatives[0].String()
	}
	parts := make([]string, len(s.alternatives))
	for i, alt := range s.alternatives {
		parts[i] = "(" + alt.String() + ")"
	}
	return strings.Join(parts, " or ")
}
