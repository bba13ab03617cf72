// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package requirements provides the logical requirement model.
//
// Requirements are boolean formulas over resource-threshold atoms. They are
// authored as a tree (Resource, And, Or, Template) and normalized into a
// sum-of-products Set (an OR of Lists, each an AND of Individual atoms) for
// fast satisfaction checks inside the reachability search.
//
// # Damage
//
// An Individual whose resource has type resources.TypeDamage does not test a
// held amount. It costs energy instead: the amount, scaled by the database's
// damage reductions for the currently held items, is subtracted from the
// current energy and the requirement holds only if at least 1 energy remains.
//
// # Constant Folding
//
// Tricks, versions and misc settings are fixed for a whole generation. Patch
// replaces atoms on those resources with their known truth value and
// simplifies the result, which shrinks the search space ahead of time.
//
// # Thread Safety
//
// All types in this package are immutable values and safe for concurrent use.
package requirements

import (
	"fmt"

	"github.com/AleutianAI/RandoForge/services/rando/resources"
)

// Individual is a single resource-threshold atom.
type Individual struct {
	// Resource is the resource being tested.
	Resource *resources.Info

	// Amount is the threshold. For damage resources it is the damage taken.
	Amount int

	// Negate inverts the test: the held amount must be below Amount.
	Negate bool
}

// IsDamage reports whether this atom costs energy instead of testing an amount.
func (r Individual) IsDamage() bool {
	return r.Resource.Type == resources.TypeDamage
}

// Satisfied tests the atom against c. Damage atoms always report true here;
// their cost is accounted for by List.Satisfied.
func (r Individual) Satisfied(c *resources.Collection) bool {
	if r.IsDamage() {
		return true
	}
	held := c.Get(r.Resource)
	if r.Negate {
		return held < r.Amount
	}
	return held >= r.Amount
}

// Damage returns the energy cost of a damage atom for collection c, or 0.
func (r Individual) Damage(c *resources.Collection, db *resources.Database) int {
	if !r.IsDamage() {
		return 0
	}
	if db == nil {
		return r.Amount
	}
	return db.ScaledDamage(r.Resource, r.Amount, c)
}

// String renders the atom.
func (r Individual) String() string {
	switch {
	case r.IsDamage():
		return fmt.Sprintf("%s %d", r.Resource, r.Amount)
	case r.Negate:
		return fmt.Sprintf("%s < %d", r.Resource, r.Amount)
	default:
		return fmt.Sprintf("%s >= %d", r.Resource, r.Amount)
	}
}

// covers reports whether holding other implies holding r.
func (r Individual) covers(other Individual) bool {
	if r.Resource != other.Resource || r.Negate != other.Negate {
		return false
	}
	if r.Negate {
		return other.Amount <= r.Amount
	}
	return other.Amount >= r.Amount
}

func (r Individual) less(other Individual) bool {
	if r.Resource.Index != other.Resource.Index {
		return r.Resource.Index < other.Resource.Index
	}
	if r.Negate != other.Negate {
		return !r.Negate
	}
	return r.Amount < other.Amount
}
