// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resources provides the resource catalog and resource collections.
//
// A resource is anything the logic can count: items, events, trick levels,
// damage kinds, game versions and miscellaneous settings. Every resource is
// described once by an immutable Info interned in a Database. The amount a
// player currently holds is tracked by a Collection, a dense vector indexed
// by Info.Index.
//
// # Ownership Model
//
// Info values are owned by the Database that created them and MUST NOT be
// mutated after Add returns. Collections are owned by whoever created them;
// search code never mutates a Collection that another State references and
// derives new collections with WithGain or Duplicate instead.
//
// # Thread Safety
//
// A Database is NOT safe for concurrent Add calls. Once fully populated it
// may be read from any number of goroutines. Collections are not safe for
// concurrent mutation.
package resources

import "fmt"

// Type classifies a resource.
type Type int

const (
	// TypeItem is a collectible inventory item (missiles, keys, upgrades).
	TypeItem Type = iota

	// TypeEvent is a one-shot world event (boss defeated, switch pressed).
	TypeEvent

	// TypeTrick is a trick whose amount is the enabled difficulty level.
	TypeTrick

	// TypeDamage is a damage kind; requirements on it consume energy.
	TypeDamage

	// TypeVersion is a game version flag.
	TypeVersion

	// TypeMisc is a miscellaneous configuration flag.
	TypeMisc

	// NumTypes is the number of resource types (for array sizing).
	NumTypes
)

var typeNames = [NumTypes]string{
	TypeItem:    "item",
	TypeEvent:   "event",
	TypeTrick:   "trick",
	TypeDamage:  "damage",
	TypeVersion: "version",
	TypeMisc:    "misc",
}

// String returns the string representation of the Type.
func (t Type) String() string {
	if t >= 0 && t < NumTypes {
		return typeNames[t]
	}
	return "unknown"
}

// ParseType converts a name produced by String back to a Type.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: resource type %q", ErrUnknownResource, name)
}

// IsStatic reports whether resources of this type are fixed for the whole
// generation and can be constant-folded out of requirements.
func (t Type) IsStatic() bool {
	return t == TypeTrick || t == TypeVersion || t == TypeMisc
}

// Info describes one resource.
type Info struct {
	// Type is the resource classification.
	Type Type

	// Index is the dense position of this resource in its Database.
	Index int

	// ShortName is the unique name within the resource's Type.
	ShortName string

	// LongName is the human-readable name.
	LongName string

	// MaxCapacity is the largest amount a Collection may hold. Always >= 1.
	MaxCapacity int

	// AllowNegative permits negative balances (ammunition locks).
	AllowNegative bool
}

// String returns the long name of the resource.
func (r *Info) String() string {
	if r == nil {
		return "<nil>"
	}
	return r.LongName
}

// Quantity is an amount of a single resource.
type Quantity struct {
	Resource *Info
	Amount   int
}

// String returns "LongName x Amount".
func (q Quantity) String() string {
	return fmt.Sprintf("%s x%d", q.Resource, q.Amount)
}

// Gain is an ordered list of resource amounts added by one action.
type Gain []Quantity

// DamageReduction scales the damage of a damage resource while Item is held.
//
// A nil Item applies unconditionally.
type DamageReduction struct {
	Item       *Info
	Multiplier float64
}
