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
	"fmt"
	"math"
)

// Default energy settings used when a Database does not override them.
const (
	// DefaultBaseEnergy is the energy of a player holding no energy tanks.
	DefaultBaseEnergy = 99

	// DefaultEnergyPerTank is the energy added by each energy tank.
	DefaultEnergyPerTank = 100
)

// Database is the interned catalog of every resource of one game.
//
// Description:
//
//	Resources are added once while the game data is loaded and receive a
//	dense Index in declaration order. Lookups by (Type, ShortName) are O(1).
//	The database also carries the energy model (energy tank item, base
//	energy, energy per tank) and damage reductions.
//
// Thread Safety:
//
//	NOT safe for concurrent Add. Read-only use after loading is safe.
type Database struct {
	resources  []*Info
	byName     [NumTypes]map[string]*Info
	reductions map[int][]DamageReduction

	// EnergyTank is the item that raises maximum energy. May be nil.
	EnergyTank *Info

	// BaseEnergy is the maximum energy with no energy tanks.
	BaseEnergy int

	// EnergyPerTank is added to the maximum energy for each tank held.
	EnergyPerTank int
}

// NewDatabase creates an empty resource database with default energy settings.
func NewDatabase() *Database {
	db := &Database{
		resources:     make([]*Info, 0, 64),
		reductions:    make(map[int][]DamageReduction),
		BaseEnergy:    DefaultBaseEnergy,
		EnergyPerTank: DefaultEnergyPerTank,
	}
	for i := range db.byName {
		db.byName[i] = make(map[string]*Info)
	}
	return db
}

// Add interns a new resource.
//
// Inputs:
//
//	t - Resource type.
//	shortName - Unique name within t.
//	longName - Display name. Defaults to shortName when empty.
//	maxCapacity - Maximum amount held. Must be >= 1.
//
// Outputs:
//
//	*Info - The interned resource.
//	error - ErrDuplicateResource or ErrInvalidCapacity.
func (db *Database) Add(t Type, shortName, longName string, maxCapacity int) (*Info, error) {
	if t < 0 || t >= NumTypes {
		return nil, fmt.Errorf("%w: type %d", ErrUnknownResource, t)
	}
	if maxCapacity < 1 {
		return nil, fmt.Errorf("%w: %s has %d", ErrInvalidCapacity, shortName, maxCapacity)
	}
	if _, exists := db.byName[t][shortName]; exists {
		return nil, fmt.Errorf("%w: %s %s", ErrDuplicateResource, t, shortName)
	}
	if longName == "" {
		longName = shortName
	}

	info := &Info{
		Type:        t,
		Index:       len(db.resources),
		ShortName:   shortName,
		LongName:    longName,
		MaxCapacity: maxCapacity,
	}
	db.resources = append(db.resources, info)
	db.byName[t][shortName] = info
	return info, nil
}

// MustAdd is like Add but panics on error. Intended for fixtures.
func (db *Database) MustAdd(t Type, shortName, longName string, maxCapacity int) *Info {
	info, err := db.Add(t, shortName, longName, maxCapacity)
	if err != nil {
		panic(err)
	}
	return info
}

// Get looks up a resource by type and short name.
func (db *Database) Get(t Type, shortName string) (*Info, bool) {
	if t < 0 || t >= NumTypes {
		return nil, false
	}
	info, ok := db.byName[t][shortName]
	return info, ok
}

// Lookup is like Get but returns ErrUnknownResource when missing.
func (db *Database) Lookup(t Type, shortName string) (*Info, error) {
	info, ok := db.Get(t, shortName)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownResource, t, shortName)
	}
	return info, nil
}

// Len returns the number of resources in the database.
func (db *Database) Len() int {
	return len(db.resources)
}

// All returns every resource in declaration order.
//
// The returned slice is shared and MUST NOT be modified.
func (db *Database) All() []*Info {
	return db.resources
}

// OfType returns every resource of a type in declaration order.
func (db *Database) OfType(t Type) []*Info {
	out := make([]*Info, 0)
	for _, r := range db.resources {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// AddDamageReduction registers a multiplier applied to damage of kind
// damage while item is held.
func (db *Database) AddDamageReduction(damage, item *Info, multiplier float64) {
	db.reductions[damage.Index] = append(db.reductions[damage.Index], DamageReduction{
		Item:       item,
		Multiplier: multiplier,
	})
}

// DamageReductions returns the reductions registered for a damage kind.
func (db *Database) DamageReductions(damage *Info) []DamageReduction {
	return db.reductions[damage.Index]
}

// DamageMultiplier returns the product of the multipliers of every reduction
// for damage that applies to the given collection.
func (db *Database) DamageMultiplier(damage *Info, c *Collection) float64 {
	multiplier := 1.0
	for _, r := range db.reductions[damage.Index] {
		if r.Item == nil || c.Has(r.Item) {
			multiplier *= r.Multiplier
		}
	}
	return multiplier
}

// ScaledDamage returns the energy cost of amount damage of kind damage.
// Fractional costs round up so a reduction never makes damage free by accident.
func (db *Database) ScaledDamage(damage *Info, amount int, c *Collection) int {
	m := db.DamageMultiplier(damage, c)
	if m == 1 {
		return amount
	}
	return int(math.Ceil(float64(amount) * m))
}

// MaxEnergy returns the maximum energy for a collection.
func (db *Database) MaxEnergy(c *Collection) int {
	energy := db.BaseEnergy
	if db.EnergyTank != nil {
		energy += db.EnergyPerTank * c.Get(db.EnergyTank)
	}
	return energy
}
