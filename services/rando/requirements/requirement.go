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
	"strings"

	"github.com/AleutianAI/RandoForge/services/rando/resources"
)

// Requirement is a node of a requirement expression tree.
//
// The implementations are Resource, And, Or and Template. The set is closed.
type Requirement interface {
	// Satisfied evaluates the tree. Damage atoms inside an And consume
	// energy in order; an Or picks the branch leaving the most energy.
	Satisfied(c *resources.Collection, energy int, db *resources.Database) bool

	// AsSet normalizes the tree into sum-of-products form.
	AsSet() Set

	// Patch constant-folds atoms on static resources and simplifies.
	Patch(static *resources.Collection) Requirement

	// String renders the tree.
	String() string

	// remaining returns the energy left after satisfying the tree.
	remaining(c *resources.Collection, energy int, db *resources.Database) (int, bool)
}

// Trivial returns the requirement that always holds.
func Trivial() Requirement {
	return And{}
}

// Impossible returns the requirement that never holds.
func Impossible() Requirement {
	return Or{}
}

// IsTrivial reports whether r is an empty And.
func IsTrivial(r Requirement) bool {
	and, ok := r.(And)
	return ok && len(and.Items) == 0
}

// IsImpossible reports whether r is an empty Or.
func IsImpossible(r Requirement) bool {
	or, ok := r.(Or)
	return ok && len(or.Items) == 0
}

// ---- Resource ----

// Resource is a leaf requirement wrapping one atom.
type Resource struct {
	Individual
}

// NewResource creates a leaf requirement.
func NewResource(r *resources.Info, amount int, negate bool) Resource {
	return Resource{Individual{Resource: r, Amount: amount, Negate: negate}}
}

// Satisfied implements Requirement.
func (r Resource) Satisfied(c *resources.Collection, energy int, db *resources.Database) bool {
	_, ok := r.remaining(c, energy, db)
	return ok
}

func (r Resource) remaining(c *resources.Collection, energy int, db *resources.Database) (int, bool) {
	if r.IsDamage() {
		left := energy - r.Damage(c, db)
		return left, left >= 1
	}
	return energy, r.Individual.Satisfied(c)
}

// AsSet implements Requirement.
func (r Resource) AsSet() Set {
	return Set{alternatives: []List{NewList(r.Individual)}}
}

// Patch implements Requirement.
func (r Resource) Patch(static *resources.Collection) Requirement {
	if !r.Resource.Type.IsStatic() {
		return r
	}
	if r.Individual.Satisfied(static) {
		return Trivial()
	}
	return Impossible()
}

// String implements Requirement.
func (r Resource) String() string {
	return r.Individual.String()
}

// ---- And ----

// And holds when every item holds.
type And struct {
	Items []Requirement
}

// Satisfied implements Requirement.
func (a And) Satisfied(c *resources.Collection, energy int, db *resources.Database) bool {
	_, ok := a.remaining(c, energy, db)
	return ok
}

func (a And) remaining(c *resources.Collection, energy int, db *resources.Database) (int, bool) {
	for _, item := range a.Items {
		var ok bool
		energy, ok = item.remaining(c, energy, db)
		if !ok {
			return 0, false
		}
	}
	return energy, true
}

// AsSet implements Requirement.
func (a And) AsSet() Set {
	out := TrivialSet()
	for _, item := range a.Items {
		out = out.Intersect(item.AsSet())
		if out.IsImpossible() {
			return out
		}
	}
	return out
}

// Patch implements Requirement.
func (a And) Patch(static *resources.Collection) Requirement {
	items := make([]Requirement, 0, len(a.Items))
	for _, item := range a.Items {
		patched := item.Patch(static)
		switch {
		case IsImpossible(patched):
			return Impossible()
		case IsTrivial(patched):
			continue
		}
		if nested, ok := patched.(And); ok {
			items = append(items, nested.Items...)
			continue
		}
		items = append(items, patched)
	}
	if len(items) == 1 {
		return items[0]
	}
	return And{Items: items}
}

// String implements Requirement.
func (a And) String() string {
	if len(a.Items) == 0 {
		return "Trivial"
	}
	return join(a.Items, " and ")
}

// ---- Or ----

// Or holds when any item holds.
type Or struct {
	Items []Requirement
}

// Satisfied implements Requirement.
func (o Or) Satisfied(c *resources.Collection, energy int, db *resources.Database) bool {
	for _, item := range o.Items {
		if item.Satisfied(c, energy, db) {
			return true
		}
	}
	return false
}

func (o Or) remaining(c *resources.Collection, energy int, db *resources.Database) (int, bool) {
	best, found := 0, false
	for _, item := range o.Items {
		left, ok := item.remaining(c, energy, db)
		if !ok {
			continue
		}
		if left == energy {
			return left, true
		}
		if !found || left > best {
			best, found = left, true
		}
	}
	return best, found
}

// AsSet implements Requirement.
func (o Or) AsSet() Set {
	all := make([]List, 0, len(o.Items))
	for _, item := range o.Items {
		set := item.AsSet()
		if set.IsTrivial() {
			return set
		}
		all = append(all, set.alternatives...)
	}
	return NewSet(all...)
}

// Patch implements Requirement.
func (o Or) Patch(static *resources.Collection) Requirement {
	items := make([]Requirement, 0, len(o.Items))
	for _, item := range o.Items {
		patched := item.Patch(static)
		switch {
		case IsTrivial(patched):
			return Trivial()
		case IsImpossible(patched):
			continue
		}
		if nested, ok := patched.(Or); ok {
			items = append(items, nested.Items...)
			continue
		}
		items = append(items, patched)
	}
	if len(items) == 1 {
		return items[0]
	}
	return Or{Items: items}
}

// String implements Requirement.
func (o Or) String() string {
	if len(o.Items) == 0 {
		return "Impossible"
	}
	return join(o.Items, " or ")
}

// ---- Template ----

// Template is a named, shared sub-requirement.
//
// Body is resolved when the world is loaded. Patch collapses a template whose
// body folds to a constant.
type Template struct {
	Name string
	Body Requirement
}

// Satisfied implements Requirement.
func (t Template) Satisfied(c *resources.Collection, energy int, db *resources.Database) bool {
	return t.body().Satisfied(c, energy, db)
}

func (t Template) remaining(c *resources.Collection, energy int, db *resources.Database) (int, bool) {
	return t.body().remaining(c, energy, db)
}

// AsSet implements Requirement.
func (t Template) AsSet() Set {
	return t.body().AsSet()
}

// Patch implements Requirement.
func (t Template) Patch(static *resources.Collection) Requirement {
	body := t.body().Patch(static)
	if IsTrivial(body) || IsImpossible(body) {
		return body
	}
	return Template{Name: t.Name, Body: body}
}

// String implements Requirement.
func (t Template) String() string {
	return t.Name
}

func (t Template) body() Requirement {
	if t.Body == nil {
		return Impossible()
	}
	return t.Body
}

func join(items []Requirement, sep string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		s := item.String()
		switch item.(type) {
		case And, Or:
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, sep)
}
