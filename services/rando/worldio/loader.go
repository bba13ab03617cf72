// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package worldio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/requirements"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// MaxWorldBytes caps the size of a world file.
const MaxWorldBytes = 16 << 20

// World is a loaded world description.
type World struct {
	Game      string
	Resources *resources.Database
	Graph     *world.Graph

	// Pool is the pickup pool with Count copies of every pickup.
	Pool pickup.Pool
}

// Load reads and builds the world file at path.
func Load(path string, opts ...world.GraphOption) (*World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening world: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxWorldBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading world %s: %w", path, err)
	}
	w, err := Parse(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("world %s: %w", path, err)
	}
	return w, nil
}

// Parse decodes and builds a world description.
//
// Description:
//
//	Decodes data strictly (unknown fields are errors), interns the
//	resources, resolves templates, builds and freezes the graph, and
//	expands the pickup pool.
//
// Inputs:
//
//	data - YAML world description, at most MaxWorldBytes.
//	opts - Options for the world graph.
//
// Outputs:
//
//	*World - The loaded world with a frozen graph.
//	error - ErrWorldTooLarge, ErrInvalidWorld (also for YAML errors), or a
//	        world or resources error from building.
func Parse(data []byte, opts ...world.GraphOption) (*World, error) {
	if len(data) > MaxWorldBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrWorldTooLarge, len(data), MaxWorldBytes)
	}
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decoding: %w", ErrInvalidWorld, err)
	}
	return Build(&doc, opts...)
}

// Build turns a decoded Document into a World.
func Build(doc *Document, opts ...world.GraphOption) (*World, error) {
	b := &builder{
		doc:       doc,
		db:        resources.NewDatabase(),
		resolved:  make(map[string]requirements.Requirement),
		resolving: make(map[string]bool),
	}
	if doc.Game != "" {
		opts = append([]world.GraphOption{world.WithName(doc.Game)}, opts...)
	}

	if err := b.resources(); err != nil {
		return nil, err
	}
	b.graph = world.NewGraph(b.db, opts...)
	if err := b.weaknesses(); err != nil {
		return nil, err
	}
	if err := b.regions(); err != nil {
		return nil, err
	}

	if doc.Victory.line == 0 {
		return nil, invalid("no victory condition")
	}
	victory, err := b.requirement(doc.Victory)
	if err != nil {
		return nil, fmt.Errorf("victory: %w", err)
	}
	b.graph.SetStartingLocation(doc.Start)
	b.graph.SetVictoryCondition(victory)
	if err := b.graph.Freeze(); err != nil {
		return nil, err
	}

	pool, err := b.pool()
	if err != nil {
		return nil, err
	}
	slog.Default().Debug("world loaded",
		slog.String("component", "worldio"),
		slog.String("game", doc.Game),
		slog.Int("nodes", b.graph.NodeCount()),
		slog.Int("pickups", len(pool)),
	)
	return &World{Game: doc.Game, Resources: b.db, Graph: b.graph, Pool: pool}, nil
}

type builder struct {
	doc   *Document
	db    *resources.Database
	graph *world.Graph

	resolved  map[string]requirements.Requirement
	resolving map[string]bool
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidWorld, fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------
// Resources
// -----------------------------------------------------------------------------

func (b *builder) resources() error {
	groups := []struct {
		t    resources.Type
		docs []ResourceDoc
	}{
		{resources.TypeItem, b.doc.Resources.Items},
		{resources.TypeEvent, b.doc.Resources.Events},
		{resources.TypeTrick, b.doc.Resources.Tricks},
		{resources.TypeDamage, b.doc.Resources.Damage},
		{resources.TypeVersion, b.doc.Resources.Versions},
		{resources.TypeMisc, b.doc.Resources.Misc},
	}
	for _, g := range groups {
		for _, d := range g.docs {
			capacity := d.Max
			if capacity == 0 {
				capacity = 1
			}
			r, err := b.db.Add(g.t, d.Short, d.Long, capacity)
			if err != nil {
				return fmt.Errorf("resource %s %q: %w", g.t, d.Short, err)
			}
			r.AllowNegative = d.AllowNegative
		}
	}

	if e := b.doc.Energy; e != nil {
		tank, err := b.item(e.Tank)
		if err != nil {
			return fmt.Errorf("energy tank: %w", err)
		}
		b.db.EnergyTank = tank
		if e.Base > 0 {
			b.db.BaseEnergy = e.Base
		}
		if e.PerTank > 0 {
			b.db.EnergyPerTank = e.PerTank
		}
	}

	for _, red := range b.doc.DamageReductions {
		damage, err := b.db.Lookup(resources.TypeDamage, red.Damage)
		if err != nil {
			return fmt.Errorf("damage reduction: %w", err)
		}
		var item *resources.Info
		if red.Item != "" {
			if item, err = b.item(red.Item); err != nil {
				return fmt.Errorf("damage reduction of %s: %w", red.Damage, err)
			}
		}
		if red.Multiplier < 0 {
			return invalid("damage reduction of %s has a negative multiplier", red.Damage)
		}
		b.db.AddDamageReduction(damage, item, red.Multiplier)
	}
	return nil
}

func (b *builder) item(name string) (*resources.Info, error) {
	return b.db.Lookup(resources.TypeItem, name)
}

func (b *builder) gain(docs []QuantityDoc) (resources.Gain, error) {
	gain := make(resources.Gain, 0, len(docs))
	for _, q := range docs {
		r, err := b.item(q.Item)
		if err != nil {
			return nil, err
		}
		gain = append(gain, resources.Quantity{Resource: r, Amount: q.Amount})
	}
	return gain, nil
}

// -----------------------------------------------------------------------------
// Requirements
// -----------------------------------------------------------------------------

// requirement builds d. A document with no keys is trivial.
func (b *builder) requirement(d RequirementDoc) (requirements.Requirement, error) {
	switch {
	case d.Constant == ConstantTrivial:
		return requirements.Trivial(), nil
	case d.Constant == ConstantImpossible:
		return requirements.Impossible(), nil
	case d.And != nil:
		items, err := b.requirementList(d.And)
		if err != nil {
			return nil, err
		}
		return requirements.And{Items: items}, nil
	case d.Or != nil:
		items, err := b.requirementList(d.Or)
		if err != nil {
			return nil, err
		}
		return requirements.Or{Items: items}, nil
	case d.Template != "":
		return b.template(d.Template, d.line)
	case d.Resource != "":
		r, err := b.db.Lookup(d.Type, d.Resource)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", d.line, err)
		}
		if d.Amount < 0 {
			return nil, invalid("line %d: negative amount for %s", d.line, d.Resource)
		}
		return requirements.NewResource(r, d.Amount, d.Negate), nil
	default:
		return requirements.Trivial(), nil
	}
}

func (b *builder) requirementList(docs []RequirementDoc) ([]requirements.Requirement, error) {
	items := make([]requirements.Requirement, 0, len(docs))
	for _, d := range docs {
		r, err := b.requirement(d)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, nil
}

func (b *builder) optional(d *RequirementDoc) (requirements.Requirement, error) {
	if d == nil {
		return requirements.Trivial(), nil
	}
	return b.requirement(*d)
}

// template resolves a template once and detects reference cycles.
func (b *builder) template(name string, line int) (requirements.Requirement, error) {
	if r, ok := b.resolved[name]; ok {
		return r, nil
	}
	doc, ok := b.doc.Templates[name]
	if !ok {
		return nil, invalid("line %d: unknown template %q", line, name)
	}
	if b.resolving[name] {
		return nil, invalid("template %q references itself", name)
	}
	b.resolving[name] = true
	body, err := b.requirement(doc)
	delete(b.resolving, name)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	r := requirements.Template{Name: name, Body: body}
	b.resolved[name] = r
	return r, nil
}

// -----------------------------------------------------------------------------
// Graph
// -----------------------------------------------------------------------------

func (b *builder) weaknesses() error {
	types := make([]string, 0, len(b.doc.DockWeaknesses))
	for t := range b.doc.DockWeaknesses {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		for _, w := range b.doc.DockWeaknesses[t] {
			req, err := b.optional(w.Requirement)
			if err != nil {
				return fmt.Errorf("dock weakness %s/%s: %w", t, w.Name, err)
			}
			if _, err := b.graph.AddDockWeakness(t, w.Name, req); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) regions() error {
	next := 0
	for _, region := range b.doc.Regions {
		for _, area := range region.Areas {
			for _, n := range area.Nodes {
				id := world.NodeIdentifier{Region: region.Name, Area: area.Name, Node: n.Name}
				payload, err := b.payload(id, n, &next)
				if err != nil {
					return err
				}
				if _, err := b.graph.AddNode(world.NodeSpec{
					Identifier: id,
					Payload:    payload,
					Heal:       n.Heal,
					Layers:     n.Layers,
				}); err != nil {
					return err
				}
			}
			for _, c := range area.Connections {
				from := world.NodeIdentifier{Region: region.Name, Area: area.Name, Node: c.From}
				to := world.NodeIdentifier{Region: region.Name, Area: area.Name, Node: c.To}
				req, err := b.optional(c.Requirement)
				if err != nil {
					return fmt.Errorf("connection %s -> %s: %w", from, c.To, err)
				}
				if err := b.graph.Connect(from, to, req); err != nil {
					return err
				}
				if c.Both {
					if err := b.graph.Connect(to, from, req); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// payload builds the payload of one node. next tracks the default pickup
// index.
func (b *builder) payload(id world.NodeIdentifier, n NodeDoc, next *int) (world.Payload, error) {
	var payload world.Payload
	set := 0
	if n.Dock != nil {
		set++
		w, err := b.dockWeakness(id, n.Dock)
		if err != nil {
			return nil, err
		}
		payload = &world.Dock{DockType: n.Dock.Type, Target: n.Dock.Target, DefaultWeakness: w}
	}
	if n.Pickup != nil {
		set++
		category := world.CategoryMinor
		if n.Pickup.Category != "" {
			c, err := world.ParseLocationCategory(n.Pickup.Category)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", id, err)
			}
			category = c
		}
		index := *next
		if n.Pickup.Index != nil {
			index = *n.Pickup.Index
		}
		if index < 0 {
			return nil, invalid("%s has a negative pickup index", id)
		}
		if index >= *next {
			*next = index + 1
		}
		payload = &world.PickupLocation{Index: world.PickupIndex(index), Category: category}
	}
	if n.Event != "" {
		set++
		r, err := b.db.Lookup(resources.TypeEvent, n.Event)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		payload = &world.Event{Resource: r}
	}
	if n.Configurable != nil {
		set++
		req, err := b.requirement(*n.Configurable)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		payload = &world.Configurable{Default: req}
	}
	if n.Teleporter != nil {
		set++
		req, err := b.optional(n.Teleporter.Requirement)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		payload = &world.Teleporter{Target: n.Teleporter.Target, Requirement: req}
	}
	if set > 1 {
		return nil, invalid("%s declares %d node kinds", id, set)
	}
	return payload, nil
}

func (b *builder) dockWeakness(id world.NodeIdentifier, d *DockDoc) (*world.DockWeakness, error) {
	if d.Weakness == "" {
		all := b.graph.DockWeaknesses(d.Type)
		if len(all) == 0 {
			return nil, invalid("%s: dock type %q has no weaknesses", id, d.Type)
		}
		return all[0], nil
	}
	w, ok := b.graph.DockWeakness(d.Type, d.Weakness)
	if !ok {
		return nil, invalid("%s: unknown dock weakness %s/%s", id, d.Type, d.Weakness)
	}
	return w, nil
}

// -----------------------------------------------------------------------------
// Pickups
// -----------------------------------------------------------------------------

func (b *builder) pool() (pickup.Pool, error) {
	var pool pickup.Pool
	names := make(map[string]bool)
	for _, d := range b.doc.Pickups {
		if d.Name == "" {
			return nil, invalid("pickup without a name")
		}
		if names[d.Name] {
			return nil, invalid("duplicate pickup %q", d.Name)
		}
		names[d.Name] = true

		e, err := b.entry(d)
		if err != nil {
			return nil, fmt.Errorf("pickup %q: %w", d.Name, err)
		}
		count := d.Count
		if count == 0 {
			count = 1
		}
		if count < 0 {
			return nil, invalid("pickup %q has a negative count", d.Name)
		}
		for i := 0; i < count; i++ {
			pool = append(pool, e)
		}
	}
	return pool, nil
}

func (b *builder) entry(d PickupDoc) (*pickup.Entry, error) {
	e := &pickup.Entry{
		Name:            d.Name,
		Model:           d.Model,
		Category:        d.Category,
		UnlocksResource: d.UnlocksResource,
		Params: pickup.Params{
			PreferredLocationCategory: world.CategoryMinor,
			ProbabilityOffset:         d.ProbabilityOffset,
			ProbabilityMultiplier:     d.ProbabilityMultiplier,
			IndexAgeImpact:            d.IndexAgeImpact,
			RequiredProgression:       d.RequiredProgression,
		},
	}
	if e.Model == "" {
		e.Model = d.Name
	}
	if d.PreferredLocation != "" {
		c, err := world.ParseLocationCategory(d.PreferredLocation)
		if err != nil {
			return nil, err
		}
		e.Params.PreferredLocationCategory = c
	}

	for _, s := range d.Progression {
		gain, err := b.gain(s.Gain)
		if err != nil {
			return nil, err
		}
		stage := pickup.Conditional{Resources: gain}
		if s.Requires != "" {
			if stage.Item, err = b.item(s.Requires); err != nil {
				return nil, err
			}
		}
		e.Progression = append(e.Progression, stage)
	}
	extra, err := b.gain(d.Extra)
	if err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		e.ExtraResources = extra
	}

	if l := d.Lock; l != nil {
		lock := &pickup.Lock{}
		if lock.LockedBy, err = b.item(l.LockedBy); err != nil {
			return nil, err
		}
		if lock.TemporaryItem, err = b.item(l.Temporary); err != nil {
			return nil, err
		}
		if lock.ItemToLock, err = b.item(l.Item); err != nil {
			return nil, err
		}
		e.Lock = lock
	}
	return e, nil
}
