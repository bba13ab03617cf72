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
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/RandoForge/services/rando/resources"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// Document is the YAML form of a world.
type Document struct {
	Game      string       `yaml:"game"`
	Resources ResourcesDoc `yaml:"resources"`
	Energy    *EnergyDoc   `yaml:"energy,omitempty"`

	DamageReductions []ReductionDoc `yaml:"damage_reductions,omitempty"`

	// Templates are named requirements referenced with {template: Name}.
	Templates map[string]RequirementDoc `yaml:"templates,omitempty"`

	// DockWeaknesses lists the weaknesses of every dock type in order.
	DockWeaknesses map[string][]WeaknessDoc `yaml:"dock_weaknesses,omitempty"`

	Start   world.NodeIdentifier `yaml:"starting_location"`
	Victory RequirementDoc       `yaml:"victory"`

	Regions []RegionDoc `yaml:"regions"`
	Pickups []PickupDoc `yaml:"pickups"`
}

// ResourcesDoc groups resource declarations by type.
type ResourcesDoc struct {
	Items    []ResourceDoc `yaml:"items,omitempty"`
	Events   []ResourceDoc `yaml:"events,omitempty"`
	Tricks   []ResourceDoc `yaml:"tricks,omitempty"`
	Damage   []ResourceDoc `yaml:"damage,omitempty"`
	Versions []ResourceDoc `yaml:"versions,omitempty"`
	Misc     []ResourceDoc `yaml:"misc,omitempty"`
}

// ResourceDoc declares one resource. Max defaults to 1.
type ResourceDoc struct {
	Short         string `yaml:"short"`
	Long          string `yaml:"long,omitempty"`
	Max           int    `yaml:"max,omitempty"`
	AllowNegative bool   `yaml:"allow_negative,omitempty"`
}

// EnergyDoc configures the energy model.
type EnergyDoc struct {
	Tank    string `yaml:"tank"`
	Base    int    `yaml:"base,omitempty"`
	PerTank int    `yaml:"per_tank,omitempty"`
}

// ReductionDoc scales a damage type while Item is held. An empty Item
// applies unconditionally.
type ReductionDoc struct {
	Damage     string  `yaml:"damage"`
	Item       string  `yaml:"item,omitempty"`
	Multiplier float64 `yaml:"multiplier"`
}

// WeaknessDoc declares one dock weakness.
type WeaknessDoc struct {
	Name        string          `yaml:"name"`
	Requirement *RequirementDoc `yaml:"requirement,omitempty"`
}

// RegionDoc is one region.
type RegionDoc struct {
	Name  string    `yaml:"name"`
	Areas []AreaDoc `yaml:"areas"`
}

// AreaDoc is one area with its nodes and connections.
type AreaDoc struct {
	Name        string          `yaml:"name"`
	Nodes       []NodeDoc       `yaml:"nodes"`
	Connections []ConnectionDoc `yaml:"connections,omitempty"`
}

// NodeDoc is one node. At most one of Dock, Pickup, Event, Configurable
// and Teleporter may be set; none makes a generic node.
type NodeDoc struct {
	Name   string   `yaml:"name"`
	Heal   bool     `yaml:"heal,omitempty"`
	Layers []string `yaml:"layers,omitempty"`

	Dock         *DockDoc        `yaml:"dock,omitempty"`
	Pickup       *SlotDoc        `yaml:"pickup,omitempty"`
	Event        string          `yaml:"event,omitempty"`
	Configurable *RequirementDoc `yaml:"configurable,omitempty"`
	Teleporter   *TeleporterDoc  `yaml:"teleporter,omitempty"`
}

// DockDoc describes a dock. An empty Weakness uses the first weakness
// declared for Type.
type DockDoc struct {
	Type     string               `yaml:"type"`
	Weakness string               `yaml:"weakness,omitempty"`
	Target   world.NodeIdentifier `yaml:"target"`
}

// SlotDoc describes a pickup location. Index defaults to one past the
// highest index declared before it.
type SlotDoc struct {
	Index    *int   `yaml:"index,omitempty"`
	Category string `yaml:"category,omitempty"`
}

// TeleporterDoc describes a one-way teleporter.
type TeleporterDoc struct {
	Target      world.NodeIdentifier `yaml:"target"`
	Requirement *RequirementDoc      `yaml:"requirement,omitempty"`
}

// ConnectionDoc gates From to To inside the area. Both also adds the
// reverse connection with the same requirement. A missing requirement is
// trivial.
type ConnectionDoc struct {
	From        string          `yaml:"from"`
	To          string          `yaml:"to"`
	Both        bool            `yaml:"both,omitempty"`
	Requirement *RequirementDoc `yaml:"requirement,omitempty"`
}

// PickupDoc declares a pickup and how many copies the pool holds.
type PickupDoc struct {
	Name     string `yaml:"name"`
	Model    string `yaml:"model,omitempty"`
	Category string `yaml:"category,omitempty"`

	// Count is the number of copies in the pool. Default: 1
	Count int `yaml:"count,omitempty"`

	Progression     []StageDoc    `yaml:"progression"`
	Extra           []QuantityDoc `yaml:"extra,omitempty"`
	Lock            *LockDoc      `yaml:"lock,omitempty"`
	UnlocksResource bool          `yaml:"unlocks_resource,omitempty"`

	PreferredLocation     string  `yaml:"preferred_location,omitempty"`
	ProbabilityOffset     float64 `yaml:"probability_offset,omitempty"`
	ProbabilityMultiplier float64 `yaml:"probability_multiplier,omitempty"`
	IndexAgeImpact        float64 `yaml:"index_age_impact,omitempty"`
	RequiredProgression   int     `yaml:"required_progression,omitempty"`
}

// StageDoc is one progressive stage. Requires names the item that must be
// held for the stage; empty for the first stage.
type StageDoc struct {
	Requires string        `yaml:"requires,omitempty"`
	Gain     []QuantityDoc `yaml:"gain"`
}

// QuantityDoc is an amount of an item.
type QuantityDoc struct {
	Item   string `yaml:"item"`
	Amount int    `yaml:"amount"`
}

// LockDoc mirrors pickup.Lock by item names.
type LockDoc struct {
	LockedBy  string `yaml:"locked_by"`
	Temporary string `yaml:"temporary"`
	Item      string `yaml:"item"`
}

// -----------------------------------------------------------------------------
// Requirements
// -----------------------------------------------------------------------------

// Requirement constants.
const (
	ConstantTrivial    = "trivial"
	ConstantImpossible = "impossible"
)

// RequirementDoc is the YAML form of a requirement.
type RequirementDoc struct {
	// Constant is ConstantTrivial or ConstantImpossible.
	Constant string

	And []RequirementDoc
	Or  []RequirementDoc

	// Resource with Type names a resource atom.
	Resource string
	Type     resources.Type

	Template string

	Amount int
	Negate bool

	line int
}

// requirementFields is the mapping form of RequirementDoc.
type requirementFields struct {
	And      []RequirementDoc `yaml:"and"`
	Or       []RequirementDoc `yaml:"or"`
	Item     string           `yaml:"item"`
	Event    string           `yaml:"event"`
	Trick    string           `yaml:"trick"`
	Damage   string           `yaml:"damage"`
	Version  string           `yaml:"version"`
	Misc     string           `yaml:"misc"`
	Template string           `yaml:"template"`
	Amount   *int             `yaml:"amount"`
	Negate   bool             `yaml:"negate"`
}

var requirementKeys = map[string]bool{
	"and": true, "or": true, "template": true, "amount": true, "negate": true,
	"item": true, "event": true, "trick": true, "damage": true, "version": true, "misc": true,
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *RequirementDoc) UnmarshalYAML(value *yaml.Node) error {
	*r = RequirementDoc{line: value.Line}
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value != ConstantTrivial && value.Value != ConstantImpossible {
			return fmt.Errorf("line %d: requirement constant must be %q or %q, got %q",
				value.Line, ConstantTrivial, ConstantImpossible, value.Value)
		}
		r.Constant = value.Value
		return nil
	case yaml.MappingNode:
	default:
		return fmt.Errorf("line %d: requirement must be a scalar or a mapping", value.Line)
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		if key := value.Content[i].Value; !requirementKeys[key] {
			return fmt.Errorf("line %d: unknown requirement key %q", value.Content[i].Line, key)
		}
	}
	var f requirementFields
	if err := value.Decode(&f); err != nil {
		return err
	}

	kinds := 0
	if f.And != nil {
		kinds++
		r.And = f.And
	}
	if f.Or != nil {
		kinds++
		r.Or = f.Or
	}
	if f.Template != "" {
		kinds++
		r.Template = f.Template
	}
	for _, atom := range []struct {
		name string
		t    resources.Type
	}{
		{f.Item, resources.TypeItem},
		{f.Event, resources.TypeEvent},
		{f.Trick, resources.TypeTrick},
		{f.Damage, resources.TypeDamage},
		{f.Version, resources.TypeVersion},
		{f.Misc, resources.TypeMisc},
	} {
		if atom.name != "" {
			kinds++
			r.Resource = atom.name
			r.Type = atom.t
		}
	}
	if kinds != 1 {
		return fmt.Errorf("line %d: requirement needs exactly one of and, or, template or a resource key", value.Line)
	}

	r.Amount = 1
	if f.Amount != nil {
		r.Amount = *f.Amount
	}
	r.Negate = f.Negate
	return nil
}
