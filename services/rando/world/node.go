// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package world

import (
	"fmt"

	"github.com/AleutianAI/RandoForge/services/rando/requirements"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
)

// NodeIdentifier names a node by its region, area and node name.
type NodeIdentifier struct {
	Region string `json:"region" yaml:"region"`
	Area   string `json:"area" yaml:"area"`
	Node   string `json:"node" yaml:"node"`
}

// String returns "Region/Area/Node".
func (id NodeIdentifier) String() string {
	return fmt.Sprintf("%s/%s/%s", id.Region, id.Area, id.Node)
}

// NodeIndex is the dense index of a node in its Graph.
type NodeIndex int

// NoNode is the NodeIndex of an absent or unresolved node.
const NoNode NodeIndex = -1

// PickupIndex identifies a pickup location independently of the node layout.
type PickupIndex int

// LocationCategory is the major/minor split of pickup locations.
type LocationCategory int

const (
	// CategoryMajor locations hold important items in major/minor mode.
	CategoryMajor LocationCategory = iota

	// CategoryMinor locations hold expansions in major/minor mode.
	CategoryMinor
)

// String returns the string representation of the LocationCategory.
func (c LocationCategory) String() string {
	switch c {
	case CategoryMajor:
		return "major"
	case CategoryMinor:
		return "minor"
	default:
		return "unknown"
	}
}

// ParseLocationCategory converts "major" or "minor" to a LocationCategory.
func ParseLocationCategory(s string) (LocationCategory, error) {
	switch s {
	case "major":
		return CategoryMajor, nil
	case "minor":
		return CategoryMinor, nil
	default:
		return 0, fmt.Errorf("unknown location category %q", s)
	}
}

// Kind tags the payload variant of a node.
type Kind int

const (
	KindGeneric Kind = iota
	KindDock
	KindPickup
	KindEvent
	KindConfigurable
	KindTeleporter
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindDock:
		return "dock"
	case KindPickup:
		return "pickup"
	case KindEvent:
		return "event"
	case KindConfigurable:
		return "configurable"
	case KindTeleporter:
		return "teleporter"
	default:
		return "unknown"
	}
}

// Payload is the variant-specific part of a node.
//
// The set of implementations is closed: Generic, *Dock, *PickupLocation,
// *Event, *Configurable and *Teleporter. Dispatch with a type switch.
type Payload interface {
	Kind() Kind
	isPayload()
}

// Generic is a plain node with no behavior of its own.
type Generic struct{}

// Kind implements Payload.
func (Generic) Kind() Kind { return KindGeneric }
func (Generic) isPayload() {}

// Dock is a door or passage leading to a node in another area.
type Dock struct {
	// DockType groups weaknesses (door, morph tunnel, ...).
	DockType string

	// Target is the paired node on the other side.
	Target NodeIdentifier

	// DefaultWeakness gates traversal unless patches override it.
	DefaultWeakness *DockWeakness
}

// Kind implements Payload.
func (*Dock) Kind() Kind { return KindDock }
func (*Dock) isPayload() {}

// PickupLocation is a slot that can hold one pickup.
type PickupLocation struct {
	Index    PickupIndex
	Category LocationCategory
}

// Kind implements Payload.
func (*PickupLocation) Kind() Kind { return KindPickup }
func (*PickupLocation) isPayload() {}

// Event is a one-shot event that grants Resource when triggered.
type Event struct {
	Resource *resources.Info
}

// Kind implements Payload.
func (*Event) Kind() Kind { return KindEvent }
func (*Event) isPayload() {}

// Configurable is a node whose leaving requirement is chosen per generation.
// Default applies when the patches do not resolve the node.
type Configurable struct {
	Default requirements.Requirement
}

// Kind implements Payload.
func (*Configurable) Kind() Kind { return KindConfigurable }
func (*Configurable) isPayload() {}

// Teleporter is a one-way link to a node anywhere in the world. The target
// may be shuffled by the patches.
type Teleporter struct {
	Target      NodeIdentifier
	Requirement requirements.Requirement
}

// Kind implements Payload.
func (*Teleporter) Kind() Kind { return KindTeleporter }
func (*Teleporter) isPayload() {}

// Node is one location in the world graph. Immutable after AddNode.
type Node struct {
	// Index is the dense index of the node in its graph.
	Index NodeIndex

	// Identifier is the unique region/area/node name triple.
	Identifier NodeIdentifier

	// Payload holds the variant-specific data.
	Payload Payload

	// Heal restores the player to full energy.
	Heal bool

	// Layers are free-form tags.
	Layers []string

	area *Area
}

// Kind returns the kind of the node's payload.
func (n *Node) Kind() Kind {
	return n.Payload.Kind()
}

// Area returns the area containing the node.
func (n *Node) Area() *Area {
	return n.area
}

// String returns the node identifier.
func (n *Node) String() string {
	return n.Identifier.String()
}

// PickupIndex returns the pickup index of a pickup node.
func (n *Node) PickupIndex() (PickupIndex, bool) {
	if p, ok := n.Payload.(*PickupLocation); ok {
		return p.Index, true
	}
	return 0, false
}

// EventResource returns the resource granted by an event node.
func (n *Node) EventResource() (*resources.Info, bool) {
	if e, ok := n.Payload.(*Event); ok {
		return e.Resource, true
	}
	return nil, false
}

// DockWeakness is a named requirement to pass through a dock.
type DockWeakness struct {
	// Index is the declaration index of the weakness within its dock type.
	Index int

	DockType    string
	Name        string
	Requirement requirements.Requirement
}

// String returns "DockType/Name".
func (w *DockWeakness) String() string {
	return w.DockType + "/" + w.Name
}

// Connection is a directional edge between two nodes of one area.
type Connection struct {
	Target      NodeIndex
	Requirement requirements.Requirement
}

// Area is a set of nodes with a connection table.
type Area struct {
	Name   string
	Region *Region
	Nodes  []*Node

	// connections maps a source node to its edges, sorted by target index.
	connections map[NodeIndex][]Connection
}

// Connections returns the outgoing edges of from within this area.
func (a *Area) Connections(from NodeIndex) []Connection {
	return a.connections[from]
}

// Region is a named list of areas.
type Region struct {
	Name  string
	Areas []*Area
}
