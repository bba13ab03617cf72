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
	"log/slog"
	"sort"
	"time"

	"github.com/AleutianAI/RandoForge/services/rando/requirements"
	"github.com/AleutianAI/RandoForge/services/rando/resources"
)

// DefaultMaxNodes is the default maximum number of nodes a graph can hold.
const DefaultMaxNodes = 100_000

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting AddNode/Connect calls.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// GraphOptions configures Graph behavior and limits.
type GraphOptions struct {
	// Name is the game name used in logs.
	Name string

	// MaxNodes is the maximum number of nodes the graph can hold.
	// Default: 100,000
	MaxNodes int

	// Logger receives build-time diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultGraphOptions returns sensible defaults for graph configuration.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		Name:     "world",
		MaxNodes: DefaultMaxNodes,
	}
}

// GraphOption is a functional option for configuring Graph.
type GraphOption func(*GraphOptions)

// WithName sets the game name.
func WithName(name string) GraphOption {
	return func(o *GraphOptions) {
		o.Name = name
	}
}

// WithMaxNodes sets the maximum number of nodes the graph can hold.
func WithMaxNodes(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxNodes = n
	}
}

// WithLogger sets the logger used for build diagnostics.
func WithLogger(l *slog.Logger) GraphOption {
	return func(o *GraphOptions) {
		o.Logger = l
	}
}

// NodeSpec describes a node to add.
type NodeSpec struct {
	Identifier NodeIdentifier
	Payload    Payload
	Heal       bool
	Layers     []string
}

// Graph is the world graph of one game.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use during building. After Freeze()
//	returns it is read-only and may be shared across goroutines.
type Graph struct {
	db      *resources.Database
	options GraphOptions
	logger  *slog.Logger
	state   GraphState

	regions  []*Region
	regionBy map[string]*Region
	areaBy   map[[2]string]*Area
	nodes    []*Node
	byID     map[NodeIdentifier]*Node

	weaknesses     map[string][]*DockWeakness
	weaknessByName map[string]map[string]*DockWeakness

	victory      requirements.Requirement
	start        NodeIdentifier
	startIndex   NodeIndex
	startDefined bool

	// Resolved during Freeze.
	targets     []NodeIndex
	unresolved  []NodeIdentifier
	pickupNodes []*Node
	byPickup    map[PickupIndex]*Node
	eventNodes  []*Node
	dangerous   []*resources.Info

	// BuiltAtMilli is the Unix timestamp in milliseconds when Freeze() was called.
	BuiltAtMilli int64
}

// NewGraph creates an empty graph over the resource database db.
//
// Example:
//
//	g := NewGraph(db, WithName("prime"))
//	g.AddNode(NodeSpec{Identifier: id, Payload: Generic{}})
//	g.SetStartingLocation(id)
//	g.SetVictoryCondition(req)
//	err := g.Freeze()
func NewGraph(db *resources.Database, opts ...GraphOption) *Graph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Graph{
		db:             db,
		options:        options,
		logger:         logger.With(slog.String("component", "world"), slog.String("game", options.Name)),
		state:          GraphStateBuilding,
		regionBy:       make(map[string]*Region),
		areaBy:         make(map[[2]string]*Area),
		byID:           make(map[NodeIdentifier]*Node),
		weaknesses:     make(map[string][]*DockWeakness),
		weaknessByName: make(map[string]map[string]*DockWeakness),
		startIndex:     NoNode,
	}
}

// Name returns the game name.
func (g *Graph) Name() string {
	return g.options.Name
}

// Resources returns the resource database of the graph.
func (g *Graph) Resources() *resources.Database {
	return g.db
}

// State returns the current lifecycle state of the graph.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// ---- Building ----

// AddDockWeakness registers a named weakness for a dock type.
func (g *Graph) AddDockWeakness(dockType, name string, req requirements.Requirement) (*DockWeakness, error) {
	if g.IsFrozen() {
		return nil, ErrGraphFrozen
	}
	byName := g.weaknessByName[dockType]
	if byName == nil {
		byName = make(map[string]*DockWeakness)
		g.weaknessByName[dockType] = byName
	}
	if _, exists := byName[name]; exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateWeakness, dockType, name)
	}
	if req == nil {
		req = requirements.Trivial()
	}
	w := &DockWeakness{
		Index:       len(g.weaknesses[dockType]),
		DockType:    dockType,
		Name:        name,
		Requirement: req,
	}
	byName[name] = w
	g.weaknesses[dockType] = append(g.weaknesses[dockType], w)
	return w, nil
}

// DockWeakness looks up a weakness by dock type and name.
func (g *Graph) DockWeakness(dockType, name string) (*DockWeakness, bool) {
	w, ok := g.weaknessByName[dockType][name]
	return w, ok
}

// DockWeaknesses returns the weaknesses of a dock type in declaration order.
func (g *Graph) DockWeaknesses(dockType string) []*DockWeakness {
	return g.weaknesses[dockType]
}

// AddArea returns the named area, creating it and its region when missing.
func (g *Graph) AddArea(region, area string) (*Area, error) {
	if g.IsFrozen() {
		return nil, ErrGraphFrozen
	}
	key := [2]string{region, area}
	if a, ok := g.areaBy[key]; ok {
		return a, nil
	}
	r, ok := g.regionBy[region]
	if !ok {
		r = &Region{Name: region}
		g.regionBy[region] = r
		g.regions = append(g.regions, r)
	}
	a := &Area{Name: area, Region: r, connections: make(map[NodeIndex][]Connection)}
	r.Areas = append(r.Areas, a)
	g.areaBy[key] = a
	return a, nil
}

// AddNode adds a node, creating its region and area on first use.
//
// Outputs:
//
//	*Node - The added node with its dense Index assigned.
//	error - ErrGraphFrozen, ErrDuplicateNode, ErrInvalidNode or
//	        ErrMaxNodesExceeded.
func (g *Graph) AddNode(spec NodeSpec) (*Node, error) {
	if g.IsFrozen() {
		return nil, ErrGraphFrozen
	}
	if len(g.nodes) >= g.options.MaxNodes {
		return nil, fmt.Errorf("%w: limit %d", ErrMaxNodesExceeded, g.options.MaxNodes)
	}
	if _, exists := g.byID[spec.Identifier]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, spec.Identifier)
	}
	if err := validatePayload(spec); err != nil {
		return nil, err
	}

	area, err := g.AddArea(spec.Identifier.Region, spec.Identifier.Area)
	if err != nil {
		return nil, err
	}
	payload := spec.Payload
	if payload == nil {
		payload = Generic{}
	}
	n := &Node{
		Index:      NodeIndex(len(g.nodes)),
		Identifier: spec.Identifier,
		Payload:    payload,
		Heal:       spec.Heal,
		Layers:     spec.Layers,
		area:       area,
	}
	g.nodes = append(g.nodes, n)
	g.byID[n.Identifier] = n
	area.Nodes = append(area.Nodes, n)
	return n, nil
}

func validatePayload(spec NodeSpec) error {
	switch p := spec.Payload.(type) {
	case *Dock:
		if p.DefaultWeakness == nil {
			return fmt.Errorf("%w: dock %s has no weakness", ErrInvalidNode, spec.Identifier)
		}
	case *Event:
		if p.Resource == nil || p.Resource.Type != resources.TypeEvent {
			return fmt.Errorf("%w: event %s needs an event resource", ErrInvalidNode, spec.Identifier)
		}
	}
	return nil
}

// Connect adds a directional connection between two nodes of one area.
// Connecting the same pair again replaces the requirement.
func (g *Graph) Connect(from, to NodeIdentifier, req requirements.Requirement) error {
	if g.IsFrozen() {
		return ErrGraphFrozen
	}
	src, ok := g.byID[from]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, from)
	}
	dst, ok := g.byID[to]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, to)
	}
	if src.area != dst.area {
		return fmt.Errorf("%w: %s -> %s", ErrCrossAreaConnection, from, to)
	}
	if req == nil {
		req = requirements.Trivial()
	}

	edges := src.area.connections[src.Index]
	for i := range edges {
		if edges[i].Target == dst.Index {
			edges[i].Requirement = req
			return nil
		}
	}
	edges = append(edges, Connection{Target: dst.Index, Requirement: req})
	sort.Slice(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
	src.area.connections[src.Index] = edges
	return nil
}

// SetStartingLocation sets the node the player starts at.
func (g *Graph) SetStartingLocation(id NodeIdentifier) {
	g.start = id
	g.startDefined = true
}

// SetVictoryCondition sets the requirement that completes the game.
func (g *Graph) SetVictoryCondition(req requirements.Requirement) {
	g.victory = req
}

// Freeze resolves docks and teleporters, builds the indices and transitions
// the graph to read-only mode.
//
// Description:
//
//	Dock and teleporter targets that do not name an existing node are
//	recorded in Unresolved() and logged at Warn level; traversal later
//	prunes those edges. A missing starting location or victory condition
//	is an error.
//
// Outputs:
//
//	error - ErrNodeNotFound (start), ErrNoVictoryCondition or
//	        ErrDuplicatePickupIndex. The graph stays in the building state.
func (g *Graph) Freeze() error {
	if g.IsFrozen() {
		return nil
	}
	if g.victory == nil {
		return ErrNoVictoryCondition
	}
	if !g.startDefined {
		return fmt.Errorf("%w: starting location not set", ErrNodeNotFound)
	}
	start, ok := g.byID[g.start]
	if !ok {
		return fmt.Errorf("%w: starting location %s", ErrNodeNotFound, g.start)
	}

	targets := make([]NodeIndex, len(g.nodes))
	byPickup := make(map[PickupIndex]*Node)
	var pickups, events []*Node
	var unresolved []NodeIdentifier

	for _, n := range g.nodes {
		targets[n.Index] = NoNode
		switch p := n.Payload.(type) {
		case *Dock:
			targets[n.Index] = g.resolveTarget(n, p.Target, &unresolved)
		case *Teleporter:
			targets[n.Index] = g.resolveTarget(n, p.Target, &unresolved)
		case *PickupLocation:
			if other, dup := byPickup[p.Index]; dup {
				return fmt.Errorf("%w: %d at %s and %s", ErrDuplicatePickupIndex, p.Index, other, n)
			}
			byPickup[p.Index] = n
			pickups = append(pickups, n)
		case *Event:
			events = append(events, n)
		}
	}
	sort.Slice(pickups, func(i, j int) bool {
		a, _ := pickups[i].PickupIndex()
		b, _ := pickups[j].PickupIndex()
		return a < b
	})

	g.targets = targets
	g.unresolved = unresolved
	g.pickupNodes = pickups
	g.byPickup = byPickup
	g.eventNodes = events
	g.startIndex = start.Index
	g.dangerous = g.collectDangerous()
	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()

	g.logger.Debug("world graph frozen",
		slog.Int("nodes", len(g.nodes)),
		slog.Int("pickups", len(pickups)),
		slog.Int("events", len(events)),
		slog.Int("unresolved_docks", len(unresolved)),
	)
	return nil
}

func (g *Graph) resolveTarget(n *Node, target NodeIdentifier, unresolved *[]NodeIdentifier) NodeIndex {
	if dst, ok := g.byID[target]; ok {
		return dst.Index
	}
	*unresolved = append(*unresolved, n.Identifier)
	g.logger.Warn("unresolved dock target",
		slog.String("node", n.Identifier.String()),
		slog.String("target", target.String()),
	)
	return NoNode
}

// collectDangerous gathers every resource tested negated anywhere in the
// graph, sorted by index.
func (g *Graph) collectDangerous() []*resources.Info {
	seen := make(map[int]*resources.Info)
	add := func(req requirements.Requirement) {
		if req == nil {
			return
		}
		for _, r := range req.AsSet().DangerousResources() {
			seen[r.Index] = r
		}
	}

	add(g.victory)
	for _, ws := range g.weaknesses {
		for _, w := range ws {
			add(w.Requirement)
		}
	}
	for _, n := range g.nodes {
		for _, c := range n.area.connections[n.Index] {
			add(c.Requirement)
		}
		switch p := n.Payload.(type) {
		case *Configurable:
			add(p.Default)
		case *Teleporter:
			add(p.Requirement)
		}
	}

	out := make([]*resources.Info, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ---- Queries ----

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Node returns the node at idx.
func (g *Graph) Node(idx NodeIndex) *Node {
	return g.nodes[idx]
}

// Nodes returns every node in index order. The slice MUST NOT be modified.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Regions returns the regions in declaration order.
func (g *Graph) Regions() []*Region {
	return g.regions
}

// NodeByIdentifier looks up a node by identifier.
func (g *Graph) NodeByIdentifier(id NodeIdentifier) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// AreaOf returns the area containing idx.
func (g *Graph) AreaOf(idx NodeIndex) *Area {
	return g.nodes[idx].area
}

// Connections returns the in-area outgoing edges of idx.
func (g *Graph) Connections(idx NodeIndex) []Connection {
	n := g.nodes[idx]
	return n.area.connections[idx]
}

// DefaultTarget returns the resolved target of a dock or teleporter node.
// Reports false for other kinds and for unresolved targets.
func (g *Graph) DefaultTarget(idx NodeIndex) (NodeIndex, bool) {
	if g.targets == nil {
		return NoNode, false
	}
	t := g.targets[idx]
	return t, t != NoNode
}

// Unresolved returns the dock and teleporter nodes whose target is missing.
func (g *Graph) Unresolved() []NodeIdentifier {
	return g.unresolved
}

// PickupNodes returns the pickup nodes sorted by pickup index.
func (g *Graph) PickupNodes() []*Node {
	return g.pickupNodes
}

// PickupNode returns the node holding a pickup index.
func (g *Graph) PickupNode(idx PickupIndex) (*Node, bool) {
	n, ok := g.byPickup[idx]
	return n, ok
}

// EventNodes returns the event nodes in index order.
func (g *Graph) EventNodes() []*Node {
	return g.eventNodes
}

// StartingLocation returns the index of the starting node. Frozen graphs only.
func (g *Graph) StartingLocation() NodeIndex {
	return g.startIndex
}

// VictoryCondition returns the requirement that completes the game.
func (g *Graph) VictoryCondition() requirements.Requirement {
	return g.victory
}

// DangerousResources returns the resources that appear negated in any
// requirement. Collecting one of them can make something unreachable.
func (g *Graph) DangerousResources() []*resources.Info {
	return g.dangerous
}
