// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filler

import (
	"fmt"
	"log/slog"

	"github.com/zyedidia/generic/mapset"

	"github.com/AleutianAI/RandoForge/services/rando/pickup"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// Mode selects how pickups are matched to location categories.
type Mode int

const (
	// ModeFull lets any pickup go to any location.
	ModeFull Mode = iota

	// ModeMajorMinor places major pickups only in major locations and
	// minor pickups only in minor locations.
	ModeMajorMinor
)

// String returns the string representation of the Mode.
func (m Mode) String() string {
	switch m {
	case ModeFull:
		return "full"
	case ModeMajorMinor:
		return "major_minor"
	default:
		return "unknown"
	}
}

// ParseMode parses the String form of a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "full":
		return ModeFull, nil
	case "major_minor":
		return ModeMajorMinor, nil
	default:
		return 0, &ConfigurationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", s)}
	}
}

// LogicalPlacement selects how much of the pool must be placed logically.
type LogicalPlacement int

const (
	// PlacementMinimal stops logical placement once victory is reachable.
	PlacementMinimal LogicalPlacement = iota

	// PlacementMajors also places every major pickup logically.
	PlacementMajors

	// PlacementAll places the whole pool logically.
	PlacementAll
)

// String returns the string representation of the LogicalPlacement.
func (p LogicalPlacement) String() string {
	switch p {
	case PlacementMinimal:
		return "minimal"
	case PlacementMajors:
		return "majors"
	case PlacementAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseLogicalPlacement parses the String form of a LogicalPlacement.
func ParseLogicalPlacement(s string) (LogicalPlacement, error) {
	switch s {
	case "minimal":
		return PlacementMinimal, nil
	case "majors":
		return PlacementMajors, nil
	case "all":
		return PlacementAll, nil
	default:
		return 0, &ConfigurationError{Field: "logical_placement", Reason: fmt.Sprintf("unknown target %q", s)}
	}
}

// ResourcePolicy controls when the filler may trigger dangerous events to
// open new nodes.
type ResourcePolicy int

const (
	// PolicyInclude weighs dangerous event actions together with the rest.
	PolicyInclude ResourcePolicy = iota

	// PolicyLastResort considers dangerous event actions only when no
	// other action exists.
	PolicyLastResort

	// PolicyNever never triggers dangerous events.
	PolicyNever
)

// String returns the string representation of the ResourcePolicy.
func (p ResourcePolicy) String() string {
	switch p {
	case PolicyInclude:
		return "include"
	case PolicyLastResort:
		return "last_resort"
	case PolicyNever:
		return "never"
	default:
		return "unknown"
	}
}

// ParseResourcePolicy parses the String form of a ResourcePolicy.
func ParseResourcePolicy(s string) (ResourcePolicy, error) {
	switch s {
	case "include":
		return PolicyInclude, nil
	case "last_resort":
		return PolicyLastResort, nil
	case "never":
		return PolicyNever, nil
	default:
		return 0, &ConfigurationError{Field: "resource_policy", Reason: fmt.Sprintf("unknown policy %q", s)}
	}
}

// Config configures Fill.
type Config struct {
	Mode             Mode
	LogicalPlacement LogicalPlacement
	ResourcePolicy   ResourcePolicy

	// MaxRandomStartingPickups is how many pickups may be moved to the
	// starting items when a round is stuck. Default: 0
	MaxRandomStartingPickups int

	// ExcludedLocations never receive a pool pickup; they get NothingPickup.
	// Indices apply to every player's world.
	ExcludedLocations mapset.Set[world.PickupIndex]

	// MultiPickupPlacement places up to MaxPickupsPerRound pickups per round.
	MultiPickupPlacement bool

	// MaxPickupsPerRound caps placements per round with MultiPickupPlacement.
	// Default: 3
	MaxPickupsPerRound int

	// VictoryWeight is added to the weight of an action that reaches victory.
	// Default: 10
	VictoryWeight float64

	// NothingPickup fills locations left empty. Default: pickup.NewNothing().
	NothingPickup *pickup.Entry

	// Logger receives round diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default filler configuration.
func DefaultConfig() *Config {
	return &Config{
		Mode:               ModeFull,
		LogicalPlacement:   PlacementMinimal,
		ResourcePolicy:     PolicyInclude,
		ExcludedLocations:  mapset.New[world.PickupIndex](),
		MaxPickupsPerRound: 3,
		VictoryWeight:      10,
		NothingPickup:      pickup.NewNothing(),
		Logger:             slog.Default(),
	}
}

// withDefaults fills zero fields of a copy of c.
func (c *Config) withDefaults() *Config {
	if c == nil {
		c = DefaultConfig()
	}
	out := *c
	if out.ExcludedLocations.Size() == 0 {
		out.ExcludedLocations = mapset.New[world.PickupIndex]()
	}
	if out.MaxPickupsPerRound <= 0 {
		out.MaxPickupsPerRound = 3
	}
	if out.NothingPickup == nil {
		out.NothingPickup = pickup.NewNothing()
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return &out
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.MaxRandomStartingPickups < 0 {
		return &ConfigurationError{Field: "max_random_starting_pickups", Reason: "must be >= 0"}
	}
	if c.VictoryWeight < 0 {
		return &ConfigurationError{Field: "victory_weight", Reason: "must be >= 0"}
	}
	if c.Mode != ModeFull && c.Mode != ModeMajorMinor {
		return &ConfigurationError{Field: "mode", Reason: "out of range"}
	}
	return nil
}
