// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package service

import (
	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.1.0"

// PlayerRequest selects the world and preset of one player.
type PlayerRequest struct {
	// World is the registered world name.
	World string `json:"world" binding:"required"`

	// Preset is a YAML preset layered over the default. Empty uses the
	// default preset.
	Preset string `json:"preset,omitempty"`
}

// GenerateRequest is the body of POST /v1/rando/generate.
type GenerateRequest struct {
	Players []PlayerRequest `json:"players" binding:"required,min=1,dive"`

	// Seed is the base seed. Nil picks a random seed.
	Seed *uint64 `json:"seed,omitempty"`
}

// GenerateResponse describes a generated layout.
type GenerateResponse struct {
	RunID      string          `json:"run_id"`
	Seed       uint64          `json:"seed"`
	Attempt    int             `json:"attempt"`
	Attempts   int             `json:"attempts"`
	FromCache  bool            `json:"from_cache"`
	CacheKey   string          `json:"cache_key"`
	DurationMS int64           `json:"duration_ms"`
	Layout     *patches.Layout `json:"layout"`

	// Playthrough is one completing route. Only single-player layouts
	// have one.
	Playthrough []PlaythroughStep `json:"playthrough,omitempty"`
}

// PlaythroughStep is one action of a playthrough.
type PlaythroughStep struct {
	// Action is "collect" or "trigger".
	Action string               `json:"action"`
	Node   world.NodeIdentifier `json:"node"`
	Pickup string               `json:"pickup,omitempty"`
}

// VerifyRequest is the body of POST /v1/rando/verify.
type VerifyRequest struct {
	Players []PlayerRequest `json:"players" binding:"required,min=1,dive"`
	Layout  *patches.Layout `json:"layout" binding:"required"`
}

// VerifyResponse reports whether a layout can be completed.
type VerifyResponse struct {
	Completable bool              `json:"completable"`
	Explored    int               `json:"explored"`
	DurationMS  int64             `json:"duration_ms"`
	Playthrough []PlaythroughStep `json:"playthrough,omitempty"`
}

// ReachRequest is the body of POST /v1/rando/reach.
type ReachRequest struct {
	Player PlayerRequest `json:"player"`
}

// ReachNode is one node of a reach with the best energy it is reached with.
type ReachNode struct {
	Node   world.NodeIdentifier `json:"node"`
	Energy int                  `json:"energy"`
}

// ReachResponse lists what is accessible from the starting location.
type ReachResponse struct {
	Nodes       []ReachNode            `json:"nodes"`
	Collectable []world.NodeIdentifier `json:"collectable"`
	Victory     bool                   `json:"victory"`
}

// WorldSummary describes a registered world.
type WorldSummary struct {
	Name            string `json:"name"`
	Game            string `json:"game"`
	Digest          string `json:"digest"`
	Nodes           int    `json:"nodes"`
	PickupLocations int    `json:"pickup_locations"`
	PoolSize        int    `json:"pool_size"`
}

// HealthResponse is returned by GET /v1/rando/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Worlds  int    `json:"worlds"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the machine-readable error code.
	Code string `json:"code,omitempty"`
}

// StreamMessage is one websocket frame of a streamed generation.
type StreamMessage struct {
	// Type is "status", "result" or "error".
	Type    string            `json:"type"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Result  *GenerateResponse `json:"result,omitempty"`
}
