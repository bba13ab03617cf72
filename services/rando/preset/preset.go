// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package preset

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxPresetBytes caps the size of a preset file.
const MaxPresetBytes = 1 << 20

//go:embed default_preset.yaml
var defaultPresetYAML []byte

var presetValidate = validator.New()

// Preset is one generation configuration.
//
// Names refer to the world the preset is applied to: trick and misc keys
// are resource short names, pickup keys are pickup names and excluded
// locations are pickup indices.
type Preset struct {
	Name        string `yaml:"name" validate:"required,max=128"`
	Description string `yaml:"description,omitempty" validate:"max=1024"`

	Mode             string `yaml:"mode" validate:"oneof=full major_minor"`
	LogicalPlacement string `yaml:"logical_placement" validate:"oneof=minimal majors all"`
	ResourcePolicy   string `yaml:"resource_policy" validate:"oneof=include last_resort never"`

	// Tricks maps trick names to the enabled level.
	Tricks map[string]int `yaml:"tricks" validate:"dive,keys,required,endkeys,gte=0"`

	// Misc maps misc flag names to their value.
	Misc map[string]int `yaml:"misc" validate:"dive,keys,required,endkeys,gte=0"`

	ExcludedLocations []int    `yaml:"excluded_locations" validate:"dive,gte=0"`
	StartingPickups   []string `yaml:"starting_pickups" validate:"dive,required"`

	// PickupCounts overrides how many copies of a pickup are shuffled.
	PickupCounts map[string]int `yaml:"pickup_counts" validate:"dive,keys,required,endkeys,gte=0"`

	DockWeaknesses []DockOverride `yaml:"dock_weaknesses" validate:"dive"`

	MaxRandomStartingPickups int     `yaml:"max_random_starting_pickups" validate:"gte=0"`
	MultiPickupPlacement     bool    `yaml:"multi_pickup_placement"`
	MaxPickupsPerRound       int     `yaml:"max_pickups_per_round" validate:"gte=1,lte=64"`
	VictoryWeight            float64 `yaml:"victory_weight" validate:"gte=0"`

	Generation Generation `yaml:"generation"`
	Energy     Energy     `yaml:"energy"`
}

// DockOverride replaces the weakness of one dock.
type DockOverride struct {
	Region   string `yaml:"region" validate:"required"`
	Area     string `yaml:"area" validate:"required"`
	Node     string `yaml:"node" validate:"required"`
	Weakness string `yaml:"weakness" validate:"required"`
}

// Generation bounds the attempt loop.
type Generation struct {
	Attempts       int           `yaml:"attempts" validate:"gte=1,lte=1000"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout" validate:"gt=0"`
	Parallelism    int           `yaml:"parallelism" validate:"gte=1,lte=64"`

	// Validate re-checks every filled layout with the full resolver.
	Validate bool `yaml:"validate"`
}

// Energy overrides the energy model of the world.
type Energy struct {
	Base    int `yaml:"base" validate:"gte=1"`
	PerTank int `yaml:"per_tank" validate:"gte=0"`
}

// Default returns the embedded default preset.
func Default() *Preset {
	p := &Preset{}
	if err := yaml.Unmarshal(defaultPresetYAML, p); err != nil {
		panic(fmt.Sprintf("preset: embedded default is invalid: %v", err))
	}
	return p
}

// Parse decodes preset data layered over the default preset.
//
// Description:
//
//	Starts from Default() and decodes data on top of it. Unknown fields
//	are rejected. Empty data yields the default preset. The result is
//	validated before it is returned.
//
// Inputs:
//
//	data - YAML preset, at most MaxPresetBytes.
//
// Outputs:
//
//	*Preset - The validated preset.
//	error - ErrPresetTooLarge, or ErrInvalidPreset wrapping the YAML or
//	        validation error.
func Parse(data []byte) (*Preset, error) {
	if len(data) > MaxPresetBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPresetTooLarge, len(data), MaxPresetBytes)
	}
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decoding: %w", ErrInvalidPreset, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads and parses the preset file at path.
func Load(path string) (*Preset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening preset: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxPresetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading preset %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the struct tags of the preset.
func (p *Preset) Validate() error {
	if err := presetValidate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}
	return nil
}

// Fingerprint identifies the generation settings of the preset. Name and
// description do not contribute.
func (p *Preset) Fingerprint() string {
	c := *p
	c.Name = ""
	c.Description = ""
	data, err := yaml.Marshal(&c)
	if err != nil {
		panic(fmt.Sprintf("preset: marshal for fingerprint: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
