// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/RandoForge/services/rando/patches"
	"github.com/AleutianAI/RandoForge/services/rando/service"
	"github.com/AleutianAI/RandoForge/services/rando/world"
)

const chainWorld = `
game: Chain
resources:
  items: [{short: Key}, {short: Boots}]
starting_location: {region: R, area: A, node: Start}
victory: {item: Boots}
regions:
  - name: R
    areas:
      - name: A
        nodes:
          - {name: Start}
          - {name: Near, pickup: {}}
          - {name: Far, pickup: {}}
        connections:
          - {from: Start, to: Near, both: true}
          - {from: Start, to: Far, requirement: {item: Key}}
          - {from: Far, to: Start}
pickups:
  - name: Key
    progression: [{gain: [{item: Key, amount: 1}]}]
  - name: Boots
    progression: [{gain: [{item: Boots, amount: 1}]}]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// run executes the root command and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestGenerate_StdoutJSON(t *testing.T) {
	worldPath := writeFile(t, t.TempDir(), "chain.yaml", chainWorld)

	stdout, stderr, err := run(t, "generate", "--world", worldPath, "--seed", "12", "--progress")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Generating seed 12")

	var resp service.GenerateResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, uint64(12), resp.Seed)
	assert.Equal(t, "Chain", resp.Layout.Game)
	assert.NotEmpty(t, resp.Playthrough)
}

func TestGenerateThenVerify(t *testing.T) {
	dir := t.TempDir()
	worldPath := writeFile(t, dir, "chain.yaml", chainWorld)
	presetPath := writeFile(t, dir, "preset.yaml", "name: Test\nvictory_weight: 5\n")
	layoutPath := filepath.Join(dir, "layout.json")

	stdout, _, err := run(t, "generate", "-w", worldPath, "-p", presetPath, "-s", "3", "-o", layoutPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Seed 3 generated")
	assert.Contains(t, stdout, "Layout written to "+layoutPath)

	layout, err := readLayout(layoutPath)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), layout.Seed)

	stdout, _, err = run(t, "verify", "-w", worldPath, "-p", presetPath, "-l", layoutPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Completable in")
	assert.Contains(t, stdout, "Boots")
}

func TestGenerate_Cache(t *testing.T) {
	dir := t.TempDir()
	worldPath := writeFile(t, dir, "chain.yaml", chainWorld)
	cacheDir := filepath.Join(dir, "cache")
	layoutPath := filepath.Join(dir, "layout.json")

	stdout, _, err := run(t, "generate", "-w", worldPath, "-s", "8", "-o", layoutPath, "--cache-dir", cacheDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "generated")

	stdout, _, err = run(t, "generate", "-w", worldPath, "-s", "8", "-o", layoutPath, "--cache-dir", cacheDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "loaded from cache")
}

func TestGenerate_Errors(t *testing.T) {
	dir := t.TempDir()
	worldPath := writeFile(t, dir, "chain.yaml", chainWorld)
	presetPath := writeFile(t, dir, "preset.yaml", "mode: full\n")

	_, _, err := run(t, "generate")
	assert.Error(t, err, "missing --world")

	_, _, err = run(t, "generate", "-w", worldPath, "-w", worldPath, "-p", presetPath, "-p", presetPath, "-p", presetPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 presets for 2 worlds")

	_, _, err = run(t, "generate", "-w", filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = run(t, "--log-level", "loud", "generate", "-w", worldPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestGenerate_Multiworld(t *testing.T) {
	worldPath := writeFile(t, t.TempDir(), "chain.yaml", chainWorld)

	stdout, _, err := run(t, "generate", "-w", worldPath, "-w", worldPath, "-s", "1")
	require.NoError(t, err)
	var resp service.GenerateResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "Chain+Chain", resp.Layout.Game)
	assert.Len(t, resp.Layout.Players, 2)
}

func TestVerify_NotCompletable(t *testing.T) {
	dir := t.TempDir()
	worldPath := writeFile(t, dir, "chain.yaml", chainWorld)
	id := func(n string) world.NodeIdentifier { return world.NodeIdentifier{Region: "R", Area: "A", Node: n} }
	layout := patches.Layout{
		Game: "Chain",
		Players: []patches.PlayerLayout{{
			StartingLocation: id("Start"),
			Locations: []patches.LocationLayout{
				{Index: 0, Node: id("Near"), Pickup: "Key"},
				{Index: 1, Node: id("Far"), Pickup: "Nothing"},
			},
		}},
	}
	data, err := json.Marshal(layout)
	require.NoError(t, err)
	layoutPath := writeFile(t, dir, "stuck.json", string(data))

	stdout, _, err := run(t, "verify", "-w", worldPath, "-l", layoutPath)
	require.Error(t, err)
	assert.Contains(t, stdout, "Not completable")
	var exit *exitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, 2, exit.code)
	assert.ErrorIs(t, err, errNotCompletable)
}

func TestReach(t *testing.T) {
	dir := t.TempDir()
	worldPath := writeFile(t, dir, "chain.yaml", chainWorld)

	stdout, _, err := run(t, "reach", "-w", worldPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 nodes reachable")
	assert.Contains(t, stdout, "1 collectable")
	assert.NotContains(t, stdout, "Victory")

	presetPath := writeFile(t, dir, "preset.yaml", "starting_pickups: [Boots]\n")
	stdout, _, err = run(t, "reach", "-w", worldPath, "-p", presetPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Victory is reachable without pickups")

	_, _, err = run(t, "reach", "-w", worldPath, "-w", worldPath)
	assert.Error(t, err)
}

func TestWorlds(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chain.yaml", chainWorld)

	stdout, _, err := run(t, "worlds", "--worlds", dir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "NAME")
	assert.Regexp(t, `^chain\s+Chain\s+3\s+2\s+2$`, lines[1])
}

func TestNewRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewService(service.DefaultServiceConfig(), nil)
	_, err := svc.AddWorld("chain", []byte(chainWorld))
	require.NoError(t, err)
	router := newRouter(svc, false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/rando/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# HELP")
}

func TestStatusPrinter(t *testing.T) {
	var buf bytes.Buffer
	assert.Nil(t, statusPrinter(&buf, false))

	fn := statusPrinter(&buf, true)
	require.NotNil(t, fn)
	fn("Attempt 1 of 3 failed")
	assert.Equal(t, "  Attempt 1 of 3 failed\n", buf.String())
}
