// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{" warning ", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("loud"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("ParseLevel(loud) error = %v, want ErrUnknownLevel", err)
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	if LevelWarn.toSlogLevel() != slog.LevelWarn {
		t.Error("LevelWarn should map to slog.LevelWarn")
	}
	if Level(42).toSlogLevel() != slog.LevelInfo {
		t.Error("unknown level should map to slog.LevelInfo")
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Service: "test", Output: &buf})

	logger.Debug("hidden")
	logger.Info("visible", "seed", 7)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message written at info level")
	}
	if !strings.Contains(out, "msg=visible") || !strings.Contains(out, "seed=7") {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "service=test") {
		t.Errorf("service attribute missing: %q", out)
	}
}

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, JSON: true, Output: &buf})
	logger.With("component", "filler").Warn("retrying")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "retrying" || record["component"] != "filler" || record["level"] != "WARN" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestNew_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Quiet: true, Output: &buf})
	logger.Error("nothing")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote %q", buf.String())
	}
}

func TestNew_WithLogDir(t *testing.T) {
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	logger := New(Config{LogDir: tmpDir, Service: "test", Output: &buf})

	if logger.file == nil {
		t.Fatal("logger.file is nil when LogDir specified")
	}
	logger.Info("both destinations")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}

	name := "test_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(tmpDir, name))
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"both destinations"`) {
		t.Errorf("file missing record: %q", data)
	}
	if !strings.Contains(buf.String(), "both destinations") {
		t.Errorf("console missing record: %q", buf.String())
	}
}

func TestNew_WithLogDir_InvalidPath(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(blocker, "logs"), Output: &buf})
	defer logger.Close()

	if logger.file != nil {
		t.Error("expected no log file for an unusable directory")
	}
	if !strings.Contains(buf.String(), "file logging disabled") {
		t.Errorf("expected a warning, got %q", buf.String())
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger.Slog() == nil {
		t.Fatal("Default() has no slog logger")
	}
	if !logger.Slog().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Default() should enable info")
	}
	if logger.Slog().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Default() should not enable debug")
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
	if got := expandPath("~user/x"); got != "~user/x" {
		t.Errorf("expandPath(~user/x) = %q", got)
	}
}
