// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command rando generates and checks randomized item layouts.
//
// Usage:
//
//	rando generate --world worlds/sample.yaml --preset presets/hard.yaml --seed 42
//	rando generate --world a.yaml --world b.yaml -o layout.json
//	rando verify --world worlds/sample.yaml --layout layout.json
//	rando reach --world worlds/sample.yaml
//	rando worlds --worlds worlds/
//	rando serve --worlds worlds/ --addr :8080 --cache-dir ~/.rando/layouts
//
// Environment:
//
//	OTEL_TRACES_EXPORTER, OTEL_EXPORTER_OTLP_ENDPOINT, RANDO_ENV configure
//	tracing (see the telemetry package).
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

// exitError carries a specific exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return fmt.Sprintf("%v (exit %d)", e.err, e.code)
}

func (e *exitError) Unwrap() error {
	return e.err
}
