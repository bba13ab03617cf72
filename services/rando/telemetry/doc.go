// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry sets up OpenTelemetry for rando processes.
//
// Packages call otel.Tracer and otel.Meter directly; Init decides where the
// data goes. Traces go to an OTLP collector, stdout or nowhere. Metrics go
// to the Prometheus registry (served by MetricsHandler), stdout or nowhere.
//
// # Environment Variables
//
//   - OTEL_TRACES_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout or none (default: prometheus)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - RANDO_ENV: environment name (default: development)
//
// # Thread Safety
//
// Call Init once at startup. MetricsHandler is safe for concurrent use.
//
// # Views
//
// Views gives the resolver and filler histograms bucket boundaries that fit
// their ranges. Init installs them on every MeterProvider it builds.
package telemetry

import "errors"

var (
	// ErrNilContext is returned when Init is called with a nil context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an unsupported exporter name.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")
)
