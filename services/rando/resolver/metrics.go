// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for resolver operations.
var (
	tracer = otel.Tracer("rando.resolver")
	meter  = otel.Meter("rando.resolver")
)

// Metrics for reach and resolve operations.
var (
	reachTotal      metric.Int64Counter
	resolveTotal    metric.Int64Counter
	resolveDuration metric.Float64Histogram
	resolveExplored metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		reachTotal, err = meter.Int64Counter(
			"rando_reach_total",
			metric.WithDescription("Total number of reach calculations"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resolveTotal, err = meter.Int64Counter(
			"rando_resolve_total",
			metric.WithDescription("Total number of resolves by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resolveDuration, err = meter.Float64Histogram(
			"rando_resolve_duration_seconds",
			metric.WithDescription("Duration of resolve operations"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resolveExplored, err = meter.Int64Histogram(
			"rando_resolve_explored_states",
			metric.WithDescription("Distinct states expanded per resolve"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordReach counts one reach calculation.
func recordReach() {
	if err := initMetrics(); err != nil {
		return
	}
	reachTotal.Add(context.Background(), 1)
}

// recordResolve records the outcome, duration and search size of one resolve.
func recordResolve(ctx context.Context, outcome string, duration time.Duration, explored int) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	resolveTotal.Add(ctx, 1, attrs)
	resolveDuration.Record(ctx, duration.Seconds(), attrs)
	resolveExplored.Record(ctx, int64(explored), attrs)
}
