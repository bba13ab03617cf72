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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("rando.filler")
	meter  = otel.Meter("rando.filler")
)

var (
	roundsTotal     metric.Int64Counter
	placementsTotal metric.Int64Counter
	fillDuration    metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		roundsTotal, err = meter.Int64Counter(
			"rando_filler_rounds_total",
			metric.WithDescription("Total number of filler rounds"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		placementsTotal, err = meter.Int64Counter(
			"rando_filler_placements_total",
			metric.WithDescription("Total number of pickups placed"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		fillDuration, err = meter.Float64Histogram(
			"rando_filler_duration_seconds",
			metric.WithDescription("Duration of Fill calls by outcome"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordRound(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	roundsTotal.Add(ctx, 1)
}

func recordPlacement(ctx context.Context, logical bool) {
	if err := initMetrics(); err != nil {
		return
	}
	placementsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("logical", logical)))
}

func recordFill(ctx context.Context, ok bool, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	fillDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}
