// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"go.opentelemetry.io/otel/sdk/metric"
)

// Bucket boundaries for the rando histograms. A reach is microseconds, a
// resolve of a full game is up to seconds, and a fill is a few hundred
// reaches per round.
var (
	resolveSecondsBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}
	fillSecondsBuckets    = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}
	exploredStateBuckets  = []float64{1, 10, 100, 1_000, 10_000, 100_000, 1_000_000}
)

// Views returns the metric views for the resolver and filler instruments.
//
// Description:
//
//	The SDK's default histogram buckets are tuned for request latencies
//	in milliseconds. These views give the resolve and fill durations and
//	the explored-state counts buckets that match their ranges. Init
//	installs them on every MeterProvider it builds.
func Views() []metric.View {
	return []metric.View{
		histogramView("rando_resolve_duration_seconds", resolveSecondsBuckets),
		histogramView("rando_filler_duration_seconds", fillSecondsBuckets),
		histogramView("rando_resolve_explored_states", exploredStateBuckets),
	}
}

func histogramView(name string, boundaries []float64) metric.View {
	return metric.NewView(
		metric.Instrument{Name: name},
		metric.Stream{Aggregation: metric.AggregationExplicitBucketHistogram{Boundaries: boundaries}},
	)
}
