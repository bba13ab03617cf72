// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("rando.generator")

// Attempt outcomes used as metric labels.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeInvalid = "invalid"
	outcomeTimeout = "timeout"
	outcomePanic   = "panic"
	outcomeCached  = "cached"
)

// =============================================================================
// Prometheus Metrics for Generation
// =============================================================================

var (
	// attemptsTotal counts generation attempts.
	// Labels: outcome (success, failure, invalid, timeout, panic)
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rando",
		Subsystem: "generator",
		Name:      "attempts_total",
		Help:      "Total generation attempts by outcome",
	}, []string{"outcome"})

	// attemptDuration measures the wall time of one attempt.
	// Labels: outcome
	attemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rando",
		Subsystem: "generator",
		Name:      "attempt_duration_seconds",
		Help:      "Duration of one generation attempt in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	// generationsTotal counts Generate calls.
	// Labels: outcome (success, cached, exhausted, error)
	generationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rando",
		Subsystem: "generator",
		Name:      "generations_total",
		Help:      "Total generations by outcome",
	}, []string{"outcome"})
)
