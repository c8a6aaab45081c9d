// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package manifest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hbbtv_emu",
			Name:      "manifest_fetch_total",
			Help:      "Manifest fetches by source type and outcome",
		},
		[]string{"source", "outcome"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hbbtv_emu",
			Name:      "manifest_fetch_duration_seconds",
			Help:      "Origin round trip time for manifest fetches",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	parseTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hbbtv_emu",
			Name:      "manifest_parse_total",
			Help:      "Manifest parses by source type and outcome",
		},
		[]string{"source", "outcome"},
	)
)

const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeCacheHit = "cache_hit"
)
