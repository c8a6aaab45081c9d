// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hbbtv_emu",
		Name:      "http_requests_total",
		Help:      "Control API requests by route pattern, method and status",
	}, []string{"route", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hbbtv_emu",
		Name:      "http_request_duration_seconds",
		Help:      "Control API request latency by route pattern",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"route"})

	fixtureRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hbbtv_emu",
		Name:      "fixture_requests_total",
		Help:      "Fixture file requests by outcome (allowed, cache_hit or denial reason)",
	}, []string{"outcome"})
)

// ObserveHTTPRequest records one served request. Route is the chi route
// pattern, never the raw path, to keep cardinality bounded.
func ObserveHTTPRequest(route, method string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// IncFixtureRequest records one fixture server decision. Outcome is
// "allowed", "cache_hit" or a denial reason from a closed set.
func IncFixtureRequest(outcome string) {
	fixtureRequestsTotal.WithLabelValues(outcome).Inc()
}
