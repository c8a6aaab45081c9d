// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package ratelimit throttles outbound manifest fetches. Loads are caller
// driven, so a misbehaving client must not turn the emulator into a
// request cannon against an origin.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var fetchThrottled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hbbtv_emu",
		Name:      "fetch_throttled_total",
		Help:      "Outbound fetches delayed or rejected by rate limiting",
	},
	[]string{"scope"},
)

// Config holds fetch rate limiting configuration.
type Config struct {
	// Global ceiling across all origins.
	GlobalRate  rate.Limit
	GlobalBurst int

	// Per-origin-host limits.
	PerHostRate  rate.Limit
	PerHostBurst int

	// Cleanup interval for idle per-host limiters.
	CleanupInterval time.Duration
}

// DefaultConfig returns limits suited to a single-box emulator.
func DefaultConfig() Config {
	return Config{
		GlobalRate:  20,
		GlobalBurst: 40,

		PerHostRate:  5,
		PerHostBurst: 10,

		CleanupInterval: 5 * time.Minute,
	}
}

// FetchLimiter enforces a global and a per-host fetch budget.
type FetchLimiter struct {
	config Config

	global  *rate.Limiter
	perHost map[string]*rate.Limiter
	mu      sync.Mutex

	lastCleanup time.Time
}

// New creates a fetch limiter from config.
func New(config Config) *FetchLimiter {
	return &FetchLimiter{
		config:      config,
		global:      rate.NewLimiter(config.GlobalRate, config.GlobalBurst),
		perHost:     make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

// Wait blocks until a fetch to host is within budget or ctx is done.
// Throttled waits are counted per scope.
func (l *FetchLimiter) Wait(ctx context.Context, host string) error {
	if !l.global.Allow() {
		fetchThrottled.WithLabelValues("global").Inc()
		if err := l.global.Wait(ctx); err != nil {
			return err
		}
	}

	hostLimiter := l.hostLimiter(host)
	if !hostLimiter.Allow() {
		fetchThrottled.WithLabelValues("per_host").Inc()
		if err := hostLimiter.Wait(ctx); err != nil {
			return err
		}
	}

	l.maybeCleanup()
	return nil
}

// Allow reports whether a fetch to host fits the budget right now, without
// blocking. Used by paths that prefer failing fast over queueing.
func (l *FetchLimiter) Allow(host string) bool {
	if !l.global.Allow() {
		fetchThrottled.WithLabelValues("global").Inc()
		return false
	}
	if !l.hostLimiter(host).Allow() {
		fetchThrottled.WithLabelValues("per_host").Inc()
		return false
	}
	l.maybeCleanup()
	return true
}

func (l *FetchLimiter) hostLimiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.perHost[host]
	if !ok {
		limiter = rate.NewLimiter(l.config.PerHostRate, l.config.PerHostBurst)
		l.perHost[host] = limiter
	}
	return limiter
}

// maybeCleanup drops all per-host limiters once the cleanup interval has
// passed. Hosts re-accumulate on demand; a dropped limiter only means a
// fresh burst allowance.
func (l *FetchLimiter) maybeCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) < l.config.CleanupInterval {
		return
	}
	l.perHost = make(map[string]*rate.Limiter)
	l.lastCleanup = time.Now()
}
