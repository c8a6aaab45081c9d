// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testConfig() Config {
	return Config{
		GlobalRate:      1000,
		GlobalBurst:     1000,
		PerHostRate:     1,
		PerHostBurst:    2,
		CleanupInterval: time.Hour,
	}
}

func TestWait_WithinBudgetReturnsImmediately(t *testing.T) {
	l := New(testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	if err := l.Wait(ctx, "origin.test"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Wait blocked for %v within budget", elapsed)
	}
}

func TestAllow_PerHostBurstExhausts(t *testing.T) {
	l := New(testConfig())

	if !l.Allow("origin.test") || !l.Allow("origin.test") {
		t.Fatal("burst of 2 should allow two fetches")
	}
	if l.Allow("origin.test") {
		t.Fatal("third fetch should exceed per-host burst")
	}
}

func TestAllow_HostBudgetsAreIndependent(t *testing.T) {
	l := New(testConfig())

	l.Allow("a.test")
	l.Allow("a.test")
	if l.Allow("a.test") {
		t.Fatal("a.test budget should be exhausted")
	}
	if !l.Allow("b.test") {
		t.Fatal("b.test budget should be untouched")
	}
}

func TestAllow_GlobalCeilingCoversAllHosts(t *testing.T) {
	cfg := testConfig()
	cfg.GlobalRate = rate.Limit(0.001)
	cfg.GlobalBurst = 1
	l := New(cfg)

	if !l.Allow("a.test") {
		t.Fatal("first fetch should pass")
	}
	if l.Allow("b.test") {
		t.Fatal("global ceiling should reject the second fetch regardless of host")
	}
}

func TestWait_CancelledWhileThrottled(t *testing.T) {
	cfg := testConfig()
	cfg.PerHostRate = rate.Limit(0.001)
	cfg.PerHostBurst = 1
	l := New(cfg)

	if err := l.Wait(context.Background(), "origin.test"); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "origin.test"); err == nil {
		t.Fatal("expected context error while throttled")
	}
}

func TestCleanupResetsIdleHostBudgets(t *testing.T) {
	cfg := testConfig()
	cfg.CleanupInterval = 10 * time.Millisecond
	l := New(cfg)

	l.Allow("origin.test")
	l.Allow("origin.test")
	if l.Allow("origin.test") {
		t.Fatal("budget should be exhausted")
	}

	// Cleanup runs on the next successful acquire after the interval.
	time.Sleep(20 * time.Millisecond)
	if !l.Allow("other.test") {
		t.Fatal("fresh host should pass")
	}
	if !l.Allow("origin.test") {
		t.Fatal("budget should reset after cleanup")
	}
}
