// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package config assembles the daemon's runtime configuration with the
// precedence ENV > YAML file > defaults.
package config

import (
	"time"

	platformnet "github.com/vflorio/hbbtv-emu-sub005/internal/platform/net"
)

// Backend names accepted by the cache and journal factories.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"

	JournalBackendMemory = "memory"
	JournalBackendSqlite = "sqlite"
	JournalBackendBadger = "badger"
)

// AppConfig is the assembled runtime configuration.
type AppConfig struct {
	// Listen is the HTTP control listen address (host:port).
	Listen string
	// DataDir holds the journal, status export and other daemon state.
	DataDir string
	// FixturesDir is served read-only under /fixtures/ for local
	// manifest assets. Empty disables the fixtures server.
	FixturesDir string

	LogLevel  string
	LogFormat string // "json" or "console"

	Fetch       FetchConfig
	Cache       CacheConfig
	Outbound    OutboundConfig
	Journal     JournalConfig
	Constraints ConstraintsConfig
	API         APIConfig
	Status      StatusConfig
	Telemetry   TelemetryConfig

	// Version is stamped by the binary, never configured.
	Version string
}

// FetchConfig tunes manifest retrieval.
type FetchConfig struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string

	// Politeness limits for outbound manifest fetches.
	GlobalRate   float64
	GlobalBurst  int
	PerHostRate  float64
	PerHostBurst int
}

// CacheConfig selects the manifest document cache backend.
type CacheConfig struct {
	Backend       string // memory | redis | none
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// OutboundConfig is the manifest fetch URL policy.
type OutboundConfig struct {
	Enforce bool
	Allow   platformnet.Allowlist
}

// JournalConfig selects the transition journal backend.
type JournalConfig struct {
	Backend string // memory | sqlite | badger
	// Path is the sqlite file or badger directory; relative paths
	// resolve under DataDir.
	Path string
	// TTL expires badger journal entries; zero keeps them forever.
	TTL time.Duration
	// MemoryPerSession bounds the memory backend's per-session ring.
	MemoryPerSession int
}

// ConstraintsConfig carries the advisory selection limits handed to new
// sessions. Zero means unlimited.
type ConstraintsConfig struct {
	MaxHeight    int
	MaxBandwidth int64
}

// APIConfig tunes the control surface.
type APIConfig struct {
	// RateLimit requests per RateWindow per client IP.
	RateLimit  int
	RateWindow time.Duration
	// SSEHeartbeat is the keep-alive comment interval on event streams.
	SSEHeartbeat time.Duration
	// ReadHeaderTimeout and ShutdownTimeout bound the HTTP server.
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// StatusConfig tunes the status.json export.
type StatusConfig struct {
	Enabled bool
	// Interval is the unconditional flush period.
	Interval time.Duration
	// Debounce delays on-change writes to coalesce bursts.
	Debounce time.Duration
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	Enabled     bool
	Exporter    string // grpc | http | noop
	Endpoint    string
	ServiceName string
	Environment string
	SampleRatio float64
}

// Defaults returns the configuration a bare `playerd` starts with.
func Defaults() AppConfig {
	return AppConfig{
		Listen:      ":8090",
		DataDir:     "./data",
		FixturesDir: "./fixtures",
		LogLevel:    "info",
		LogFormat:   "json",
		Fetch: FetchConfig{
			Timeout:      10 * time.Second,
			MaxBytes:     8 * 1024 * 1024,
			UserAgent:    "playerd",
			GlobalRate:   20,
			GlobalBurst:  40,
			PerHostRate:  5,
			PerHostBurst: 10,
		},
		Cache: CacheConfig{
			Backend: CacheBackendMemory,
			TTL:     30 * time.Second,
		},
		Outbound: OutboundConfig{
			Enforce: true,
			Allow: platformnet.Allowlist{
				Schemes: []string{"http", "https"},
				// Loopback stays reachable for the fixtures server.
				CIDRs: []string{"127.0.0.0/8", "::1/128"},
			},
		},
		Journal: JournalConfig{
			Backend:          JournalBackendMemory,
			Path:             "journal.db",
			MemoryPerSession: 256,
		},
		API: APIConfig{
			RateLimit:         120,
			RateWindow:        time.Minute,
			SSEHeartbeat:      15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Status: StatusConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
			Debounce: 2 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:    "noop",
			ServiceName: "playerd",
			SampleRatio: 1.0,
		},
	}
}
