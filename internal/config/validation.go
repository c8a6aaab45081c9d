// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	platformnet "github.com/vflorio/hbbtv-emu-sub005/internal/platform/net"
	"github.com/vflorio/hbbtv-emu-sub005/internal/validate"
)

// Validate checks the assembled configuration. Every violation is
// reported; the error carries all of them field by field.
func Validate(cfg AppConfig) error {
	v := validate.New()

	if strings.TrimSpace(cfg.Listen) == "" {
		v.AddError("Listen", "listen address cannot be empty", cfg.Listen)
	} else if _, port, err := platformnet.NormalizeAuthority(cfg.Listen, "http"); err != nil {
		// ":8090" is a valid listen form but has no host for the parser.
		if !strings.HasPrefix(cfg.Listen, ":") {
			v.AddError("Listen", fmt.Sprintf("invalid listen address: %v", err), cfg.Listen)
		}
	} else if port == "" && !strings.HasPrefix(cfg.Listen, ":") {
		v.AddError("Listen", "listen address must carry a port", cfg.Listen)
	}

	v.Directory("DataDir", cfg.DataDir, false)
	if cfg.FixturesDir != "" {
		v.Directory("FixturesDir", cfg.FixturesDir, false)
	}

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("LogLevel", err.Error(), cfg.LogLevel)
	}
	v.OneOf("LogFormat", cfg.LogFormat, []string{"json", "console"})

	positiveDuration(v, "Fetch.Timeout", cfg.Fetch.Timeout)
	if cfg.Fetch.MaxBytes <= 0 {
		v.AddError("Fetch.MaxBytes", "must be positive", cfg.Fetch.MaxBytes)
	}
	if cfg.Fetch.GlobalRate <= 0 {
		v.AddError("Fetch.GlobalRate", "must be positive", cfg.Fetch.GlobalRate)
	}
	v.Positive("Fetch.GlobalBurst", cfg.Fetch.GlobalBurst)
	if cfg.Fetch.PerHostRate <= 0 {
		v.AddError("Fetch.PerHostRate", "must be positive", cfg.Fetch.PerHostRate)
	}
	v.Positive("Fetch.PerHostBurst", cfg.Fetch.PerHostBurst)

	v.OneOf("Cache.Backend", cfg.Cache.Backend,
		[]string{CacheBackendMemory, CacheBackendRedis, CacheBackendNone})
	if cfg.Cache.Backend == CacheBackendRedis {
		v.NotEmpty("Cache.RedisAddr", cfg.Cache.RedisAddr)
	}
	if cfg.Cache.TTL <= 0 {
		v.AddError("Cache.TTL", "must be positive", cfg.Cache.TTL.String())
	}

	if cfg.Outbound.Enforce {
		// Compile once here so a bad allowlist fails startup, not the
		// first fetch.
		if _, err := platformnet.NewPolicy(true, cfg.Outbound.Allow); err != nil {
			v.AddError("Outbound.Allow", err.Error(), "")
		}
	}
	for _, entry := range cfg.Outbound.Allow.CIDRs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if net.ParseIP(entry) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(entry); err != nil {
			v.AddError("Outbound.Allow.CIDRs", "must be a valid IP or CIDR", entry)
		}
	}

	v.OneOf("Journal.Backend", cfg.Journal.Backend,
		[]string{JournalBackendMemory, JournalBackendSqlite, JournalBackendBadger})
	if cfg.Journal.Backend != JournalBackendMemory {
		v.NotEmpty("Journal.Path", cfg.Journal.Path)
	}
	v.NonNegative("Journal.MemoryPerSession", cfg.Journal.MemoryPerSession)

	v.NonNegative("Constraints.MaxHeight", cfg.Constraints.MaxHeight)
	if cfg.Constraints.MaxBandwidth < 0 {
		v.AddError("Constraints.MaxBandwidth", "cannot be negative", cfg.Constraints.MaxBandwidth)
	}

	v.Positive("API.RateLimit", cfg.API.RateLimit)
	positiveDuration(v, "API.RateWindow", cfg.API.RateWindow)
	positiveDuration(v, "API.SSEHeartbeat", cfg.API.SSEHeartbeat)
	positiveDuration(v, "API.ReadHeaderTimeout", cfg.API.ReadHeaderTimeout)
	positiveDuration(v, "API.ShutdownTimeout", cfg.API.ShutdownTimeout)

	if cfg.Status.Enabled {
		positiveDuration(v, "Status.Interval", cfg.Status.Interval)
		positiveDuration(v, "Status.Debounce", cfg.Status.Debounce)
	}

	v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"noop", "grpc", "http"})
	if cfg.Telemetry.Enabled && cfg.Telemetry.Exporter != "noop" {
		v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		v.AddError("Telemetry.SampleRatio", "must be within [0, 1]", cfg.Telemetry.SampleRatio)
	}

	return v.Err()
}

func positiveDuration(v *validate.Validator, field string, d time.Duration) {
	if d <= 0 {
		v.AddError(field, "must be a positive duration", d.String())
	}
}
