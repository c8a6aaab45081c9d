// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns defaults rooted in temp directories so validation
// never creates directories in the working tree.
func validConfig(t *testing.T) AppConfig {
	t.Helper()
	cfg := Defaults()
	cfg.DataDir = t.TempDir()
	cfg.FixturesDir = t.TempDir()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, Validate(validConfig(t)))
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{
			name:    "empty listen",
			mutate:  func(c *AppConfig) { c.Listen = "" },
			wantErr: "Listen",
		},
		{
			name:    "listen without port",
			mutate:  func(c *AppConfig) { c.Listen = "localhost" },
			wantErr: "Listen",
		},
		{
			name:    "bad log level",
			mutate:  func(c *AppConfig) { c.LogLevel = "verbose" },
			wantErr: "LogLevel",
		},
		{
			name:    "bad log format",
			mutate:  func(c *AppConfig) { c.LogFormat = "xml" },
			wantErr: "LogFormat",
		},
		{
			name:    "zero fetch timeout",
			mutate:  func(c *AppConfig) { c.Fetch.Timeout = 0 },
			wantErr: "Fetch.Timeout",
		},
		{
			name:    "negative fetch max bytes",
			mutate:  func(c *AppConfig) { c.Fetch.MaxBytes = -1 },
			wantErr: "Fetch.MaxBytes",
		},
		{
			name:    "unknown cache backend",
			mutate:  func(c *AppConfig) { c.Cache.Backend = "memcached" },
			wantErr: "Cache.Backend",
		},
		{
			name: "redis backend without address",
			mutate: func(c *AppConfig) {
				c.Cache.Backend = CacheBackendRedis
				c.Cache.RedisAddr = ""
			},
			wantErr: "Cache.RedisAddr",
		},
		{
			name: "malformed allowlist cidr",
			mutate: func(c *AppConfig) {
				c.Outbound.Allow.CIDRs = append(c.Outbound.Allow.CIDRs, "10.0.0.0/99")
			},
			wantErr: "Outbound.Allow.CIDRs",
		},
		{
			name:    "unknown journal backend",
			mutate:  func(c *AppConfig) { c.Journal.Backend = "postgres" },
			wantErr: "Journal.Backend",
		},
		{
			name: "sqlite journal without path",
			mutate: func(c *AppConfig) {
				c.Journal.Backend = JournalBackendSqlite
				c.Journal.Path = ""
			},
			wantErr: "Journal.Path",
		},
		{
			name:    "negative max height",
			mutate:  func(c *AppConfig) { c.Constraints.MaxHeight = -720 },
			wantErr: "Constraints.MaxHeight",
		},
		{
			name:    "zero api rate limit",
			mutate:  func(c *AppConfig) { c.API.RateLimit = 0 },
			wantErr: "API.RateLimit",
		},
		{
			name:    "zero sse heartbeat",
			mutate:  func(c *AppConfig) { c.API.SSEHeartbeat = 0 },
			wantErr: "API.SSEHeartbeat",
		},
		{
			name:    "unknown telemetry exporter",
			mutate:  func(c *AppConfig) { c.Telemetry.Exporter = "zipkin" },
			wantErr: "Telemetry.Exporter",
		},
		{
			name: "enabled telemetry without endpoint",
			mutate: func(c *AppConfig) {
				c.Telemetry.Enabled = true
				c.Telemetry.Exporter = "grpc"
				c.Telemetry.Endpoint = ""
			},
			wantErr: "Telemetry.Endpoint",
		},
		{
			name:    "sample ratio out of range",
			mutate:  func(c *AppConfig) { c.Telemetry.SampleRatio = 1.5 },
			wantErr: "Telemetry.SampleRatio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_StatusDurationsIgnoredWhenDisabled(t *testing.T) {
	cfg := validConfig(t)
	cfg.Status.Enabled = false
	cfg.Status.Interval = 0
	cfg.Status.Debounce = 0
	require.NoError(t, Validate(cfg))
}

func TestValidate_AllowlistHostEntries(t *testing.T) {
	cfg := validConfig(t)
	cfg.Outbound.Allow.Hosts = []string{"cdn.example.com", "*.stream.example.org"}
	cfg.Outbound.Allow.CIDRs = append(cfg.Outbound.Allow.CIDRs, "192.168.0.0/16", "2001:db8::1")
	require.NoError(t, Validate(cfg))
}

func TestValidate_DisabledEnforcementSkipsPolicyCompile(t *testing.T) {
	cfg := validConfig(t)
	cfg.Outbound.Enforce = false
	cfg.Outbound.Allow.CIDRs = nil
	cfg.Outbound.Allow.Schemes = nil
	require.NoError(t, Validate(cfg))
}
