// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by
// unknown keys. Use errors.Is instead of string matching.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader loads configuration with the precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader returns a loader for the given config file path. An empty
// path means ENV-only configuration.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load assembles the configuration: defaults, then the strict-parsed
// YAML file, then environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge config file: %w", err)
		}
	}

	if err := mergeEnvConfig(&cfg); err != nil {
		return cfg, err
	}

	// DataDir drives every derived path; keep it absolute.
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.FixturesDir != "" {
		if abs, err := filepath.Abs(cfg.FixturesDir); err == nil {
			cfg.FixturesDir = abs
		}
	}
	if cfg.Journal.Path != "" && !filepath.IsAbs(cfg.Journal.Path) {
		cfg.Journal.Path = filepath.Join(cfg.DataDir, cfg.Journal.Path)
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile parses a YAML config file strictly: unknown fields, multiple
// documents and trailing content are fatal.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- the config path comes from the operator via flag/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

// mergeFileConfig folds the YAML document into cfg. Absent fields leave
// the current value alone.
func mergeFileConfig(cfg *AppConfig, src *FileConfig) error {
	setString(&cfg.Listen, src.Listen)
	if src.DataDir != "" {
		cfg.DataDir = expandEnv(src.DataDir)
	}
	if src.FixturesDir != "" {
		cfg.FixturesDir = expandEnv(src.FixturesDir)
	}
	setString(&cfg.LogLevel, src.LogLevel)
	setString(&cfg.LogFormat, src.LogFormat)

	if err := setDuration(&cfg.Fetch.Timeout, src.Fetch.Timeout, "fetch.timeout"); err != nil {
		return err
	}
	setInt64Ptr(&cfg.Fetch.MaxBytes, src.Fetch.MaxBytes)
	setString(&cfg.Fetch.UserAgent, src.Fetch.UserAgent)
	setFloatPtr(&cfg.Fetch.GlobalRate, src.Fetch.GlobalRate)
	setIntPtr(&cfg.Fetch.GlobalBurst, src.Fetch.GlobalBurst)
	setFloatPtr(&cfg.Fetch.PerHostRate, src.Fetch.PerHostRate)
	setIntPtr(&cfg.Fetch.PerHostBurst, src.Fetch.PerHostBurst)

	setString(&cfg.Cache.Backend, src.Cache.Backend)
	if err := setDuration(&cfg.Cache.TTL, src.Cache.TTL, "cache.ttl"); err != nil {
		return err
	}
	setString(&cfg.Cache.RedisAddr, src.Cache.RedisAddr)
	setString(&cfg.Cache.RedisPassword, src.Cache.RedisPassword)
	setIntPtr(&cfg.Cache.RedisDB, src.Cache.RedisDB)

	setBoolPtr(&cfg.Outbound.Enforce, src.Outbound.Enforce)
	if len(src.Outbound.Hosts) > 0 {
		cfg.Outbound.Allow.Hosts = src.Outbound.Hosts
	}
	if len(src.Outbound.CIDRs) > 0 {
		cfg.Outbound.Allow.CIDRs = src.Outbound.CIDRs
	}
	if len(src.Outbound.Ports) > 0 {
		cfg.Outbound.Allow.Ports = src.Outbound.Ports
	}
	if len(src.Outbound.Schemes) > 0 {
		cfg.Outbound.Allow.Schemes = src.Outbound.Schemes
	}

	setString(&cfg.Journal.Backend, src.Journal.Backend)
	if src.Journal.Path != "" {
		cfg.Journal.Path = expandEnv(src.Journal.Path)
	}
	if err := setDuration(&cfg.Journal.TTL, src.Journal.TTL, "journal.ttl"); err != nil {
		return err
	}
	setIntPtr(&cfg.Journal.MemoryPerSession, src.Journal.MemoryPerSession)

	setIntPtr(&cfg.Constraints.MaxHeight, src.Constraints.MaxHeight)
	setInt64Ptr(&cfg.Constraints.MaxBandwidth, src.Constraints.MaxBandwidth)

	setIntPtr(&cfg.API.RateLimit, src.API.RateLimit)
	if err := setDuration(&cfg.API.RateWindow, src.API.RateWindow, "api.rateWindow"); err != nil {
		return err
	}
	if err := setDuration(&cfg.API.SSEHeartbeat, src.API.SSEHeartbeat, "api.sseHeartbeat"); err != nil {
		return err
	}
	if err := setDuration(&cfg.API.ReadHeaderTimeout, src.API.ReadHeaderTimeout, "api.readHeaderTimeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.API.ShutdownTimeout, src.API.ShutdownTimeout, "api.shutdownTimeout"); err != nil {
		return err
	}

	setBoolPtr(&cfg.Status.Enabled, src.Status.Enabled)
	if err := setDuration(&cfg.Status.Interval, src.Status.Interval, "status.interval"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Status.Debounce, src.Status.Debounce, "status.debounce"); err != nil {
		return err
	}

	setBoolPtr(&cfg.Telemetry.Enabled, src.Telemetry.Enabled)
	setString(&cfg.Telemetry.Exporter, src.Telemetry.Exporter)
	setString(&cfg.Telemetry.Endpoint, src.Telemetry.Endpoint)
	setString(&cfg.Telemetry.ServiceName, src.Telemetry.ServiceName)
	setString(&cfg.Telemetry.Environment, src.Telemetry.Environment)
	setFloatPtr(&cfg.Telemetry.SampleRatio, src.Telemetry.SampleRatio)

	return nil
}

// mergeEnvConfig applies HBBTV_EMU_* environment overrides, the highest
// precedence.
func mergeEnvConfig(cfg *AppConfig) error {
	cfg.Listen = ParseString("HBBTV_EMU_LISTEN", cfg.Listen)
	cfg.DataDir = ParseString("HBBTV_EMU_DATA", cfg.DataDir)
	cfg.FixturesDir = ParseString("HBBTV_EMU_FIXTURES", cfg.FixturesDir)
	cfg.LogLevel = ParseString("HBBTV_EMU_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = ParseString("HBBTV_EMU_LOG_FORMAT", cfg.LogFormat)

	cfg.Fetch.Timeout = ParseDuration("HBBTV_EMU_FETCH_TIMEOUT", cfg.Fetch.Timeout)
	cfg.Fetch.MaxBytes = ParseInt64("HBBTV_EMU_FETCH_MAX_BYTES", cfg.Fetch.MaxBytes)
	cfg.Fetch.UserAgent = ParseString("HBBTV_EMU_FETCH_USER_AGENT", cfg.Fetch.UserAgent)
	cfg.Fetch.GlobalRate = ParseFloat("HBBTV_EMU_FETCH_GLOBAL_RATE", cfg.Fetch.GlobalRate)
	cfg.Fetch.GlobalBurst = ParseInt("HBBTV_EMU_FETCH_GLOBAL_BURST", cfg.Fetch.GlobalBurst)
	cfg.Fetch.PerHostRate = ParseFloat("HBBTV_EMU_FETCH_PER_HOST_RATE", cfg.Fetch.PerHostRate)
	cfg.Fetch.PerHostBurst = ParseInt("HBBTV_EMU_FETCH_PER_HOST_BURST", cfg.Fetch.PerHostBurst)

	cfg.Cache.Backend = ParseString("HBBTV_EMU_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = ParseDuration("HBBTV_EMU_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.RedisAddr = ParseString("HBBTV_EMU_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = ParseString("HBBTV_EMU_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = ParseInt("HBBTV_EMU_REDIS_DB", cfg.Cache.RedisDB)

	cfg.Outbound.Enforce = ParseBool("HBBTV_EMU_OUTBOUND_ENFORCE", cfg.Outbound.Enforce)
	cfg.Outbound.Allow.Hosts = ParseList("HBBTV_EMU_OUTBOUND_HOSTS", cfg.Outbound.Allow.Hosts)
	cfg.Outbound.Allow.CIDRs = ParseList("HBBTV_EMU_OUTBOUND_CIDRS", cfg.Outbound.Allow.CIDRs)
	cfg.Outbound.Allow.Schemes = ParseList("HBBTV_EMU_OUTBOUND_SCHEMES", cfg.Outbound.Allow.Schemes)
	if raw, ok := os.LookupEnv("HBBTV_EMU_OUTBOUND_PORTS"); ok {
		ports, err := ParsePorts(raw)
		if err != nil {
			return fmt.Errorf("HBBTV_EMU_OUTBOUND_PORTS: %w", err)
		}
		cfg.Outbound.Allow.Ports = ports
	}

	cfg.Journal.Backend = ParseString("HBBTV_EMU_JOURNAL_BACKEND", cfg.Journal.Backend)
	cfg.Journal.Path = ParseString("HBBTV_EMU_JOURNAL_PATH", cfg.Journal.Path)
	cfg.Journal.TTL = ParseDuration("HBBTV_EMU_JOURNAL_TTL", cfg.Journal.TTL)
	cfg.Journal.MemoryPerSession = ParseInt("HBBTV_EMU_JOURNAL_MEMORY_PER_SESSION", cfg.Journal.MemoryPerSession)

	cfg.Constraints.MaxHeight = ParseInt("HBBTV_EMU_MAX_HEIGHT", cfg.Constraints.MaxHeight)
	cfg.Constraints.MaxBandwidth = ParseInt64("HBBTV_EMU_MAX_BANDWIDTH", cfg.Constraints.MaxBandwidth)

	cfg.API.RateLimit = ParseInt("HBBTV_EMU_API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.RateWindow = ParseDuration("HBBTV_EMU_API_RATE_WINDOW", cfg.API.RateWindow)
	cfg.API.SSEHeartbeat = ParseDuration("HBBTV_EMU_SSE_HEARTBEAT", cfg.API.SSEHeartbeat)
	cfg.API.ReadHeaderTimeout = ParseDuration("HBBTV_EMU_READ_HEADER_TIMEOUT", cfg.API.ReadHeaderTimeout)
	cfg.API.ShutdownTimeout = ParseDuration("HBBTV_EMU_SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)

	cfg.Status.Enabled = ParseBool("HBBTV_EMU_STATUS_ENABLED", cfg.Status.Enabled)
	cfg.Status.Interval = ParseDuration("HBBTV_EMU_STATUS_INTERVAL", cfg.Status.Interval)
	cfg.Status.Debounce = ParseDuration("HBBTV_EMU_STATUS_DEBOUNCE", cfg.Status.Debounce)

	cfg.Telemetry.Enabled = ParseBool("HBBTV_EMU_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString("HBBTV_EMU_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString("HBBTV_EMU_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.ServiceName = ParseString("HBBTV_EMU_OTEL_SERVICE", cfg.Telemetry.ServiceName)
	cfg.Telemetry.Environment = ParseString("HBBTV_EMU_OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SampleRatio = ParseFloat("HBBTV_EMU_OTEL_SAMPLE_RATIO", cfg.Telemetry.SampleRatio)

	return nil
}

// --- merge helpers ---

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setIntPtr(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setInt64Ptr(dst *int64, v *int64) {
	if v != nil {
		*dst = *v
	}
}

func setFloatPtr(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setBoolPtr(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v, field string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, v, err)
	}
	*dst = d
	return nil
}
