// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package config

// FileConfig mirrors the YAML document. Durations are strings in Go
// duration syntax; pointers distinguish "absent" from explicit zero or
// false.
type FileConfig struct {
	Listen      string `yaml:"listen,omitempty"`
	DataDir     string `yaml:"dataDir,omitempty"`
	FixturesDir string `yaml:"fixturesDir,omitempty"`
	LogLevel    string `yaml:"logLevel,omitempty"`
	LogFormat   string `yaml:"logFormat,omitempty"`

	Fetch       FetchFileConfig       `yaml:"fetch,omitempty"`
	Cache       CacheFileConfig       `yaml:"cache,omitempty"`
	Outbound    OutboundFileConfig    `yaml:"outbound,omitempty"`
	Journal     JournalFileConfig     `yaml:"journal,omitempty"`
	Constraints ConstraintsFileConfig `yaml:"constraints,omitempty"`
	API         APIFileConfig         `yaml:"api,omitempty"`
	Status      StatusFileConfig      `yaml:"status,omitempty"`
	Telemetry   TelemetryFileConfig   `yaml:"telemetry,omitempty"`
}

// FetchFileConfig is the fetch section of the YAML document.
type FetchFileConfig struct {
	Timeout      string   `yaml:"timeout,omitempty"`
	MaxBytes     *int64   `yaml:"maxBytes,omitempty"`
	UserAgent    string   `yaml:"userAgent,omitempty"`
	GlobalRate   *float64 `yaml:"globalRate,omitempty"`
	GlobalBurst  *int     `yaml:"globalBurst,omitempty"`
	PerHostRate  *float64 `yaml:"perHostRate,omitempty"`
	PerHostBurst *int     `yaml:"perHostBurst,omitempty"`
}

// CacheFileConfig is the cache section of the YAML document.
type CacheFileConfig struct {
	Backend       string `yaml:"backend,omitempty"`
	TTL           string `yaml:"ttl,omitempty"`
	RedisAddr     string `yaml:"redisAddr,omitempty"`
	RedisPassword string `yaml:"redisPassword,omitempty"`
	RedisDB       *int   `yaml:"redisDb,omitempty"`
}

// OutboundFileConfig is the outbound policy section of the YAML document.
type OutboundFileConfig struct {
	Enforce *bool    `yaml:"enforce,omitempty"`
	Hosts   []string `yaml:"hosts,omitempty"`
	CIDRs   []string `yaml:"cidrs,omitempty"`
	Ports   []int    `yaml:"ports,omitempty"`
	Schemes []string `yaml:"schemes,omitempty"`
}

// JournalFileConfig is the journal section of the YAML document.
type JournalFileConfig struct {
	Backend          string `yaml:"backend,omitempty"`
	Path             string `yaml:"path,omitempty"`
	TTL              string `yaml:"ttl,omitempty"`
	MemoryPerSession *int   `yaml:"memoryPerSession,omitempty"`
}

// ConstraintsFileConfig is the constraints section of the YAML document.
type ConstraintsFileConfig struct {
	MaxHeight    *int   `yaml:"maxHeight,omitempty"`
	MaxBandwidth *int64 `yaml:"maxBandwidth,omitempty"`
}

// APIFileConfig is the api section of the YAML document.
type APIFileConfig struct {
	RateLimit         *int   `yaml:"rateLimit,omitempty"`
	RateWindow        string `yaml:"rateWindow,omitempty"`
	SSEHeartbeat      string `yaml:"sseHeartbeat,omitempty"`
	ReadHeaderTimeout string `yaml:"readHeaderTimeout,omitempty"`
	ShutdownTimeout   string `yaml:"shutdownTimeout,omitempty"`
}

// StatusFileConfig is the status section of the YAML document.
type StatusFileConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Interval string `yaml:"interval,omitempty"`
	Debounce string `yaml:"debounce,omitempty"`
}

// TelemetryFileConfig is the telemetry section of the YAML document.
type TelemetryFileConfig struct {
	Enabled     *bool    `yaml:"enabled,omitempty"`
	Exporter    string   `yaml:"exporter,omitempty"`
	Endpoint    string   `yaml:"endpoint,omitempty"`
	ServiceName string   `yaml:"serviceName,omitempty"`
	Environment string   `yaml:"environment,omitempty"`
	SampleRatio *float64 `yaml:"sampleRatio,omitempty"`
}

// LoadFileConfig loads a YAML config file without applying defaults or
// env overrides.
func LoadFileConfig(path string) (*FileConfig, error) {
	loader := NewLoader(path, "")
	return loader.loadFile(path)
}
