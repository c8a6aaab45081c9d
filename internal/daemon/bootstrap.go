// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package daemon assembles and runs the playerd runtime.
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/vflorio/hbbtv-emu-sub005/internal/api"
	"github.com/vflorio/hbbtv-emu-sub005/internal/cache"
	"github.com/vflorio/hbbtv-emu-sub005/internal/config"
	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/adapter"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/core"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/manifest"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/store"
	platformnet "github.com/vflorio/hbbtv-emu-sub005/internal/platform/net"
	"github.com/vflorio/hbbtv-emu-sub005/internal/ratelimit"
	"github.com/vflorio/hbbtv-emu-sub005/internal/status"
	"github.com/vflorio/hbbtv-emu-sub005/internal/telemetry"
)

// Build assembles the daemon from a loaded configuration: telemetry,
// journal, manifest cache and fetch pipeline, adapter registry, session
// manager, API server and status writer, with shutdown hooks registered
// in dependency order. holder may be nil; hot reload then stays off.
func Build(ctx context.Context, cfg config.AppConfig, holder *config.Holder) (app *App, err error) {
	logger := log.WithComponent("daemon")

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	// Telemetry comes up first so the fetcher transport and the API
	// middleware pick up the configured tracer provider.
	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tel.Shutdown(context.Background())
		}
	}()

	journal, err := store.Open(cfg.Journal.Backend, cfg.Journal.Path, cfg.Journal.TTL, cfg.Journal.MemoryPerSession)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		if err != nil {
			_ = journal.Close()
		}
	}()

	docs, err := buildCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("build manifest cache: %w", err)
	}
	defer func() {
		if err != nil {
			_ = docs.Close()
		}
	}()

	policy, err := platformnet.NewPolicy(cfg.Outbound.Enforce, cfg.Outbound.Allow)
	if err != nil {
		return nil, fmt.Errorf("build outbound policy: %w", err)
	}

	fetcher := manifest.NewFetcher(manifest.FetcherConfig{
		Timeout:   cfg.Fetch.Timeout,
		MaxBytes:  cfg.Fetch.MaxBytes,
		CacheTTL:  cfg.Cache.TTL,
		UserAgent: cfg.Fetch.UserAgent,
	}, policy, ratelimit.New(fetchLimits(cfg.Fetch)), docs)

	registry := adapter.NewRegistry()
	for _, source := range model.SourceTypes() {
		registry.Register(source, &adapter.SimFactory{Config: simConfigFor(source)})
	}

	// The status writer and the session manager reference each other: the
	// writer renders the session set, the manager kicks the writer on
	// every change. The source's manager side is bound after both exist.
	var (
		statusWriter *status.Writer
		statusSrc    *status.ManagerSource
		onChange     func()
	)
	if cfg.Status.Enabled {
		statusSrc = &status.ManagerSource{}
		statusWriter = status.NewWriter(status.Config{
			Path:     filepath.Join(cfg.DataDir, "status.json"),
			Interval: cfg.Status.Interval,
			Debounce: cfg.Status.Debounce,
			Version:  cfg.Version,
		}, statusSrc)
		onChange = statusWriter.Notify
	}

	sessions := core.NewManager(core.ManagerConfig{
		Registry:       registry,
		Manifests:      manifest.NewLoader(fetcher),
		Journal:        journal,
		JournalBackend: cfg.Journal.Backend,
		Constraints: model.Constraints{
			MaxHeight:    cfg.Constraints.MaxHeight,
			MaxBandwidth: cfg.Constraints.MaxBandwidth,
		},
		OnChange: onChange,
	})
	if statusSrc != nil {
		statusSrc.Manager = sessions
	}

	ready := new(atomic.Bool)
	ready.Store(true)

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = cfg.Telemetry.ServiceName
	}

	apiServer := api.New(api.Config{
		Manager:        sessions,
		Journal:        journal,
		FixturesDir:    cfg.FixturesDir,
		Version:        cfg.Version,
		RateLimit:      cfg.API.RateLimit,
		RateWindow:     cfg.API.RateWindow,
		SSEHeartbeat:   cfg.API.SSEHeartbeat,
		TracingService: tracingService,
		Ready:          ready.Load,
	})

	mgr, err := NewManager(cfg, Deps{
		Logger:     logger,
		Config:     cfg,
		APIHandler: apiServer.Router(),
		Sessions:   sessions,
		Ready:      ready,
	})
	if err != nil {
		return nil, err
	}

	// Hooks run LIFO after the HTTP drain and session disposal: journal
	// and cache close once no session can write, telemetry flushes last.
	mgr.RegisterShutdownHook("telemetry", tel.Shutdown)
	mgr.RegisterShutdownHook("journal", func(context.Context) error { return journal.Close() })
	mgr.RegisterShutdownHook("cache", func(context.Context) error { return docs.Close() })

	return NewApp(logger, mgr, holder, statusWriter), nil
}

// buildCache constructs the manifest document cache for the configured
// backend.
func buildCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		return cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log.WithComponent("cache"))
	case config.CacheBackendNone:
		return cache.NewNoOp(), nil
	default:
		return cache.NewMemory(time.Minute), nil
	}
}

// fetchLimits maps the fetch politeness settings onto the limiter config,
// keeping the limiter defaults where the configuration is silent.
func fetchLimits(cfg config.FetchConfig) ratelimit.Config {
	limits := ratelimit.DefaultConfig()
	if cfg.GlobalRate > 0 {
		limits.GlobalRate = rate.Limit(cfg.GlobalRate)
	}
	if cfg.GlobalBurst > 0 {
		limits.GlobalBurst = cfg.GlobalBurst
	}
	if cfg.PerHostRate > 0 {
		limits.PerHostRate = rate.Limit(cfg.PerHostRate)
	}
	if cfg.PerHostBurst > 0 {
		limits.PerHostBurst = cfg.PerHostBurst
	}
	return limits
}

// simConfigFor models per-backend timing: segmented sources take longer to
// prepare than the progressive native pipeline.
func simConfigFor(source model.SourceType) adapter.SimConfig {
	cfg := adapter.SimConfig{
		LoadDelay: 200 * time.Millisecond,
		SeekDelay: 120 * time.Millisecond,
	}
	if source == model.SourceNative {
		cfg.LoadDelay = 50 * time.Millisecond
		cfg.SeekDelay = 80 * time.Millisecond
	}
	return cfg
}
