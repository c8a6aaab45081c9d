// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vflorio/hbbtv-emu-sub005/internal/cache"
	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/platform/httpx"
	platformnet "github.com/vflorio/hbbtv-emu-sub005/internal/platform/net"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
	"github.com/vflorio/hbbtv-emu-sub005/internal/ratelimit"
)

// FetcherConfig tunes the manifest fetcher.
type FetcherConfig struct {
	Timeout   time.Duration
	MaxBytes  int64
	CacheTTL  time.Duration
	UserAgent string
}

func (c *FetcherConfig) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 8 * 1024 * 1024
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "playerd"
	}
}

// Fetcher retrieves manifest documents over HTTP. Every fetch passes the
// outbound policy, the fetch limiter and the document cache, in that
// order.
type Fetcher struct {
	cfg     FetcherConfig
	client  *http.Client
	policy  *platformnet.Policy
	limiter *ratelimit.FetchLimiter
	docs    cache.Cache
	logger  zerolog.Logger
}

// NewFetcher builds a fetcher. The HTTP transport is traced and carries
// per-phase timeouts.
func NewFetcher(cfg FetcherConfig, policy *platformnet.Policy, limiter *ratelimit.FetchLimiter, docs cache.Cache) *Fetcher {
	cfg.applyDefaults()
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(httpx.NewTransport(cfg.Timeout)),
		},
		policy:  policy,
		limiter: limiter,
		docs:    docs,
		logger:  log.WithComponent("manifest.fetcher"),
	}
}

// Fetch validates rawURL against the outbound policy and returns the
// document bytes plus the normalized URL. Cache hits skip the origin
// entirely; fromCache tells the caller which path was taken.
func (f *Fetcher) Fetch(ctx context.Context, source model.SourceType, rawURL string) (data []byte, normalized string, fromCache bool, err error) {
	normalized, err = f.policy.Validate(ctx, rawURL)
	if err != nil {
		return nil, "", false, fmt.Errorf("outbound policy: %w", err)
	}

	key := cacheKey(source, normalized)
	if payload, ok := f.docs.Get(key); ok {
		fetchTotal.WithLabelValues(string(source), outcomeCacheHit).Inc()
		f.logger.Debug().
			Str(log.FieldURL, platformnet.SanitizeURL(normalized)).
			Str(log.FieldSourceType, string(source)).
			Str(log.FieldCacheOutcome, "hit").
			Msg("manifest served from cache")
		return payload, normalized, true, nil
	}

	host, err := fetchHost(normalized)
	if err != nil {
		return nil, "", false, err
	}
	if err := f.limiter.Wait(ctx, host); err != nil {
		return nil, "", false, fmt.Errorf("fetch limiter: %w", err)
	}

	start := time.Now()
	data, err = f.doFetch(ctx, source, normalized)
	fetchDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())
	if err != nil {
		fetchTotal.WithLabelValues(string(source), outcomeError).Inc()
		return nil, "", false, err
	}
	fetchTotal.WithLabelValues(string(source), outcomeOK).Inc()

	f.docs.Set(key, data, f.cfg.CacheTTL)
	f.logger.Debug().
		Str(log.FieldURL, platformnet.SanitizeURL(normalized)).
		Str(log.FieldSourceType, string(source)).
		Str(log.FieldCacheOutcome, "miss").
		Int(log.FieldBytes, len(data)).
		Dur("elapsed", time.Since(start)).
		Msg("manifest fetched")
	return data, normalized, false, nil
}

func (f *Fetcher) doFetch(ctx context.Context, source model.SourceType, fetchURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", acceptHeader(source))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, fmt.Errorf("origin returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("manifest exceeds %d bytes", f.cfg.MaxBytes)
	}
	return data, nil
}

func cacheKey(source model.SourceType, normalizedURL string) string {
	return "manifest:" + string(source) + ":" + normalizedURL
}

func fetchHost(normalizedURL string) (string, error) {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return "", fmt.Errorf("parse normalized url: %w", err)
	}
	return u.Hostname(), nil
}

func acceptHeader(source model.SourceType) string {
	switch source {
	case model.SourceDash:
		return "application/dash+xml, application/xml;q=0.9, */*;q=0.1"
	case model.SourceHls:
		return "application/vnd.apple.mpegurl, application/x-mpegurl;q=0.9, */*;q=0.1"
	default:
		return "*/*"
	}
}
