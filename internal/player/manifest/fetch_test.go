// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vflorio/hbbtv-emu-sub005/internal/cache"
	platformnet "github.com/vflorio/hbbtv-emu-sub005/internal/platform/net"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
	"github.com/vflorio/hbbtv-emu-sub005/internal/ratelimit"
)

// testFetcher wires a fetcher whose policy admits exactly the given test
// server.
func testFetcher(t *testing.T, srv *httptest.Server, cfg FetcherConfig) *Fetcher {
	t.Helper()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	policy, err := platformnet.NewPolicy(true, platformnet.Allowlist{
		CIDRs:   []string{"127.0.0.0/8", "::1/128"},
		Ports:   []int{port},
		Schemes: []string{"http"},
	})
	require.NoError(t, err)

	limiter := ratelimit.New(ratelimit.Config{
		GlobalRate:  1000,
		GlobalBurst: 1000,

		PerHostRate:  1000,
		PerHostBurst: 1000,

		CleanupInterval: time.Hour,
	})
	return NewFetcher(cfg, policy, limiter, cache.NewMemory(0))
}

func TestFetcher_FetchAndCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "playerd", r.Header.Get("User-Agent"))
		require.Contains(t, r.Header.Get("Accept"), "application/dash+xml")
		_, _ = w.Write([]byte(staticMPD))
	}))
	defer srv.Close()

	f := testFetcher(t, srv, FetcherConfig{})
	ctx := context.Background()

	data, normalized, fromCache, err := f.Fetch(ctx, model.SourceDash, srv.URL+"/vod.mpd")
	require.NoError(t, err)
	require.Equal(t, staticMPD, string(data))
	require.Equal(t, srv.URL+"/vod.mpd", normalized)
	require.False(t, fromCache)

	data, _, fromCache, err = f.Fetch(ctx, model.SourceDash, srv.URL+"/vod.mpd")
	require.NoError(t, err)
	require.Equal(t, staticMPD, string(data))
	require.True(t, fromCache)
	require.Equal(t, int64(1), hits.Load(), "second fetch must come from cache")
}

func TestFetcher_OriginStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	f := testFetcher(t, srv, FetcherConfig{})
	_, _, _, err := f.Fetch(context.Background(), model.SourceDash, srv.URL+"/vod.mpd")
	require.ErrorContains(t, err, "origin returned status 404")
}

func TestFetcher_SizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	f := testFetcher(t, srv, FetcherConfig{MaxBytes: 1024})
	_, _, _, err := f.Fetch(context.Background(), model.SourceDash, srv.URL+"/vod.mpd")
	require.ErrorContains(t, err, "exceeds 1024 bytes")
}

func TestFetcher_PolicyRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	policy, err := platformnet.NewPolicy(false, platformnet.Allowlist{})
	require.NoError(t, err)
	limiter := ratelimit.New(ratelimit.DefaultConfig())
	f := NewFetcher(FetcherConfig{}, policy, limiter, cache.NewMemory(0))

	_, _, _, err = f.Fetch(context.Background(), model.SourceDash, srv.URL+"/vod.mpd")
	require.ErrorIs(t, err, platformnet.ErrOutboundDisabled)
}

func TestLoader_DashEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(staticMPD))
	}))
	defer srv.Close()

	loader := NewLoader(testFetcher(t, srv, FetcherConfig{}))
	m, err := loader.Load(context.Background(), model.SourceDash, srv.URL+"/vod.mpd")
	require.NoError(t, err)
	require.Equal(t, 600.0, m.DurationSeconds)

	rep, ok := m.FindRepresentation("v-720p")
	require.True(t, ok)
	require.Equal(t, int64(2_500_000), rep.Bandwidth)
}

func TestLoader_FetchFailureIsTypedPerSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	loader := NewLoader(testFetcher(t, srv, FetcherConfig{}))

	_, err := loader.Load(context.Background(), model.SourceDash, srv.URL+"/vod.mpd")
	var mpdErr *lifecycle.MPDParseError
	require.ErrorAs(t, err, &mpdErr)
	require.Zero(t, mpdErr.ByteOffset)

	_, err = loader.Load(context.Background(), model.SourceHls, srv.URL+"/master.m3u8")
	var plErr *lifecycle.PlaylistParseError
	require.ErrorAs(t, err, &plErr)
	require.True(t, lifecycle.IsTerminalFailure(err))
}

func TestLoader_HlsEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.Header.Get("Accept"), "mpegurl")
		_, _ = w.Write([]byte(masterPlaylist))
	}))
	defer srv.Close()

	loader := NewLoader(testFetcher(t, srv, FetcherConfig{}))
	m, err := loader.Load(context.Background(), model.SourceHls, srv.URL+"/master.m3u8")
	require.NoError(t, err)
	require.Len(t, m.AdaptationSets, 1)
	require.Len(t, m.AdaptationSets[0].Representations, 2)
}
