// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/goleak"

	"github.com/vflorio/hbbtv-emu-sub005/internal/config"
)

func testBuildConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Listen = reserveListenAddr(t)
	cfg.DataDir = t.TempDir()
	cfg.FixturesDir = t.TempDir()
	cfg.Status.Interval = 50 * time.Millisecond
	cfg.Status.Debounce = 10 * time.Millisecond
	cfg.API.ShutdownTimeout = 2 * time.Second
	return cfg
}

func startApp(t *testing.T, app *App, addr string) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	if err := waitForListen(addr, 2*time.Second); err != nil {
		cancel()
		t.Fatalf("server did not start listening: %v", err)
	}
	return cancel, done
}

func stopApp(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}

func testClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

func TestBuild_DefaultsLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testBuildConfig(t)
	app, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	cancel, done := startApp(t, app, cfg.Listen)
	defer cancel()

	client := testClient()
	for _, path := range []string{"/healthz", "/readyz", "/api/v1/sessions", "/metrics"} {
		resp, err := client.Get("http://" + cfg.Listen + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
		_ = resp.Body.Close()
	}

	stopApp(t, cancel, done)

	if _, err := os.Stat(filepath.Join(cfg.DataDir, "status.json")); err != nil {
		t.Errorf("status.json not written: %v", err)
	}
}

func TestBuild_SessionPlaysThroughDaemon(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testBuildConfig(t)
	app, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	cancel, done := startApp(t, app, cfg.Listen)
	defer cancel()

	client := testClient()
	base := "http://" + cfg.Listen

	resp, err := client.Post(base+"/api/v1/sessions", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	_ = resp.Body.Close()

	action := `{"type":"load","url":"http://127.0.0.1:1/video.mp4","sourceType":"native"}`
	resp, err = client.Post(base+"/api/v1/sessions/"+created.ID+"/actions", "application/json", bytes.NewReader([]byte(action)))
	if err != nil {
		t.Fatalf("dispatch load: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("dispatch load = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	// The simulated native backend readies after its load delay.
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := client.Get(base + "/api/v1/sessions/" + created.ID)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		var snapshot struct {
			State struct {
				Kind string `json:"kind"`
			} `json:"state"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
			t.Fatalf("decode session: %v", err)
		}
		_ = resp.Body.Close()

		if snapshot.State.Kind == "native.ready" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session state = %q, want native.ready", snapshot.State.Kind)
		}
		time.Sleep(25 * time.Millisecond)
	}

	// The on-change kick lands in the status export after the debounce.
	deadline = time.Now().Add(5 * time.Second)
	for {
		data, err := os.ReadFile(filepath.Join(cfg.DataDir, "status.json"))
		if err == nil && bytes.Contains(data, []byte(created.ID)) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("status.json never picked up session %s", created.ID)
		}
		time.Sleep(25 * time.Millisecond)
	}

	stopApp(t, cancel, done)
}

func TestBuild_SqliteJournal(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testBuildConfig(t)
	cfg.Journal.Backend = config.JournalBackendSqlite
	cfg.Journal.Path = filepath.Join(cfg.DataDir, "journal.db")

	app, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := os.Stat(cfg.Journal.Path); err != nil {
		t.Fatalf("journal database not created: %v", err)
	}

	cancel, done := startApp(t, app, cfg.Listen)
	defer cancel()
	stopApp(t, cancel, done)
}

func TestBuild_RedisCache(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	cfg := testBuildConfig(t)
	cfg.Cache.Backend = config.CacheBackendRedis
	cfg.Cache.RedisAddr = mr.Addr()

	app, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	cancel, done := startApp(t, app, cfg.Listen)
	defer cancel()
	stopApp(t, cancel, done)
}

func TestBuild_RedisUnavailable(t *testing.T) {
	cfg := testBuildConfig(t)
	cfg.Cache.Backend = config.CacheBackendRedis
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	_, err := Build(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("Build() expected error for unreachable redis, got nil")
	}
	if !contains(err.Error(), "build manifest cache") {
		t.Errorf("Build() error = %v, want cache build failure", err)
	}
}

func TestBuild_StatusDisabled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testBuildConfig(t)
	cfg.Status.Enabled = false

	app, err := Build(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if app.status != nil {
		t.Error("status writer built despite Status.Enabled=false")
	}

	cancel, done := startApp(t, app, cfg.Listen)
	defer cancel()
	stopApp(t, cancel, done)

	if _, err := os.Stat(filepath.Join(cfg.DataDir, "status.json")); !os.IsNotExist(err) {
		t.Errorf("status.json written despite disabled export: %v", err)
	}
}
