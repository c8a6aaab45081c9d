// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package api serves the playerd control surface: session CRUD, action
// dispatch, SSE change streams, journal and buffer queries, a hardened
// fixture file server, health probes and Prometheus metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/core"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/store"
)

// Config assembles the server's collaborators and tuning knobs.
type Config struct {
	Manager *core.Manager
	// Journal is optional; nil serves empty journal pages.
	Journal store.Store
	// FixturesDir is the root of the /fixtures/ static tree; empty
	// leaves the fixtures routes unmounted.
	FixturesDir string
	Version     string

	// RateLimit requests per RateWindow per client IP; <= 0 disables.
	RateLimit  int
	RateWindow time.Duration
	// SSEHeartbeat is the keep-alive comment interval on event streams;
	// <= 0 selects a default.
	SSEHeartbeat time.Duration

	// TracingService names the otelhttp server spans; empty disables the
	// tracing middleware.
	TracingService string

	// Ready gates /readyz; nil reports ready unconditionally.
	Ready func() bool
}

// Server is the control API. Construct with New, mount via Router.
type Server struct {
	cfg     Config
	started time.Time
}

// New returns a server; it does not listen. The caller owns the listener
// and its lifecycle.
func New(cfg Config) *Server {
	return &Server{cfg: cfg, started: time.Now().UTC()}
}

// Router builds the chi mux with the canonical middleware chain. The chain
// order is fixed: recovery and correlation first, then observability, then
// throttling.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(recoverer)
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(httpMetrics)
	if s.cfg.RateLimit > 0 {
		r.Use(rateLimit(s.cfg.RateLimit, s.cfg.RateWindow))
	}
	if s.cfg.TracingService != "" {
		r.Use(tracing(s.cfg.TracingService))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, Error{Code: codeNotFound, Message: "no such route"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, Error{Code: codeMethodNotAllowed, Message: "method not allowed"})
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/actions", s.handleDispatchAction)
			r.Get("/events", s.handleEvents)
			r.Get("/journal", s.handleJournal)
			r.Get("/buffered", s.handleBuffered)
		})
	})

	if s.cfg.FixturesDir != "" {
		r.Handle("/fixtures/*", http.StripPrefix("/fixtures", s.fixtureServer()))
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.cfg.Version,
		"uptime":  int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	ready := s.cfg.Ready == nil || s.cfg.Ready()
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]bool{"ready": ready})
}
