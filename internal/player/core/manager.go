// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package core

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/adapter"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/store"
)

// ErrManagerClosed is returned by Create after Shutdown.
var ErrManagerClosed = errors.New("session manager closed")

// ManagerConfig carries the collaborators shared by every session.
type ManagerConfig struct {
	Registry       *adapter.Registry
	Manifests      ManifestLoader
	Journal        store.Store
	JournalBackend string
	Constraints    model.Constraints
	// OnChange, when set, runs after every session transition and
	// whenever the session set changes. It must not block.
	OnChange func()
}

// Manager owns the session set, keyed by session UUID. Sessions are fully
// independent; the manager only creates, finds and disposes them.
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Orchestrator
	closed   bool
}

// NewManager returns an empty session manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Orchestrator),
	}
}

// Create starts a fresh session in Idle and registers it.
func (m *Manager) Create() (*Orchestrator, error) {
	o, err := New(Config{
		Registry:       m.cfg.Registry,
		Manifests:      m.cfg.Manifests,
		Journal:        m.cfg.Journal,
		JournalBackend: m.cfg.JournalBackend,
		Constraints:    m.cfg.Constraints,
		OnChange:       m.cfg.OnChange,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		o.Dispose()
		return nil, ErrManagerClosed
	}
	m.sessions[o.ID()] = o
	m.mu.Unlock()

	log.WithComponent("player").Info().Str(log.FieldSessionID, o.ID()).Msg("session created")
	if m.cfg.OnChange != nil {
		m.cfg.OnChange()
	}
	return o, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Orchestrator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.sessions[id]
	return o, ok
}

// List returns all live sessions ordered by id.
func (m *Manager) List() []*Orchestrator {
	m.mu.RLock()
	out := make([]*Orchestrator, 0, len(m.sessions))
	for _, o := range m.sessions {
		out = append(out, o)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Dispose tears down and removes the session with the given id. It reports
// whether the id was known.
func (m *Manager) Dispose(id string) bool {
	m.mu.Lock()
	o, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	o.Dispose()
	if m.cfg.OnChange != nil {
		m.cfg.OnChange()
	}
	return true
}

// Shutdown disposes every session in parallel. It returns ctx's error when
// teardown does not finish in time; sessions keep tearing down in the
// background then.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*Orchestrator, 0, len(m.sessions))
	for _, o := range m.sessions {
		sessions = append(sessions, o)
	}
	m.sessions = make(map[string]*Orchestrator)
	m.mu.Unlock()

	g := new(errgroup.Group)
	for _, o := range sessions {
		o := o
		g.Go(func() error {
			done := make(chan struct{})
			go func() {
				o.Dispose()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}
