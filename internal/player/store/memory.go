// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// defaultRingSize bounds the per-session history kept in memory. Old entries
// fall off the front once a session exceeds it.
const defaultRingSize = 256

// MemoryStore keeps a bounded ring of entries per session. It is the default
// backend and the one tests use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Entry
	maxPer   int
	closed   bool
}

// NewMemoryStore returns an in-memory journal. maxPerSession <= 0 selects
// the default ring size.
func NewMemoryStore(maxPerSession int) *MemoryStore {
	if maxPerSession <= 0 {
		maxPerSession = defaultRingSize
	}
	return &MemoryStore{
		sessions: make(map[string][]Entry),
		maxPer:   maxPerSession,
	}
}

func (s *MemoryStore) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	ring := append(s.sessions[e.SessionID], e)
	if overflow := len(ring) - s.maxPer; overflow > 0 {
		ring = ring[overflow:]
	}
	s.sessions[e.SessionID] = ring
	return nil
}

func (s *MemoryStore) List(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	ring := s.sessions[sessionID]
	if limit > 0 && len(ring) > limit {
		ring = ring[len(ring)-limit:]
	}
	out := make([]Entry, len(ring))
	copy(out, ring)
	return out, nil
}

func (s *MemoryStore) Sessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	removed := 0
	for id, ring := range s.sessions {
		kept := ring[:0]
		for _, e := range ring {
			if e.At.Before(olderThan) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.sessions, id)
			continue
		}
		s.sessions[id] = kept
	}
	return removed, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions = nil
	return nil
}

var _ Store = (*MemoryStore)(nil)
