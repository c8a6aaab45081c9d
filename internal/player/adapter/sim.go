// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package adapter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

// simDefaultDuration is reported when a config leaves the duration unset.
const simDefaultDuration = 600.0

var errSimDisposed = errors.New("sim adapter disposed")

// SimConfig shapes one simulated backend. Zero delays make every call
// return immediately, which is what tests want; the daemon configures
// realistic latencies.
type SimConfig struct {
	LoadDelay       time.Duration
	SeekDelay       time.Duration
	DurationSeconds float64
	IsDynamic       bool
	// FailLoad, when set, makes Load fail with this error after LoadDelay.
	FailLoad error
}

// SimFactory builds simulated adapters from a fixed config. The emulator
// registers one per source type.
type SimFactory struct {
	Config SimConfig
}

func (f *SimFactory) New(sink EventSink) (Adapter, error) {
	return newSim(f.Config, sink), nil
}

// Sim is a simulated playback backend. It keeps a wall-clock position,
// confirms seeks after a configurable latency and emits an ended event when
// the position reaches the configured duration.
type Sim struct {
	cfg  SimConfig
	sink EventSink

	mu        sync.Mutex
	loaded    bool
	disposed  bool
	playing   bool
	pos       float64
	resumedAt time.Time
	endTimer  *time.Timer
}

func newSim(cfg SimConfig, sink EventSink) *Sim {
	if cfg.DurationSeconds <= 0 {
		cfg.DurationSeconds = simDefaultDuration
	}
	return &Sim{cfg: cfg, sink: sink}
}

func (s *Sim) Load(ctx context.Context, url string) (model.ReadyInfo, error) {
	if err := simWait(ctx, s.cfg.LoadDelay); err != nil {
		return model.ReadyInfo{}, err
	}
	if s.cfg.FailLoad != nil {
		return model.ReadyInfo{}, s.cfg.FailLoad
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return model.ReadyInfo{}, errSimDisposed
	}
	s.loaded = true
	s.pos = 0
	return model.ReadyInfo{
		DurationSeconds: s.cfg.DurationSeconds,
		IsDynamic:       s.cfg.IsDynamic,
	}, nil
}

func (s *Sim) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return errSimDisposed
	}
	if s.playing {
		return nil
	}
	s.playing = true
	s.resumedAt = time.Now()
	s.rescheduleEndLocked()
	return nil
}

func (s *Sim) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return errSimDisposed
	}
	if s.playing {
		s.pos = s.positionLocked(time.Now())
		s.playing = false
	}
	s.stopEndLocked()
	return nil
}

func (s *Sim) Seek(ctx context.Context, seconds float64) error {
	if err := simWait(ctx, s.cfg.SeekDelay); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return errSimDisposed
	}
	if seconds < 0 {
		seconds = 0
	}
	if !s.cfg.IsDynamic && seconds > s.cfg.DurationSeconds {
		seconds = s.cfg.DurationSeconds
	}
	s.pos = seconds
	if s.playing {
		s.resumedAt = time.Now()
		s.rescheduleEndLocked()
	}
	return nil
}

func (s *Sim) BufferedRanges(ctx context.Context) ([]model.TimeRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, errSimDisposed
	}
	if !s.loaded {
		return nil, nil
	}

	pos := s.positionLocked(time.Now())
	start := pos - 10
	if start < 0 {
		start = 0
	}
	end := pos + 30
	if !s.cfg.IsDynamic && end > s.cfg.DurationSeconds {
		end = s.cfg.DurationSeconds
	}
	return []model.TimeRange{{StartSeconds: start, EndSeconds: end}}, nil
}

func (s *Sim) Dispose(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	s.playing = false
	s.stopEndLocked()
	return nil
}

// Position reports the current simulated position. Exposed for status
// endpoints and tests.
func (s *Sim) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked(time.Now())
}

func (s *Sim) positionLocked(now time.Time) float64 {
	pos := s.pos
	if s.playing {
		pos += now.Sub(s.resumedAt).Seconds()
	}
	if !s.cfg.IsDynamic && pos > s.cfg.DurationSeconds {
		pos = s.cfg.DurationSeconds
	}
	return pos
}

// rescheduleEndLocked arms the end-of-stream timer for the remaining
// playtime. Dynamic sources never end on their own.
func (s *Sim) rescheduleEndLocked() {
	s.stopEndLocked()
	if s.cfg.IsDynamic {
		return
	}
	remaining := s.cfg.DurationSeconds - s.pos
	if remaining < 0 {
		remaining = 0
	}
	s.endTimer = time.AfterFunc(time.Duration(remaining*float64(time.Second)), s.fireEnded)
}

func (s *Sim) stopEndLocked() {
	if s.endTimer != nil {
		s.endTimer.Stop()
		s.endTimer = nil
	}
}

func (s *Sim) fireEnded() {
	s.mu.Lock()
	if s.disposed || !s.playing {
		s.mu.Unlock()
		return
	}
	s.playing = false
	s.pos = s.cfg.DurationSeconds
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink.OnAdapterEvent(Event{Kind: EventEnded})
	}
}

var _ Adapter = (*Sim)(nil)

// simWait blocks for d, aborting early when ctx is cancelled.
func simWait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
