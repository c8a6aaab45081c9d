// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package adaptertest provides a scriptable adapter double for orchestrator
// and API tests: calls are recorded, failures and ready payloads are
// scripted per method, Load and Seek can be gated to hold an operation
// in flight, and events are injected by hand.
package adaptertest

import (
	"context"
	"strconv"
	"sync"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/adapter"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

// Mock is a test double for adapter.Adapter.
type Mock struct {
	mu   sync.Mutex
	sink adapter.EventSink

	ready      model.ReadyInfo
	ranges     []model.TimeRange
	loadErr    error
	playErr    error
	pauseErr   error
	seekErr    error
	disposeErr error
	loadGate   chan struct{}
	seekGate   chan struct{}
	calls      []string
	disposed   bool
}

// NewMock returns a mock reporting a 600s static source until scripted
// otherwise.
func NewMock() *Mock {
	return &Mock{ready: model.ReadyInfo{DurationSeconds: 600}}
}

func (m *Mock) Load(ctx context.Context, url string) (model.ReadyInfo, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "load "+url)
	gate := m.loadGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-ctx.Done():
			return model.ReadyInfo{}, ctx.Err()
		case <-gate:
		}
	}
	if err := ctx.Err(); err != nil {
		return model.ReadyInfo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return model.ReadyInfo{}, m.loadErr
	}
	return m.ready, nil
}

func (m *Mock) Play(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "play")
	return m.playErr
}

func (m *Mock) Pause(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "pause")
	return m.pauseErr
}

func (m *Mock) Seek(ctx context.Context, seconds float64) error {
	m.mu.Lock()
	m.calls = append(m.calls, "seek "+strconv.FormatFloat(seconds, 'g', -1, 64))
	gate := m.seekGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gate:
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seekErr
}

func (m *Mock) BufferedRanges(ctx context.Context) ([]model.TimeRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "buffered_ranges")
	out := make([]model.TimeRange, len(m.ranges))
	copy(out, m.ranges)
	return out, nil
}

func (m *Mock) Dispose(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "dispose")
	m.disposed = true
	return m.disposeErr
}

// Test helpers

func (m *Mock) SetReadyInfo(info model.ReadyInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = info
}

func (m *Mock) SetRanges(ranges []model.TimeRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranges = ranges
}

func (m *Mock) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadErr = err
}

func (m *Mock) SetPlayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

func (m *Mock) SetPauseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseErr = err
}

func (m *Mock) SetSeekError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekErr = err
}

func (m *Mock) SetDisposeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposeErr = err
}

// GateLoad makes the next Load calls block until the returned release is
// called (or their context is cancelled). Release is idempotent.
func (m *Mock) GateLoad() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.loadGate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// GateSeek is GateLoad for Seek.
func (m *Mock) GateSeek() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.seekGate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Emit injects an unsolicited event, as a backend goroutine would.
func (m *Mock) Emit(ev adapter.Event) {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if sink != nil {
		sink.OnAdapterEvent(ev)
	}
}

// Calls returns the recorded call log in order.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Disposed reports whether Dispose has been called.
func (m *Mock) Disposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

func (m *Mock) bind(sink adapter.EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

var _ adapter.Adapter = (*Mock)(nil)

// Factory hands out mocks. Prepared mocks are consumed in order; once the
// queue is empty every New builds a fresh default mock. Made keeps every
// instance handed out so tests can address "the adapter of the second
// load".
type Factory struct {
	mu     sync.Mutex
	newErr error
	next   []*Mock
	made   []*Mock
}

func NewFactory() *Factory { return &Factory{} }

// Enqueue queues m for the next New call.
func (f *Factory) Enqueue(m *Mock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next = append(f.next, m)
}

// SetNewError makes New fail until reset with nil.
func (f *Factory) SetNewError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newErr = err
}

func (f *Factory) New(sink adapter.EventSink) (adapter.Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	var m *Mock
	if len(f.next) > 0 {
		m = f.next[0]
		f.next = f.next[1:]
	} else {
		m = NewMock()
	}
	m.bind(sink)
	f.made = append(f.made, m)
	return m, nil
}

// Made returns every mock handed out, in creation order.
func (f *Factory) Made() []*Mock {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Mock, len(f.made))
	copy(out, f.made)
	return out
}

var _ adapter.Factory = (*Factory)(nil)
