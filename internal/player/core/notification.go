// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package core

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/metrics"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

const (
	defaultSubscriptionBuffer = 16
	dropLogEvery              = 100
)

// Notification is one element of a session's change stream. Seq increases
// strictly per session. Err is set when an action was rejected; State is
// then the unchanged snapshot the rejection was decided against.
type Notification struct {
	Seq   uint64
	State model.PlayerState
	Err   error
}

// SubscribeOptions tune one subscription.
type SubscribeOptions struct {
	// Buffer is the channel capacity; <= 0 selects the default.
	Buffer int
	// ReplayCurrent delivers the current state immediately on subscribe,
	// before any change.
	ReplayCurrent bool
}

// Subscription is one receiver of a session's change stream. Receive from C
// while also selecting on Done: the orchestrator never blocks on a slow
// receiver, it drops instead, and C is never closed.
type Subscription struct {
	C    <-chan Notification
	Done <-chan struct{}

	ch      chan Notification
	doneCh  chan struct{}
	once    sync.Once
	lastSeq atomic.Uint64
	dropped atomic.Uint64
	detach  func(*Subscription)
	logger  zerolog.Logger
}

func newSubscription(buffer int, logger zerolog.Logger) *Subscription {
	s := &Subscription{
		ch:     make(chan Notification, buffer),
		doneCh: make(chan struct{}),
		logger: logger,
	}
	s.C = s.ch
	s.Done = s.doneCh
	return s
}

// Close detaches the subscription and closes Done. Safe to call more than
// once and from any goroutine.
func (s *Subscription) Close() {
	if s.detach != nil {
		s.detach(s)
	}
	s.finish()
}

// Dropped reports how many notifications were lost to a full buffer.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription) finish() {
	s.once.Do(func() { close(s.doneCh) })
}

// replay seeds the stream with the current snapshot at subscribe time. The
// recorded seq makes the racing regular delivery of the same seq a no-op.
func (s *Subscription) replay(n Notification) {
	s.lastSeq.Store(n.Seq)
	s.send(n)
}

// deliver hands one notification to the receiver without ever blocking the
// caller. Notifications at or below the last delivered seq are duplicates
// from the subscribe race and are skipped.
func (s *Subscription) deliver(n Notification) {
	if n.Seq <= s.lastSeq.Load() {
		return
	}
	s.lastSeq.Store(n.Seq)
	s.send(n)
}

func (s *Subscription) send(n Notification) {
	select {
	case s.ch <- n:
	default:
		metrics.IncNotificationDropped()
		if d := s.dropped.Add(1); d%dropLogEvery == 1 {
			s.logger.Warn().
				Uint64("dropped", d).
				Uint64(log.FieldSeq, n.Seq).
				Msg("subscriber buffer full, notification dropped")
		}
	}
}
