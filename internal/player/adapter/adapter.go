// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package adapter

import (
	"context"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

// Adapter is the uniform contract every playback backend implements. One
// instance drives exactly one loaded source; a fresh load gets a fresh
// instance. All methods are invoked from the session's serialized queue,
// never concurrently, so implementations do not need to guard against
// overlapping calls from the orchestrator side.
type Adapter interface {
	// Load opens url and blocks until the source is playable or ctx is
	// done. A cancelled ctx must abort promptly and release everything
	// acquired so far.
	Load(ctx context.Context, url string) (model.ReadyInfo, error)

	// Play starts or resumes presentation.
	Play(ctx context.Context) error

	// Pause freezes presentation, keeping the source loaded.
	Pause(ctx context.Context) error

	// Seek repositions to seconds and blocks until the backend confirms
	// the new position.
	Seek(ctx context.Context, seconds float64) error

	// BufferedRanges reports the currently buffered media intervals.
	BufferedRanges(ctx context.Context) ([]model.TimeRange, error)

	// Dispose releases the backend. Idempotent; after Dispose returns the
	// adapter emits no further events.
	Dispose(ctx context.Context) error
}

// EventKind tags an unsolicited backend event.
type EventKind string

const (
	// EventBuffering signals a playback stall while the backend refills.
	EventBuffering EventKind = "buffering"
	// EventPlayable signals the backend can render: readiness to start or
	// recovery from a stall.
	EventPlayable EventKind = "playable"
	// EventEnded signals natural end of stream.
	EventEnded EventKind = "ended"
	// EventFatal signals an unrecoverable backend failure; Err carries the
	// cause.
	EventFatal EventKind = "fatal"
)

// Event is an unsolicited notification from a backend. Err is set for
// EventFatal only.
type Event struct {
	Kind EventKind
	Err  error
}

// EventSink receives adapter events. Implementations must be safe for
// concurrent use: backends emit from their own goroutines, at any time
// between Load and Dispose.
type EventSink interface {
	OnAdapterEvent(ev Event)
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(Event)

func (f SinkFunc) OnAdapterEvent(ev Event) { f(ev) }

// Factory builds adapter instances. One factory serves one source type;
// the registry picks the factory by the source tag of a load request.
type Factory interface {
	New(sink EventSink) (Adapter, error)
}
