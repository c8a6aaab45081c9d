// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package lifecycle

import "github.com/vflorio/hbbtv-emu-sub005/internal/player/model"

// ActionKind identifies a dispatchable input to the state machine. User
// actions and unsolicited adapter events share one kind space because they
// share one serialization discipline: everything folds through the same
// queue and the same decision table.
type ActionKind int

const (
	ActUnknown ActionKind = iota
	ActLoad
	ActPlay
	ActPause
	ActSeek
	ActSelect
	ActDispose
	ActAdapterPlayable
	ActAdapterBuffering
	ActAdapterEnded
	ActAdapterFatal
)

// ActionKinds lists every dispatchable kind. The decision table is checked
// for totality against this list.
func ActionKinds() []ActionKind {
	return []ActionKind{
		ActLoad, ActPlay, ActPause, ActSeek, ActSelect, ActDispose,
		ActAdapterPlayable, ActAdapterBuffering, ActAdapterEnded, ActAdapterFatal,
	}
}

// String returns the stable label used in logs, metrics and the journal.
func (k ActionKind) String() string {
	switch k {
	case ActLoad:
		return "load"
	case ActPlay:
		return "play"
	case ActPause:
		return "pause"
	case ActSeek:
		return "seek"
	case ActSelect:
		return "select_representation"
	case ActDispose:
		return "dispose"
	case ActAdapterPlayable:
		return "adapter.playable"
	case ActAdapterBuffering:
		return "adapter.buffering"
	case ActAdapterEnded:
		return "adapter.ended"
	case ActAdapterFatal:
		return "adapter.fatal"
	default:
		return "unknown"
	}
}

// IsAdapterEvent reports whether the kind originates from a backend adapter
// rather than a caller.
func (k ActionKind) IsAdapterEvent() bool {
	switch k {
	case ActAdapterPlayable, ActAdapterBuffering, ActAdapterEnded, ActAdapterFatal:
		return true
	}
	return false
}

// Action carries one dispatched input plus its kind-specific payload.
type Action struct {
	Kind             ActionKind
	SourceType       model.SourceType
	URL              string
	TargetSeconds    float64
	RepresentationID string
	Reason           model.SwitchReason
	Cause            error // adapter.fatal only
}

// Load builds a load action for the given source type and URL.
func Load(source model.SourceType, url string) Action {
	return Action{Kind: ActLoad, SourceType: source, URL: url}
}

// Play builds a play action.
func Play() Action { return Action{Kind: ActPlay} }

// Pause builds a pause action.
func Pause() Action { return Action{Kind: ActPause} }

// Seek builds a seek action targeting the given media time.
func Seek(targetSeconds float64) Action {
	return Action{Kind: ActSeek, TargetSeconds: targetSeconds}
}

// Select builds a representation selection action.
func Select(representationID string, reason model.SwitchReason) Action {
	return Action{Kind: ActSelect, RepresentationID: representationID, Reason: reason}
}

// Dispose builds a dispose action.
func Dispose() Action { return Action{Kind: ActDispose} }

// AdapterPlayable builds the adapter playable event.
func AdapterPlayable() Action { return Action{Kind: ActAdapterPlayable} }

// AdapterBuffering builds the adapter buffering event.
func AdapterBuffering() Action { return Action{Kind: ActAdapterBuffering} }

// AdapterEnded builds the adapter end-of-stream event.
func AdapterEnded() Action { return Action{Kind: ActAdapterEnded} }

// AdapterFatal builds the adapter fatal failure event.
func AdapterFatal(cause error) Action {
	return Action{Kind: ActAdapterFatal, Cause: cause}
}
