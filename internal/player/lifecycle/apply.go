// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package lifecycle

import (
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

// The Apply/Begin/Finish helpers below are the only place successor states
// are built and the session context is mutated. They are called exclusively
// from the orchestrator's serialized queue; scripts/verify-state-write-sites
// enforces that no other package writes these fields.

// BeginLoad resets the session context for a fresh load cycle and returns
// the generic loading state.
func BeginLoad(sc *model.SessionContext, act Action) model.PlayerState {
	sc.SourceType = act.SourceType
	sc.SourceURL = act.URL
	sc.Manifest = nil
	sc.Active = nil
	sc.ResumeKind = ""
	return model.Loading(act.SourceType, act.URL)
}

// EnterSource moves an adapter-ready session into its source-specific inner
// chain: manifest loading for dash/hls, preparing for native.
func EnterSource(sc *model.SessionContext) model.PlayerState {
	return model.ManifestLoading(sc.SourceType, sc.SourceURL)
}

// FinishManifest records the parsed manifest and returns the parsed inner
// state.
func FinishManifest(sc *model.SessionContext, m *model.Manifest) model.PlayerState {
	sc.Manifest = m
	return model.ManifestParsed(sc.SourceType, m)
}

// FinishNativeReady returns the native ready state from adapter load info.
func FinishNativeReady(sc *model.SessionContext, info model.ReadyInfo) model.PlayerState {
	return model.NativeReady(sc.SourceURL, info.DurationSeconds)
}

// CommitSelection records the new active representation and returns the
// selected inner state.
func CommitSelection(sc *model.SessionContext, rep model.Representation) model.PlayerState {
	sc.Active = &rep
	return model.Selected(sc.SourceType, rep)
}

// ApplyPlay returns the playing state and remembers it as the seek resume
// point.
func ApplyPlay(sc *model.SessionContext) model.PlayerState {
	sc.ResumeKind = model.KindPlaying
	return model.Playing()
}

// ApplyPause returns the paused state and remembers it as the seek resume
// point.
func ApplyPause(sc *model.SessionContext) model.PlayerState {
	sc.ResumeKind = model.KindPaused
	return model.Paused()
}

// BeginSeek returns the in-seek state. The resume point was recorded when
// playback last entered Playing or Paused.
func BeginSeek(act Action) model.PlayerState {
	return model.SeekingTo(act.TargetSeconds)
}

// FinishSeek restores the pre-seek transport state once the adapter has
// confirmed the seek.
func FinishSeek(sc *model.SessionContext) model.PlayerState {
	if sc.ResumeKind == model.KindPaused {
		return model.Paused()
	}
	return model.Playing()
}

// ApplyEnded returns the terminal end-of-stream state.
func ApplyEnded(sc *model.SessionContext) model.PlayerState {
	sc.ResumeKind = ""
	return model.Ended()
}

// ApplyFailure returns the terminal error state for err, carrying its
// stable code and a sanitized message.
func ApplyFailure(sc *model.SessionContext, err error) model.PlayerState {
	sc.ResumeKind = ""
	return model.Failed(CodeOf(err), SanitizeDetail(err.Error()))
}
