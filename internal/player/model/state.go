// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package model

// StateKind enumerates every reachable player state, including the
// source-specific inner chains. Keep these stable: the journal, metrics and
// the control API depend on them. New kinds are breaking changes for the
// decision table and its exhaustiveness test, by construction.
type StateKind string

const (
	KindIdle    StateKind = "idle"
	KindLoading StateKind = "loading"

	// DASH manifest chain
	KindDashMPDLoading       StateKind = "dash.mpd_loading"
	KindDashMPDParsed        StateKind = "dash.mpd_parsed"
	KindDashRepSelected      StateKind = "dash.representation_selected"
	KindDashQualitySwitching StateKind = "dash.quality_switching"

	// HLS playlist chain
	KindHlsPlaylistLoading  StateKind = "hls.playlist_loading"
	KindHlsPlaylistParsed   StateKind = "hls.playlist_parsed"
	KindHlsVariantSelected  StateKind = "hls.variant_selected"
	KindHlsQualitySwitching StateKind = "hls.quality_switching"

	// Native progressive chain
	KindNativePreparing StateKind = "native.preparing"
	KindNativeReady     StateKind = "native.ready"

	KindPlaying StateKind = "playing"
	KindPaused  StateKind = "paused"
	KindSeeking StateKind = "seeking"
	KindEnded   StateKind = "ended"
	KindError   StateKind = "error"
)

// StateKinds lists every kind. The transition tables are checked for
// totality against this list.
func StateKinds() []StateKind {
	return []StateKind{
		KindIdle, KindLoading,
		KindDashMPDLoading, KindDashMPDParsed, KindDashRepSelected, KindDashQualitySwitching,
		KindHlsPlaylistLoading, KindHlsPlaylistParsed, KindHlsVariantSelected, KindHlsQualitySwitching,
		KindNativePreparing, KindNativeReady,
		KindPlaying, KindPaused, KindSeeking, KindEnded, KindError,
	}
}

// IsTerminal reports whether the kind ends the session's playback cycle.
// Only a fresh load (or dispose) is accepted from a terminal kind.
func (k StateKind) IsTerminal() bool {
	return k == KindEnded || k == KindError
}

// IsLoadInFlight reports whether a load is still being resolved, before any
// manifest is parsed or media is ready.
func (k StateKind) IsLoadInFlight() bool {
	switch k {
	case KindLoading, KindDashMPDLoading, KindHlsPlaylistLoading, KindNativePreparing:
		return true
	}
	return false
}

// IsSourceState reports whether the kind belongs to a source-specific inner
// chain (the generic SourceState layer).
func (k StateKind) IsSourceState() bool {
	switch k {
	case KindDashMPDLoading, KindDashMPDParsed, KindDashRepSelected, KindDashQualitySwitching,
		KindHlsPlaylistLoading, KindHlsPlaylistParsed, KindHlsVariantSelected, KindHlsQualitySwitching,
		KindNativePreparing, KindNativeReady:
		return true
	}
	return false
}

// IsSelected reports whether the kind carries an active representation.
func (k StateKind) IsSelected() bool {
	return k == KindDashRepSelected || k == KindHlsVariantSelected
}

// IsManifestBearing reports whether the kind descends from a parsed
// manifest, making representation selection possible.
func (k StateKind) IsManifestBearing() bool {
	switch k {
	case KindDashMPDParsed, KindDashRepSelected, KindHlsPlaylistParsed, KindHlsVariantSelected:
		return true
	}
	return false
}

// PlayerState is a single immutable snapshot of one session. Exactly one
// kind is active at a time; constructors populate only the payload fields
// that belong to that kind, so combinations like a playing state carrying a
// stale manifest cannot be built.
type PlayerState struct {
	Kind StateKind `json:"kind"`

	// Loading / inner-chain payloads
	SourceType SourceType `json:"sourceType,omitempty"`
	URL        string     `json:"url,omitempty"`

	// Parsed-manifest payloads
	Manifest *Manifest `json:"manifest,omitempty"`

	// Selection payloads
	Representation *Representation `json:"representation,omitempty"`

	// Quality-switch payloads
	SwitchFrom   *Representation `json:"switchFrom,omitempty"`
	SwitchTo     *Representation `json:"switchTo,omitempty"`
	SwitchReason SwitchReason    `json:"switchReason,omitempty"`

	// Seek payload
	TargetSeconds float64 `json:"targetSeconds,omitempty"`

	// Ready payload
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	IsDynamic       bool    `json:"isDynamic,omitempty"`

	// Error payload
	ErrCode    string `json:"errCode,omitempty"`
	ErrMessage string `json:"errMessage,omitempty"`
}

// Idle returns the initial session state.
func Idle() PlayerState {
	return PlayerState{Kind: KindIdle}
}

// Loading returns the generic loading state entered when a load action is
// accepted, before the adapter reports ready.
func Loading(source SourceType, url string) PlayerState {
	return PlayerState{Kind: KindLoading, SourceType: source, URL: url}
}

// ManifestLoading returns the manifest-fetch inner state for source.
// Native sources use Preparing instead.
func ManifestLoading(source SourceType, url string) PlayerState {
	switch source {
	case SourceDash:
		return PlayerState{Kind: KindDashMPDLoading, SourceType: source, URL: url}
	case SourceHls:
		return PlayerState{Kind: KindHlsPlaylistLoading, SourceType: source, URL: url}
	default:
		return PlayerState{Kind: KindNativePreparing, SourceType: source, URL: url}
	}
}

// ManifestParsed returns the parsed-manifest inner state for source.
func ManifestParsed(source SourceType, m *Manifest) PlayerState {
	kind := KindDashMPDParsed
	if source == SourceHls {
		kind = KindHlsPlaylistParsed
	}
	return PlayerState{
		Kind:            kind,
		SourceType:      source,
		URL:             m.URL,
		Manifest:        m,
		DurationSeconds: m.DurationSeconds,
		IsDynamic:       m.IsDynamic,
	}
}

// NativeReady returns the ready inner state for native sources.
func NativeReady(url string, durationSeconds float64) PlayerState {
	return PlayerState{
		Kind:            KindNativeReady,
		SourceType:      SourceNative,
		URL:             url,
		DurationSeconds: durationSeconds,
	}
}

// Selected returns the representation-selected inner state for source.
func Selected(source SourceType, rep Representation) PlayerState {
	kind := KindDashRepSelected
	if source == SourceHls {
		kind = KindHlsVariantSelected
	}
	return PlayerState{Kind: kind, SourceType: source, Representation: &rep}
}

// Switching returns the quality-switching inner state. From and to must
// differ in id; callers resolve same-id requests as no-ops before ever
// building this state.
func Switching(source SourceType, from, to Representation, reason SwitchReason) PlayerState {
	kind := KindDashQualitySwitching
	if source == SourceHls {
		kind = KindHlsQualitySwitching
	}
	return PlayerState{
		Kind:         kind,
		SourceType:   source,
		SwitchFrom:   &from,
		SwitchTo:     &to,
		SwitchReason: reason,
	}
}

// Playing returns the playing state.
func Playing() PlayerState {
	return PlayerState{Kind: KindPlaying}
}

// Paused returns the paused state.
func Paused() PlayerState {
	return PlayerState{Kind: KindPaused}
}

// SeekingTo returns the in-seek state.
func SeekingTo(targetSeconds float64) PlayerState {
	return PlayerState{Kind: KindSeeking, TargetSeconds: targetSeconds}
}

// Ended returns the terminal end-of-stream state.
func Ended() PlayerState {
	return PlayerState{Kind: KindEnded}
}

// Failed returns the terminal error state. Code is the stable error code,
// message a human-readable cause.
func Failed(code, message string) PlayerState {
	return PlayerState{Kind: KindError, ErrCode: code, ErrMessage: message}
}

// String returns the kind for logging.
func (s PlayerState) String() string {
	return string(s.Kind)
}
