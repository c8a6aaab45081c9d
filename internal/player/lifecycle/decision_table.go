// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package lifecycle

import "github.com/vflorio/hbbtv-emu-sub005/internal/player/model"

// Forbidden-transition reasons. Keep these stable: metrics, the journal and
// rejection payloads depend on them.
const (
	ForbiddenTerminalAbsorbing = "terminal_absorbing"
	ForbiddenNoMedia           = "no_media_loaded"
	ForbiddenLoadInFlight      = "load_in_flight"
	ForbiddenNotPlaying        = "not_playing"
	ForbiddenRequiresParsed    = "requires_parsed_source"
	ForbiddenSwitchInFlight    = "switch_in_flight"
	ForbiddenSeekInFlight      = "seek_in_flight"
	ForbiddenUndefinedPair     = "undefined_pair"
)

// Outcome is the decision class for one state×action cell.
type Outcome int

const (
	// OutcomeReject refuses the action with InvalidTransitionError; state
	// is untouched. Zero value on purpose: an absent cell rejects.
	OutcomeReject Outcome = iota
	// OutcomeAllow runs the action's transition sequence.
	OutcomeAllow
	// OutcomeNoop accepts without a state change (journal and metrics
	// still observe it; no notification is emitted).
	OutcomeNoop
	// OutcomeIgnore discards the input entirely (stale adapter events in
	// states with no live source).
	OutcomeIgnore
)

// Decision records the outcome for a state×action cell and, for
// rejections, why.
type Decision struct {
	Outcome Outcome
	Reason  string
}

func allow() Decision          { return Decision{Outcome: OutcomeAllow} }
func reject(r string) Decision { return Decision{Outcome: OutcomeReject, Reason: r} }
func noop() Decision           { return Decision{Outcome: OutcomeNoop} }
func ignore() Decision         { return Decision{Outcome: OutcomeIgnore} }

// decisionTable defines an explicit decision for every StateKind×ActionKind
// combination. load is the universal restart: it is allowed from every
// state, cancelling whatever is in flight. dispose is likewise always
// accepted. Terminal states absorb everything else. End-of-stream while a
// load is still in flight is rejected rather than dropped.
var decisionTable = map[model.StateKind]map[ActionKind]Decision{
	model.KindIdle: {
		ActLoad:             allow(),
		ActPlay:             reject(ForbiddenNoMedia),
		ActPause:            reject(ForbiddenNoMedia),
		ActSeek:             reject(ForbiddenNoMedia),
		ActSelect:           reject(ForbiddenNoMedia),
		ActDispose:          allow(),
		ActAdapterPlayable:  ignore(),
		ActAdapterBuffering: ignore(),
		ActAdapterEnded:     ignore(),
		ActAdapterFatal:     ignore(),
	},
	model.KindLoading: {
		ActLoad:             allow(),
		ActPlay:             reject(ForbiddenLoadInFlight),
		ActPause:            reject(ForbiddenLoadInFlight),
		ActSeek:             reject(ForbiddenLoadInFlight),
		ActSelect:           reject(ForbiddenLoadInFlight),
		ActDispose:          allow(),
		ActAdapterPlayable:  ignore(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     reject(ForbiddenLoadInFlight),
		ActAdapterFatal:     allow(),
	},
	model.KindDashMPDLoading: {
		ActLoad:             allow(),
		ActPlay:             reject(ForbiddenLoadInFlight),
		ActPause:            reject(ForbiddenLoadInFlight),
		ActSeek:             reject(ForbiddenLoadInFlight),
		ActSelect:           reject(ForbiddenLoadInFlight),
		ActDispose:          allow(),
		ActAdapterPlayable:  ignore(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     reject(ForbiddenLoadInFlight),
		ActAdapterFatal:     allow(),
	},
	model.KindDashMPDParsed: {
		ActLoad:             allow(),
		ActPlay:             allow(),
		ActPause:            reject(ForbiddenNotPlaying),
		ActSeek:             reject(ForbiddenNotPlaying),
		ActSelect:           allow(),
		ActDispose:          allow(),
		ActAdapterPlayable:  allow(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     allow(),
		ActAdapterFatal:     allow(),
	},
	model.KindDashRepSelected: {
		ActLoad:             allow(),
		ActPlay:             allow(),
		ActPause:            reject(ForbiddenNotPlaying),
		ActSeek:             reject(ForbiddenNotPlaying),
		ActSelect:           allow(),
		ActDispose:          allow(),
		ActAdapterPlayable:  allow(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     allow(),
		ActAdapterFatal:     allow(),
	},
	model.KindDashQualitySwitching: {
		ActLoad:             allow(),
		ActPlay:             reject(ForbiddenSwitchInFlight),
		ActPause:            reject(ForbiddenSwitchInFlight),
		ActSeek:             reject(ForbiddenSwitchInFlight),
		ActSelect:           reject(ForbiddenSwitchInFlight),
		ActDispose:          allow(),
		ActAdapterPlayable:  ignore(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     allow(),
		ActAdapterFatal:     allow(),
	},
	model.KindHlsPlaylistLoading: {
		ActLoad:             allow(),
		ActPlay:             reject(ForbiddenLoadInFlight),
		ActPause:            reject(ForbiddenLoadInFlight),
		ActSeek:             reject(ForbiddenLoadInFlight),
		ActSelect:           reject(ForbiddenLoadInFlight),
		ActDispose:          allow(),
		ActAdapterPlayable:  ignore(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     reject(ForbiddenLoadInFlight),
		ActAdapterFatal:     allow(),
	},
	model.KindHlsPlaylistParsed: {
		ActLoad:             allow(),
		ActPlay:             allow(),
		ActPause:            reject(ForbiddenNotPlaying),
		ActSeek:             reject(ForbiddenNotPlaying),
		ActSelect:           allow(),
		ActDispose:          allow(),
		ActAdapterPlayable:  allow(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     allow(),
		ActAdapterFatal:     allow(),
	},
	model.KindHlsVariantSelected: {
		ActLoad:             allow(),
		ActPlay:             allow(),
		ActPause:            reject(ForbiddenNotPlaying),
		ActSeek:             reject(ForbiddenNotPlaying),
		ActSelect:           allow(),
		ActDispose:          allow(),
		ActAdapterPlayable:  allow(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     allow(),
		ActAdapterFatal:     allow(),
	},
	model.KindHlsQualitySwitching: {
		ActLoad:             allow(),
		ActPlay:             reject(ForbiddenSwitchInFlight),
		ActPause:            reject(ForbiddenSwitchInFlight),
		ActSeek:             reject(ForbiddenSwitchInFlight),
		ActSelect:           reject(ForbiddenSwitchInFlight),
		ActDispose:          allow(),
		ActAdapterPlayable:  ignore(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     allow(),
		ActAdapterFatal:     allow(),
	},
	model.KindNativePreparing: {
		ActLoad:             allow(),
		ActPlay:             reject(ForbiddenLoadInFlight),
		ActPause:            reject(ForbiddenLoadInFlight),
		ActSeek:             reject(ForbiddenLoadInFlight),
		ActSelect:           reject(ForbiddenLoadInFlight),
		ActDispose:          allow(),
		ActAdapterPlayable:  allow(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     reject(ForbiddenLoadInFlight),
		ActAdapterFatal:     allow(),
	},
	model.KindNativeReady: {
		ActLoad:             allow(),
		ActPlay:             allow(),
		ActPause:            reject(ForbiddenNotPlaying),
		ActSeek:             reject(ForbiddenNotPlaying),
		ActSelect:           reject(ForbiddenRequiresParsed),
		ActDispose:          allow(),
		ActAdapterPlayable:  allow(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     allow(),
		ActAdapterFatal:     allow(),
	},
	model.KindPlaying: {
		ActLoad:             allow(),
		ActPlay:             noop(),
		ActPause:            allow(),
		ActSeek:             allow(),
		ActSelect:           reject(ForbiddenRequiresParsed),
		ActDispose:          allow(),
		ActAdapterPlayable:  noop(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     allow(),
		ActAdapterFatal:     allow(),
	},
	model.KindPaused: {
		ActLoad:             allow(),
		ActPlay:             allow(),
		ActPause:            noop(),
		ActSeek:             allow(),
		ActSelect:           reject(ForbiddenRequiresParsed),
		ActDispose:          allow(),
		ActAdapterPlayable:  noop(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     allow(),
		ActAdapterFatal:     allow(),
	},
	model.KindSeeking: {
		ActLoad:             allow(),
		ActPlay:             reject(ForbiddenSeekInFlight),
		ActPause:            reject(ForbiddenSeekInFlight),
		ActSeek:             reject(ForbiddenSeekInFlight),
		ActSelect:           reject(ForbiddenSeekInFlight),
		ActDispose:          allow(),
		ActAdapterPlayable:  ignore(),
		ActAdapterBuffering: noop(),
		ActAdapterEnded:     allow(),
		ActAdapterFatal:     allow(),
	},
	model.KindEnded: {
		ActLoad:             allow(),
		ActPlay:             reject(ForbiddenTerminalAbsorbing),
		ActPause:            reject(ForbiddenTerminalAbsorbing),
		ActSeek:             reject(ForbiddenTerminalAbsorbing),
		ActSelect:           reject(ForbiddenTerminalAbsorbing),
		ActDispose:          allow(),
		ActAdapterPlayable:  ignore(),
		ActAdapterBuffering: ignore(),
		ActAdapterEnded:     ignore(),
		ActAdapterFatal:     ignore(),
	},
	model.KindError: {
		ActLoad:             allow(),
		ActPlay:             reject(ForbiddenTerminalAbsorbing),
		ActPause:            reject(ForbiddenTerminalAbsorbing),
		ActSeek:             reject(ForbiddenTerminalAbsorbing),
		ActSelect:           reject(ForbiddenTerminalAbsorbing),
		ActDispose:          allow(),
		ActAdapterPlayable:  ignore(),
		ActAdapterBuffering: ignore(),
		ActAdapterEnded:     ignore(),
		ActAdapterFatal:     ignore(),
	},
}

// DecisionFor returns the explicit decision for state×action.
func DecisionFor(from model.StateKind, act ActionKind) (Decision, bool) {
	m, ok := decisionTable[from]
	if !ok {
		return Decision{}, false
	}
	d, ok := m[act]
	return d, ok
}

// ForbiddenReason documents why a state×action pair is disallowed, or ""
// when it is not a rejection.
func ForbiddenReason(from model.StateKind, act ActionKind) string {
	d, ok := DecisionFor(from, act)
	if !ok || d.Outcome != OutcomeReject {
		return ""
	}
	return d.Reason
}
