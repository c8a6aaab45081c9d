// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

// Every StateKind×ActionKind pair must carry an explicit decision: the
// machine has no undefined cells.
func TestDecisionTable_Total(t *testing.T) {
	for _, state := range model.StateKinds() {
		row, ok := decisionTable[state]
		require.True(t, ok, "missing decision row for state %s", state)
		require.Len(t, row, len(ActionKinds()), "row %s must cover every action kind", state)
		for _, act := range ActionKinds() {
			d, ok := DecisionFor(state, act)
			require.True(t, ok, "missing decision for %s + %s", state, act)
			if d.Outcome == OutcomeReject {
				require.NotEmpty(t, d.Reason, "rejection without reason for %s + %s", state, act)
			}
		}
	}
	require.Len(t, decisionTable, len(model.StateKinds()), "table must not carry rows for unknown states")
}

// load is the universal restart and dispose the universal teardown.
func TestDecisionTable_LoadAndDisposeAlwaysAccepted(t *testing.T) {
	for _, state := range model.StateKinds() {
		d, _ := DecisionFor(state, ActLoad)
		require.Equal(t, OutcomeAllow, d.Outcome, "load must be allowed from %s", state)
		d, _ = DecisionFor(state, ActDispose)
		require.Equal(t, OutcomeAllow, d.Outcome, "dispose must be allowed from %s", state)
	}
}

// Terminal states absorb everything except load and dispose.
func TestDecisionTable_TerminalIsolation(t *testing.T) {
	for _, state := range []model.StateKind{model.KindEnded, model.KindError} {
		for _, act := range ActionKinds() {
			d, _ := DecisionFor(state, act)
			switch act {
			case ActLoad, ActDispose:
				require.Equal(t, OutcomeAllow, d.Outcome, "%s + %s", state, act)
			case ActPlay, ActPause, ActSeek, ActSelect:
				require.Equal(t, OutcomeReject, d.Outcome, "%s + %s", state, act)
				require.Equal(t, ForbiddenTerminalAbsorbing, d.Reason, "%s + %s", state, act)
			default:
				require.Equal(t, OutcomeIgnore, d.Outcome, "stale adapter event %s must be discarded in %s", act, state)
			}
		}
	}
}

// End-of-stream while a load is still being resolved is a protocol fault
// and rejects; every other adapter event is absorbed without a rejection.
func TestDecisionTable_AdapterEventRejections(t *testing.T) {
	for _, state := range model.StateKinds() {
		for _, act := range ActionKinds() {
			if !act.IsAdapterEvent() {
				continue
			}
			d, _ := DecisionFor(state, act)
			if act == ActAdapterEnded && state.IsLoadInFlight() {
				require.Equal(t, OutcomeReject, d.Outcome, "%s + %s", state, act)
				require.Equal(t, ForbiddenLoadInFlight, d.Reason, "%s + %s", state, act)
				continue
			}
			require.NotEqual(t, OutcomeReject, d.Outcome, "%s + %s", state, act)
		}
	}
}

// A playable report starts playback from every source state that is ready
// enough to play; during playback it changes nothing.
func TestDecisionTable_PlayableStartsPlayback(t *testing.T) {
	expect := map[model.StateKind]Outcome{
		model.KindDashMPDParsed:      OutcomeAllow,
		model.KindDashRepSelected:    OutcomeAllow,
		model.KindHlsPlaylistParsed:  OutcomeAllow,
		model.KindHlsVariantSelected: OutcomeAllow,
		model.KindNativePreparing:    OutcomeAllow,
		model.KindNativeReady:        OutcomeAllow,
		model.KindPlaying:            OutcomeNoop,
		model.KindPaused:             OutcomeNoop,
	}
	for _, state := range model.StateKinds() {
		d, _ := DecisionFor(state, ActAdapterPlayable)
		want, ok := expect[state]
		if !ok {
			want = OutcomeIgnore
		}
		require.Equal(t, want, d.Outcome, "state %s", state)
	}
}

// A fatal adapter report must be folded into Error from every state with a
// live source.
func TestDecisionTable_FatalReachesErrorOutsideTerminal(t *testing.T) {
	for _, state := range model.StateKinds() {
		d, _ := DecisionFor(state, ActAdapterFatal)
		switch state {
		case model.KindIdle, model.KindEnded, model.KindError:
			require.Equal(t, OutcomeIgnore, d.Outcome, "state %s", state)
		default:
			require.Equal(t, OutcomeAllow, d.Outcome, "state %s", state)
		}
	}
}

// Selection is only reachable from manifest-bearing states; everywhere else
// it must reject, never silently coerce.
func TestDecisionTable_SelectRequiresManifest(t *testing.T) {
	for _, state := range model.StateKinds() {
		d, _ := DecisionFor(state, ActSelect)
		if state.IsManifestBearing() {
			require.Equal(t, OutcomeAllow, d.Outcome, "state %s", state)
			continue
		}
		require.Equal(t, OutcomeReject, d.Outcome, "state %s", state)
	}
}

func TestForbiddenReason(t *testing.T) {
	require.Equal(t, ForbiddenNoMedia, ForbiddenReason(model.KindIdle, ActPlay))
	require.Empty(t, ForbiddenReason(model.KindIdle, ActLoad))
	require.Empty(t, ForbiddenReason(model.KindPlaying, ActAdapterBuffering))
}
