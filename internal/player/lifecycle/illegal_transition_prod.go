// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

//go:build !debug

package lifecycle

import "github.com/vflorio/hbbtv-emu-sub005/internal/player/model"

// In production an undefined pair degrades instead of killing playback:
// caller actions are rejected, stray adapter events are discarded. The
// totality test keeps this path unreachable.
func illegalPair(_ model.StateKind, act ActionKind) Decision {
	if act.IsAdapterEvent() {
		return Decision{Outcome: OutcomeIgnore, Reason: ForbiddenUndefinedPair}
	}
	return Decision{Outcome: OutcomeReject, Reason: ForbiddenUndefinedPair}
}
