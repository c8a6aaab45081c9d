// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package lifecycle

import "github.com/vflorio/hbbtv-emu-sub005/internal/player/model"

// Decide resolves the table decision for state×action. Every pair the
// tables know about comes back verbatim; a pair the tables miss is a
// programming invariant violation and resolves per build mode (panic under
// the debug tag, degrade in production).
func Decide(from model.StateKind, act ActionKind) Decision {
	d, ok := DecisionFor(from, act)
	if !ok {
		return illegalPair(from, act)
	}
	return d
}

// NewRejection builds the typed rejection for a rejected state×action pair.
func NewRejection(from model.StateKind, act ActionKind, reason string) error {
	return &InvalidTransitionError{FromState: from, AttemptedAction: act, Reason: reason}
}
