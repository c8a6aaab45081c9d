// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package lifecycle

import "github.com/vflorio/hbbtv-emu-sub005/internal/player/model"

// SelectionOutcome describes how a selection request resolves. Exactly one
// shape applies: a no-op (same id as the active representation), a direct
// selection (no prior selection this cycle), or a quality switch passing
// through the switching state first.
type SelectionOutcome struct {
	NoOp bool
	// Switching is non-nil when the selection replaces an active
	// representation; the orchestrator publishes it before committing.
	Switching *model.PlayerState
	// Representation is the validated target, committed via
	// CommitSelection.
	Representation model.Representation
	// ConstraintExceeded flags a target outside the advisory limits.
	// Selection still proceeds; the orchestrator logs and journals it.
	ConstraintExceeded bool
}

// ResolveSelection validates a selection request against the most recent
// parsed manifest. The scan walks adaptation sets in declaration order and
// the first id match wins. Unknown ids reject with
// RepresentationNotFoundError and leave the session untouched.
func ResolveSelection(sc *model.SessionContext, act Action) (SelectionOutcome, error) {
	rep, ok := sc.Manifest.FindRepresentation(act.RepresentationID)
	if !ok {
		return SelectionOutcome{}, &RepresentationNotFoundError{RequestedID: act.RepresentationID}
	}

	out := SelectionOutcome{
		Representation:     rep,
		ConstraintExceeded: !sc.Constraints.Allows(rep),
	}

	if sc.Active != nil && sc.Active.ID == rep.ID {
		out.NoOp = true
		return out, nil
	}

	if sc.Active != nil {
		switching := model.Switching(sc.SourceType, *sc.Active, rep, act.Reason)
		out.Switching = &switching
	}
	return out, nil
}
