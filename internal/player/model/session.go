// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package model

import "github.com/google/uuid"

// Constraints are advisory representation limits carried as read-only
// transition context. They are logged and journaled, never enforced:
// enforcing them would be bitrate policy, which lives outside the core.
type Constraints struct {
	MaxHeight    int   `json:"maxHeight,omitempty" yaml:"maxHeight"`
	MaxBandwidth int64 `json:"maxBandwidth,omitempty" yaml:"maxBandwidth"`
}

// IsZero reports whether no limit is set.
func (c Constraints) IsZero() bool {
	return c.MaxHeight == 0 && c.MaxBandwidth == 0
}

// Allows reports whether rep stays within the limits. Unset limits allow
// everything.
func (c Constraints) Allows(rep Representation) bool {
	if c.MaxBandwidth > 0 && rep.Bandwidth > c.MaxBandwidth {
		return false
	}
	if c.MaxHeight > 0 && rep.Resolution != nil && rep.Resolution.Height > c.MaxHeight {
		return false
	}
	return true
}

// SessionContext carries the read-only session parameters a transition may
// consult. It is owned and mutated exclusively by the orchestrator's
// serialized queue; transitions receive it by pointer but treat it as
// read-only.
type SessionContext struct {
	SessionID   string
	SourceType  SourceType
	SourceURL   string
	Manifest    *Manifest       // most recent parsed manifest this cycle
	Active      *Representation // currently selected representation, if any
	ResumeKind  StateKind       // playing or paused, restored after a seek
	Constraints Constraints
}

// NewSessionID mints a session identifier.
func NewSessionID() string {
	return uuid.NewString()
}
