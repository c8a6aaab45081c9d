// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID     = "session_id"
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldAction           = "action"
	FieldSourceType       = "source_type"
	FieldFromState        = "from_state"
	FieldToState          = "to_state"
	FieldReason           = "reason"
	FieldSeq              = "seq"
	FieldRepresentationID = "representation_id"
	FieldBandwidth        = "bandwidth"
	FieldTargetSeconds    = "target_seconds"

	// Manifest / URL fields
	FieldURL          = "url"
	FieldCacheOutcome = "cache"
	FieldBytes        = "bytes"

	// Storage fields
	FieldBackend = "backend"
	FieldPath    = "path"
)
