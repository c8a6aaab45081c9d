// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package model

// SourceType tags the backend family a session plays through.
// Adapter selection is a single registry lookup keyed by this tag.
type SourceType string

const (
	SourceNative SourceType = "native"
	SourceDash   SourceType = "dash"
	SourceHls    SourceType = "hls"
)

// Known reports whether s is one of the registered source types.
func (s SourceType) Known() bool {
	switch s {
	case SourceNative, SourceDash, SourceHls:
		return true
	}
	return false
}

// SourceTypes lists every known source type, in registry order.
func SourceTypes() []SourceType {
	return []SourceType{SourceNative, SourceDash, SourceHls}
}

// SwitchReason tags why a representation change was requested.
// Telemetry and UI only; transition logic never branches on it.
type SwitchReason string

const (
	ReasonABR        SwitchReason = "abr"
	ReasonManual     SwitchReason = "manual"
	ReasonConstraint SwitchReason = "constraint"
)

// Known reports whether r is part of the closed reason set.
func (r SwitchReason) Known() bool {
	switch r {
	case ReasonABR, ReasonManual, ReasonConstraint:
		return true
	}
	return false
}

// ContentType classifies an adaptation set's media component.
type ContentType string

const (
	ContentVideo ContentType = "video"
	ContentAudio ContentType = "audio"
	ContentText  ContentType = "text"
)

// Known reports whether c is a recognised content type.
func (c ContentType) Known() bool {
	switch c {
	case ContentVideo, ContentAudio, ContentText:
		return true
	}
	return false
}
