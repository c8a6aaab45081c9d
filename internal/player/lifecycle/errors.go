// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

// Class sentinels. Every typed error below matches exactly one of them via
// errors.Is, letting callers distinguish "that action is invalid right now"
// (session unaffected) from "the session is dead" (fresh load required).
var (
	ErrActionRejected = errors.New("action rejected")
	ErrSessionFailed  = errors.New("session failed")

	// ErrDisposed marks a caller contract violation: dispatch after
	// dispose. It belongs to neither class.
	ErrDisposed = errors.New("session disposed")
)

// Stable error codes for the journal, the API and Error state payloads.
const (
	CodeInvalidTransition      = "invalid_transition"
	CodeLoadFailed             = "load_failed"
	CodeMPDParseFailed         = "mpd_parse_failed"
	CodePlaylistParseFailed    = "playlist_parse_failed"
	CodeRepresentationNotFound = "representation_not_found"
	CodeAdapterFatal           = "adapter_fatal"
	CodeInternal               = "internal"
)

// InvalidTransitionError rejects an action that is not valid in the current
// state. The session is left untouched; this is caller misuse, not a
// playback failure.
type InvalidTransitionError struct {
	FromState       model.StateKind
	AttemptedAction ActionKind
	Reason          string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid transition: %s + %s", e.FromState, e.AttemptedAction)
	}
	return fmt.Sprintf("invalid transition: %s + %s (%s)", e.FromState, e.AttemptedAction, e.Reason)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrActionRejected }

// LoadError reports an adapter or network failure while loading a source.
type LoadError struct {
	URL        string
	SourceType model.SourceType
	Cause      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s source %s: %v", e.SourceType, e.URL, e.Cause)
}

func (e *LoadError) Unwrap() error        { return e.Cause }
func (e *LoadError) Is(target error) bool { return target == ErrSessionFailed }

// MPDParseError reports an unfetchable or malformed DASH manifest.
// ByteOffset is the input offset of the syntax failure, 0 when unknown.
type MPDParseError struct {
	URL        string
	ByteOffset int64
	Cause      error
}

func (e *MPDParseError) Error() string {
	if e.ByteOffset > 0 {
		return fmt.Sprintf("parse mpd %s at byte %d: %v", e.URL, e.ByteOffset, e.Cause)
	}
	return fmt.Sprintf("parse mpd %s: %v", e.URL, e.Cause)
}

func (e *MPDParseError) Unwrap() error        { return e.Cause }
func (e *MPDParseError) Is(target error) bool { return target == ErrSessionFailed }

// PlaylistParseError reports an unfetchable or malformed HLS master
// playlist. Line is the failing playlist line, 0 when unknown.
type PlaylistParseError struct {
	URL   string
	Line  int
	Cause error
}

func (e *PlaylistParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse playlist %s at line %d: %v", e.URL, e.Line, e.Cause)
	}
	return fmt.Sprintf("parse playlist %s: %v", e.URL, e.Cause)
}

func (e *PlaylistParseError) Unwrap() error        { return e.Cause }
func (e *PlaylistParseError) Is(target error) bool { return target == ErrSessionFailed }

// RepresentationNotFoundError rejects a selection referencing an id absent
// from the current manifest. The active selection stays in place.
type RepresentationNotFoundError struct {
	RequestedID string
}

func (e *RepresentationNotFoundError) Error() string {
	return fmt.Sprintf("representation %q not found in current manifest", e.RequestedID)
}

func (e *RepresentationNotFoundError) Is(target error) bool { return target == ErrActionRejected }

// AdapterFatalError reports an unrecoverable backend failure.
type AdapterFatalError struct {
	Cause error
}

func (e *AdapterFatalError) Error() string {
	return fmt.Sprintf("adapter fatal: %v", e.Cause)
}

func (e *AdapterFatalError) Unwrap() error        { return e.Cause }
func (e *AdapterFatalError) Is(target error) bool { return target == ErrSessionFailed }

// IsRejection reports whether err left the session untouched.
func IsRejection(err error) bool { return errors.Is(err, ErrActionRejected) }

// IsTerminalFailure reports whether err moved the session to Error.
func IsTerminalFailure(err error) bool { return errors.Is(err, ErrSessionFailed) }

// CodeOf maps err to its stable code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var (
		invalid  *InvalidTransitionError
		load     *LoadError
		mpd      *MPDParseError
		playlist *PlaylistParseError
		notFound *RepresentationNotFoundError
		fatal    *AdapterFatalError
	)
	switch {
	case errors.As(err, &invalid):
		return CodeInvalidTransition
	case errors.As(err, &load):
		return CodeLoadFailed
	case errors.As(err, &mpd):
		return CodeMPDParseFailed
	case errors.As(err, &playlist):
		return CodePlaylistParseFailed
	case errors.As(err, &notFound):
		return CodeRepresentationNotFound
	case errors.As(err, &fatal):
		return CodeAdapterFatal
	default:
		return CodeInternal
	}
}

// SanitizeDetail trims an error message for journal and state payloads.
func SanitizeDetail(detail string) string {
	if detail == "" {
		return ""
	}
	const maxLen = 160
	clean := strings.ReplaceAll(detail, "\n", " ")
	if len(clean) > maxLen {
		return clean[:maxLen] + "..."
	}
	return clean
}
