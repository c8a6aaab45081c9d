// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"
)

// API-level error codes. Playback failures keep the lifecycle codes
// (invalid_transition, load_failed, ...); these cover the HTTP surface
// around them.
const (
	codeBadRequest       = "bad_request"
	codeSessionNotFound  = "session_not_found"
	codeSessionDisposed  = "session_disposed"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeRateLimited      = "rate_limited"
	codeInternal         = "internal"
)

// Error is the wire error payload.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes one error payload.
func writeError(w http.ResponseWriter, status int, e Error) {
	writeJSON(w, status, e)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, Error{Code: codeBadRequest, Message: message})
}

func writeSessionNotFound(w http.ResponseWriter, sessionID string) {
	writeError(w, http.StatusNotFound, Error{
		Code:      codeSessionNotFound,
		Message:   "no such session",
		SessionID: sessionID,
	})
}

// writeDispatchError maps a Dispatch or query failure. ErrDisposed means the
// handler raced a dispose; everything else is unexpected because dispatch
// outcomes travel on the change stream, not the request path.
func writeDispatchError(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	if errors.Is(err, lifecycle.ErrDisposed) {
		writeError(w, http.StatusConflict, Error{
			Code:      codeSessionDisposed,
			Message:   "session disposed",
			SessionID: sessionID,
		})
		return
	}
	log.WithComponentFromContext(r.Context(), "api").Error().
		Err(err).
		Str(log.FieldSessionID, sessionID).
		Msg("session operation failed")
	writeError(w, http.StatusInternalServerError, Error{
		Code:      codeInternal,
		Message:   "internal error",
		SessionID: sessionID,
	})
}
