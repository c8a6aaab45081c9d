// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/core"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/store"
	"github.com/vflorio/hbbtv-emu-sub005/internal/validate"
)

const (
	maxRequestBody  = 64 << 10
	defaultJournalN = 100
	maxJournalN     = 1000
)

// sourceDefaults optionally seeds a fresh session with an initial load.
type sourceDefaults struct {
	SourceType string `json:"sourceType"`
	URL        string `json:"url"`
}

type createSessionRequest struct {
	SourceDefaults *sourceDefaults `json:"sourceDefaults,omitempty"`
}

type createSessionResponse struct {
	ID string `json:"id"`
}

// sessionSummary is one row of the list response.
type sessionSummary struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	SourceType string    `json:"sourceType,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// sessionSnapshot is the full single-session view.
type sessionSnapshot struct {
	ID                   string            `json:"id"`
	Seq                  uint64            `json:"seq"`
	State                model.PlayerState `json:"state"`
	SourceType           string            `json:"sourceType,omitempty"`
	SourceURL            string            `json:"sourceUrl,omitempty"`
	ActiveRepresentation string            `json:"activeRepresentation,omitempty"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

func snapshotOf(info core.SessionInfo) sessionSnapshot {
	return sessionSnapshot{
		ID:                   info.ID,
		Seq:                  info.Seq,
		State:                info.State,
		SourceType:           string(info.SourceType),
		SourceURL:            info.SourceURL,
		ActiveRepresentation: info.ActiveRepresentation,
		UpdatedAt:            info.UpdatedAt,
	}
}

// decodeBody decodes a JSON request body, tolerating an absent one when
// optional. Unknown fields are rejected, mirroring the config loader.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeBadRequest(w, "invalid body: "+err.Error())
		return
	}

	if req.SourceDefaults != nil {
		v := validate.New()
		v.OneOf("sourceDefaults.sourceType", req.SourceDefaults.SourceType, sourceTypeNames())
		v.SourceURL("sourceDefaults.url", req.SourceDefaults.URL)
		if err := v.Err(); err != nil {
			writeBadRequest(w, err.Error())
			return
		}
	}

	o, err := s.cfg.Manager.Create()
	if err != nil {
		if errors.Is(err, core.ErrManagerClosed) {
			writeError(w, http.StatusServiceUnavailable, Error{
				Code:    codeInternal,
				Message: "shutting down",
			})
			return
		}
		log.WithComponentFromContext(r.Context(), "api").Error().Err(err).Msg("session create failed")
		writeError(w, http.StatusInternalServerError, Error{Code: codeInternal, Message: "internal error"})
		return
	}

	if req.SourceDefaults != nil {
		act := lifecycle.Load(model.SourceType(req.SourceDefaults.SourceType), req.SourceDefaults.URL)
		if err := o.Dispatch(act); err != nil {
			writeDispatchError(w, r, o.ID(), err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{ID: o.ID()})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.cfg.Manager.List()
	out := make([]sessionSummary, 0, len(sessions))
	for _, o := range sessions {
		info := o.Info()
		out = append(out, sessionSummary{
			ID:         info.ID,
			State:      info.State.String(),
			SourceType: string(info.SourceType),
			UpdatedAt:  info.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, ok := s.cfg.Manager.Get(id)
	if !ok {
		writeSessionNotFound(w, id)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(o.Info()))
}

// handleDeleteSession disposes the session. Deleting an unknown id is a 204
// as well; dispose is idempotent from the caller's point of view.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.cfg.Manager.Dispose(id) {
		log.WithComponentFromContext(r.Context(), "api").Info().
			Str(log.FieldSessionID, id).
			Msg("session disposed via API")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.cfg.Manager.Get(id); !ok {
		writeSessionNotFound(w, id)
		return
	}

	limit := defaultJournalN
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		if n > maxJournalN {
			n = maxJournalN
		}
		limit = n
	}

	entries := []store.Entry{}
	if s.cfg.Journal != nil {
		var err error
		entries, err = s.cfg.Journal.List(r.Context(), id, limit)
		if err != nil {
			writeDispatchError(w, r, id, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": id, "entries": entries})
}

func (s *Server) handleBuffered(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, ok := s.cfg.Manager.Get(id)
	if !ok {
		writeSessionNotFound(w, id)
		return
	}

	ranges, err := o.BufferedRanges(r.Context())
	if err != nil {
		writeDispatchError(w, r, id, err)
		return
	}
	if ranges == nil {
		ranges = []model.TimeRange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessionId": id, "ranges": ranges})
}

func sourceTypeNames() []string {
	types := model.SourceTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}
