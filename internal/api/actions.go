// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
	"github.com/vflorio/hbbtv-emu-sub005/internal/validate"
)

// Wire action names. selectRepresentation is spelled out; the journal uses
// the shorter lifecycle label.
const (
	actionLoad   = "load"
	actionPlay   = "play"
	actionPause  = "pause"
	actionSeek   = "seek"
	actionSelect = "selectRepresentation"
)

func actionNames() []string {
	return []string{actionLoad, actionPlay, actionPause, actionSeek, actionSelect}
}

type actionRequest struct {
	Action           string   `json:"action"`
	URL              string   `json:"url,omitempty"`
	SourceType       string   `json:"sourceType,omitempty"`
	TimeSeconds      *float64 `json:"timeSeconds,omitempty"`
	RepresentationID string   `json:"representationId,omitempty"`
	Reason           string   `json:"reason,omitempty"`
}

type actionResponse struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	Action    string `json:"action"`
}

// toAction validates the request and builds the dispatchable action.
func (req *actionRequest) toAction() (lifecycle.Action, error) {
	v := validate.New()
	v.OneOf("action", req.Action, actionNames())
	if err := v.Err(); err != nil {
		return lifecycle.Action{}, err
	}

	switch req.Action {
	case actionLoad:
		v.OneOf("sourceType", req.SourceType, sourceTypeNames())
		v.SourceURL("url", req.URL)
		if err := v.Err(); err != nil {
			return lifecycle.Action{}, err
		}
		return lifecycle.Load(model.SourceType(req.SourceType), req.URL), nil

	case actionPlay:
		return lifecycle.Play(), nil

	case actionPause:
		return lifecycle.Pause(), nil

	case actionSeek:
		if req.TimeSeconds == nil {
			v.AddError("timeSeconds", "required for seek", nil)
		} else {
			v.NonNegativeFloat("timeSeconds", *req.TimeSeconds)
		}
		if err := v.Err(); err != nil {
			return lifecycle.Action{}, err
		}
		return lifecycle.Seek(*req.TimeSeconds), nil

	default: // actionSelect
		v.NotEmpty("representationId", req.RepresentationID)
		reason := model.ReasonManual
		if req.Reason != "" {
			reason = model.SwitchReason(req.Reason)
			if !reason.Known() {
				v.AddError("reason", "unknown switch reason", req.Reason)
			}
		}
		if err := v.Err(); err != nil {
			return lifecycle.Action{}, err
		}
		return lifecycle.Select(req.RepresentationID, reason), nil
	}
}

// handleDispatchAction enqueues one action. The 202 acknowledges queueing
// only; accept/reject outcomes travel on the session's event stream.
func (s *Server) handleDispatchAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, ok := s.cfg.Manager.Get(id)
	if !ok {
		writeSessionNotFound(w, id)
		return
	}

	var req actionRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeBadRequest(w, "invalid body: "+err.Error())
		return
	}

	act, err := req.toAction()
	if err != nil {
		writeError(w, http.StatusBadRequest, Error{
			Code:      codeBadRequest,
			Message:   err.Error(),
			SessionID: id,
		})
		return
	}

	if err := o.Dispatch(act); err != nil {
		writeDispatchError(w, r, id, err)
		return
	}

	writeJSON(w, http.StatusAccepted, actionResponse{
		SessionID: id,
		Status:    "accepted",
		Action:    req.Action,
	})
}
