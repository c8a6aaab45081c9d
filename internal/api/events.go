// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vflorio/hbbtv-emu-sub005/internal/log"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/core"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

const (
	defaultSSEHeartbeat = 15 * time.Second
	sseSubscribeBuffer  = 64
)

// ssePayload is the data line of one stream event.
type ssePayload struct {
	Seq   uint64            `json:"seq"`
	State model.PlayerState `json:"state"`
	Error *Error            `json:"error,omitempty"`
}

// handleEvents streams the session's change stream as server-sent events.
// Applied transitions arrive as `event: state`, refused actions as
// `event: rejected`; `id:` carries the per-session sequence number so
// clients can correlate with journal rows. The current snapshot is replayed
// on connect.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, ok := s.cfg.Manager.Get(id)
	if !ok {
		writeSessionNotFound(w, id)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, Error{
			Code:    codeInternal,
			Message: "streaming unsupported",
		})
		return
	}

	sub := o.Subscribe(core.SubscribeOptions{
		Buffer:        sseSubscribeBuffer,
		ReplayCurrent: true,
	})
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := log.WithComponentFromContext(r.Context(), "api").With().
		Str(log.FieldSessionID, id).Logger()
	logger.Debug().Msg("event stream opened")

	heartbeat := s.cfg.SSEHeartbeat
	if heartbeat <= 0 {
		heartbeat = defaultSSEHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Uint64("dropped", sub.Dropped()).Msg("event stream closed by client")
			return
		case <-sub.Done:
			// Session disposed: flush what is buffered, then end the stream.
			for {
				select {
				case n := <-sub.C:
					writeSSE(w, flusher, n)
				default:
					logger.Debug().Msg("event stream closed, session disposed")
					return
				}
			}
		case n := <-sub.C:
			writeSSE(w, flusher, n)
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, n core.Notification) {
	payload := ssePayload{Seq: n.Seq, State: n.State}
	event := "state"
	if n.Err != nil {
		payload.Error = &Error{
			Code:    lifecycle.CodeOf(n.Err),
			Message: lifecycle.SanitizeDetail(n.Err.Error()),
		}
		if lifecycle.IsRejection(n.Err) {
			event = "rejected"
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", n.Seq, event, data)
	flusher.Flush()
}
