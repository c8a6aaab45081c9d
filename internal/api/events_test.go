// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/lifecycle"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
)

type sseFrame struct {
	id    string
	event string
	data  string
}

// openStream connects to the live event stream of one session.
func openStream(t *testing.T, h *apiHarness, id string) *bufio.Reader {
	t.Helper()
	srv := httptest.NewServer(h.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*waitTimeout)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/sessions/"+id+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return bufio.NewReader(resp.Body)
}

// readFrame reads the next event frame, skipping keep-alive comments.
func readFrame(t *testing.T, br *bufio.Reader) sseFrame {
	t.Helper()
	var f sseFrame
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err, "reading event stream")
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if f.id != "" || f.event != "" || f.data != "" {
				return f
			}
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "id: "):
			f.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			f.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func decodeFrame(t *testing.T, f sseFrame) ssePayload {
	t.Helper()
	var p ssePayload
	require.NoError(t, json.Unmarshal([]byte(f.data), &p))
	require.Equal(t, strconv.FormatUint(p.Seq, 10), f.id, "frame id must carry the seq")
	return p
}

func TestEventStreamUnknownSession(t *testing.T) {
	h := newAPIHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+model.NewSessionID()+"/events", nil)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEventStreamReplayAndFollow(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createSession(nil)
	br := openStream(t, h, id)

	// The current snapshot opens the stream.
	p := decodeFrame(t, readFrame(t, br))
	require.Equal(t, uint64(0), p.Seq)
	require.Equal(t, model.KindIdle, p.State.Kind)
	require.Nil(t, p.Error)

	h.dispatch(id, actionRequest{Action: actionLoad, SourceType: "native", URL: "http://origin.test/clip.mp4"})

	wantKinds := []model.StateKind{model.KindLoading, model.KindNativePreparing, model.KindNativeReady}
	for i, want := range wantKinds {
		f := readFrame(t, br)
		require.Equal(t, "state", f.event)
		p := decodeFrame(t, f)
		require.Equal(t, uint64(i+1), p.Seq)
		require.Equal(t, want, p.State.Kind)
	}
}

func TestEventStreamRejectedFrame(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createSession(nil)
	br := openStream(t, h, id)

	readFrame(t, br) // replay

	h.dispatch(id, actionRequest{Action: actionPlay})

	f := readFrame(t, br)
	require.Equal(t, "rejected", f.event)
	p := decodeFrame(t, f)
	require.Equal(t, uint64(1), p.Seq)
	require.Equal(t, model.KindIdle, p.State.Kind)
	require.NotNil(t, p.Error)
	require.Equal(t, lifecycle.CodeInvalidTransition, p.Error.Code)
	require.Contains(t, p.Error.Message, "invalid transition")
}

func TestEventStreamHeartbeat(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createSession(nil)
	br := openStream(t, h, id)

	deadline := time.Now().Add(waitTimeout)
	for {
		require.True(t, time.Now().Before(deadline), "no keepalive before deadline")
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, ": keepalive") {
			return
		}
	}
}

func TestEventStreamEndsOnDispose(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createSession(nil)
	br := openStream(t, h, id)

	readFrame(t, br) // replay

	_, rr := h.do(http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	for {
		if _, err := br.ReadString('\n'); err != nil {
			require.ErrorIs(t, err, io.EOF)
			return
		}
	}
}
