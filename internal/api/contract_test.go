// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/stretchr/testify/require"

	"github.com/vflorio/hbbtv-emu-sub005/internal/player/adapter"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/adapter/adaptertest"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/core"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/model"
	"github.com/vflorio/hbbtv-emu-sub005/internal/player/store"
)

const waitTimeout = 2 * time.Second

var (
	openapiOnce sync.Once
	openapiDoc  *openapi3.T
	openapiErr  error
)

// loadOpenAPIDoc loads and validates api/openapi.yaml once per test binary.
func loadOpenAPIDoc(t *testing.T) *openapi3.T {
	t.Helper()
	openapiOnce.Do(func() {
		specPath, err := locateOpenAPIDoc()
		if err != nil {
			openapiErr = err
			return
		}
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromFile(specPath)
		if err != nil {
			openapiErr = err
			return
		}
		if err := doc.Validate(context.Background()); err != nil {
			openapiErr = err
			return
		}
		openapiDoc = doc
	})
	if openapiErr != nil {
		t.Fatalf("openapi load failed: %v", openapiErr)
	}
	return openapiDoc
}

// locateOpenAPIDoc finds the document relative to the test working directory,
// falling back to this file's location for out-of-tree runs.
func locateOpenAPIDoc() (string, error) {
	candidates := []string{
		filepath.Clean(filepath.Join("api", "openapi.yaml")),
		filepath.Clean(filepath.Join("..", "..", "api", "openapi.yaml")),
	}
	if _, thisFile, _, ok := runtime.Caller(0); ok && filepath.IsAbs(thisFile) {
		candidates = append(candidates, filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", "..", "api", "openapi.yaml")))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("openapi document not found, tried: %s", strings.Join(candidates, ", "))
}

func validateOpenAPIResponse(t *testing.T, doc *openapi3.T, req *http.Request, rr *httptest.ResponseRecorder, opts *openapi3filter.Options) {
	t.Helper()
	router, err := legacy.NewRouter(doc)
	require.NoError(t, err, "openapi router init")

	route, pathParams, err := router.FindRoute(req)
	require.NoError(t, err, "openapi route lookup")

	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
		},
		Status:  rr.Code,
		Header:  rr.Header(),
		Options: opts,
	}
	input.SetBodyBytes(rr.Body.Bytes())

	require.NoError(t, openapi3filter.ValidateResponse(context.Background(), input), "openapi response validation")
}

// apiHarness wires a server against a real session manager with scripted
// adapters and an in-memory journal.
type apiHarness struct {
	t       *testing.T
	srv     *Server
	router  *chi.Mux
	manager *core.Manager
	factory *adaptertest.Factory
	loader  *stubManifests
	journal *store.MemoryStore
	fixtures string
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	factory := adaptertest.NewFactory()
	reg := adapter.NewRegistry()
	for _, src := range model.SourceTypes() {
		reg.Register(src, factory)
	}
	loader := &stubManifests{manifest: fixtureManifest()}
	journal := store.NewMemoryStore(0)
	t.Cleanup(func() { _ = journal.Close() })

	manager := core.NewManager(core.ManagerConfig{
		Registry:       reg,
		Manifests:      loader,
		Journal:        journal,
		JournalBackend: "memory",
	})
	t.Cleanup(func() { _ = manager.Shutdown(context.Background()) })

	fixtures := t.TempDir()
	srv := New(Config{
		Manager:      manager,
		Journal:      journal,
		FixturesDir:  fixtures,
		Version:      "test",
		SSEHeartbeat: 25 * time.Millisecond,
	})

	return &apiHarness{
		t:        t,
		srv:      srv,
		router:   srv.Router(),
		manager:  manager,
		factory:  factory,
		loader:   loader,
		journal:  journal,
		fixtures: fixtures,
	}
}

// do runs one request through the router and returns both sides for
// contract validation.
func (h *apiHarness) do(method, target string, body any) (*http.Request, *httptest.ResponseRecorder) {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return req, rr
}

// createSession creates a session over HTTP and returns its id.
func (h *apiHarness) createSession(defaults *sourceDefaults) string {
	h.t.Helper()
	var body any
	if defaults != nil {
		body = createSessionRequest{SourceDefaults: defaults}
	}
	req, rr := h.do(http.MethodPost, "/api/v1/sessions", body)
	require.Equal(h.t, http.StatusCreated, rr.Code, "create session: %s", rr.Body.String())
	validateOpenAPIResponse(h.t, loadOpenAPIDoc(h.t), req, rr, nil)
	return decodeCreateResponse(h.t, rr.Body.Bytes()).ID.String()
}

// orchestrator resolves the harness session by id.
func (h *apiHarness) orchestrator(id string) *core.Orchestrator {
	h.t.Helper()
	o, ok := h.manager.Get(id)
	require.True(h.t, ok, "session %s not registered", id)
	return o
}

type createdSession struct {
	ID openapi_types.UUID `json:"id"`
}

func decodeCreateResponse(t *testing.T, body []byte) createdSession {
	t.Helper()
	var resp createdSession
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

// waitForState drains the session's change stream until kind shows up.
func waitForState(t *testing.T, o *core.Orchestrator, kind model.StateKind) {
	t.Helper()
	sub := o.Subscribe(core.SubscribeOptions{Buffer: 64, ReplayCurrent: true})
	defer sub.Close()
	deadline := time.After(waitTimeout)
	for {
		select {
		case n := <-sub.C:
			if n.State.Kind == kind {
				return
			}
		case <-sub.Done:
			t.Fatalf("session finished before reaching %s", kind)
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", kind)
		}
	}
}

// fixtureManifest is a two-rendition video ladder with one audio set.
func fixtureManifest() *model.Manifest {
	return &model.Manifest{
		URL: "http://origin.test/stream.mpd",
		AdaptationSets: []model.AdaptationSet{
			{
				ID:          "video",
				ContentType: model.ContentVideo,
				Representations: []model.Representation{
					{ID: "v-720p", Bandwidth: 2_500_000, Codecs: "avc1.64001f", Resolution: &model.Resolution{Width: 1280, Height: 720}},
					{ID: "v-1080p", Bandwidth: 5_000_000, Codecs: "avc1.640028", Resolution: &model.Resolution{Width: 1920, Height: 1080}},
				},
			},
			{
				ID:          "audio",
				ContentType: model.ContentAudio,
				Representations: []model.Representation{
					{ID: "a-main", Bandwidth: 128_000, Codecs: "mp4a.40.2"},
				},
			},
		},
		DurationSeconds: 600,
	}
}

// stubManifests serves the fixture for any URL.
type stubManifests struct {
	mu       sync.Mutex
	manifest *model.Manifest
	err      error
}

func (s *stubManifests) Load(ctx context.Context, source model.SourceType, rawURL string) (*model.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	m := *s.manifest
	m.URL = rawURL
	return &m, nil
}

func (s *stubManifests) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func TestContract_CreateSession(t *testing.T) {
	h := newAPIHarness(t)

	// Bare create, no body.
	req, rr := h.do(http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)
	created := decodeCreateResponse(t, rr.Body.Bytes())
	require.NotEqual(t, openapi_types.UUID{}, created.ID)

	// Create with source defaults dispatches the initial load.
	id := h.createSession(&sourceDefaults{SourceType: "native", URL: "http://origin.test/clip.mp4"})
	waitForState(t, h.orchestrator(id), model.KindNativeReady)
}

func TestContract_CreateSessionValidation(t *testing.T) {
	h := newAPIHarness(t)

	body := createSessionRequest{SourceDefaults: &sourceDefaults{SourceType: "tape", URL: "http://origin.test/clip.mp4"}}
	req, rr := h.do(http.MethodPost, "/api/v1/sessions", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)

	var payload Error
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Equal(t, codeBadRequest, payload.Code)
	require.Contains(t, payload.Message, "sourceDefaults.sourceType")
}

func TestContract_GetSession(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createSession(nil)

	req, rr := h.do(http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)

	var snap sessionSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	require.Equal(t, id, snap.ID)
	require.Equal(t, model.KindIdle, snap.State.Kind)
	require.False(t, snap.UpdatedAt.IsZero())
}

func TestContract_GetSessionNotFound(t *testing.T) {
	h := newAPIHarness(t)

	req, rr := h.do(http.MethodGet, "/api/v1/sessions/"+model.NewSessionID(), nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)

	var payload Error
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Equal(t, codeSessionNotFound, payload.Code)
}

func TestContract_ListSessions(t *testing.T) {
	h := newAPIHarness(t)
	h.createSession(nil)
	h.createSession(nil)

	req, rr := h.do(http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)

	var resp struct {
		Sessions []sessionSummary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 2)
}

func TestContract_DispatchAction(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createSession(nil)
	doc := loadOpenAPIDoc(t)

	req, rr := h.do(http.MethodPost, "/api/v1/sessions/"+id+"/actions", actionRequest{
		Action:     actionLoad,
		SourceType: "native",
		URL:        "http://origin.test/clip.mp4",
	})
	require.Equal(t, http.StatusAccepted, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr, nil)

	var resp actionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, id, resp.SessionID)
	require.Equal(t, "accepted", resp.Status)
	require.Equal(t, actionLoad, resp.Action)

	// Invalid action names are refused before dispatch.
	reqBad, rrBad := h.do(http.MethodPost, "/api/v1/sessions/"+id+"/actions", actionRequest{Action: "warp"})
	require.Equal(t, http.StatusBadRequest, rrBad.Code)
	validateOpenAPIResponse(t, doc, reqBad, rrBad, nil)

	// Unknown session.
	reqGone, rrGone := h.do(http.MethodPost, "/api/v1/sessions/"+model.NewSessionID()+"/actions", actionRequest{Action: actionPlay})
	require.Equal(t, http.StatusNotFound, rrGone.Code)
	validateOpenAPIResponse(t, doc, reqGone, rrGone, nil)
}

func TestContract_DispatchDisposedConflict(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createSession(nil)

	// Dispose underneath the manager entry; the handler's lookup still
	// succeeds, dispatch then reports the disposed session.
	h.orchestrator(id).Dispose()

	req, rr := h.do(http.MethodPost, "/api/v1/sessions/"+id+"/actions", actionRequest{Action: actionPlay})
	require.Equal(t, http.StatusConflict, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)

	var payload Error
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Equal(t, codeSessionDisposed, payload.Code)
	require.Equal(t, id, payload.SessionID)
}

func TestContract_Journal(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createSession(&sourceDefaults{SourceType: "native", URL: "http://origin.test/clip.mp4"})
	waitForState(t, h.orchestrator(id), model.KindNativeReady)

	req, rr := h.do(http.MethodGet, "/api/v1/sessions/"+id+"/journal", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)

	var resp struct {
		SessionID string        `json:"sessionId"`
		Entries   []store.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, id, resp.SessionID)
	require.NotEmpty(t, resp.Entries)
}

func TestContract_Buffered(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createSession(nil)

	req, rr := h.do(http.MethodGet, "/api/v1/sessions/"+id+"/buffered", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)

	var resp struct {
		SessionID string            `json:"sessionId"`
		Ranges    []model.TimeRange `json:"ranges"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, id, resp.SessionID)
	require.Empty(t, resp.Ranges)
}

func TestContract_DeleteSession(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createSession(nil)
	doc := loadOpenAPIDoc(t)

	req, rr := h.do(http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr, nil)

	// Idempotent: deleting again is still a 204.
	req2, rr2 := h.do(http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, rr2.Code)
	validateOpenAPIResponse(t, doc, req2, rr2, nil)
}

func TestContract_EventStreamHandshake(t *testing.T) {
	h := newAPIHarness(t)
	id := h.createSession(nil)

	// A pre-cancelled context ends the stream right after the handshake.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/events", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, &openapi3filter.Options{
		ExcludeResponseBody: true,
	})
}

func TestContract_HealthAndReadiness(t *testing.T) {
	h := newAPIHarness(t)
	doc := loadOpenAPIDoc(t)

	req, rr := h.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	validateOpenAPIResponse(t, doc, req, rr, nil)

	req2, rr2 := h.do(http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rr2.Code)
	validateOpenAPIResponse(t, doc, req2, rr2, nil)

	// A not-ready gate flips the probe to 503.
	notReady := New(Config{Manager: h.manager, Ready: func() bool { return false }}).Router()
	req3 := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr3 := httptest.NewRecorder()
	notReady.ServeHTTP(rr3, req3)
	require.Equal(t, http.StatusServiceUnavailable, rr3.Code)
	validateOpenAPIResponse(t, doc, req3, rr3, nil)
}

func TestContract_CreateAfterShutdown(t *testing.T) {
	h := newAPIHarness(t)
	require.NoError(t, h.manager.Shutdown(context.Background()))

	req, rr := h.do(http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	validateOpenAPIResponse(t, loadOpenAPIDoc(t), req, rr, nil)
}
