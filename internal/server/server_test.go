package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/researchpilot/config"
	"github.com/mohammad-safakhou/researchpilot/internal/history"
	"github.com/mohammad-safakhou/researchpilot/internal/mission"
	"github.com/mohammad-safakhou/researchpilot/internal/telemetry"
)

type scriptedRunner struct {
	events []mission.Event
	got    mission.Request
}

func (r *scriptedRunner) Stream(_ context.Context, req mission.Request, sink mission.Sink) error {
	r.got = req
	for _, ev := range r.events {
		if err := sink(ev); err != nil {
			return err
		}
	}
	return nil
}

type echoChat struct{ err error }

func (e echoChat) Reply(_ context.Context, message string) (string, error) {
	return "you said: " + message, e.err
}

func newTestServer(t *testing.T, runner Runner, store history.Store) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	srv, err := New(config.ServerConfig{UploadDir: dir, MaxUploadMB: 1}, Deps{
		Runner:  runner,
		History: store,
		Chat:    echoChat{},
		Metrics: telemetry.NewMetrics(),
	})
	require.NoError(t, err)
	return srv, dir
}

func parseSSE(t *testing.T, body string) []mission.Event {
	t.Helper()
	var events []mission.Event
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		require.True(t, strings.HasPrefix(block, "data: "), "unexpected frame %q", block)
		var ev mission.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedRunner{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestResearchStreamsEventsAndRecordsHistory(t *testing.T) {
	runner := &scriptedRunner{events: []mission.Event{
		mission.Active(mission.StagePlanner, "Planning..."),
		mission.Active(mission.StageSearch, "Searching: q1"),
		mission.Complete("# Report"),
	}}
	store := history.NewMemoryStore()
	srv, _ := newTestServer(t, runner, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/research?topic=quantum+sensors", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, runner.events, parseSSE(t, rec.Body.String()))
	assert.Equal(t, "quantum sensors", runner.got.Topic)

	recs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, history.StatusCompleted, recs[0].Status)
	assert.Equal(t, "# Report", recs[0].Report)
	assert.Equal(t, runner.got.ID, recs[0].ID)
}

func TestResearchRecordsFailure(t *testing.T) {
	runner := &scriptedRunner{events: []mission.Event{
		mission.Active(mission.StagePlanner, "Planning..."),
		mission.Failure("planning: llm down"),
	}}
	store := history.NewMemoryStore()
	srv, _ := newTestServer(t, runner, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/research?topic=t", nil))

	recs, _ := store.List(context.Background(), 0)
	require.Len(t, recs, 1)
	assert.Equal(t, history.StatusFailed, recs[0].Status)
	assert.Equal(t, "planning: llm down", recs[0].Error)
}

func TestResearchRejectsFileOutsideUploads(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedRunner{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/research?topic=t&file=../../etc/passwd", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// plainWriter is a ResponseWriter without http.Flusher.
type plainWriter struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func (w *plainWriter) Header() http.Header         { return w.header }
func (w *plainWriter) Write(b []byte) (int, error) { return w.body.Write(b) }
func (w *plainWriter) WriteHeader(code int)        { w.code = code }

func TestResearchWithoutFlusherReportsUnavailable(t *testing.T) {
	runner := &scriptedRunner{events: []mission.Event{mission.Complete("never")}}
	store := history.NewMemoryStore()
	srv, _ := newTestServer(t, runner, store)

	w := &plainWriter{header: http.Header{}}
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/research?topic=t", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.code)
	assert.Contains(t, w.body.String(), "streaming unsupported")
	assert.NotEqual(t, "text/event-stream", w.header.Get("Content-Type"))
	assert.Empty(t, runner.got.Topic)
	recs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestUploadThenResearchWithFile(t *testing.T) {
	runner := &scriptedRunner{events: []mission.Event{mission.Complete("done")}}
	srv, dir := newTestServer(t, runner, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("field notes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var up uploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	assert.Contains(t, up.Info, "notes.txt")
	data, err := os.ReadFile(up.Path)
	require.NoError(t, err)
	assert.Equal(t, "field notes", string(data))
	assert.Equal(t, dir, filepath.Dir(up.Path))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/research?topic=t&file="+url.QueryEscape(up.Path), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, up.Path, runner.got.FilePath)
}

func TestUploadRequiresFile(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedRunner{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", strings.NewReader(""))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionsEndpoints(t *testing.T) {
	ctx := context.Background()
	store := history.NewMemoryStore()
	now := time.Now()
	require.NoError(t, store.Save(ctx, history.Begin("a", "ocean acidification", "", now.Add(-time.Hour)).Complete("pH trends", now)))
	require.NoError(t, store.Save(ctx, history.Begin("b", "grid storage", "", now)))
	srv, _ := newTestServer(t, &scriptedRunner{}, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []history.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions?q=ocean", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/a", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/a", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/a", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session not found")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedRunner{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"you said: hello"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatFailureIsServerError(t *testing.T) {
	srv, err := New(config.ServerConfig{UploadDir: t.TempDir()}, Deps{
		Runner: &scriptedRunner{},
		Chat:   echoChat{err: errors.New("llm down")},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "llm down")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedRunner{}, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "researchpilot_missions_in_flight")
}
