package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"latency-chart-service/internal/history"
	"latency-chart-service/internal/models"
	"latency-chart-service/internal/monitor"
	"latency-chart-service/internal/series"
	"latency-chart-service/internal/session"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	router   *mux.Router
	store    *history.MemoryStore
	sessions *session.Manager
	targets  *monitor.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := history.NewMemoryStore(history.Options{Now: func() time.Time { return now }})
	sessions := session.NewManager(store, 8)
	targets := monitor.NewRegistry()
	scheduler := monitor.NewScheduler(targets, store, monitor.NewChecker(time.Second).Check, 2)
	require.NoError(t, scheduler.Reschedule(monitor.DefaultSchedule))
	t.Cleanup(func() {
		scheduler.Stop()
		sessions.CloseAll()
		store.Close()
	})

	h := NewHandler(store, "memory", sessions).WithMonitor(targets, scheduler)
	h.now = func() time.Time { return now }

	router := mux.NewRouter()
	h.Register(router)
	return &testServer{router: router, store: store, sessions: sessions, targets: targets}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func (ts *testServer) seed(t *testing.T, target int, latencies ...float64) {
	t.Helper()
	samples := make([]models.RawSample, len(latencies))
	for i, l := range latencies {
		samples[i] = models.RawSample{
			URLID:     target,
			Timestamp: now.Add(-time.Duration(len(latencies)-i) * 10 * time.Minute),
			LatencyMs: l,
		}
	}
	rec := ts.do(t, http.MethodPost, "/samples/batch", models.SamplesBatch{Samples: samples})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSampleHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/samples", models.RawSample{URLID: 1, LatencyMs: 12})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got models.RawSample
	decode(t, rec, &got)
	assert.True(t, got.Timestamp.Equal(now), "missing timestamp defaults to now")
	assert.Equal(t, 1, ts.store.Len())

	rec = ts.do(t, http.MethodPost, "/samples", models.RawSample{URLID: 1, LatencyMs: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/samples", bytes.NewBufferString("{"))
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestBatchSamplesHandler(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, 3, 10, 20, 30)
	assert.Equal(t, 3, ts.store.Len())

	rec := ts.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.StatsResponse
	decode(t, rec, &stats)
	assert.Equal(t, int64(3), stats.SamplesIngested)
	assert.Equal(t, "memory", stats.StoreBackend)
}

func TestChartHandler(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, 1, 10, 20, 30)

	rec := ts.do(t, http.MethodGet, "/api/chart", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/chart?url_id=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/chart?url_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var samples []models.RawSample
	decode(t, rec, &samples)
	assert.Len(t, samples, 3)

	rec = ts.do(t, http.MethodGet, "/api/chart?url_id=1&range=1min", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestSeriesHandler(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, 1, 10, 20, 30)

	rec := ts.do(t, http.MethodGet, "/api/series?url_id=1&range=1h", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg models.ChartConfig
	decode(t, rec, &cfg)
	assert.Equal(t, "1h", cfg.Range)
	assert.Len(t, cfg.Dataset.Data, 3)
	assert.Equal(t, series.Improving, cfg.Dataset.Palette)
	assert.Equal(t, 240, cfg.Decimation.Samples)

	rec = ts.do(t, http.MethodGet, "/api/series?url_id=1&range=nope", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &cfg)
	assert.Equal(t, "1d", cfg.Range)
}

func TestRangesHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/ranges", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ranges []models.RangeInfo
	decode(t, rec, &ranges)
	require.Len(t, ranges, 9)
	assert.Equal(t, "1s", ranges[0].ID)
	assert.Equal(t, int64(1000), ranges[0].RefreshMs)
	assert.Equal(t, "1m", ranges[8].ID)
	assert.Equal(t, int64(6*time.Hour/time.Millisecond), ranges[8].BucketMs)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.seed(t, 1, 10, 20, 30, 40)

	rec := ts.do(t, http.MethodPost, "/api/sessions", models.SessionRequest{Slot: "main", URLID: 1, Range: "1h"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.SessionResponse
	decode(t, rec, &created)
	assert.Equal(t, "main", created.Slot)
	assert.Len(t, created.Snapshot.Config.Dataset.Data, 4)
	assert.False(t, created.Snapshot.ZoomActive)
	base := "/api/sessions/" + created.ID

	// gestures are ignored until zoom mode is on
	rec = ts.do(t, http.MethodPost, base+"/wheel", models.WheelRequest{DeltaY: -1, CenterMs: created.Snapshot.View.Min})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.SessionResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.Applied)
	assert.False(t, *resp.Applied)

	rec = ts.do(t, http.MethodPost, base+"/zoom/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.True(t, resp.Snapshot.ZoomActive)

	center := (created.Snapshot.View.Min + created.Snapshot.View.Max) / 2
	rec = ts.do(t, http.MethodPost, base+"/pinch", models.PinchRequest{Scale: 2, CenterMs: center})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = models.SessionResponse{}
	decode(t, rec, &resp)
	assert.True(t, *resp.Applied)
	assert.True(t, resp.Snapshot.View.Clipped)

	rec = ts.do(t, http.MethodPost, base+"/pan", models.PanRequest{DeltaMs: -60000})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = models.SessionResponse{}
	decode(t, rec, &resp)
	assert.True(t, *resp.Applied)

	rec = ts.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSession_ReplacesSlot(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sessions", models.SessionRequest{})
	require.Equal(t, http.StatusCreated, rec.Code)
	var first models.SessionResponse
	decode(t, rec, &first)
	assert.Equal(t, DefaultSlot, first.Slot)
	assert.Equal(t, "1d", first.Range)
	assert.Empty(t, first.Snapshot.Config.Dataset.Data)

	rec = ts.do(t, http.MethodPost, "/api/sessions", models.SessionRequest{Range: "4h"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var second models.SessionResponse
	decode(t, rec, &second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, ts.sessions.Len())

	rec = ts.do(t, http.MethodGet, "/api/sessions/"+first.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/sessions", models.SessionRequest{Slot: "a/b"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.HealthStatus
	decode(t, rec, &status)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "connected", status.Store)

	ts.store.Close()
	rec = ts.do(t, http.MethodGet, "/health", nil)
	decode(t, rec, &status)
	assert.Equal(t, "disconnected", status.Store)
}

func TestTargetHandlers(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/urls", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/urls", models.TargetRequest{URL: "https://example.com", CheckMode: "tcp", ThreadCount: 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Target
	decode(t, rec, &created)
	assert.Equal(t, 1, created.ID)
	assert.Equal(t, models.CheckTCP, created.CheckMode)

	rec = ts.do(t, http.MethodPost, "/api/urls", models.TargetRequest{URL: "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/urls", nil)
	var list []models.Target
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "https://example.com", list[0].URL)

	// удаление цели очищает ее историю
	ts.seed(t, created.ID, 10, 20)
	require.Equal(t, 2, ts.store.Len())

	rec = ts.do(t, http.MethodDelete, "/api/urls/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, ts.targets.Len())
	assert.Equal(t, 0, ts.store.Len())

	rec = ts.do(t, http.MethodDelete, "/api/urls/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScheduleHandlers(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sched models.ScheduleResponse
	decode(t, rec, &sched)
	assert.Equal(t, "@every 1m", sched.Schedule)
	assert.Equal(t, 2, sched.Concurrency)

	rec = ts.do(t, http.MethodPut, "/api/schedule", models.ScheduleRequest{Schedule: "@every 30s"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &sched)
	assert.Equal(t, "@every 30s", sched.Schedule)

	rec = ts.do(t, http.MethodPut, "/api/schedule", models.ScheduleRequest{Schedule: "sometimes"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/schedule", nil)
	decode(t, rec, &sched)
	assert.Equal(t, "@every 30s", sched.Schedule)
}
