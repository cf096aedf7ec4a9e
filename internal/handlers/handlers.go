// Package handlers содержит HTTP обработчики для API
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"latency-chart-service/internal/history"
	"latency-chart-service/internal/metrics"
	"latency-chart-service/internal/models"
	"latency-chart-service/internal/monitor"
	"latency-chart-service/internal/profile"
	"latency-chart-service/internal/series"
	"latency-chart-service/internal/session"
	"latency-chart-service/internal/surface"
)

// DefaultSlot слот, если клиент его не указал
const DefaultSlot = "default"

// Handler содержит зависимости для HTTP обработчиков
type Handler struct {
	store     history.Store
	backend   string
	sessions  *session.Manager
	targets   *monitor.Registry
	scheduler *monitor.Scheduler
	ingested  int64
	startTime time.Time
	now       func() time.Time
}

// NewHandler создает новый обработчик
func NewHandler(store history.Store, backend string, sessions *session.Manager) *Handler {
	return &Handler{
		store:     store,
		backend:   backend,
		sessions:  sessions,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// Register регистрирует маршруты API
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/samples", h.SampleHandler).Methods("POST")
	router.HandleFunc("/samples/batch", h.BatchSamplesHandler).Methods("POST")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/chart", h.ChartHandler).Methods("GET")
	api.HandleFunc("/series", h.SeriesHandler).Methods("GET")
	api.HandleFunc("/ranges", h.RangesHandler).Methods("GET")
	api.HandleFunc("/sessions", h.CreateSessionHandler).Methods("POST")
	api.HandleFunc("/sessions/{id}", h.GetSessionHandler).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.DeleteSessionHandler).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/zoom/toggle", h.ToggleZoomHandler).Methods("POST")
	api.HandleFunc("/sessions/{id}/pan", h.PanHandler).Methods("POST")
	api.HandleFunc("/sessions/{id}/wheel", h.WheelHandler).Methods("POST")
	api.HandleFunc("/sessions/{id}/pinch", h.PinchHandler).Methods("POST")
	h.registerMonitor(api)

	router.HandleFunc("/health", h.HealthHandler).Methods("GET")
	router.HandleFunc("/stats", h.StatsHandler).Methods("GET")
}

// SampleHandler обрабатывает POST /samples - прием одного измерения
func (h *Handler) SampleHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/samples"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var sample models.RawSample
	if err := json.NewDecoder(r.Body).Decode(&sample); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	// Устанавливаем временную метку, если не указана
	if sample.Timestamp.IsZero() {
		sample.Timestamp = h.now()
	}

	if err := h.store.Add(r.Context(), sample); err != nil {
		h.storeError(w, r, endpoint, "add", err)
		return
	}

	h.countIngested(1)
	h.ok(w, r, endpoint, sample, http.StatusCreated)
}

// BatchSamplesHandler обрабатывает POST /samples/batch - массовая загрузка измерений
func (h *Handler) BatchSamplesHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/samples/batch"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var batch models.SamplesBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	now := h.now()
	for i := range batch.Samples {
		if batch.Samples[i].Timestamp.IsZero() {
			batch.Samples[i].Timestamp = now
		}
	}

	if err := h.store.AddBatch(r.Context(), batch.Samples); err != nil {
		h.storeError(w, r, endpoint, "add_batch", err)
		return
	}

	h.countIngested(len(batch.Samples))
	h.ok(w, r, endpoint, map[string]int{"processed": len(batch.Samples)}, http.StatusOK)
}

// ChartHandler обрабатывает GET /api/chart - сырые измерения за диапазон
func (h *Handler) ChartHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/chart"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	target, rangeID, err := parseTarget(r)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	samples, err := h.store.Fetch(r.Context(), target, rangeID)
	if err != nil {
		h.storeError(w, r, endpoint, "fetch", err)
		return
	}
	if samples == nil {
		samples = []models.RawSample{}
	}

	h.ok(w, r, endpoint, samples, http.StatusOK)
}

// SeriesHandler обрабатывает GET /api/series - готовая конфигурация графика без сессии
func (h *Handler) SeriesHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/series"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	target, rangeID, err := parseTarget(r)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}

	samples, err := h.store.Fetch(r.Context(), target, rangeID)
	if err != nil {
		h.storeError(w, r, endpoint, "fetch", err)
		return
	}

	p := profile.Resolve(rangeID)
	u := series.Compute(samples, p)
	metrics.BucketsPerSeries.Observe(float64(len(u.Data)))

	h.ok(w, r, endpoint, series.BuildConfig(target, p, u), http.StatusOK)
}

// RangesHandler обрабатывает GET /api/ranges - параметры всех диапазонов
func (h *Handler) RangesHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/ranges"

	ids := profile.IDs()
	out := make([]models.RangeInfo, 0, len(ids))
	for _, id := range ids {
		p := profile.Resolve(id)
		out = append(out, models.RangeInfo{
			ID:                p.ID,
			RefreshMs:         p.RefreshMs(),
			BucketMs:          p.BucketMs(),
			DecimationSamples: p.DecimationSamples,
			ZoomWheelSpeed:    p.ZoomWheelSpeed,
			Axis:              p.Axis,
		})
	}

	h.ok(w, r, endpoint, out, http.StatusOK)
}

// CreateSessionHandler обрабатывает POST /api/sessions - инициализация графика в слоте.
// Прежний график слота закрывается
func (h *Handler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/sessions"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var req models.SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Slot == "" {
		req.Slot = DefaultSlot
	}
	if strings.Contains(req.Slot, "/") {
		h.fail(w, r, endpoint, "slot must not contain '/'", http.StatusBadRequest)
		return
	}
	rangeID := profile.Normalize(req.Range)

	var raw []models.RawSample
	if req.URLID > 0 {
		var err error
		raw, err = h.store.Fetch(r.Context(), req.URLID, rangeID)
		if err != nil {
			h.storeError(w, r, endpoint, "fetch", err)
			return
		}
	}

	snap := surface.NewSnapshot()
	s := h.sessions.Initialize(req.Slot, snap, raw, req.URLID, rangeID)
	log.Printf("Session %s initialized: url_id=%d range=%s samples=%d", s.ID, req.URLID, rangeID, len(raw))

	h.ok(w, r, endpoint, sessionResponse(s, nil), http.StatusCreated)
}

// GetSessionHandler обрабатывает GET /api/sessions/{id}
func (h *Handler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/sessions/{id}"

	s, ok := h.lookup(w, r, endpoint)
	if !ok {
		return
	}
	h.ok(w, r, endpoint, sessionResponse(s, nil), http.StatusOK)
}

// DeleteSessionHandler обрабатывает DELETE /api/sessions/{id}
func (h *Handler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/sessions/{id}"

	if err := h.sessions.Teardown(mux.Vars(r)["id"]); err != nil {
		h.sessionError(w, r, endpoint, err)
		return
	}
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "204").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// ToggleZoomHandler обрабатывает POST /api/sessions/{id}/zoom/toggle
func (h *Handler) ToggleZoomHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/sessions/{id}/zoom/toggle"

	s, ok := h.lookup(w, r, endpoint)
	if !ok {
		return
	}
	s.ToggleZoom()
	h.ok(w, r, endpoint, sessionResponse(s, nil), http.StatusOK)
}

// PanHandler обрабатывает POST /api/sessions/{id}/pan
func (h *Handler) PanHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/sessions/{id}/pan"

	s, ok := h.lookup(w, r, endpoint)
	if !ok {
		return
	}
	var req models.PanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	applied := s.Pan(req.DeltaMs)
	h.ok(w, r, endpoint, sessionResponse(s, &applied), http.StatusOK)
}

// WheelHandler обрабатывает POST /api/sessions/{id}/wheel
func (h *Handler) WheelHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/sessions/{id}/wheel"

	s, ok := h.lookup(w, r, endpoint)
	if !ok {
		return
	}
	var req models.WheelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	applied := s.Wheel(req.DeltaY, req.CenterMs)
	h.ok(w, r, endpoint, sessionResponse(s, &applied), http.StatusOK)
}

// PinchHandler обрабатывает POST /api/sessions/{id}/pinch
func (h *Handler) PinchHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/sessions/{id}/pinch"

	s, ok := h.lookup(w, r, endpoint)
	if !ok {
		return
	}
	var req models.PinchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	applied := s.Pinch(req.Scale, req.CenterMs)
	h.ok(w, r, endpoint, sessionResponse(s, &applied), http.StatusOK)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	storeStatus := "disconnected"
	if h.store != nil && h.store.Ping(r.Context()) == nil {
		storeStatus = "connected"
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: h.now(),
		Store:     storeStatus,
		Uptime:    time.Since(h.startTime).String(),
	}

	h.respondJSON(w, status, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/stats"

	// Обновляем метрику горутин
	metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))

	response := models.StatsResponse{
		ActiveSessions:  h.sessions.Len(),
		SamplesIngested: atomic.LoadInt64(&h.ingested),
		StoreBackend:    h.backend,
	}

	h.ok(w, r, endpoint, response, http.StatusOK)
}

func (h *Handler) countIngested(n int) {
	atomic.AddInt64(&h.ingested, int64(n))
	metrics.SamplesIngested.Add(float64(n))
}

// lookup находит сессию из пути запроса или отвечает 404
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, endpoint string) (*session.Session, bool) {
	s, err := h.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		h.sessionError(w, r, endpoint, err)
		return nil, false
	}
	return s, true
}

func sessionResponse(s *session.Session, applied *bool) models.SessionResponse {
	resp := models.SessionResponse{
		ID:      s.ID,
		Slot:    s.Slot,
		Epoch:   s.Epoch,
		URLID:   s.Target,
		Range:   s.Range,
		Applied: applied,
	}
	if snap, ok := s.Surface().(*surface.Snapshot); ok {
		resp.Snapshot, _ = snap.Current()
	}
	return resp
}

// parseTarget читает url_id (обязателен) и range (по умолчанию 1d)
func parseTarget(r *http.Request) (int, string, error) {
	q := r.URL.Query()
	raw := q.Get("url_id")
	if raw == "" {
		return 0, "", errors.New("url_id is required")
	}
	target, err := strconv.Atoi(raw)
	if err != nil || target <= 0 {
		return 0, "", errors.New("url_id must be a positive integer")
	}
	return target, profile.Normalize(q.Get("range")), nil
}

func (h *Handler) sessionError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	if errors.Is(err, session.ErrNotFound) {
		h.fail(w, r, endpoint, err.Error(), http.StatusNotFound)
		return
	}
	h.fail(w, r, endpoint, err.Error(), http.StatusInternalServerError)
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, endpoint, op string, err error) {
	if errors.Is(err, history.ErrInvalidSample) {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}
	log.Printf("Store %s failed: %v", op, err)
	metrics.StoreErrors.WithLabelValues(op).Inc()
	h.fail(w, r, endpoint, "Store error: "+err.Error(), http.StatusInternalServerError)
}

func (h *Handler) ok(w http.ResponseWriter, r *http.Request, endpoint string, data interface{}, status int) {
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
	h.respondJSON(w, data, status)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, endpoint, message string, status int) {
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
	h.respondError(w, message, status)
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
