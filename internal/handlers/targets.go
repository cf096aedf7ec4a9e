package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"latency-chart-service/internal/metrics"
	"latency-chart-service/internal/models"
	"latency-chart-service/internal/monitor"
)

// WithMonitor подключает реестр целей и планировщик проверок.
// Без них маршруты /api/urls и /api/schedule не регистрируются
func (h *Handler) WithMonitor(targets *monitor.Registry, scheduler *monitor.Scheduler) *Handler {
	h.targets = targets
	h.scheduler = scheduler
	return h
}

func (h *Handler) registerMonitor(api *mux.Router) {
	if h.targets == nil {
		return
	}
	api.HandleFunc("/urls", h.ListTargetsHandler).Methods("GET")
	api.HandleFunc("/urls", h.AddTargetHandler).Methods("POST")
	api.HandleFunc("/urls/{id:[0-9]+}", h.DeleteTargetHandler).Methods("DELETE")

	if h.scheduler == nil {
		return
	}
	api.HandleFunc("/schedule", h.GetScheduleHandler).Methods("GET")
	api.HandleFunc("/schedule", h.UpdateScheduleHandler).Methods("PUT")
}

// ListTargetsHandler обрабатывает GET /api/urls - отслеживаемые цели со сводкой
func (h *Handler) ListTargetsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/urls"

	h.ok(w, r, endpoint, h.targets.List(), http.StatusOK)
}

// AddTargetHandler обрабатывает POST /api/urls - регистрация цели
func (h *Handler) AddTargetHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/urls"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var req models.TargetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	target, err := h.targets.Add(req)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.MonitoredTargets.Set(float64(h.targets.Len()))
	log.Printf("Target %d added: %s mode=%s threads=%d", target.ID, target.URL, target.CheckMode, target.ThreadCount)

	h.ok(w, r, endpoint, target, http.StatusCreated)
}

// DeleteTargetHandler обрабатывает DELETE /api/urls/{id} - удаление цели вместе с историей
func (h *Handler) DeleteTargetHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/urls/{id}"

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		h.fail(w, r, endpoint, "id must be a positive integer", http.StatusBadRequest)
		return
	}

	if err := h.targets.Delete(id); err != nil {
		if errors.Is(err, monitor.ErrTargetNotFound) {
			h.fail(w, r, endpoint, err.Error(), http.StatusNotFound)
			return
		}
		h.fail(w, r, endpoint, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.MonitoredTargets.Set(float64(h.targets.Len()))

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.storeError(w, r, endpoint, "delete", err)
		return
	}

	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, "204").Inc()
	w.WriteHeader(http.StatusNoContent)
}

// GetScheduleHandler обрабатывает GET /api/schedule
func (h *Handler) GetScheduleHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/schedule"

	h.ok(w, r, endpoint, h.scheduleResponse(), http.StatusOK)
}

// UpdateScheduleHandler обрабатывает PUT /api/schedule - смена расписания проверок
func (h *Handler) UpdateScheduleHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/schedule"

	var req models.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.scheduler.Reschedule(req.Schedule); err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusBadRequest)
		return
	}
	log.Printf("Check schedule changed to %q", req.Schedule)

	h.ok(w, r, endpoint, h.scheduleResponse(), http.StatusOK)
}

func (h *Handler) scheduleResponse() models.ScheduleResponse {
	return models.ScheduleResponse{
		Schedule:    h.scheduler.Schedule(),
		Concurrency: h.scheduler.Concurrency(),
		Targets:     h.targets.Len(),
	}
}
