// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latency_chart_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "latency_chart_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// SamplesIngested количество принятых измерений
	SamplesIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "latency_chart_samples_ingested_total",
			Help: "Total number of latency samples ingested",
		},
	)

	// RefreshCycles циклы обновления по результату
	RefreshCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latency_chart_refresh_cycles_total",
			Help: "Refresh cycles by outcome (applied, failed, empty, discarded)",
		},
		[]string{"outcome"},
	)

	// FetchDuration время запроса измерений для обновления
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "latency_chart_fetch_duration_seconds",
			Help:    "Refresh fetch duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// BucketsPerSeries число бакетов в отрисованной серии
	BucketsPerSeries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "latency_chart_buckets_per_series",
			Help:    "Number of buckets in a rendered series",
			Buckets: []float64{0, 1, 2, 10, 30, 60, 120, 240, 480, 900},
		},
	)

	// ActiveSessions количество открытых сессий графика
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "latency_chart_active_sessions",
			Help: "Number of open chart sessions",
		},
	)

	// SessionsEvicted сессии, закрытые при переполнении LRU
	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "latency_chart_sessions_evicted_total",
			Help: "Total number of sessions evicted from the session cache",
		},
	)

	// GesturePanics сбои обработчиков жестов
	GesturePanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latency_chart_gesture_panics_total",
			Help: "Total number of recovered gesture handler failures",
		},
		[]string{"gesture"},
	)

	// StoreErrors ошибки хранилища истории
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latency_chart_store_errors_total",
			Help: "Total number of history store errors",
		},
		[]string{"operation"},
	)

	// ChecksTotal проверки целей по режиму и результату
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latency_chart_checks_total",
			Help: "Total number of target checks by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// CheckDuration задержка одной проверки цели
	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "latency_chart_check_duration_seconds",
			Help:    "Target check latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"mode"},
	)

	// MonitoredTargets количество отслеживаемых целей
	MonitoredTargets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "latency_chart_monitored_targets",
			Help: "Number of registered monitored targets",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "latency_chart_active_goroutines",
			Help: "Number of active goroutines",
		},
	)
)
