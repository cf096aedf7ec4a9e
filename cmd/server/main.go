// Package main запускает сервис графиков задержки.
// Сервис реализует:
// - HTTP API для приема измерений задержки и выдачи их за диапазон
// - построение серии графика: бакеты, прореживание, цвет по тренду, отступы оси
// - сессии графика с режимом масштабирования и периодическим обновлением
// - хранение истории в памяти, Redis или Postgres
// - проверки задержки зарегистрированных целей по расписанию cron
// - экспорт метрик в Prometheus
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"latency-chart-service/internal/config"
	"latency-chart-service/internal/handlers"
	"latency-chart-service/internal/history"
	"latency-chart-service/internal/metrics"
	"latency-chart-service/internal/monitor"
	"latency-chart-service/internal/session"
	"latency-chart-service/internal/source"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to TOML config file")
	flag.Parse()

	log.Println("Starting Latency Chart Service...")
	log.Printf("Go version: %s", runtime.Version())
	log.Printf("NumCPU: %d", runtime.NumCPU())

	// Загружаем конфигурацию
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	store, backend := openStore(cfg)
	log.Printf("History store: %s", backend)

	// Источник данных для циклов обновления: внешний сервис или локальное хранилище
	var upstream session.DataSource = store
	if cfg.UpstreamURL != "" {
		upstream = source.NewHTTP(cfg.UpstreamURL, &http.Client{Timeout: cfg.FetchTimeout.Duration}, nil)
		log.Printf("Refreshing from upstream %s", cfg.UpstreamURL)
	}
	limiter := source.NewLimiter(cfg.FetchRate, cfg.FetchBurst)
	fetcher := source.NewThrottled(upstream, limiter, cfg.FetchTimeout.Duration)

	sessions := session.NewManager(fetcher, cfg.MaxSessions)

	// Проверки целей пишут задержку в то же хранилище истории
	targets := monitor.NewRegistry()
	checker := monitor.NewChecker(cfg.CheckTimeout.Duration)
	scheduler := monitor.NewScheduler(targets, store, checker.Check, cfg.MonitorConcurrency)
	if err := scheduler.Start(cfg.MonitorSchedule); err != nil {
		log.Fatalf("Scheduler error: %v", err)
	}

	handler := handlers.NewHandler(store, backend, sessions).WithMonitor(targets, scheduler)

	// Настраиваем маршруты
	router := mux.NewRouter()
	handler.Register(router)

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	// Middleware для логирования и восстановления после паники
	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	// Создаем HTTP сервер с настройками таймаутов
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
		IdleTimeout:  cfg.IdleTimeout.Duration,
	}

	// Запускаем горутину для обновления метрик
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go updateMetricsLoop(loopCtx, sessions)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Server listening on %s", cfg.ServerAddr)
		log.Printf("Endpoints:")
		log.Printf("  POST   /samples                  - Submit latency sample")
		log.Printf("  POST   /samples/batch            - Submit batch samples")
		log.Printf("  GET    /api/chart                - Raw samples for a range")
		log.Printf("  GET    /api/series               - Chart config for a range")
		log.Printf("  GET    /api/ranges               - Range profiles")
		log.Printf("  POST   /api/sessions             - Initialize chart session")
		log.Printf("  GET    /api/sessions/{id}        - Session snapshot")
		log.Printf("  DELETE /api/sessions/{id}        - Tear down session")
		log.Printf("  POST   /api/sessions/{id}/zoom/toggle|pan|wheel|pinch")
		log.Printf("  GET    /api/urls                 - Monitored targets")
		log.Printf("  POST   /api/urls                 - Register target")
		log.Printf("  DELETE /api/urls/{id}            - Remove target and its history")
		log.Printf("  GET    /api/schedule             - Check schedule")
		log.Printf("  PUT    /api/schedule             - Change check schedule")
		log.Printf("  GET    /health                   - Health check")
		log.Printf("  GET    /stats                    - Service statistics")
		log.Printf("  GET    /prometheus               - Prometheus metrics")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	<-stop
	log.Println("Shutting down server...")

	// Контекст с таймаутом для завершения
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
	defer cancel()

	// Завершаем HTTP сервер
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	stopLoop()

	// Останавливаем проверки до закрытия хранилища
	scheduler.Stop()

	// Закрываем сессии: таймеры остановлены, запросы в полете отменены
	sessions.CloseAll()

	// Закрываем хранилище
	if err := store.Close(); err != nil {
		log.Printf("Store close error: %v", err)
	}

	log.Println("Server stopped")
}

// openStore подключает хранилище истории. При недоступности Redis после
// нескольких попыток сервис продолжает работу с хранилищем в памяти
func openStore(cfg config.Config) (history.Store, string) {
	opts := cfg.HistoryOptions()

	switch cfg.StoreBackend {
	case config.BackendRedis:
		var err error
		// Пробуем подключиться к Redis с повторами
		for i := 0; i < 5; i++ {
			var store *history.RedisStore
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			store, err = history.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, opts)
			cancel()
			if err == nil {
				log.Printf("Connected to Redis at %s", cfg.RedisAddr)
				return store, config.BackendRedis
			}
			log.Printf("Redis connection attempt %d failed: %v", i+1, err)
			if i < 4 {
				time.Sleep(time.Duration(i+1) * time.Second)
			}
		}
		log.Printf("Warning: Failed to connect to Redis, keeping history in memory: %v", err)

	case config.BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, err := history.NewPostgresStore(ctx, cfg.PostgresDSN, opts)
		if err != nil {
			log.Fatalf("Postgres error: %v", err)
		}
		return store, config.BackendPostgres
	}

	return history.NewMemoryStore(opts), config.BackendMemory
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// recoveryMiddleware отвечает 500 вместо обрыва соединения при панике обработчика
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("Panic in %s %s: %v", r.Method, r.URL.Path, rec)
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// updateMetricsLoop периодически обновляет метрики Prometheus
func updateMetricsLoop(ctx context.Context, sessions *session.Manager) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.ActiveSessions.Set(float64(sessions.Len()))
			metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
		}
	}
}
