package monitor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"latency-chart-service/internal/history"
	"latency-chart-service/internal/metrics"
	"latency-chart-service/internal/models"
)

// DefaultSchedule период проверок по умолчанию
const DefaultSchedule = "@every 1m"

// Scheduler по расписанию cron проверяет все цели реестра и пишет
// усредненную задержку в историю
type Scheduler struct {
	registry    *Registry
	store       history.Store
	check       CheckFunc
	concurrency int
	now         func() time.Time

	mu     sync.Mutex
	cron   *cron.Cron
	entry  cron.EntryID
	spec   string
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler создает планировщик. concurrency ограничивает число целей,
// проверяемых одновременно
func NewScheduler(registry *Registry, store history.Store, check CheckFunc, concurrency int) *Scheduler {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		registry:    registry,
		store:       store,
		check:       check,
		concurrency: concurrency,
		now:         time.Now,
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start регистрирует задание по расписанию spec и запускает cron
func (s *Scheduler) Start(spec string) error {
	if err := s.Reschedule(spec); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("Monitor: scheduler started with schedule %q", spec)
	return nil
}

// Reschedule заменяет расписание. Неверное расписание не меняет текущее
func (s *Scheduler) Reschedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.cron.AddFunc(spec, s.job)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = entry
	s.spec = spec
	return nil
}

// Schedule текущее расписание
func (s *Scheduler) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Concurrency число целей, проверяемых одновременно
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// Stop останавливает cron, отменяет проверки в полете и ждет завершения задания
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	log.Println("Monitor: scheduler stopped")
}

func (s *Scheduler) job() {
	start := time.Now()
	n := s.RunOnce(s.ctx)
	log.Printf("Monitor: checked %d targets in %s", n, time.Since(start))
}

// RunOnce проверяет все цели реестра и возвращает число записанных результатов
func (s *Scheduler) RunOnce(ctx context.Context) int {
	targets := s.registry.List()
	if len(targets) == 0 {
		return 0
	}

	var (
		g       errgroup.Group
		mu      sync.Mutex
		written int
	)
	g.SetLimit(s.concurrency)

	for _, t := range targets {
		t := t
		g.Go(func() error {
			if s.checkTarget(ctx, t) {
				mu.Lock()
				written++
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return written
}

// checkTarget выполняет ThreadCount проверок параллельно, сводит их
// в один итог и пишет среднюю задержку в историю
func (s *Scheduler) checkTarget(ctx context.Context, t models.Target) bool {
	threads := t.ThreadCount
	if threads <= 0 {
		threads = DefaultThreadCount
	}

	results := make([]Result, threads)
	var g errgroup.Group
	for i := range results {
		i := i
		g.Go(func() error {
			results[i] = s.check(ctx, t)
			return nil
		})
	}
	g.Wait()

	out := summarize(results, s.now())
	for _, r := range results {
		outcome := "ok"
		if r.NetworkErr {
			outcome = "network_error"
		}
		metrics.ChecksTotal.WithLabelValues(t.CheckMode, outcome).Inc()
		metrics.CheckDuration.WithLabelValues(t.CheckMode).Observe(r.Latency.Seconds())
	}

	if _, err := s.registry.Record(t.ID, out); err != nil {
		if errors.Is(err, ErrTargetNotFound) {
			return false
		}
		log.Printf("Monitor: failed to record target %d: %v", t.ID, err)
		return false
	}

	sample := models.RawSample{URLID: t.ID, Timestamp: out.CheckedAt, LatencyMs: out.LatencyMs}
	if err := s.store.Add(ctx, sample); err != nil {
		metrics.StoreErrors.WithLabelValues("monitor_add").Inc()
		log.Printf("Monitor: failed to store sample for %s: %v", t.URL, err)
		return false
	}
	metrics.SamplesIngested.Inc()
	return true
}

// summarize усредняет задержку по всем попыткам. Код 200 имеет приоритет,
// иначе берется первый полученный код ответа
func summarize(results []Result, at time.Time) models.CheckOutcome {
	out := models.CheckOutcome{Attempts: len(results), CheckedAt: at}
	if len(results) == 0 {
		return out
	}

	var total time.Duration
	for _, r := range results {
		total += r.Latency
		if r.StatusCode <= 0 {
			continue
		}
		if r.StatusCode == http.StatusOK {
			out.Succeeded++
		}
		if out.StatusCode == 0 {
			out.StatusCode = r.StatusCode
		}
	}
	if out.Succeeded > 0 {
		out.StatusCode = http.StatusOK
	}

	out.LatencyMs = float64(total) / float64(time.Millisecond) / float64(len(results))
	return out
}
