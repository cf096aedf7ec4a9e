// Package session владеет жизненным циклом графика: начальная отрисовка,
// режим масштабирования и периодическое обновление данных
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"latency-chart-service/internal/metrics"
	"latency-chart-service/internal/models"
	"latency-chart-service/internal/profile"
	"latency-chart-service/internal/series"
	"latency-chart-service/internal/zoom"
)

// ZoomState запрос состояния режима масштабирования в момент взаимодействия
type ZoomState interface {
	IsZoomActive() bool
}

// Surface поверхность отрисовки графика
type Surface interface {
	Render(cfg models.ChartConfig, view models.ViewWindow, state ZoomState)
	Update(u models.SeriesUpdate)
	SetView(view models.ViewWindow, pointRadius int)
}

// DataSource источник сырых измерений для цели и диапазона
type DataSource interface {
	Fetch(ctx context.Context, target int, rangeID string) ([]models.RawSample, error)
}

// Refresh outcomes
const (
	OutcomeApplied   = "applied"
	OutcomeFailed    = "failed"
	OutcomeEmpty     = "empty"
	OutcomeDiscarded = "discarded"
)

// Session один экземпляр графика от инициализации до закрытия
type Session struct {
	ID      string
	Slot    string
	Target  int
	Range   string
	Profile profile.RangeProfile
	Epoch   uint64

	mu         sync.Mutex
	zoom       *zoom.Controller
	zoomActive atomic.Bool
	surface    Surface
	source     DataSource
	points     []models.Point
	closed     bool
	applied    uint64

	started uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

func newSession(epoch uint64, slot string, surface Surface, source DataSource, target int, rangeID string) *Session {
	p := profile.Resolve(rangeID)
	return &Session{
		ID:      fmt.Sprintf("%s:%d", slot, epoch),
		Slot:    slot,
		Target:  target,
		Range:   p.ID,
		Profile: p,
		Epoch:   epoch,
		zoom:    zoom.New(p.ZoomWheelSpeed),
		surface: surface,
		source:  source,
	}
}

// IsZoomActive сообщает поверхности, разрешены ли панорамирование и масштабирование.
// Не берет блокировку сессии, поверхность может вызывать его из любого метода
func (s *Session) IsZoomActive() bool {
	return s.zoomActive.Load()
}

// render строит и отрисовывает начальную серию
func (s *Session) render(raw []models.RawSample) {
	u := series.Compute(raw, s.Profile)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.setPoints(u.Data)
	u.View = s.zoom.View()
	u.PointRadius = zoom.PointRadius(len(u.Data), u.View.Span())
	s.surface.Render(series.BuildConfig(s.Target, s.Profile, u), u.View, s)
	metrics.BucketsPerSeries.Observe(float64(len(u.Data)))
}

// setPoints вызывается под s.mu
func (s *Session) setPoints(points []models.Point) {
	s.points = points
	if lo, hi, ok := series.Extent(points); ok {
		s.zoom.SetExtent(lo, hi)
	} else {
		s.zoom.SetExtent(0, 0)
	}
}

// start запускает цикл обновления, если есть цель и положительный интервал
func (s *Session) start() bool {
	interval := s.Profile.RefreshInterval
	if s.Target <= 0 || interval <= 0 || s.source == nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, interval)
	return true
}

// run цикл обновления по таймеру
func (s *Session) run(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seq := atomic.AddUint64(&s.started, 1)
			go s.refresh(ctx, seq)
		}
	}
}

// refresh один цикл: запрос, пересчет, замена серии целиком
func (s *Session) refresh(ctx context.Context, seq uint64) {
	start := time.Now()
	raw, err := s.source.Fetch(ctx, s.Target, s.Range)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Session %s: refresh fetch failed: %v", s.ID, err)
		}
		metrics.RefreshCycles.WithLabelValues(OutcomeFailed).Inc()
		return
	}

	u := series.Compute(raw, s.Profile)
	if len(u.Data) == 0 {
		metrics.RefreshCycles.WithLabelValues(OutcomeEmpty).Inc()
		return
	}

	if !s.apply(seq, u) {
		metrics.RefreshCycles.WithLabelValues(OutcomeDiscarded).Inc()
		return
	}
	metrics.RefreshCycles.WithLabelValues(OutcomeApplied).Inc()
	metrics.BucketsPerSeries.Observe(float64(len(u.Data)))
}

// apply заменяет серию, если сессия открыта и более новый цикл еще не применен
func (s *Session) apply(seq uint64, u models.SeriesUpdate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || seq <= s.applied {
		return false
	}
	s.applied = seq

	s.setPoints(u.Data)
	u.View = s.zoom.View()
	u.PointRadius = zoom.PointRadius(len(u.Data), u.View.Span())
	s.surface.Update(u)
	return true
}

// Surface возвращает поверхность отрисовки сессии
func (s *Session) Surface() Surface {
	return s.surface
}

// Points возвращает текущую отрисованную серию
func (s *Session) Points() []models.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points
}

// Closed сообщает, закрыта ли сессия
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close останавливает таймер и отменяет запросы в полете.
// После возврата результаты старых запросов не применяются
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}
