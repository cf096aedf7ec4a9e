// Package surface содержит поверхность отрисовки, хранящую последнее состояние графика
package surface

import (
	"sync/atomic"
	"time"

	"latency-chart-service/internal/models"
	"latency-chart-service/internal/session"
)

// Snapshot хранит текущий снимок графика. Каждое изменение собирает новый снимок
// и подменяет указатель целиком. Методы nil *Snapshot ничего не делают
type Snapshot struct {
	current atomic.Pointer[models.ChartSnapshot]
	state   atomic.Value
	now     func() time.Time
}

// Проверка реализации интерфейса при компиляции
var _ session.Surface = (*Snapshot)(nil)

type zoomHolder struct {
	state session.ZoomState
}

// NewSnapshot создает пустую поверхность
func NewSnapshot() *Snapshot {
	return &Snapshot{now: time.Now}
}

// Render задает полную конфигурацию графика
func (s *Snapshot) Render(cfg models.ChartConfig, view models.ViewWindow, state session.ZoomState) {
	if s == nil {
		return
	}
	s.state.Store(zoomHolder{state: state})
	s.current.Store(&models.ChartSnapshot{
		Config:    cfg,
		View:      view,
		UpdatedAt: s.now(),
	})
}

// Update заменяет данные серии, ось времени не меняется
func (s *Snapshot) Update(u models.SeriesUpdate) {
	if s == nil {
		return
	}
	prev := s.current.Load()
	if prev == nil {
		return
	}
	next := *prev
	next.Config = prev.Config.Apply(u)
	next.View = u.View
	next.UpdatedAt = s.now()
	s.current.Store(&next)
}

// SetView задает видимое окно и радиус маркеров
func (s *Snapshot) SetView(view models.ViewWindow, pointRadius int) {
	if s == nil {
		return
	}
	prev := s.current.Load()
	if prev == nil {
		return
	}
	next := *prev
	next.View = view
	next.Config.Dataset.PointRadius = pointRadius
	next.UpdatedAt = s.now()
	s.current.Store(&next)
}

// Current возвращает последний снимок с текущим состоянием режима масштабирования
func (s *Snapshot) Current() (models.ChartSnapshot, bool) {
	if s == nil {
		return models.ChartSnapshot{}, false
	}
	cur := s.current.Load()
	if cur == nil {
		return models.ChartSnapshot{}, false
	}
	out := *cur
	if h, ok := s.state.Load().(zoomHolder); ok && h.state != nil {
		out.ZoomActive = h.state.IsZoomActive()
	}
	return out, true
}
