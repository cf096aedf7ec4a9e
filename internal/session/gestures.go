package session

import (
	"log"

	"latency-chart-service/internal/metrics"
	"latency-chart-service/internal/zoom"
)

// gesture выполняет обработчик жеста изолированно: паника логируется
// и не прерывает работу сессии
func (s *Session) gesture(name string, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Session %s: %s gesture failed: %v", s.ID, name, r)
			metrics.GesturePanics.WithLabelValues(name).Inc()
			ok = false
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if !fn() {
		return false
	}

	view := s.zoom.View()
	s.surface.SetView(view, zoom.PointRadius(len(s.points), view.Span()))
	return true
}

// ToggleZoom переключает режим масштабирования и возвращает новое состояние
func (s *Session) ToggleZoom() bool {
	s.gesture("toggle", func() bool {
		s.zoomActive.Store(s.zoom.Toggle())
		return true
	})
	return s.IsZoomActive()
}

// Pan сдвигает видимое окно на deltaMs
func (s *Session) Pan(deltaMs int64) bool {
	return s.gesture("pan", func() bool {
		return s.zoom.Pan(deltaMs)
	})
}

// Wheel масштабирует колесом мыши вокруг centerMs
func (s *Session) Wheel(deltaY int, centerMs int64) bool {
	return s.gesture("wheel", func() bool {
		return s.zoom.Wheel(deltaY, centerMs)
	})
}

// Pinch масштабирует жестом щипка вокруг centerMs
func (s *Session) Pinch(scale float64, centerMs int64) bool {
	return s.gesture("pinch", func() bool {
		return s.zoom.Pinch(scale, centerMs)
	})
}

// Gesture выполняет произвольный жест над контроллером масштабирования
func (s *Session) Gesture(name string, fn func(c *zoom.Controller) bool) bool {
	return s.gesture(name, func() bool {
		return fn(s.zoom)
	})
}
