// Package zoom реализует переключаемый режим панорамирования и масштабирования
// по оси времени и правило показа маркеров точек
package zoom

import (
	"math"
	"time"

	"latency-chart-service/internal/models"
)

const (
	// MarkerWindow окно, начиная с которого маркеры точек скрываются
	MarkerWindow = 2 * time.Minute
	// SparseRadius радиус маркеров для серии из 1-2 точек
	SparseRadius = 3
	// ZoomedRadius радиус маркеров в узком окне
	ZoomedRadius = 2

	minWindowMs = 1
)

// ShowPoints: маркеры скрыты, если точек больше двух и видимое окно шире двух минут
func ShowPoints(count int, span time.Duration) bool {
	return count <= 2 || span <= MarkerWindow
}

// PointRadius радиус маркеров точек для числа точек и видимого окна
func PointRadius(count int, span time.Duration) int {
	switch {
	case count <= 2:
		return SparseRadius
	case ShowPoints(count, span):
		return ZoomedRadius
	default:
		return 0
	}
}

// Controller состояние режима масштабирования одного графика.
// Не потокобезопасен, владелец - сессия
type Controller struct {
	active  bool
	speed   float64
	extent  models.ViewWindow
	view    models.ViewWindow
	clipped bool
}

// New создает контроллер в неактивном состоянии
func New(wheelSpeed float64) *Controller {
	return &Controller{speed: wheelSpeed}
}

// IsActive сообщает, разрешены ли панорамирование и масштабирование
func (c *Controller) IsActive() bool {
	return c.active
}

// Toggle переключает режим. При выключении окно просмотра сбрасывается на полный диапазон
func (c *Controller) Toggle() bool {
	c.active = !c.active
	if !c.active {
		c.Reset()
	}
	return c.active
}

// Reset возвращает полный, необрезанный диапазон
func (c *Controller) Reset() {
	c.clipped = false
	c.view = c.extent
}

// SetExtent задает исходный диапазон данных. Обрезанное окно сжимается в новые границы
func (c *Controller) SetExtent(min, max int64) {
	if max < min {
		min, max = max, min
	}
	c.extent = models.ViewWindow{Min: min, Max: max}
	if !c.clipped {
		c.view = c.extent
		return
	}
	c.setView(c.view.Min, c.view.Max)
}

// Extent возвращает исходный диапазон данных
func (c *Controller) Extent() models.ViewWindow {
	return c.extent
}

// View возвращает текущее видимое окно
func (c *Controller) View() models.ViewWindow {
	if !c.clipped {
		return c.extent
	}
	v := c.view
	v.Clipped = true
	return v
}

// VisibleSpan ширина видимого окна
func (c *Controller) VisibleSpan() time.Duration {
	return c.View().Span()
}

// Pan сдвигает окно на deltaMs, не выходя за исходный диапазон
func (c *Controller) Pan(deltaMs int64) bool {
	if !c.active || !c.clipped {
		return false
	}
	c.setView(c.view.Min+deltaMs, c.view.Max+deltaMs)
	return true
}

// Wheel масштабирует колесом: deltaY < 0 приближает, deltaY > 0 отдаляет
func (c *Controller) Wheel(deltaY int, centerMs int64) bool {
	if !c.active || deltaY == 0 {
		return false
	}
	factor := 1 - c.speed
	if deltaY > 0 {
		factor = 1 / (1 - c.speed)
	}
	return c.zoomAround(factor, centerMs)
}

// Pinch масштабирует жестом: scale > 1 приближает
func (c *Controller) Pinch(scale float64, centerMs int64) bool {
	if !c.active || !(scale > 0) || math.IsInf(scale, 0) {
		return false
	}
	return c.zoomAround(1/scale, centerMs)
}

// zoomAround меняет ширину окна в factor раз относительно centerMs
func (c *Controller) zoomAround(factor float64, centerMs int64) bool {
	full := c.extent.Max - c.extent.Min
	if full <= 0 {
		return false
	}

	if math.IsNaN(factor) || factor <= 0 {
		return false
	}
	if math.IsInf(factor, 1) {
		c.Reset()
		return true
	}

	cur := c.View()
	width := cur.Max - cur.Min
	// ширина сравнивается до перевода в int64, иначе большой factor переполняет
	scaled := float64(width) * factor
	if scaled >= float64(full) {
		c.Reset()
		return true
	}
	newWidth := int64(math.Round(scaled))
	if newWidth < minWindowMs {
		newWidth = minWindowMs
	}
	if newWidth >= full {
		c.Reset()
		return true
	}

	if centerMs < cur.Min || centerMs > cur.Max {
		centerMs = cur.Min + width/2
	}
	ratio := 0.5
	if width > 0 {
		ratio = float64(centerMs-cur.Min) / float64(width)
	}
	min := centerMs - int64(math.Round(float64(newWidth)*ratio))
	c.clipped = true
	c.setView(min, min+newWidth)
	return true
}

// setView ограничивает окно исходным диапазоном
func (c *Controller) setView(min, max int64) {
	width := max - min
	full := c.extent.Max - c.extent.Min
	if width >= full {
		c.Reset()
		return
	}
	if min < c.extent.Min {
		min = c.extent.Min
	}
	if min+width > c.extent.Max {
		min = c.extent.Max - width
	}
	c.view = models.ViewWindow{Min: min, Max: min + width}
}
