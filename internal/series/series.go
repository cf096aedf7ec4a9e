// Package series превращает сырые измерения задержки в серию для отрисовки:
// упорядочивание, усреднение по бакетам, выбор цвета по тренду и отступы оси
package series

import (
	"math"
	"sort"
	"time"

	"latency-chart-service/internal/models"
)

// Build сортирует измерения по времени и переводит их в точки (epoch ms, задержка)
func Build(raw []models.RawSample) []models.Point {
	if len(raw) == 0 {
		return []models.Point{}
	}

	sorted := make([]models.RawSample, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	points := make([]models.Point, len(sorted))
	for i, s := range sorted {
		points[i] = models.Point{X: s.Timestamp.UnixMilli(), Y: s.LatencyMs}
	}
	return points
}

// accumulator накапливает сумму и количество значений одного окна
type accumulator struct {
	sum   float64
	count int
	lastX int64
}

// Add добавляет точку в окно
func (a *accumulator) Add(p models.Point) {
	a.sum += p.Y
	a.count++
	a.lastX = p.X
}

// Mean возвращает округленное среднее
func (a *accumulator) Mean() float64 {
	if a.count == 0 {
		return 0
	}
	return math.Round(a.sum / float64(a.count))
}

// AggregateBuckets сворачивает упорядоченные точки в окна ширины width.
// Один проход, пустые окна не порождают бакетов. При width < 1ms результат
// пустой, в отличие от Aggregate, который в этом случае возвращает точки как есть
func AggregateBuckets(points []models.Point, width time.Duration) []models.Bucket {
	w := width.Milliseconds()
	if len(points) == 0 || w <= 0 {
		return []models.Bucket{}
	}

	out := make([]models.Bucket, 0)
	i := 0
	for i < len(points) {
		start := floorDiv(points[i].X, w) * w
		end := start + w

		var acc accumulator
		for i < len(points) && points[i].X < end {
			acc.Add(points[i])
			i++
		}

		out = append(out, models.Bucket{
			Start:   start,
			AnchorX: acc.lastX,
			Value:   acc.Mean(),
			Count:   acc.count,
		})
	}
	return out
}

// Aggregate возвращает серию для отрисовки: по одной точке на бакет,
// X - время последней точки бакета. При width <= 0 точки возвращаются как есть
func Aggregate(points []models.Point, width time.Duration) []models.Point {
	if width.Milliseconds() <= 0 {
		return points
	}

	buckets := AggregateBuckets(points, width)
	out := make([]models.Point, len(buckets))
	for i, b := range buckets {
		out[i] = models.Point{X: b.AnchorX, Y: b.Value}
	}
	return out
}

// Values возвращает значения точек
func Values(points []models.Point) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Y
	}
	return values
}

// Extent возвращает минимальное и максимальное время серии
func Extent(points []models.Point) (min, max int64, ok bool) {
	if len(points) == 0 {
		return 0, 0, false
	}
	return points[0].X, points[len(points)-1].X, true
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
