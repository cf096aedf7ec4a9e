// Package profile сопоставляет выбранный диапазон просмотра с параметрами графика:
// частотой обновления, шириной бакета, целевым числом точек и настройками осей
package profile

import (
	"time"

	"latency-chart-service/internal/models"
)

// DefaultRange диапазон, используемый для неизвестных значений
const DefaultRange = "1d"

// RangeProfile неизменяемый набор параметров для диапазона
type RangeProfile struct {
	ID                string
	RefreshInterval   time.Duration
	BucketWidth       time.Duration
	DecimationSamples int
	Axis              models.TimeAxis
	ZoomWheelSpeed    float64
	// Window глубина выборки истории для диапазона
	Window time.Duration
}

// RefreshMs возвращает интервал обновления в миллисекундах
func (p RangeProfile) RefreshMs() int64 {
	return p.RefreshInterval.Milliseconds()
}

// BucketMs возвращает ширину бакета в миллисекундах
func (p RangeProfile) BucketMs() int64 {
	return p.BucketWidth.Milliseconds()
}

type entry struct {
	refresh  time.Duration
	bucket   time.Duration
	samples  int
	unit     string
	step     int
	maxTicks int
	window   time.Duration
}

const day = 24 * time.Hour

var order = []string{"1s", "10s", "30s", "1min", "1h", "4h", "1d", "1w", "1m"}

var table = map[string]entry{
	"1s":   {time.Second, time.Second, 30, "millisecond", 200, 8, time.Second},
	"10s":  {2 * time.Second, time.Second, 60, "second", 2, 8, 10 * time.Second},
	"30s":  {2 * time.Second, time.Second, 120, "second", 5, 8, 30 * time.Second},
	"1min": {3 * time.Second, time.Second, 180, "second", 10, 8, time.Minute},
	"1h":   {5 * time.Second, 5 * time.Minute, 240, "minute", 5, 10, time.Hour},
	"4h":   {10 * time.Second, 5 * time.Minute, 360, "minute", 15, 10, 4 * time.Hour},
	"1d":   {15 * time.Second, 2 * time.Hour, 480, "hour", 2, 12, day},
	"1w":   {30 * time.Second, 2 * time.Hour, 700, "day", 1, 10, 7 * day},
	"1m":   {60 * time.Second, 6 * time.Hour, 900, "day", 2, 15, 30 * day},
}

// Resolve возвращает профиль для диапазона. Неизвестный диапазон дает профиль 1d
func Resolve(rangeID string) RangeProfile {
	e, ok := table[rangeID]
	if !ok {
		rangeID = DefaultRange
		e = table[DefaultRange]
	}

	return RangeProfile{
		ID:                rangeID,
		RefreshInterval:   e.refresh,
		BucketWidth:       e.bucket,
		DecimationSamples: e.samples,
		Axis:              timeAxis(rangeID, e),
		ZoomWheelSpeed:    zoomSpeed(rangeID),
		Window:            e.window,
	}
}

// Normalize возвращает известный идентификатор диапазона
func Normalize(rangeID string) string {
	if Known(rangeID) {
		return rangeID
	}
	return DefaultRange
}

// Known сообщает, входит ли диапазон в фиксированный набор
func Known(rangeID string) bool {
	_, ok := table[rangeID]
	return ok
}

// IDs возвращает все диапазоны от меньшего к большему
func IDs() []string {
	out := make([]string, len(order))
	copy(out, order)
	return out
}

// Since возвращает нижнюю границу выборки истории для диапазона
func Since(rangeID string, now time.Time) time.Time {
	return now.Add(-Resolve(rangeID).Window)
}

func timeAxis(rangeID string, e entry) models.TimeAxis {
	hourFormat := "h a"
	if rangeID == "1d" {
		hourFormat = "HH:mm"
	}
	tooltip := "dd MMM HH:mm:ss"
	if e.unit == "millisecond" {
		tooltip = "dd MMM HH:mm:ss.SSS"
	}

	return models.TimeAxis{
		Unit:     e.unit,
		StepSize: e.step,
		MaxTicks: e.maxTicks,
		DisplayFormats: map[string]string{
			"millisecond": "HH:mm:ss.SSS",
			"second":      "HH:mm:ss",
			"minute":      "HH:mm",
			"hour":        hourFormat,
			"day":         "d MMM",
			"week":        "d MMM",
			"month":       "MMM yyyy",
		},
		TooltipFormat: tooltip,
	}
}

// zoomSpeed: диапазоны 10s-1min масштабируются плавнее, 1s идет со скоростью по умолчанию
func zoomSpeed(rangeID string) float64 {
	switch rangeID {
	case "10s", "30s", "1min":
		return 0.04
	case "1h", "4h":
		return 0.06
	default:
		return 0.08
	}
}
