// Package models содержит структуры данных для серий задержек и конфигурации графика
package models

import "time"

// RawSample представляет одно измерение задержки эндпоинта
type RawSample struct {
	URLID     int       `json:"url_id"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs float64   `json:"latency_ms"`
}

// SamplesBatch представляет пакет измерений для массовой загрузки
type SamplesBatch struct {
	Samples []RawSample `json:"samples"`
}

// Point точка серии: X - epoch в миллисекундах, Y - задержка
type Point struct {
	X int64   `json:"x"`
	Y float64 `json:"y"`
}

// Bucket окно фиксированной ширины, свернутое в одно среднее значение
type Bucket struct {
	// Start начало окна, выровненное по ширине бакета
	Start int64 `json:"start"`
	// AnchorX время последней попавшей в окно точки
	AnchorX int64   `json:"anchor_x"`
	Value   float64 `json:"value"`
	Count   int     `json:"count"`
}

// Palette цветовая схема линии и заливки
type Palette struct {
	Line       string `json:"line"`
	FillTop    string `json:"fill_top"`
	FillBottom string `json:"fill_bottom"`
}

// GradientStop точка вертикального градиента заливки
type GradientStop struct {
	Offset float64 `json:"offset"`
	Color  string  `json:"color"`
}

// AxisPadding границы оси значений. Valid=false означает неограниченный диапазон
type AxisPadding struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Valid bool    `json:"valid"`
}

// ViewWindow видимое окно по оси времени
type ViewWindow struct {
	Min     int64 `json:"min"`
	Max     int64 `json:"max"`
	Clipped bool  `json:"clipped"`
}

// Span возвращает ширину окна
func (w ViewWindow) Span() time.Duration {
	if w.Max <= w.Min {
		return 0
	}
	return time.Duration(w.Max-w.Min) * time.Millisecond
}

// SeriesUpdate набор данных, заменяемый целиком при каждом обновлении
type SeriesUpdate struct {
	Data              []Point        `json:"data"`
	Palette           Palette        `json:"palette"`
	Gradient          []GradientStop `json:"gradient"`
	PointRadius       int            `json:"point_radius"`
	DecimationSamples int            `json:"decimation_samples"`
	Padding           AxisPadding    `json:"padding"`
	View              ViewWindow     `json:"view"`
}
