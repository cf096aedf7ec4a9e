package series

import (
	"latency-chart-service/internal/models"
	"latency-chart-service/internal/profile"
	"latency-chart-service/internal/zoom"
)

// Параметры отрисовки, не зависящие от диапазона
const (
	DatasetLabel        = "Response time (ms)"
	DecimationAlgorithm = "lttb"
	ValueSuffix         = " ms"
	FallbackTitle       = "Response time"
	AxisMode            = "x"

	borderWidth      = 2
	tension          = 0.2
	pointHoverRadius = 6
	panThreshold     = 2
)

// Compute прогоняет измерения через весь конвейер для профиля диапазона
func Compute(raw []models.RawSample, p profile.RangeProfile) models.SeriesUpdate {
	points := Aggregate(Build(raw), p.BucketWidth)
	values := Values(points)
	palette := SelectPalette(values)

	var span models.ViewWindow
	if lo, hi, ok := Extent(points); ok {
		span = models.ViewWindow{Min: lo, Max: hi}
	}

	return models.SeriesUpdate{
		Data:              points,
		Palette:           palette,
		Gradient:          GradientStops(palette),
		PointRadius:       zoom.PointRadius(len(points), span.Span()),
		DecimationSamples: p.DecimationSamples,
		Padding:           ComputePadding(values),
		View:              span,
	}
}

// BuildConfig собирает полную конфигурацию графика из профиля и данных серии
func BuildConfig(target int, p profile.RangeProfile, u models.SeriesUpdate) models.ChartConfig {
	cfg := models.ChartConfig{
		Range:  p.ID,
		Target: target,
		Dataset: models.Dataset{
			Label:            DatasetLabel,
			Fill:             true,
			BorderWidth:      borderWidth,
			Tension:          tension,
			Interpolation:    "monotone",
			SpanGaps:         true,
			PointHoverRadius: pointHoverRadius,
		},
		Decimation: models.Decimation{
			Enabled:   true,
			Algorithm: DecimationAlgorithm,
		},
		Zoom: models.ZoomOptions{
			Mode:            AxisMode,
			PanThreshold:    panThreshold,
			WheelSpeed:      p.ZoomWheelSpeed,
			PinchEnabled:    true,
			LimitToOriginal: true,
		},
		XAxis: p.Axis,
		YAxis: models.ValueAxis{
			Position:   "right",
			UnitSuffix: ValueSuffix,
		},
		Tooltip: models.Tooltip{
			TitleFormat:   p.Axis.TooltipFormat,
			FallbackTitle: FallbackTitle,
			ValueSuffix:   ValueSuffix,
		},
	}
	return cfg.Apply(u)
}
