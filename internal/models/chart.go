package models

import "time"

// TimeAxis настройки оси времени
type TimeAxis struct {
	Unit           string            `json:"unit"`
	StepSize       int               `json:"step_size"`
	MaxTicks       int               `json:"max_ticks"`
	DisplayFormats map[string]string `json:"display_formats"`
	TooltipFormat  string            `json:"tooltip_format"`
}

// ValueAxis настройки оси значений
type ValueAxis struct {
	Position   string      `json:"position"`
	Padding    AxisPadding `json:"padding"`
	UnitSuffix string      `json:"unit_suffix"`
}

// Dataset единственная серия графика
type Dataset struct {
	Label            string         `json:"label"`
	Data             []Point        `json:"data"`
	Palette          Palette        `json:"palette"`
	Gradient         []GradientStop `json:"gradient"`
	Fill             bool           `json:"fill"`
	BorderWidth      int            `json:"border_width"`
	Tension          float64        `json:"tension"`
	Interpolation    string         `json:"interpolation"`
	SpanGaps         bool           `json:"span_gaps"`
	PointRadius      int            `json:"point_radius"`
	PointHoverRadius int            `json:"point_hover_radius"`
}

// Decimation параметры прореживания точек на стороне отрисовки
type Decimation struct {
	Enabled   bool   `json:"enabled"`
	Algorithm string `json:"algorithm"`
	Samples   int    `json:"samples"`
}

// ZoomOptions параметры панорамирования и масштабирования
type ZoomOptions struct {
	Mode            string  `json:"mode"`
	PanThreshold    int     `json:"pan_threshold"`
	WheelSpeed      float64 `json:"wheel_speed"`
	PinchEnabled    bool    `json:"pinch_enabled"`
	LimitToOriginal bool    `json:"limit_to_original"`
}

// Tooltip параметры подсказки
type Tooltip struct {
	TitleFormat   string `json:"title_format"`
	FallbackTitle string `json:"fallback_title"`
	ValueSuffix   string `json:"value_suffix"`
}

// ChartConfig полная конфигурация отрисовки графика
type ChartConfig struct {
	Range      string      `json:"range"`
	Target     int         `json:"target"`
	Dataset    Dataset     `json:"dataset"`
	Decimation Decimation  `json:"decimation"`
	Zoom       ZoomOptions `json:"zoom"`
	XAxis      TimeAxis    `json:"x_axis"`
	YAxis      ValueAxis   `json:"y_axis"`
	Tooltip    Tooltip     `json:"tooltip"`
}

// Apply возвращает копию конфигурации с замененными данными серии.
// Ось времени не меняется.
func (c ChartConfig) Apply(u SeriesUpdate) ChartConfig {
	c.Dataset.Data = u.Data
	c.Dataset.Palette = u.Palette
	c.Dataset.Gradient = u.Gradient
	c.Dataset.PointRadius = u.PointRadius
	c.Decimation.Samples = u.DecimationSamples
	c.YAxis.Padding = u.Padding
	return c
}

// ChartSnapshot текущее состояние поверхности отрисовки
type ChartSnapshot struct {
	Config     ChartConfig `json:"config"`
	View       ViewWindow  `json:"view"`
	ZoomActive bool        `json:"zoom_active"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
