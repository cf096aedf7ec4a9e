package series

import (
	"math"
	"strconv"

	"latency-chart-service/internal/models"
)

var (
	// Improving задержка не растет
	Improving = models.Palette{
		Line:       "#25c17e",
		FillTop:    "rgba(37, 193, 126, 0.2)",
		FillBottom: "rgba(37, 193, 126, 0)",
	}
	// Degrading задержка выросла
	Degrading = models.Palette{
		Line:       "#c62828",
		FillTop:    "rgba(198, 40, 40, 0.22)",
		FillBottom: "rgba(198, 40, 40, 0)",
	}
)

const (
	minPad      = 5
	flatPadRate = 0.1
	spanPadRate = 0.15
)

// SelectPalette сравнивает первое и последнее значение серии.
// Меньше двух значений или first <= last - зеленая схема, иначе красная
func SelectPalette(values []float64) models.Palette {
	if len(values) < 2 {
		return Improving
	}
	if values[0] <= values[len(values)-1] {
		return Improving
	}
	return Degrading
}

// GradientStops вертикальный градиент заливки сверху вниз
func GradientStops(p models.Palette) []models.GradientStop {
	return []models.GradientStop{
		{Offset: 0, Color: p.FillTop},
		{Offset: 1, Color: p.FillBottom},
	}
}

// ComputePadding вычисляет границы оси значений с отступами.
// Нижняя граница не опускается ниже нуля
func ComputePadding(values []float64) models.AxisPadding {
	if len(values) == 0 {
		return models.AxisPadding{}
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	var pad float64
	if lo == hi {
		pad = math.Max(minPad, math.Round(lo*flatPadRate))
	} else {
		pad = math.Max(minPad, math.Round((hi-lo)*spanPadRate))
	}

	return models.AxisPadding{
		Min:   math.Max(0, lo-pad),
		Max:   hi + pad,
		Valid: true,
	}
}

// FormatValue подпись значения в подсказке и на оси
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " ms"
}
