package components

import (
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/claude-usage-monitor/internal/ui/styles"
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderUsageChart plots window usage percentages against the warning and
// critical thresholds, on a fixed 0-100 scale.
func RenderUsageChart(percentages []float64, warning, critical float64, width, height int, caption string) string {
	if len(percentages) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	width = max(width, 20)
	height = max(height, 3)

	// A single point draws nothing; repeat it so a flat line shows up.
	data := percentages
	if len(data) == 1 {
		data = []float64{data[0], data[0]}
	}

	series := [][]float64{data}
	colors := []asciigraph.AnsiColor{asciigraph.Default}
	if warning > 0 {
		series = append(series, constant(len(data), warning))
		colors = append(colors, asciigraph.Yellow)
	}
	if critical > 0 {
		series = append(series, constant(len(data), critical))
		colors = append(colors, asciigraph.Red)
	}

	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(100),
		asciigraph.Precision(0),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption),
	)
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// RenderSparkline creates a compact inline sparkline chart.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	step := max(float64(len(values))/float64(width), 1)

	var result strings.Builder
	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		val := values[int(float64(i)*step)]
		normalized := int((val / maxVal) * float64(len(sparkChars)-1))
		normalized = min(max(normalized, 0), len(sparkChars)-1)
		result.WriteRune(sparkChars[normalized])
	}
	return result.String()
}

// Deltas returns the positive growth between consecutive values.
func Deltas(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		out = append(out, max(values[i]-values[i-1], 0))
	}
	return out
}
