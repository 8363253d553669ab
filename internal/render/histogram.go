package render

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
)

const (
	sparklineHex   = "#f59e0b"
	sparklineAlpha = 0.85
)

// ErrFlatHistogram is returned when every bucket holds the same count.
var ErrFlatHistogram = errors.New("histogram has no variation to plot")

// RenderHistogram writes the pattern histogram as a PNG sparkline.
func RenderHistogram(w io.Writer, counts []int, width, height int, dpr float64) error {
	if len(counts) < 2 {
		return ErrFlatHistogram
	}
	if dpr <= 0 {
		dpr = 1
	}
	xs := make([]float64, len(counts))
	ys := make([]float64, len(counts))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, c := range counts {
		xs[i] = float64(i)
		ys[i] = float64(c)
		lo = math.Min(lo, ys[i])
		hi = math.Max(hi, ys[i])
	}
	if lo == hi {
		return ErrFlatHistogram
	}

	pad := int(math.Round(4 * dpr))
	stroke := parseHex(sparklineHex).WithAlpha(uint8(math.Round(sparklineAlpha * 255)))
	ch := chart.Chart{
		Width:  int(math.Round(float64(width) * dpr)),
		Height: int(math.Round(float64(height) * dpr)),
		Background: chart.Style{
			FillColor: parseHex(backgroundHex),
			Padding:   chart.Box{Top: pad, Left: pad, Right: pad, Bottom: pad},
		},
		Canvas: chart.Style{FillColor: parseHex(backgroundHex)},
		XAxis:  chart.XAxis{Style: chart.Hidden()},
		YAxis:  chart.YAxis{Style: chart.Hidden(), Range: &chart.ContinuousRange{Min: 0, Max: hi}},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "patterns",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: stroke,
					StrokeWidth: math.Max(1, 1.2*dpr),
					FillColor:   stroke.WithAlpha(48),
				},
			},
		},
	}
	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render histogram: %w", err)
	}
	return nil
}
