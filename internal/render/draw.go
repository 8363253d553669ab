// Package render rasterizes group projections and pattern histograms to PNG.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"github.com/mwiater/aletheia/internal/engine"
	"github.com/mwiater/aletheia/internal/stats"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	marginRatio   = 0.08
	minSpan       = 1e-6
	envelopeAlpha = 0.55
	backgroundHex = "#0b1220"
	labelHex      = "#e2e8f0"
	ellipseSteps  = 72
)

// DefaultColors are the group colors, indexed by RenderPoint.Group.
var DefaultColors = []string{"#fbbf24", "#22c55e", "#3b82f6", "#a855f7"}

// Frame is the drawing target geometry. Width and Height are logical pixels.
type Frame struct {
	Width  int
	Height int
	DPR    float64
	Colors []string
}

// PixelSize returns the raster size after applying the device pixel ratio.
func (f Frame) PixelSize() (int, int) {
	dpr := f.dpr()
	w := int(math.Round(float64(f.Width) * dpr))
	h := int(math.Round(float64(f.Height) * dpr))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func (f Frame) dpr() float64 {
	if f.DPR <= 0 || math.IsNaN(f.DPR) || math.IsInf(f.DPR, 0) {
		return 1
	}
	return f.DPR
}

func (f Frame) color(index int) drawing.Color {
	colors := f.Colors
	if len(colors) == 0 {
		colors = DefaultColors
	}
	if index < 0 || index >= len(colors) {
		index = 0
	}
	return parseHex(colors[index])
}

func parseHex(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(strings.TrimSpace(hex), "#"))
}

// viewport maps data coordinates into the padded pixel rectangle.
type viewport struct {
	minX, minY     float64
	scaleX, scaleY float64
	pad            float64
	height         float64
}

func (v viewport) project(x, y float64) (float64, float64) {
	px := v.pad + (x-v.minX)*v.scaleX
	py := v.height - v.pad - (y-v.minY)*v.scaleY
	return px, py
}

// newViewport computes the bounding box of finite points widened by an 8%
// margin per axis. It reports false when there is nothing to draw.
func newViewport(points []engine.RenderPoint, width, height int, dpr float64) (viewport, bool) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			continue
		}
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	if math.IsInf(minX, 1) {
		return viewport{}, false
	}
	spanX := math.Max(minSpan, maxX-minX)
	spanY := math.Max(minSpan, maxY-minY)
	minX -= spanX * marginRatio
	maxX += spanX * marginRatio
	minY -= spanY * marginRatio
	maxY += spanY * marginRatio

	pad := 10 * dpr
	innerW := math.Max(1, float64(width)-2*pad)
	innerH := math.Max(1, float64(height)-2*pad)
	return viewport{
		minX:   minX,
		minY:   minY,
		scaleX: innerW / math.Max(minSpan, maxX-minX),
		scaleY: innerH / math.Max(minSpan, maxY-minY),
		pad:    pad,
		height: float64(height),
	}, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Draw rasterizes points and envelopes into a new image. An empty point set
// yields a cleared background.
func Draw(frame Frame, points []engine.RenderPoint, envelopes []stats.Envelope) *image.RGBA {
	width, height := frame.PixelSize()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(parseHex(backgroundHex)), image.Point{}, draw.Src)

	dpr := frame.dpr()
	vp, ok := newViewport(points, width, height, dpr)
	if !ok {
		return img
	}

	gc, err := drawing.NewRasterGraphicContext(img)
	if err != nil {
		return img
	}

	gc.SetLineWidth(math.Max(1, 1.4*dpr))
	for _, env := range envelopes {
		drawEnvelope(gc, vp, env, frame.color(env.ColorIndex))
	}

	radius := 3 * dpr
	for _, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			continue
		}
		px, py := vp.project(p.X, p.Y)
		gc.SetFillColor(frame.color(p.GroupIndex()))
		gc.BeginPath()
		gc.MoveTo(px+radius, py)
		gc.ArcTo(px, py, radius, radius, 0, 2*math.Pi)
		gc.Close()
		gc.Fill()
	}

	drawLabels(img, vp, points, radius)
	return img
}

// drawEnvelope outlines a rotated ellipse. Radii are scaled per axis and the
// rotation is negated because the y axis is flipped.
func drawEnvelope(gc *drawing.RasterGraphicContext, vp viewport, env stats.Envelope, col drawing.Color) {
	if !finite(env.CenterX) || !finite(env.CenterY) || !finite(env.RadiusX) || !finite(env.RadiusY) || !finite(env.Angle) {
		return
	}
	cx, cy := vp.project(env.CenterX, env.CenterY)
	rx := math.Max(1, env.RadiusX*vp.scaleX)
	ry := math.Max(1, env.RadiusY*vp.scaleY)
	sin, cos := math.Sincos(-env.Angle)

	gc.SetStrokeColor(col.WithAlpha(uint8(math.Round(envelopeAlpha * 255))))
	gc.BeginPath()
	for i := 0; i <= ellipseSteps; i++ {
		t := 2 * math.Pi * float64(i) / ellipseSteps
		ex, ey := rx*math.Cos(t), ry*math.Sin(t)
		x := cx + ex*cos - ey*sin
		y := cy + ex*sin + ey*cos
		if i == 0 {
			gc.MoveTo(x, y)
			continue
		}
		gc.LineTo(x, y)
	}
	gc.Close()
	gc.Stroke()
}

func drawLabels(img *image.RGBA, vp viewport, points []engine.RenderPoint, radius float64) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(color.Color(parseHex(labelHex))), Face: face}
	for _, p := range points {
		if p.Word == "" || !finite(p.X) || !finite(p.Y) {
			continue
		}
		px, py := vp.project(p.X, p.Y)
		drawer.Dot = fixed.Point26_6{
			X: fixed.I(int(math.Round(px + radius + 2))),
			Y: fixed.I(int(math.Round(py + radius))),
		}
		drawer.DrawString(p.Word)
	}
}
