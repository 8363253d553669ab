package render

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/mwiater/aletheia/internal/engine"
	"github.com/mwiater/aletheia/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePoints() []engine.RenderPoint {
	return []engine.RenderPoint{
		{Word: "alpha", X: -1, Y: -1, Group: 0},
		{Word: "beta", X: 1, Y: -1, Group: 1},
		{Word: "gamma", X: -1, Y: 1, Group: 2},
		{Word: "delta", X: 1, Y: 1, Group: 3},
	}
}

func TestDrawEmptyClearsToBackground(t *testing.T) {
	img := Draw(Frame{Width: 40, Height: 30, DPR: 2}, nil, nil)
	require.Equal(t, 80, img.Bounds().Dx())
	require.Equal(t, 60, img.Bounds().Dy())

	bg := parseHex(backgroundHex)
	for _, pt := range [][2]int{{0, 0}, {40, 30}, {79, 59}} {
		r, g, b, _ := img.At(pt[0], pt[1]).RGBA()
		assert.Equal(t, uint32(bg.R), r>>8)
		assert.Equal(t, uint32(bg.G), g>>8)
		assert.Equal(t, uint32(bg.B), b>>8)
	}
}

func TestDrawPaintsPointsInGroupColors(t *testing.T) {
	frame := Frame{Width: 200, Height: 200, DPR: 1}
	points := samplePoints()
	img := Draw(frame, points, nil)

	w, h := frame.PixelSize()
	vp, ok := newViewport(points, w, h, 1)
	require.True(t, ok)

	for _, p := range points {
		px, py := vp.project(p.X, p.Y)
		want := frame.color(p.Group)
		r, g, b, _ := img.At(int(px), int(py)).RGBA()
		assert.InDelta(t, float64(want.R), float64(r>>8), 40, "red at %s", p.Word)
		assert.InDelta(t, float64(want.G), float64(g>>8), 40, "green at %s", p.Word)
		assert.InDelta(t, float64(want.B), float64(b>>8), 40, "blue at %s", p.Word)
	}
}

func TestViewportFlipsYAxisAndPads(t *testing.T) {
	vp, ok := newViewport(samplePoints(), 100, 100, 1)
	require.True(t, ok)

	x0, y0 := vp.project(-1, -1)
	x1, y1 := vp.project(1, 1)
	assert.Less(t, x0, x1)
	assert.Greater(t, y0, y1)
	assert.Greater(t, x0, 10.0)
	assert.Less(t, x1, 90.0)
}

func TestViewportFloorsTinySpans(t *testing.T) {
	points := []engine.RenderPoint{{Word: "a", X: 0, Y: 2}, {Word: "b", X: 1e-9, Y: 2}}
	vp, ok := newViewport(points, 100, 100, 1)
	require.True(t, ok)

	// The margin is 8% of the floored span, so the two points sit near the middle.
	assert.InDelta(t, 80/0.161e-6, vp.scaleX, 1)
	x0, y0 := vp.project(0, 2)
	x1, _ := vp.project(1e-9, 2)
	assert.InDelta(t, 10+80*0.08/0.161, x0, 1e-6)
	assert.InDelta(t, 10+80*0.081/0.161, x1, 1e-6)
	assert.InDelta(t, 50, y0, 1e-6)
}

func TestViewportSkipsNonFinite(t *testing.T) {
	_, ok := newViewport([]engine.RenderPoint{{X: math.NaN(), Y: 1}}, 10, 10, 1)
	assert.False(t, ok)
}

func TestChannelRendersLatestSize(t *testing.T) {
	surface := &MemorySurface{}
	ch := NewChannel(nil)
	defer ch.Close()

	ch.Init(surface, 100, 80, 1, DefaultColors)
	ch.Resize(50, 40, 2)
	points := samplePoints()
	ch.Render(points, nil)
	points[0].X = 99
	ch.Flush()

	require.Equal(t, 1, surface.Frames())
	img := surface.Last()
	require.NotNil(t, img)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
}

func TestChannelRenderBeforeInitReportsError(t *testing.T) {
	var failures atomic.Int32
	ch := NewChannel(func(err error) {
		assert.ErrorIs(t, err, ErrNotInitialized)
		failures.Add(1)
	})
	ch.Render(samplePoints(), nil)
	ch.Flush()
	ch.Close()
	assert.Equal(t, int32(1), failures.Load())

	// Sends after Close are dropped.
	ch.Render(samplePoints(), nil)
	ch.Flush()
	ch.Close()
}

func TestChannelWithEnvelopesToPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "groups.png")
	ch := NewChannel(func(err error) { t.Errorf("render error: %v", err) })
	ch.Init(PNGSurface{Path: path}, 120, 90, 1, nil)

	points := samplePoints()
	envelopes := []stats.Envelope{{CenterX: 0, CenterY: 0, RadiusX: 1, RadiusY: 0.5, Angle: 0.3, ColorIndex: 2}}
	ch.Render(points, envelopes)
	ch.Close()

	img, err := readPNG(path)
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
}

func TestRenderHistogram(t *testing.T) {
	counts := make([]int, 243)
	counts[0] = 40
	counts[1] = 12
	counts[242] = 1

	var buf bytes.Buffer
	require.NoError(t, RenderHistogram(&buf, counts, 240, 60, 1))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 240, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())
}

func TestRenderHistogramRejectsFlatCounts(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderHistogram(&buf, make([]int, 243), 240, 60, 1), ErrFlatHistogram)
	assert.ErrorIs(t, RenderHistogram(&buf, []int{3}, 240, 60, 1), ErrFlatHistogram)
}

func readPNG(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return png.Decode(file)
}
