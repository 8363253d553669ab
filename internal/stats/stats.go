// Package stats turns 2-D projections into per-group confidence envelopes and
// supplies the deterministic fallback layout used when a projection is unusable.
package stats

import (
	"math"
	"sort"

	"github.com/mwiater/aletheia/internal/engine"
)

const (
	// EnvelopeSigma scales the square root of each eigenvalue into an ellipse radius.
	EnvelopeSigma = 2.0
	// GroupCount is the number of groups in a 4x4 puzzle.
	GroupCount = 4
	// PuzzleSize is the number of points expected from a complete projection.
	PuzzleSize = 16

	spreadEpsilon = 1e-6
	fallbackSeedX = 0x9e3779b1
	fallbackSeedY = 0x85ebca6b
)

// Envelope is a rotated ellipse summarizing one group's spread.
type Envelope struct {
	CenterX    float64 `json:"cx"`
	CenterY    float64 `json:"cy"`
	RadiusX    float64 `json:"rx"`
	RadiusY    float64 `json:"ry"`
	Angle      float64 `json:"angle"`
	ColorIndex int     `json:"colorIndex"`
}

// Eigen2x2 decomposes the symmetric matrix [[a b] [b c]]. l1 >= l2 and the
// angle of the l1 axis lies in [-pi/2, pi/2].
func Eigen2x2(a, b, c float64) (l1, l2, angle float64) {
	trace := a + c
	det := a*c - b*b
	term := math.Sqrt(math.Max(0, trace*trace/4-det))
	l1 = trace/2 + term
	l2 = trace/2 - term
	angle = 0.5 * math.Atan2(2*b, a-c)
	return l1, l2, angle
}

// ComputeEnvelopes returns one envelope per group with at least two points.
// Groups whose radii are not finite and strictly positive are skipped.
// Non-finite points are dropped before any statistic is computed.
func ComputeEnvelopes(points []engine.RenderPoint) []Envelope {
	var groups [GroupCount][]engine.RenderPoint
	for _, p := range FiniteOnly(points) {
		g := p.GroupIndex()
		groups[g] = append(groups[g], p)
	}

	var envelopes []Envelope
	for idx, members := range groups {
		if len(members) < 2 {
			continue
		}
		n := float64(len(members))
		var sumX, sumY float64
		for _, p := range members {
			sumX += p.X
			sumY += p.Y
		}
		meanX, meanY := sumX/n, sumY/n

		var covXX, covYY, covXY float64
		for _, p := range members {
			dx, dy := p.X-meanX, p.Y-meanY
			covXX += dx * dx
			covYY += dy * dy
			covXY += dx * dy
		}
		denom := math.Max(1, n-1)
		covXX /= denom
		covYY /= denom
		covXY /= denom

		l1, l2, angle := Eigen2x2(covXX, covXY, covYY)
		rx := math.Sqrt(math.Max(0, l1)) * EnvelopeSigma
		ry := math.Sqrt(math.Max(0, l2)) * EnvelopeSigma
		if !finite(rx) || !finite(ry) || rx <= 0 || ry <= 0 {
			continue
		}
		envelopes = append(envelopes, Envelope{
			CenterX:    meanX,
			CenterY:    meanY,
			RadiusX:    rx,
			RadiusY:    ry,
			Angle:      angle,
			ColorIndex: idx,
		})
	}
	return envelopes
}

// FiniteOnly returns the points whose coordinates are both finite.
func FiniteOnly(points []engine.RenderPoint) []engine.RenderPoint {
	out := make([]engine.RenderPoint, 0, len(points))
	for _, p := range points {
		if finite(p.X) && finite(p.Y) {
			out = append(out, p)
		}
	}
	return out
}

// HasSpread reports whether the points are all finite and not coincident.
func HasSpread(points []engine.RenderPoint) bool {
	if len(points) == 0 {
		return false
	}
	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		if !finite(p.X) || !finite(p.Y) {
			return false
		}
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return math.Abs(maxX-minX) > spreadEpsilon || math.Abs(maxY-minY) > spreadEpsilon
}

// NeedsFallback reports whether a projection is missing, the wrong length or degenerate.
func NeedsFallback(points []engine.RenderPoint) bool {
	return len(points) != PuzzleSize || !HasSpread(points)
}

// BuildFallbackProjection places each word at a hash-derived position in
// [-1,1)^2. Group membership comes from groups, falling back to index mod 4.
func BuildFallbackProjection(words []string, groups [][]string, groupConfidence []float64) []engine.RenderPoint {
	if len(words) == 0 {
		return nil
	}
	membership := make(map[string]int)
	for idx, group := range groups {
		for _, word := range group {
			membership[word] = idx
		}
	}

	points := make([]engine.RenderPoint, 0, len(words))
	for idx, word := range words {
		group, ok := membership[word]
		if !ok {
			group = idx % GroupCount
		}
		var confidence float64
		if group >= 0 && group < len(groupConfidence) && finite(groupConfidence[group]) {
			confidence = groupConfidence[group]
		}
		points = append(points, engine.RenderPoint{
			Word:       word,
			X:          hashUnit(word, fallbackSeedX)*2 - 1,
			Y:          hashUnit(word, fallbackSeedY)*2 - 1,
			Group:      group,
			Confidence: confidence,
		})
	}
	return points
}

// hashUnit maps word to [0,1) with a seeded 32-bit FNV-1a.
func hashUnit(word string, seed uint32) float64 {
	hash := uint32(2166136261) ^ seed
	for _, r := range word {
		hash ^= uint32(r)
		hash *= 16777619
	}
	return float64(hash) / 4294967296
}

// Percentile reads pct from an ascending sample. The index is
// floor(pct/100*n) clamped to the last element.
func Percentile(sorted []float64, pct float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Floor(pct / 100 * float64(n)))
	if idx > n-1 {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Percentiles sorts a copy of samples and returns p50, p90 and p99.
func Percentiles(samples []float64) (p50, p90, p99 float64) {
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	return Percentile(sorted, 50), Percentile(sorted, 90), Percentile(sorted, 99)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
