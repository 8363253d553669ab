package benchmark

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/mwiater/aletheia/internal/engine"
)

// ErrNoSimdWords is returned when the comparison has no guess to filter with.
var ErrNoSimdWords = errors.New("no valid words for simd benchmark")

// Throughput is one filtering measurement.
type Throughput struct {
	WordsPerMicro float64       `json:"wordsPerMicro"`
	Elapsed       time.Duration `json:"elapsed"`
	Count         int           `json:"count"`
}

// SimdComparison holds the scalar and vectorized measurements.
type SimdComparison struct {
	Guess  string     `json:"guess"`
	Scalar Throughput `json:"scalar"`
	Simd   Throughput `json:"simd"`
}

// RunSimdComparison filters the full candidate pool with guess once in
// scalar mode and once vectorized, then restores preferred. An empty guess
// uses the first dictionary word.
func (h *Harness) RunSimdComparison(ctx context.Context, guess string, preferred bool) (SimdComparison, error) {
	defer h.eng.SetSimdEnabled(preferred)

	if h.eng.Remaining() <= 0 {
		h.eng.ResetSession()
		if h.eng.Remaining() <= 0 {
			h.logf("Load a dictionary to benchmark SIMD vs scalar.")
			return SimdComparison{}, ErrNoDictionary
		}
	}
	guess = strings.ToLower(strings.TrimSpace(guess))
	if guess == "" {
		if len(h.words) == 0 {
			h.logf("No valid words for SIMD benchmark.")
			return SimdComparison{}, ErrNoSimdWords
		}
		guess = h.words[0]
	}
	if err := h.yielder.Yield(ctx, 0, 2); err != nil {
		return SimdComparison{}, err
	}

	scalar, okScalar := h.measureFilter(false, guess)
	simd, okSimd := h.measureFilter(true, guess)
	h.logf("Wordle session reset for the SIMD benchmark.")
	if !okScalar || !okSimd {
		return SimdComparison{}, engine.ErrNoResult
	}
	h.logf("Throughput scalar: %.2f words/us | SIMD: %.2f words/us", scalar.WordsPerMicro, simd.WordsPerMicro)
	return SimdComparison{Guess: guess, Scalar: scalar, Simd: simd}, nil
}

// measureFilter times one all-green filter over a freshly reset pool. The
// pool is reset again afterwards.
func (h *Harness) measureFilter(simd bool, guess string) (Throughput, bool) {
	h.eng.SetSimdEnabled(simd)
	h.eng.ResetSession()
	before := h.eng.Remaining()
	if before <= 0 {
		return Throughput{}, false
	}
	start := h.now()
	h.eng.ApplyFeedback(guess, engine.SolvedPattern)
	elapsed := h.now().Sub(start)
	h.eng.ResetSession()

	micros := math.Max(0.001, float64(elapsed)/float64(time.Microsecond))
	return Throughput{WordsPerMicro: float64(before) / micros, Elapsed: elapsed, Count: before}, true
}
