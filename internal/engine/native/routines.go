package native

import (
	"math"
	"sort"
	"time"
)

const (
	maxSpeedTrials  = 500
	maxStressTrials = 200
)

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// solveFrom plays one game against target from a full candidate pool and
// reports the number of guesses and whether it was solved.
func (e *Engine) solveFrom(target packedWord, hardMode bool) (guesses int, won bool) {
	remaining := e.allIndices()
	for turn := 0; turn < maxTurns && len(remaining) > 0; turn++ {
		targets, candidates := e.pools(remaining, hardMode)
		best, _ := e.bestGuessIndex(candidates, targets)
		if best < 0 {
			break
		}
		pattern := computePattern(e.words[best].packed, target)
		guesses++
		if pattern == solved {
			return guesses, true
		}
		remaining = e.filter(remaining, e.words[best].text, patternString(pattern))
	}
	return guesses, false
}

// SpeedTest plays count games against targets spread evenly over the
// dictionary without touching the interactive session.
func (e *Engine) SpeedTest(count int, hardMode bool) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return encode(errorPayload{Error: "Dictionary not loaded"})
	}
	count = clamp(count, 1, maxSpeedTrials)

	latencies := make([]float64, 0, count)
	wins, totalGuesses := 0, 0
	for i := 0; i < count; i++ {
		target := e.words[(i*7919)%len(e.words)].packed
		start := time.Now()
		guesses, won := e.solveFrom(target, hardMode)
		latencies = append(latencies, float64(time.Since(start).Microseconds())/1000)
		if won {
			wins++
			totalGuesses += guesses
		} else {
			totalGuesses += maxTurns
		}
	}
	sort.Float64s(latencies)
	p99 := latencies[min(len(latencies)-1, int(math.Floor(0.99*float64(len(latencies)))))]

	return encode(struct {
		WinRate    float64 `json:"win_rate"`
		AvgGuesses float64 `json:"avg_guesses"`
		P99Ms      float64 `json:"p99_ms"`
	}{
		WinRate:    float64(wins) / float64(count) * 100,
		AvgGuesses: float64(totalGuesses) / float64(count),
		P99Ms:      p99,
	})
}

// AdversarialStress answers every guess with the least informative pattern
// and times each step.
func (e *Engine) AdversarialStress(count int, hardMode bool) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return encode(errorPayload{Error: "Dictionary not loaded"})
	}
	count = clamp(count, 1, maxStressTrials)

	var worst, total float64
	steps := 0
	for i := 0; i < count; i++ {
		remaining := e.allIndices()
		for turn := 0; turn < maxTurns && len(remaining) > 0; turn++ {
			start := time.Now()
			targets, candidates := e.pools(remaining, hardMode)
			best, _ := e.bestGuessIndex(candidates, targets)
			if best < 0 {
				break
			}
			counts := patternCounts(e.words, best, targets)
			pattern := adversarialPattern(&counts)
			remaining = e.filter(remaining, e.words[best].text, patternString(pattern))
			elapsed := float64(time.Since(start).Microseconds()) / 1000

			steps++
			total += elapsed
			worst = math.Max(worst, elapsed)
			if pattern == solved {
				break
			}
		}
	}

	var avg float64
	if steps > 0 {
		avg = total / float64(steps)
	}
	return encode(struct {
		WorstMs float64 `json:"worst_ms"`
		AvgMs   float64 `json:"avg_ms"`
		Steps   int     `json:"steps"`
	}{WorstMs: worst, AvgMs: avg, Steps: steps})
}
