// internal/benchmark/benchmark.go
// Package benchmark drives repeated solve cycles against the engine and
// reports win rate, guess counts and latency percentiles.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/mwiater/aletheia/internal/engine"
	"github.com/mwiater/aletheia/internal/flagstore"
	"github.com/mwiater/aletheia/internal/logging"
	"github.com/mwiater/aletheia/internal/stats"
)

const (
	// MaxTrials bounds RunBenchmark and RunEngineSpeedTest.
	MaxTrials = 500
	// MaxStressTrials bounds RunStressTest.
	MaxStressTrials = 200
	// DefaultYieldEvery is the number of trials between yield points.
	DefaultYieldEvery = 20

	maxTurns = 6
)

// ErrNoDictionary is returned when there are no candidate targets to play.
var ErrNoDictionary = errors.New("no dictionary loaded")

// Engine is the slice of the engine adapter the harness drives.
type Engine interface {
	ResetSession()
	Remaining() int
	BestGuess(hardMode bool) (engine.Guess, error)
	ComputePattern(guess, target string) (string, error)
	ApplyFeedback(guess, pattern string) int
	SimdEnabled() bool
	SetSimdEnabled(enabled bool)
	SpeedTest(count int, hardMode bool) (engine.SpeedReport, error)
	AdversarialStress(count int, hardMode bool) (engine.StressReport, error)
}

// Result is one benchmark run.
type Result struct {
	WinRatePercent float64   `json:"winRatePercent"`
	AvgGuesses     float64   `json:"avgGuesses"`
	P50Ms          float64   `json:"p50Ms"`
	P90Ms          float64   `json:"p90Ms"`
	P99Ms          float64   `json:"p99Ms"`
	SampleCount    int       `json:"sampleCount"`
	HardMode       bool      `json:"hardMode"`
	Threaded       bool      `json:"threaded"`
	Source         string    `json:"source"`
	Latencies      []float64 `json:"latencies,omitempty"`
	// Baseline comparison, set only for threaded runs with a stored baseline.
	BaselineDeltaMs  *float64 `json:"baselineDeltaMs,omitempty"`
	BaselineDeltaPct *float64 `json:"baselineDeltaPct,omitempty"`
}

// Summary renders the one-line result shown next to the benchmark control.
func (r Result) Summary() string {
	return fmt.Sprintf("Win rate: %.1f%% | Avg guesses: %.2f | P99: %.2fms", r.WinRatePercent, r.AvgGuesses, r.P99Ms)
}

// Options configure a Harness. Zero values fall back to defaults.
type Options struct {
	Store      *flagstore.Store
	Rand       *rand.Rand
	Yielder    Yielder
	YieldEvery int
	// Threaded marks runs made in multi-threaded mode. Only unthreaded runs
	// save a baseline; threaded runs compare against it.
	Threaded bool
	Logf     func(format string, args ...any)
	Now      func() time.Time
	// DataDir enables result files under <DataDir>/benchmarks.
	DataDir string
}

// Harness runs benchmark trials sequentially against one engine.
type Harness struct {
	eng        Engine
	store      *flagstore.Store
	rng        *rand.Rand
	yielder    Yielder
	yieldEvery int
	threaded   bool
	logf       func(format string, args ...any)
	now        func() time.Time
	dataDir    string
	words      []string
	progress   func(done, total int)
}

func New(eng Engine, opts Options) *Harness {
	h := &Harness{
		eng:        eng,
		store:      opts.Store,
		rng:        opts.Rand,
		yielder:    opts.Yielder,
		yieldEvery: opts.YieldEvery,
		threaded:   opts.Threaded,
		logf:       opts.Logf,
		now:        opts.Now,
		dataDir:    opts.DataDir,
	}
	if h.store == nil {
		h.store = flagstore.New(nil, nil)
	}
	if h.rng == nil {
		h.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if h.yielder == nil {
		h.yielder = GoschedYielder(nil)
	}
	if h.yieldEvery <= 0 {
		h.yieldEvery = DefaultYieldEvery
	}
	if h.logf == nil {
		h.logf = logging.LogEvent
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// SetProgress registers a callback fired at every yield point with the
// number of finished trials.
func (h *Harness) SetProgress(fn func(done, total int)) {
	h.progress = fn
}

func (h *Harness) reportProgress(done, total int) {
	if h.progress != nil {
		h.progress(done, total)
	}
}

// SetWords replaces the candidate target list.
func (h *Harness) SetWords(words []string) {
	h.words = append([]string(nil), words...)
}

func (h *Harness) Words() []string {
	return append([]string(nil), h.words...)
}

// Clamp limits a requested trial count to [1, limit].
func Clamp(count, limit int) int {
	if count < 1 {
		return 1
	}
	if count > limit {
		return limit
	}
	return count
}

func modeLabel(hardMode bool) string {
	if hardMode {
		return "hard"
	}
	return "normal"
}

// RunBenchmark plays count independent games against random targets and
// aggregates the outcome.
func (h *Harness) RunBenchmark(ctx context.Context, count int, hardMode bool) (Result, error) {
	count = Clamp(count, MaxTrials)
	if len(h.words) == 0 {
		return Result{}, ErrNoDictionary
	}
	h.logf("Speed test started (%d games, %s).", count, modeLabel(hardMode))

	latencies := make([]float64, 0, count)
	wins, totalGuesses := 0, 0
	for i := 0; i < count; i++ {
		target := h.words[h.rng.Intn(len(h.words))]
		h.eng.ResetSession()

		start := h.now()
		solved, guesses := h.playTrial(target, hardMode)
		latencies = append(latencies, float64(h.now().Sub(start))/float64(time.Millisecond))

		if solved {
			wins++
			totalGuesses += guesses
		} else {
			totalGuesses += maxTurns
		}

		if (i+1)%h.yieldEvery == 0 {
			h.reportProgress(i+1, count)
			if err := h.yielder.Yield(ctx, i+1, count); err != nil {
				return Result{}, err
			}
		}
	}

	p50, p90, p99 := stats.Percentiles(latencies)
	result := Result{
		WinRatePercent: float64(wins) / float64(count) * 100,
		AvgGuesses:     float64(totalGuesses) / float64(count),
		P50Ms:          p50,
		P90Ms:          p90,
		P99Ms:          p99,
		SampleCount:    count,
		HardMode:       hardMode,
		Threaded:       h.threaded,
		Source:         "local",
		Latencies:      latencies,
	}
	h.finish(&result)
	return result, nil
}

// playTrial runs one game from a fresh session. It stops on a win, on a
// missing guess or pattern, or when the turn budget is spent.
func (h *Harness) playTrial(target string, hardMode bool) (bool, int) {
	guesses := 0
	for step := 0; step < maxTurns; step++ {
		guess, err := h.eng.BestGuess(hardMode)
		if err != nil {
			break
		}
		pattern, err := h.eng.ComputePattern(guess.Word, target)
		if err != nil {
			break
		}
		h.eng.ApplyFeedback(guess.Word, pattern)
		guesses++
		if pattern == engine.SolvedPattern {
			return true, guesses
		}
	}
	return false, guesses
}

// RunEngineSpeedTest delegates the game loop to the engine's own speed
// routine. Only p99 is reported by the engine.
func (h *Harness) RunEngineSpeedTest(ctx context.Context, count int, hardMode bool) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	count = Clamp(count, MaxTrials)
	if h.eng.Remaining() <= 0 && len(h.words) == 0 {
		return Result{}, ErrNoDictionary
	}
	h.logf("Speed test started (%d games, %s).", count, modeLabel(hardMode))
	h.reportProgress(0, count)

	report, err := h.eng.SpeedTest(count, hardMode)
	if err != nil {
		var engErr *engine.EngineError
		if errors.As(err, &engErr) {
			h.logf("Speed test error: %s", engErr.Message)
		}
		return Result{}, err
	}
	result := Result{
		WinRatePercent: report.WinRate,
		AvgGuesses:     report.AvgGuesses,
		P99Ms:          report.P99Ms,
		SampleCount:    count,
		HardMode:       hardMode,
		Threaded:       h.threaded,
		Source:         "engine",
	}
	h.finish(&result)
	return result, nil
}

// finish logs the run, then saves or compares the baseline and writes the
// result file when a data directory is configured.
func (h *Harness) finish(result *Result) {
	h.logf("Speed test done. Win rate %.1f%%, avg guesses %.2f, P99 %.2fms.", result.WinRatePercent, result.AvgGuesses, result.P99Ms)

	if !h.threaded {
		baseline := flagstore.SpeedBaseline{
			Count:     result.SampleCount,
			HardMode:  result.HardMode,
			P99Ms:     result.P99Ms,
			Timestamp: h.now().UnixMilli(),
		}
		if err := h.store.SaveBaseline(baseline); err != nil {
			h.logf("Baseline save failed: %v", err)
		} else {
			h.logf("Saved single-core baseline for comparison.")
		}
	} else {
		h.compareBaseline(result)
	}

	if h.dataDir != "" {
		if err := writeResultsFn(h.dataDir, *result); err != nil {
			h.logf("Benchmark results not written: %v", err)
		}
	}
}

func (h *Harness) compareBaseline(result *Result) {
	baseline, ok, err := h.store.Baseline()
	if err != nil {
		h.logf("Baseline parse failed.")
		return
	}
	if !ok || baseline.P99Ms == 0 || !isFinite(baseline.P99Ms) {
		return
	}
	delta := baseline.P99Ms - result.P99Ms
	pct := delta / baseline.P99Ms * 100
	result.BaselineDeltaMs = &delta
	result.BaselineDeltaPct = &pct
	h.logf("Multi-core delta vs baseline: %.2fms (%.1f%%).", delta, pct)
}
