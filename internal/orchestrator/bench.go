package orchestrator

import (
	"context"
	"errors"

	"github.com/mwiater/aletheia/internal/benchmark"
	"github.com/mwiater/aletheia/internal/engine"
)

// ErrBusy is returned when the benchmark control is already running.
var ErrBusy = errors.New("benchmark already running")

// BenchReport bundles a speed run with the scalar/SIMD comparison that
// always follows it.
type BenchReport struct {
	Result benchmark.Result
	Simd   *benchmark.SimdComparison
}

// RunBenchmark plays count games locally, then compares filter throughput.
func (s *Session) RunBenchmark(ctx context.Context, count int) (BenchReport, error) {
	return s.runBench(ctx, func(hard bool) (benchmark.Result, error) {
		return s.harness.RunBenchmark(ctx, count, hard)
	})
}

// RunEngineSpeedTest uses the engine's own speed routine instead of the local loop.
func (s *Session) RunEngineSpeedTest(ctx context.Context, count int) (BenchReport, error) {
	return s.runBench(ctx, func(hard bool) (benchmark.Result, error) {
		return s.harness.RunEngineSpeedTest(ctx, count, hard)
	})
}

func (s *Session) runBench(ctx context.Context, run func(hard bool) (benchmark.Result, error)) (BenchReport, error) {
	if !s.benchTrigger.Acquire() {
		return BenchReport{}, ErrBusy
	}
	defer s.benchTrigger.Release()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setActive(true)
	defer s.setActive(false)
	defer s.syncRemaining()

	result, err := run(s.HardMode())
	if err != nil {
		var engErr *engine.EngineError
		switch {
		case errors.Is(err, benchmark.ErrNoDictionary):
			s.setStatus("Load a dictionary first.")
		case errors.As(err, &engErr):
			s.setStatus("Speed test error: %s", engErr.Message)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.setStatus("Speed test cancelled.")
		default:
			s.feed.Logf("Speed test parse failed.")
			s.setStatus("Speed test parse failed.")
		}
		return BenchReport{}, err
	}
	s.setStatus("%s", result.Summary())

	report := BenchReport{Result: result}
	cmp, err := s.harness.RunSimdComparison(ctx, "", s.SimdPreference())
	if err == nil {
		report.Simd = &cmp
	}
	return report, nil
}

// RunStress runs the adversarial routine. A non-positive count uses 25.
func (s *Session) RunStress(ctx context.Context, count int) (benchmark.StressResult, error) {
	if !s.benchTrigger.Acquire() {
		return benchmark.StressResult{}, ErrBusy
	}
	defer s.benchTrigger.Release()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setActive(true)
	defer s.setActive(false)
	defer s.syncRemaining()

	if count <= 0 {
		count = DefaultStressCount
	}
	result, err := s.harness.RunStressTest(ctx, count, s.HardMode())
	if err != nil {
		var engErr *engine.EngineError
		var parseErr *engine.ParseError
		switch {
		case errors.As(err, &engErr):
			s.setStatus("Stress test failed.")
		case errors.As(err, &parseErr):
			s.feed.Logf("Stress test parse failed.")
			s.setStatus("Stress test parse failed.")
		default:
			s.setStatus("Stress test failed.")
		}
		return benchmark.StressResult{}, err
	}
	s.setStatus("%s", result.Summary())
	return result, nil
}

// RunSimdComparison measures scalar against vectorized filtering for guess.
func (s *Session) RunSimdComparison(ctx context.Context, guess string) (benchmark.SimdComparison, error) {
	if !s.benchTrigger.Acquire() {
		return benchmark.SimdComparison{}, ErrBusy
	}
	defer s.benchTrigger.Release()
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.syncRemaining()
	return s.harness.RunSimdComparison(ctx, guess, s.SimdPreference())
}

// BenchTriggerEnabled reports whether the benchmark controls accept input.
func (s *Session) BenchTriggerEnabled() bool { return s.benchTrigger.Enabled() }
