package benchmark

import (
	"context"
	"errors"
	"fmt"

	"github.com/mwiater/aletheia/internal/engine"
)

// StressResult is the engine's adversarial stress report plus the request.
type StressResult struct {
	engine.StressReport
	Count    int  `json:"count"`
	HardMode bool `json:"hardMode"`
}

// Summary renders the one-line result shown next to the stress control.
func (r StressResult) Summary() string {
	return fmt.Sprintf("Worst step: %.2fms | Avg step: %.2fms | Steps: %d", r.WorstMs, r.AvgMs, r.Steps)
}

// RunStressTest clamps count to [1, MaxStressTrials] and runs the engine's
// adversarial routine.
func (h *Harness) RunStressTest(ctx context.Context, count int, hardMode bool) (StressResult, error) {
	if err := ctx.Err(); err != nil {
		return StressResult{}, err
	}
	count = Clamp(count, MaxStressTrials)
	report, err := h.eng.AdversarialStress(count, hardMode)
	if err != nil {
		var engErr *engine.EngineError
		if errors.As(err, &engErr) {
			h.logf("Stress test error: %s", engErr.Message)
		}
		return StressResult{}, err
	}
	h.logf("Adversarial stress: worst %.2fms, avg %.2fms.", report.WorstMs, report.AvgMs)
	return StressResult{StressReport: report, Count: count, HardMode: hardMode}, nil
}
