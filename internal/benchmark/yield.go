package benchmark

import (
	"context"
	"math"
	"runtime"
)

// Yielder is a cooperative yield point honored between trials.
type Yielder interface {
	Yield(ctx context.Context, done, total int) error
}

// YieldFunc adapts a function to Yielder.
type YieldFunc func(ctx context.Context, done, total int) error

func (f YieldFunc) Yield(ctx context.Context, done, total int) error {
	return f(ctx, done, total)
}

// GoschedYielder reports progress, gives up the processor and then checks
// the context.
func GoschedYielder(progress func(done, total int)) Yielder {
	return YieldFunc(func(ctx context.Context, done, total int) error {
		if progress != nil {
			progress(done, total)
		}
		runtime.Gosched()
		return ctx.Err()
	})
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
