package robot

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// pauser abstracts context-aware waits so tests can run without real delays.
type pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// timerPauser waits on a timer or the context, whichever fires first.
type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Pacer spaces EDGAR interactions so consecutive fetches keep the configured
// politeness delay. The first wait passes immediately.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a Pacer allowing one interaction per delay. A non-positive
// delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next interaction is allowed or ctx ends.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
