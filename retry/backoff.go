package retry

import (
	"context"
	"math"
	"time"
)

// Backoff calculates the pause between attempts. Pauses are taken from the
// overall budget, so they are clamped to whatever is left of it.
type Backoff interface {
	// Delay returns the pause after the given failed attempt (1-based).
	Delay(attempt int) time.Duration
}

// ConstBackoff pauses for the same duration after every failed attempt.
type ConstBackoff time.Duration

// Delay implements Backoff.
func (c ConstBackoff) Delay(int) time.Duration {
	return time.Duration(c)
}

// ExpBackoff grows the pause exponentially: Base * Factor^(attempt-1),
// clamped between Base and Max.
//
// Example:
//
//	backoff := retry.ExpBackoff{
//	    Base:   50 * time.Millisecond,
//	    Max:    1 * time.Second,
//	    Factor: 2.0,
//	}
//	// Pauses: 50ms, 100ms, 200ms, 400ms, 800ms, 1s, 1s, ...
type ExpBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
}

// Delay implements Backoff.
func (b ExpBackoff) Delay(attempt int) time.Duration {
	f := float64(b.Base) * math.Pow(b.Factor, float64(max(attempt-1, 0)))

	switch {
	case f > float64(b.Max):
		return b.Max
	case f < float64(b.Base):
		return b.Base
	default:
		return time.Duration(f)
	}
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
