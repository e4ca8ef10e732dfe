package retry

import (
	"time"

	"github.com/amp-labs/amp-timebox/attempt"
)

// DefaultGracePerAttempt is added to the overall budget for every attempt
// when no explicit overall timeout is configured.
const DefaultGracePerAttempt = 500 * time.Millisecond

// DefaultOverall computes the overall budget used when none is configured:
// attempts × perAttempt + grace. A negative grace means the default of
// DefaultGracePerAttempt × attempts.
func DefaultOverall(attempts int, perAttempt, grace time.Duration) time.Duration {
	if grace < 0 {
		grace = DefaultGracePerAttempt * time.Duration(attempts)
	}

	return time.Duration(attempts)*perAttempt + grace
}

// TimeBudget tracks the per-attempt and overall deadlines of a run. The
// stopwatch starts lazily on the first attempt and is read through the
// monotonic clock, so elapsed time never decreases.
//
// A TimeBudget is owned by a single run and is not safe for concurrent use.
type TimeBudget struct {
	// PerAttempt is the configured window for a single attempt.
	PerAttempt time.Duration
	// Overall is the cumulative limit across all attempts.
	Overall time.Duration
	// Enforced is false when timing enforcement is disabled. An unenforced
	// budget never runs out and hands out Unbounded windows.
	Enforced bool

	start   time.Time
	started bool
	last    time.Duration
}

// NewTimeBudget creates an unstarted budget.
func NewTimeBudget(perAttempt, overall time.Duration, enforced bool) *TimeBudget {
	return &TimeBudget{
		PerAttempt: perAttempt,
		Overall:    overall,
		Enforced:   enforced,
	}
}

// Start starts the stopwatch. Calling it again has no effect.
func (b *TimeBudget) Start() {
	if b.started {
		return
	}

	b.start = time.Now()
	b.started = true
}

// Started reports whether the stopwatch is running.
func (b *TimeBudget) Started() bool {
	return b.started
}

// Elapsed returns the time since Start, or zero before it.
func (b *TimeBudget) Elapsed() time.Duration {
	if !b.started {
		return 0
	}

	elapsed := time.Since(b.start)
	if elapsed < b.last {
		elapsed = b.last
	}

	b.last = elapsed

	return elapsed
}

// Remaining returns what is left of the overall budget, never negative.
func (b *TimeBudget) Remaining() time.Duration {
	if !b.Enforced {
		return attempt.Unbounded
	}

	return max(b.Overall-b.Elapsed(), 0)
}

// Next returns the window for the next attempt: the per-attempt limit,
// shrunk to whatever is left of the overall budget.
func (b *TimeBudget) Next() time.Duration {
	if !b.Enforced {
		return attempt.Unbounded
	}

	return min(b.PerAttempt, b.Remaining())
}

// Exhausted reports whether the overall budget has been spent.
func (b *TimeBudget) Exhausted() bool {
	if !b.Enforced {
		return false
	}

	return b.Elapsed() >= b.Overall
}
