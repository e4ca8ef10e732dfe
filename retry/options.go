package retry

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amp-labs/amp-timebox/attempt"
)

const (
	// DefaultAttempts is the number of attempts made when WithAttempts is not used.
	DefaultAttempts = 4
	// DefaultTimeout is the per-attempt window when WithTimeout is not used.
	DefaultTimeout = 30 * time.Second
)

// ErrInvalidConfig is returned for option combinations that cannot run.
var ErrInvalidConfig = errors.New("invalid retry configuration")

// Option is a function that configures a Runner.
type Option func(*options)

type options struct {
	attempts   int
	perAttempt time.Duration
	overall    time.Duration // zero means derived from attempts and grace
	grace      time.Duration // negative means DefaultGracePerAttempt × attempts
	enforce    bool
	executor   attempt.Executor
	backoff    Backoff
	logger     *slog.Logger
	observers  []func(attempt.Record)
	overallSet bool
}

func defaultOptions() options {
	return options{
		attempts:   DefaultAttempts,
		perAttempt: DefaultTimeout,
		grace:      -1,
		enforce:    true,
	}
}

// WithAttempts sets the maximum number of attempts, the first one included.
//
// Example:
//
//	runner, err := retry.NewRunner(retry.WithAttempts(5))
func WithAttempts(n int) Option {
	return func(o *options) {
		o.attempts = n
	}
}

// WithTimeout sets the window allotted to each attempt.
func WithTimeout(perAttempt time.Duration) Option {
	return func(o *options) {
		o.perAttempt = perAttempt
	}
}

// WithOverallTimeout caps the cumulative time spent on all attempts,
// including backoff pauses. Without it the cap is attempts × timeout + grace.
func WithOverallTimeout(d time.Duration) Option {
	return func(o *options) {
		o.overall = d
		o.overallSet = true
	}
}

// WithGrace sets the slack added to the derived overall budget. It has no
// effect when WithOverallTimeout is used.
func WithGrace(d time.Duration) Option {
	return func(o *options) {
		o.grace = d
	}
}

// WithExecutor sets how attempts are run. The default races the work
// against a timer in the current process.
func WithExecutor(e attempt.Executor) Option {
	return func(o *options) {
		o.executor = e
	}
}

// WithEnforceTimings turns deadline enforcement on or off. With enforcement
// off, attempts get an unbounded window and the overall budget never runs out.
func WithEnforceTimings(enforce bool) Option {
	return func(o *options) {
		o.enforce = enforce
	}
}

// WithBackoff configures a pause between attempts.
//
// Example:
//
//	runner, err := retry.NewRunner(retry.WithBackoff(retry.ExpBackoff{
//	    Base:   50 * time.Millisecond,
//	    Max:    time.Second,
//	    Factor: 2.0,
//	}))
func WithBackoff(b Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

// WithLogger sets the logger used for the run. It is also installed in the
// context passed to the work, see logger.Get.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver registers a callback invoked with every finished attempt, in
// order, before the runner decides whether to retry.
func WithObserver(f func(attempt.Record)) Option {
	return func(o *options) {
		if f != nil {
			o.observers = append(o.observers, f)
		}
	}
}

// overallLimit returns the effective overall budget.
func (o *options) overallLimit() time.Duration {
	if o.overallSet {
		return o.overall
	}

	return DefaultOverall(o.attempts, o.perAttempt, o.grace)
}

func (o *options) validate() error {
	switch {
	case o.attempts < 1:
		return fmt.Errorf("%w: attempts must be at least 1, got %d", ErrInvalidConfig, o.attempts)
	case o.perAttempt <= 0:
		return fmt.Errorf("%w: per-attempt timeout must be positive, got %s", ErrInvalidConfig, o.perAttempt)
	case o.overallSet && o.overall <= 0:
		return fmt.Errorf("%w: overall timeout must be positive, got %s", ErrInvalidConfig, o.overall)
	case o.executor == nil:
		return fmt.Errorf("%w: no executor", ErrInvalidConfig)
	default:
		return nil
	}
}
