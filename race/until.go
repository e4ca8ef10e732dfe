package race

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/amp-labs/amp-timebox/latch"
)

var (
	// ErrTimedOut is returned by UntilAnyCompletes when the timer wins and no
	// timeout action was supplied.
	ErrTimedOut = errors.New("timed out")

	// ErrPanicRecovered is the base error for panics recovered from racing work.
	ErrPanicRecovered = errors.New("panic recovered")
)

const (
	// TagWork tags the result produced by the work.
	TagWork = "work"
	// TagTimeout tags the result produced by the timer.
	TagTimeout = "timeout"
)

// UntilAnyCompletes races work against a timer of the given limit. Whichever
// finishes first decides the returned error: the work's own error (nil on
// success) or the error produced by timeoutAction.
//
// The work runs with a context that is canceled once the race is decided, but
// it is not awaited: a racer that ignores its context keeps running in the
// background and its result is dropped. A non-positive limit fails at once
// with the timeout error, without starting the work. latch.Forever disables
// the timer.
//
// If timeoutAction is nil, ErrTimedOut is used.
func UntilAnyCompletes(
	ctx context.Context,
	limit time.Duration,
	work func(ctx context.Context) error,
	timeoutAction func() error,
) error {
	res, err := Run(ctx, limit, work, timeoutAction)
	if err != nil {
		return err
	}

	return res.Value
}

// Run is UntilAnyCompletes, but it also reports which racer won through the
// result tag (TagWork or TagTimeout). The returned error is only non-nil when
// the parent context ended before either racer finished.
func Run(
	ctx context.Context,
	limit time.Duration,
	work func(ctx context.Context) error,
	timeoutAction func() error,
) (Result[error], error) {
	if timeoutAction == nil {
		timeoutAction = func() error { return ErrTimedOut }
	}

	if limit <= 0 {
		return Result[error]{Tag: TagTimeout, Value: timeoutAction()}, nil
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	first := NewFirst[error]()

	go func() {
		first.Offer(TagWork, callRecovering(raceCtx, work))
	}()

	if limit != latch.Forever {
		go func() {
			timer := time.NewTimer(limit)
			defer timer.Stop()

			select {
			case <-timer.C:
				first.Offer(TagTimeout, timeoutAction())
			case <-raceCtx.Done():
			}
		}()
	}

	return first.Take(ctx)
}

func callRecovering(ctx context.Context, work func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w\n%s", ErrPanicRecovered, e, debug.Stack())
			} else {
				err = fmt.Errorf("%w: %v\n%s", ErrPanicRecovered, r, debug.Stack())
			}
		}
	}()

	return work(ctx)
}
