package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amp-labs/amp-timebox/attempt"
	"github.com/amp-labs/amp-timebox/race"
)

// InProcess runs each attempt in the current process, racing the work
// against a timer. Work that loses the race is abandoned rather than
// stopped: its context is canceled, but nothing waits for it to return.
type InProcess struct{}

var _ attempt.Executor = InProcess{}

// Name implements attempt.Executor.
func (InProcess) Name() string {
	return "in_process"
}

// Execute implements attempt.Executor.
func (InProcess) Execute(ctx context.Context, req attempt.Request) attempt.Record {
	start := time.Now()
	log := attempt.NewLog()

	rec := attempt.Record{Index: req.Index}

	if req.Work == nil {
		rec.Outcome = attempt.Inconclusive
		rec.Err = fmt.Errorf("%w: no work to run", attempt.ErrUnrunnable)

		return rec
	}

	timeout := &attempt.TimeoutError{Index: req.Index, Limit: req.Limit, Cause: attempt.ErrAttemptTimeout}

	res, err := race.Run(attempt.WithLog(ctx, log), req.Limit, req.Work, func() error {
		return timeout
	})

	rec.Elapsed = time.Since(start)
	rec.Logs = log.Lines()

	switch {
	case err != nil:
		rec.Outcome = attempt.Inconclusive
		rec.Err = err
	case res.Tag == race.TagTimeout:
		rec.Outcome = attempt.TimedOut
		rec.Err = res.Value
	case res.Value == nil:
		rec.Outcome = attempt.Passed
	case errors.Is(res.Value, attempt.ErrUnrunnable):
		rec.Outcome = attempt.Inconclusive
		rec.Err = res.Value
	default:
		rec.Outcome = attempt.Failed
		rec.Err = attempt.Fail(res.Value)
	}

	return rec
}
