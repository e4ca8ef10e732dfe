// Package retry runs a unit of work under a time budget: every attempt gets
// a hard window, failed or timed-out attempts are retried, and the total
// time spent never exceeds an overall limit.
//
// Basic usage:
//
//	res := retry.Run(ctx, func(ctx context.Context) error {
//	    return checkService(ctx)
//	}, retry.WithAttempts(3), retry.WithTimeout(2*time.Second))
//	if res.Err != nil {
//	    return res.Err
//	}
//
// Attempts run in the current process by default. Use WithExecutor with an
// isolation.Executor to run each attempt in a child process that can be
// killed when it overruns.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amp-labs/amp-timebox/attempt"
	"github.com/amp-labs/amp-timebox/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amp-labs/amp-timebox/retry"

// Runner runs work with retries under a time budget. A Runner holds only
// configuration and may be shared; every Run gets its own budget.
type Runner struct {
	opts options
}

// NewRunner creates a Runner. Defaults are DefaultAttempts attempts of
// DefaultTimeout each, an overall budget derived from those, no backoff,
// and the InProcess executor.
//
// Example:
//
//	runner, err := retry.NewRunner(
//	    retry.WithAttempts(5),
//	    retry.WithTimeout(500 * time.Millisecond),
//	    retry.WithOverallTimeout(2 * time.Second),
//	)
func NewRunner(opts ...Option) (*Runner, error) {
	o := defaultOptions()

	for _, opt := range opts {
		opt(&o)
	}

	if o.executor == nil {
		o.executor = InProcess{}
	}

	if err := o.validate(); err != nil {
		return nil, err
	}

	return &Runner{opts: o}, nil
}

// Run is a convenience for NewRunner followed by Runner.Run. Invalid options
// are reported through Result.Err.
func Run(ctx context.Context, work attempt.Work, opts ...Option) Result {
	runner, err := NewRunner(opts...)
	if err != nil {
		runsTotal.WithLabelValues(runInvalid).Inc()

		return Result{Outcome: attempt.Inconclusive, Err: err}
	}

	return runner.Run(ctx, work)
}

// Run executes work until an attempt passes, the attempts run out, or the
// overall budget is spent, whichever comes first.
//
// Each attempt is given min(per-attempt timeout, remaining overall budget).
// A passing attempt ends the run at once. A failing or timed-out attempt is
// discarded and, budget permitting, followed by a fresh one. When the run
// ends without a pass, Result.Err is an *attempt.ExhaustedError carrying the
// most recent attempt error. Errors matching attempt.ErrUnrunnable end the
// run without retrying, as does cancellation of ctx.
func (r *Runner) Run(ctx context.Context, work attempt.Work) Result {
	opts := r.opts
	budget := NewTimeBudget(opts.perAttempt, opts.overallLimit(), opts.enforce)

	if opts.logger != nil {
		ctx = logger.WithLogger(ctx, opts.logger)
	}

	ctx = logger.With(ctx, "executor", opts.executor.Name())

	ctx, span := otel.Tracer(tracerName).Start(ctx, "timebox.run", trace.WithAttributes(
		attribute.String("timebox.executor", opts.executor.Name()),
		attribute.Int("timebox.attempts", opts.attempts),
		attribute.String("timebox.per_attempt", opts.perAttempt.String()),
		attribute.String("timebox.overall", budget.Overall.String()),
		attribute.Bool("timebox.enforced", opts.enforce),
	))
	defer span.End()

	log := logger.Get(ctx)

	var (
		res     Result
		current attempt.Record
		lastErr error
		overall bool
	)

	for index := 1; index <= opts.attempts; index++ {
		if err := ctx.Err(); err != nil {
			return r.abort(ctx, span, res, budget, fmt.Errorf("run canceled before attempt %d: %w", index, err))
		}

		limit := budget.Next()
		if limit <= 0 {
			overall = true

			break
		}

		budget.Start()

		current = r.runAttempt(ctx, index, limit, work)
		res.Records = append(res.Records, current)
		res.Attempts = index

		if current.Passed() {
			res.Outcome = attempt.Passed
			res.Elapsed = budget.Elapsed()

			log.Info("attempt passed", "attempt", index, "elapsed", res.Elapsed)
			runsTotal.WithLabelValues(runPassed).Inc()
			span.SetStatus(codes.Ok, "")

			return res
		}

		lastErr = current.Err

		if errors.Is(current.Err, attempt.ErrUnrunnable) {
			return r.abort(ctx, span, res, budget, current.Err)
		}

		if current.Outcome == attempt.Inconclusive && ctx.Err() != nil {
			return r.abort(ctx, span, res, budget, current.Err)
		}

		if budget.Exhausted() {
			overall = true

			break
		}

		// The failed attempt is discarded; the next one starts from a fresh record.
		current = attempt.Record{}

		if index < opts.attempts && opts.backoff != nil {
			delay := min(opts.backoff.Delay(index), budget.Remaining())

			if err := pause(ctx, delay); err != nil {
				return r.abort(ctx, span, res, budget, fmt.Errorf("run canceled during backoff: %w", err))
			}

			if budget.Exhausted() {
				overall = true

				break
			}
		}
	}

	if overall && lastErr == nil {
		lastErr = fmt.Errorf("%w: %s budget spent", attempt.ErrOverallTimeout, budget.Overall)
	}

	res.Elapsed = budget.Elapsed()
	res.Outcome = attempt.TimedOut

	if n := len(res.Records); n > 0 {
		res.Outcome = res.Records[n-1].Outcome
	}

	res.Err = &attempt.ExhaustedError{
		Attempts: res.Attempts,
		Overall:  overall,
		Last:     lastErr,
		Logs:     collectLogs(res.Records, func(rec attempt.Record) bool { return !rec.Passed() }),
	}

	label := runExhausted
	if overall {
		label = runOverallTimeout
	}

	runsTotal.WithLabelValues(label).Inc()
	span.RecordError(res.Err)
	span.SetStatus(codes.Error, label)

	log.Warn("run failed",
		"attempts", res.Attempts,
		"elapsed", res.Elapsed,
		"overall", overall,
		"error", logger.AnnotateError(res.Err, "outcome", res.Outcome.String()))

	return res
}

func (r *Runner) abort(ctx context.Context, span trace.Span, res Result, budget *TimeBudget, err error) Result {
	res.Outcome = attempt.Inconclusive
	res.Err = err
	res.Elapsed = budget.Elapsed()

	runsTotal.WithLabelValues(runAborted).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, runAborted)

	logger.Get(ctx).Error("run aborted", "attempts", res.Attempts, "error", err)

	return res
}

func (r *Runner) runAttempt(ctx context.Context, index int, limit time.Duration, work attempt.Work) attempt.Record {
	opts := r.opts
	executor := opts.executor.Name()

	ctx = attempt.WithIndex(ctx, index)
	ctx = logger.With(ctx, "attempt", index)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "timebox.attempt", trace.WithAttributes(
		attribute.Int("timebox.attempt", index),
		attribute.String("timebox.limit", limit.String()),
	))
	defer span.End()

	log := logger.Get(ctx)
	log.Debug("starting attempt", "limit", limit)

	rec := opts.executor.Execute(ctx, attempt.Request{Index: index, Limit: limit, Work: work})
	rec.Index = index

	if !rec.Outcome.IsDecided() {
		rec.Outcome = attempt.Inconclusive
	}

	if !rec.Passed() && rec.Err == nil {
		rec.Err = fmt.Errorf("%w: executor %s reported %s", attempt.ErrAttemptFailure, executor, rec.Outcome)
	}

	attemptsTotal.WithLabelValues(executor, rec.Outcome.String()).Inc()
	attemptDuration.WithLabelValues(executor).Observe(rec.Elapsed.Seconds())

	span.SetAttributes(attribute.String("timebox.outcome", rec.Outcome.String()))

	if rec.SessionID != "" {
		span.SetAttributes(attribute.String("timebox.session", rec.SessionID))
	}

	if rec.Passed() {
		span.SetStatus(codes.Ok, "")
	} else {
		span.RecordError(rec.Err)
		span.SetStatus(codes.Error, rec.Outcome.String())
		log.Info("attempt did not pass",
			"outcome", rec.Outcome.String(),
			"elapsed", rec.Elapsed,
			"error", rec.Err)
	}

	for _, observe := range opts.observers {
		observe(rec)
	}

	return rec
}
