package isolation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amp-labs/amp-timebox/attempt"
	"github.com/amp-labs/amp-timebox/logger"
	"github.com/amp-labs/amp-timebox/race"
)

// Executor runs each attempt in a fresh child process. It implements
// attempt.Executor and can be handed to retry.WithExecutor.
//
// The attempt's Work is not used: the child carries its own work. Each
// attempt gets a new session id, and the child is killed together with its
// process group when it overruns, so no timed-out attempt keeps running.
type Executor struct {
	factory        CommandFactory
	startupTimeout time.Duration
	killTimeout    time.Duration
	env            map[string]string
	dir            string
	enforce        bool
	unrunnableExit int
	logger         *slog.Logger
}

var _ attempt.Executor = (*Executor)(nil)

// Option configures an Executor.
type Option func(*Executor)

// WithStartupTimeout bounds the wait for the child's handshake.
func WithStartupTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.startupTimeout = d
		}
	}
}

// WithKillTimeout bounds the wait for a killed child to be reaped.
func WithKillTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.killTimeout = d
		}
	}
}

// WithEnv adds an environment variable for every child.
func WithEnv(key, value string) Option {
	return func(e *Executor) {
		e.env[key] = value
	}
}

// WithDir sets the working directory of children whose command does not set one.
func WithDir(dir string) Option {
	return func(e *Executor) {
		e.dir = dir
	}
}

// WithEnforceTimings turns the attempt window on or off. With it off the
// child runs until it exits, which is meant for interactive debugging.
func WithEnforceTimings(enforce bool) Option {
	return func(e *Executor) {
		e.enforce = enforce
	}
}

// WithUnrunnableExitCode makes a child exiting with code count as a target
// that could not be launched: the attempt is reported with
// attempt.ErrUnrunnable, which ends the run instead of retrying it. Use it
// when the child is a launcher that reports a missing target this way, as
// shells do with 127. Codes below 1 disable the check, which is the default.
func WithUnrunnableExitCode(code int) Option {
	return func(e *Executor) {
		e.unrunnableExit = code
	}
}

// WithLogger sets the logger. By default the logger in the attempt context is used.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewExecutor creates an Executor that builds each child with factory.
//
// Example:
//
//	exec := isolation.NewExecutor(isolation.Command("./integration.test", "-test.run=TestSlow"))
//	res := retry.Run(ctx, nil, retry.WithExecutor(exec), retry.WithTimeout(5*time.Second))
func NewExecutor(factory CommandFactory, opts ...Option) *Executor {
	e := &Executor{
		factory:        factory,
		startupTimeout: DefaultStartupTimeout,
		killTimeout:    DefaultKillTimeout,
		env:            make(map[string]string),
		enforce:        true,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Name implements attempt.Executor.
func (e *Executor) Name() string {
	return "isolation"
}

// Execute implements attempt.Executor.
func (e *Executor) Execute(ctx context.Context, req attempt.Request) attempt.Record {
	start := time.Now()
	sess := newSession(req.Index)

	if e.logger != nil {
		ctx = logger.WithLogger(ctx, e.logger)
	}

	ctx = logger.WithSubsystem(ctx, "isolation")
	ctx = logger.With(ctx, "session", sess.id)

	rec := e.run(ctx, sess, req)

	if err := sess.teardown(e.killTimeout); err != nil {
		logger.Get(ctx).Error("isolation teardown failed",
			"error", logger.AnnotateError(err, "pid", sess.pid()))
	}

	rec.Index = req.Index
	rec.SessionID = sess.id
	rec.PID = sess.pid()
	rec.Logs = sess.log.Lines()
	rec.Elapsed = time.Since(start)

	return rec
}

func (e *Executor) run(ctx context.Context, sess *session, req attempt.Request) attempt.Record {
	log := logger.Get(ctx)

	limit := req.Limit
	if !e.enforce {
		limit = attempt.Unbounded
	}

	if limit <= 0 {
		return attempt.Record{
			Outcome: attempt.TimedOut,
			Err:     &attempt.TimeoutError{Index: req.Index, Limit: limit, Cause: attempt.ErrAttemptTimeout},
		}
	}

	if e.factory == nil {
		return attempt.Record{
			Outcome: attempt.Inconclusive,
			Err:     fmt.Errorf("%w: no command factory", attempt.ErrUnrunnable),
		}
	}

	cmd, err := e.factory(ctx, req)
	if err != nil {
		return attempt.Record{
			Outcome: attempt.Inconclusive,
			Err:     fmt.Errorf("%w: building command: %w", attempt.ErrUnrunnable, err),
		}
	}

	e.prepare(cmd, sess)

	if err := sess.start(cmd); err != nil {
		if unrunnable(err) {
			err = fmt.Errorf("%w: %w", attempt.ErrUnrunnable, err)
		}

		return attempt.Record{Outcome: attempt.Inconclusive, Err: fmt.Errorf("starting %s: %w", cmd.Path, err)}
	}

	log.Debug("child started", "pid", sess.pid(), "path", cmd.Path)

	if rec, ok := e.handshake(ctx, sess); !ok {
		return rec
	}

	log.Debug("child released", "pid", sess.pid(), "limit", limit)

	if fired, _ := race.WaitForAnyContext(ctx, limit, sess.exited); fired {
		outcome, err := sess.outcome(e.unrunnableExit)

		return attempt.Record{Outcome: outcome, Err: err}
	}

	return e.overrun(ctx, sess, req.Index, limit)
}

// handshake waits for the marker and releases the child. When it returns
// false the attempt is over and the record describes why.
func (e *Executor) handshake(ctx context.Context, sess *session) (attempt.Record, bool) {
	started := time.Now()

	fired, which := race.WaitForAnyContext(ctx, e.startupTimeout, sess.ready, sess.exited)

	switch {
	case !fired && ctx.Err() != nil:
		return attempt.Record{
			Outcome: attempt.Inconclusive,
			Err:     fmt.Errorf("waiting for handshake: %w", ctx.Err()),
		}, false
	case !fired:
		startupTimeoutsTotal.Inc()
		logger.Get(ctx).Warn("child never completed the handshake",
			"pid", sess.pid(), "startup_timeout", e.startupTimeout)

		return attempt.Record{
			Outcome: attempt.ProcessTimedOut,
			Err: fmt.Errorf("%w: no marker from pid %d within %s",
				attempt.ErrProcessStartupTimeout, sess.pid(), e.startupTimeout),
		}, false
	case which[0] == sess.exited && !sess.ready.IsSet():
		code, _ := exitCode(sess.waitErr)

		return attempt.Record{
			Outcome: attempt.Failed,
			Err: fmt.Errorf("%w: %w: child exited with status %d before the handshake",
				attempt.ErrAttemptFailure, ErrHandshake, code),
		}, false
	}

	startupSeconds.Observe(time.Since(started).Seconds())

	if err := sess.release(); err != nil {
		// A child that died right after printing the marker is classified
		// by its exit status below.
		logger.Get(ctx).Debug("could not release child", "error", err)
	}

	return attempt.Record{}, true
}

// overrun handles a child still running when its window closed, or when
// ctx ended: the child is killed and the kill is awaited.
func (e *Executor) overrun(ctx context.Context, sess *session, index int, limit time.Duration) attempt.Record {
	log := logger.Get(ctx)

	gone, killErr := sess.kill(e.killTimeout)
	killsTotal.Inc()

	if ctx.Err() != nil {
		return attempt.Record{
			Outcome: attempt.Inconclusive,
			Err:     fmt.Errorf("attempt canceled: %w", ctx.Err()),
		}
	}

	log.Warn("child overran its window and was killed", "pid", sess.pid(), "limit", limit)

	if !gone {
		return attempt.Record{
			Outcome: attempt.ProcessTimedOut,
			Err: errors.Join(fmt.Errorf("%w: %w: pid %d",
				attempt.ErrProcessTimeout, ErrKillUnconfirmed, sess.pid()), killErr),
		}
	}

	rec := attempt.Record{
		Outcome: attempt.TimedOut,
		Err:     &attempt.TimeoutError{Index: index, Limit: limit, Cause: attempt.ErrProcessTimeout},
	}

	// The child may have exited on its own just as the window closed.
	if late, _ := sess.outcome(e.unrunnableExit); late == attempt.Passed || late == attempt.Failed {
		rec.Late = []attempt.Outcome{late}
	}

	return rec
}
