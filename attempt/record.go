package attempt

import (
	"context"
	"time"

	"github.com/amp-labs/amp-timebox/latch"
)

// Unbounded is the attempt window used when timing enforcement is disabled.
const Unbounded = latch.Forever

// Work is the unit of work being attempted. Returning nil means the attempt
// passed, returning an error means it failed. Work that is still running when
// its window closes is treated as timed out.
type Work func(ctx context.Context) error

// Request describes one attempt handed to an Executor.
type Request struct {
	// Index is the 1-based attempt number.
	Index int
	// Limit is the time allotted to this attempt. Unbounded disables the deadline.
	Limit time.Duration
	// Work is the operation to run. Process executors may ignore it, since
	// the child process carries its own work.
	Work Work
}

// Record describes a finished attempt. It is immutable once an executor
// returns it.
type Record struct {
	// Index is the 1-based attempt number.
	Index int
	// Outcome is the authoritative result, decided by the first signal observed.
	Outcome Outcome
	// Logs holds the diagnostic lines captured during the attempt, in arrival order.
	Logs []string
	// Err is the failure payload, nil when the attempt passed.
	Err error
	// Elapsed is the wall time spent on the attempt.
	Elapsed time.Duration
	// SessionID identifies the isolation session, empty for in-process attempts.
	SessionID string
	// PID is the child process id, zero for in-process attempts.
	PID int
	// Late lists outcomes that were signalled after the authoritative one.
	// They never change Outcome and are kept for diagnostics only.
	Late []Outcome
}

// Passed reports whether the attempt passed.
func (r Record) Passed() bool {
	return r.Outcome == Passed
}

// Executor runs a single attempt and reports its Record. Implementations must
// return within the requested Limit plus their own bounded overhead, and must
// never return a Record whose Outcome is Pending.
type Executor interface {
	// Name identifies the executor in logs and metrics.
	Name() string
	// Execute runs one attempt.
	Execute(ctx context.Context, req Request) Record
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request) Record

// Name implements Executor.
func (f ExecutorFunc) Name() string {
	return "func"
}

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req Request) Record {
	return f(ctx, req)
}
