package attempt

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAttemptFailure is reported when the work itself failed.
	ErrAttemptFailure = errors.New("attempt failed")
	// ErrAttemptTimeout is reported when the per-attempt deadline was exceeded.
	ErrAttemptTimeout = errors.New("attempt timed out")
	// ErrOverallTimeout is reported when the cumulative time budget was spent.
	ErrOverallTimeout = errors.New("overall timeout exceeded")
	// ErrProcessStartupTimeout is reported when an isolated child never completed the handshake.
	ErrProcessStartupTimeout = errors.New("process startup timed out")
	// ErrProcessTimeout is reported when an isolated child exceeded its window and was killed.
	ErrProcessTimeout = errors.New("process timed out")
	// ErrUnrunnable marks configurations that can never start an attempt, such as a
	// missing executable. Retrying does not help, so the orchestrator aborts on it.
	ErrUnrunnable = errors.New("unrunnable")
	// ErrInvalidOutcome is returned by ParseOutcome.
	ErrInvalidOutcome = errors.New("invalid outcome")
)

// TimeoutError reports a per-attempt timeout together with the window that expired.
type TimeoutError struct {
	Index int
	Limit time.Duration
	// Cause is ErrAttemptTimeout or ErrProcessTimeout.
	Cause error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("attempt %d: %v after %s", e.Index, e.Cause, e.Limit)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ExitError reports a child process that exited with a nonzero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v: exit status %d", ErrAttemptFailure, e.Code)
}

func (e *ExitError) Unwrap() error {
	return ErrAttemptFailure
}

// Fail wraps err so that it matches ErrAttemptFailure while preserving the
// original error chain. A nil err produces a bare ErrAttemptFailure.
func Fail(err error) error {
	if err == nil {
		return ErrAttemptFailure
	}

	if errors.Is(err, ErrAttemptFailure) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrAttemptFailure, err)
}

// ExhaustedError is the single terminal error surfaced when a run ends without
// a passing attempt. It carries the most recent error, the number of attempts
// made, and the diagnostic lines captured by the failing attempts.
type ExhaustedError struct {
	// Attempts is the number of attempts actually started.
	Attempts int
	// Overall is true when the run stopped because the overall budget was spent.
	Overall bool
	// Last is the most recent attempt error, or a synthesized overall-timeout
	// error when no attempt produced one.
	Last error
	// Logs holds the captured lines of every failing attempt, in attempt order.
	Logs []string
}

func (e *ExhaustedError) Error() string {
	var sb strings.Builder

	if e.Overall {
		sb.WriteString(ErrOverallTimeout.Error())
	} else {
		sb.WriteString("retries exhausted")
	}

	fmt.Fprintf(&sb, " after %d attempt", e.Attempts)

	if e.Attempts != 1 {
		sb.WriteString("s")
	}

	if e.Last != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Last.Error())
	}

	return sb.String()
}

// Unwrap exposes both ErrOverallTimeout (when applicable) and the last error,
// so errors.Is works for either.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, 2) //nolint:mnd

	if e.Overall {
		errs = append(errs, ErrOverallTimeout)
	}

	if e.Last != nil {
		errs = append(errs, e.Last)
	}

	return errs
}
