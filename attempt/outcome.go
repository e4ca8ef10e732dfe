// Package attempt defines the vocabulary shared by executors and the retry
// orchestrator: the Outcome of a single attempt, the Record describing it,
// the Executor contract, and the error taxonomy used to report failures.
package attempt

import (
	"fmt"
	"strings"
)

// Outcome is the result of exactly one attempt. The zero value, Pending,
// describes an attempt that has not produced a result yet.
type Outcome int

const (
	// Pending means no result has been produced.
	Pending Outcome = iota
	// Passed means the work completed normally.
	Passed
	// Failed means the work completed with a reported failure.
	Failed
	// TimedOut means the per-attempt deadline expired before the work completed.
	TimedOut
	// ProcessTimedOut means an isolated child process never became ready,
	// or no exit status could be obtained from it.
	ProcessTimedOut
	// Inconclusive means the attempt could not be evaluated at all.
	Inconclusive
)

var outcomeNames = map[Outcome]string{ //nolint:gochecknoglobals
	Pending:         "pending",
	Passed:          "passed",
	Failed:          "failed",
	TimedOut:        "timed_out",
	ProcessTimedOut: "process_timed_out",
	Inconclusive:    "inconclusive",
}

// String returns a lower-case, snake_case name suitable for logs and metric labels.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}

	return fmt.Sprintf("outcome(%d)", int(o))
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	for o, name := range outcomeNames {
		if name == s {
			return o, nil
		}
	}

	return Pending, fmt.Errorf("%w: unknown outcome %q", ErrInvalidOutcome, s)
}

// IsDecided reports whether the outcome is anything other than Pending.
func (o Outcome) IsDecided() bool {
	return o != Pending
}

// IsTimeout reports whether the outcome is one of the timeout flavors.
func (o Outcome) IsTimeout() bool {
	return o == TimedOut || o == ProcessTimedOut
}
