package retry

import (
	"fmt"
	"time"

	"github.com/amp-labs/amp-timebox/attempt"
)

// Result is what a run produced.
type Result struct {
	// Outcome is Passed, or the outcome of the last attempt when the run
	// ended without a pass.
	Outcome attempt.Outcome
	// Err is nil on success. Exhausted runs report an *attempt.ExhaustedError.
	// Runs that were aborted report the abort cause.
	Err error
	// Attempts is the number of attempts started.
	Attempts int
	// Records holds every attempt, in order.
	Records []attempt.Record
	// Elapsed is the time measured by the run's budget.
	Elapsed time.Duration
}

// Passed reports whether some attempt passed.
func (r Result) Passed() bool {
	return r.Outcome == attempt.Passed && r.Err == nil
}

// Final returns the authoritative record: the passing attempt, or the last
// one. The second value is false when no attempt ran.
func (r Result) Final() (attempt.Record, bool) {
	if len(r.Records) == 0 {
		return attempt.Record{}, false
	}

	for _, rec := range r.Records {
		if rec.Passed() {
			return rec, true
		}
	}

	return r.Records[len(r.Records)-1], true
}

// Logs returns the captured lines of every attempt in order, each prefixed
// with its attempt number.
func (r Result) Logs() []string {
	return collectLogs(r.Records, func(attempt.Record) bool { return true })
}

func collectLogs(records []attempt.Record, keep func(attempt.Record) bool) []string {
	var out []string

	for _, rec := range records {
		if !keep(rec) {
			continue
		}

		for _, line := range rec.Logs {
			out = append(out, fmt.Sprintf("[attempt %d] %s", rec.Index, line))
		}
	}

	return out
}
