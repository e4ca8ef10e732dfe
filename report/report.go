// Package report renders the result of a run for people: a boxed summary
// line, one row per attempt, and the output captured by the attempts.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/amp-labs/amp-timebox/envutil"
	"github.com/amp-labs/amp-timebox/retry"
)

// EnvNoBanner disables box drawing when set to a true value.
const EnvNoBanner = "TIMEBOX_NO_BANNER"

// LogMode selects when captured attempt output is printed.
type LogMode int

const (
	// LogsOnFailure prints captured output only when the run did not pass.
	LogsOnFailure LogMode = iota
	// LogsAlways prints captured output for every run.
	LogsAlways
	// LogsNever never prints captured output.
	LogsNever
)

type options struct {
	width int
	plain bool
	logs  LogMode
}

// Option configures Write.
type Option func(*options)

// WithWidth sets the width of the summary box.
func WithWidth(width int) Option {
	return func(o *options) {
		if width > 0 {
			o.width = width
		}
	}
}

// WithPlain turns box drawing off.
func WithPlain(plain bool) Option {
	return func(o *options) {
		o.plain = plain
	}
}

// WithLogs selects when captured output is printed.
func WithLogs(mode LogMode) Option {
	return func(o *options) {
		o.logs = mode
	}
}

// PlainFromEnv reports whether EnvNoBanner asks for plain output.
func PlainFromEnv(ctx context.Context) bool {
	return envutil.Bool(ctx, EnvNoBanner, envutil.Default(false)).ValueOrElse(false)
}

// Summary is a one-line description of the run.
func Summary(res retry.Result) string {
	attempts := "attempts"
	if res.Attempts == 1 {
		attempts = "attempt"
	}

	elapsed := res.Elapsed.Round(time.Millisecond)

	if res.Passed() {
		return fmt.Sprintf("passed after %d %s in %s", res.Attempts, attempts, elapsed)
	}

	if res.Err == nil {
		return fmt.Sprintf("%s after %d %s in %s", res.Outcome, res.Attempts, attempts, elapsed)
	}

	return fmt.Sprintf("%s in %s: %v", res.Outcome, elapsed, firstLine(res.Err.Error()))
}

// Write renders res to w.
func Write(w io.Writer, res retry.Result, opts ...Option) error {
	o := options{width: DefaultWidth}

	for _, opt := range opts {
		opt(&o)
	}

	var sb strings.Builder

	if o.plain {
		sb.WriteString("timebox: " + Summary(res) + "\n")
	} else {
		sb.WriteString(Box([]string{"timebox: " + Summary(res)}, o.width, AlignCenter))
	}

	for _, rec := range res.Records {
		fmt.Fprintf(&sb, "#%-3d %-18s %10s", rec.Index, rec.Outcome, rec.Elapsed.Round(time.Millisecond))

		if rec.SessionID != "" {
			fmt.Fprintf(&sb, "  session=%s pid=%d", rec.SessionID, rec.PID)
		}

		if rec.Err != nil {
			fmt.Fprintf(&sb, "  %s", firstLine(rec.Err.Error()))
		}

		sb.WriteString("\n")
	}

	if logs := res.Logs(); len(logs) > 0 && showLogs(o.logs, res) {
		if !o.plain {
			sb.WriteString(Divider(o.width))
		}

		for _, line := range logs {
			sb.WriteString(line + "\n")
		}
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

func showLogs(mode LogMode, res retry.Result) bool {
	switch mode {
	case LogsAlways:
		return true
	case LogsNever:
		return false
	default:
		return !res.Passed()
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}

	return s
}
