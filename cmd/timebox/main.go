// Command timebox runs a command under a per-attempt timeout, retrying it
// until it passes, the attempts run out, or the overall budget is spent.
//
//	timebox run --retries 3 --timeout 30s -- go test ./integration/...
//
// By default every attempt runs in a child process that is killed when it
// overruns. Use --in-process to run attempts directly.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/amp-labs/amp-timebox/shutdown"
)

func main() {
	ctx, handler := shutdown.SetupHandler(context.Background())

	err := newRootCmd().ExecuteContext(ctx)

	handler.Stop()

	code := exitCode(err, os.Stderr)
	if code != 0 {
		code = signalExitCode(handler.Signal(), code)
	}

	os.Exit(code)
}

// signalExitCode reports 128+n when the run was stopped by signal n, the
// way shells do.
func signalExitCode(sig os.Signal, code int) int {
	if s, ok := sig.(syscall.Signal); ok {
		return exitSignalBase + int(s)
	}

	return code
}

// exitError carries the exit status the process should end with.
type exitError struct {
	code int
	err  error
	// quiet means the error was already reported.
	quiet bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}

	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

const (
	exitFailed = 1
	exitUsage  = 2
	// exitNotFound matches what shells report for a missing command.
	exitNotFound = 127

	exitSignalBase = 128
)

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.quiet && ee.err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", ee.err)
		}

		return ee.code
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)

	return exitUsage
}
