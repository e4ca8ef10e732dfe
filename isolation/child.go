package isolation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/amp-labs/amp-timebox/envutil"
)

// IsChild reports whether the current process was started by an Executor.
func IsChild(ctx context.Context) bool {
	return envutil.String(ctx, EnvMarker).HasValue()
}

// SessionID returns the session id of the current isolated child.
func SessionID(ctx context.Context) (string, error) {
	marker, err := envutil.String(ctx, EnvMarker, envutil.IfMissing[string](ErrNotChild)).Value()
	if err != nil {
		return "", err
	}

	return strings.TrimPrefix(marker, MarkerPrefix), nil
}

// AttemptNumber returns the attempt number the current child is running.
func AttemptNumber(ctx context.Context) (int, error) {
	return envutil.Int(ctx, EnvAttempt,
		envutil.IfMissing[int](ErrNotChild),
		envutil.Positive[int]()).Value()
}

// Handshake performs the child side of the handshake: it writes the marker
// on its own line to out and blocks until a line arrives on in.
//
// The release line is read one byte at a time, so nothing past it is
// consumed from in.
func Handshake(ctx context.Context, in io.Reader, out io.Writer) error {
	marker, err := envutil.String(ctx, EnvMarker, envutil.IfMissing[string](ErrNotChild)).Value()
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintln(out, marker); err != nil {
		return fmt.Errorf("%w: writing marker: %w", ErrHandshake, err)
	}

	buf := make([]byte, 1)

	for {
		n, err := in.Read(buf)
		if n == 1 && buf[0] == '\n' {
			return nil
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: input closed before release: %w", ErrHandshake, err)
			}

			return fmt.Errorf("%w: reading release: %w", ErrHandshake, err)
		}
	}
}

// EnterChild runs Handshake on the process's stdin and stdout. Call it first
// thing in a program started by an Executor.
//
// Example:
//
//	if isolation.IsChild(ctx) {
//	    if err := isolation.EnterChild(ctx); err != nil {
//	        os.Exit(2)
//	    }
//	}
func EnterChild(ctx context.Context) error {
	return Handshake(ctx, os.Stdin, os.Stdout)
}
