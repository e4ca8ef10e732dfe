// Package isolation runs attempts in child processes, so that an attempt
// that overruns its window can be killed instead of abandoned.
//
// The parent and child cooperate through a handshake. The parent starts the
// child with EnvMarker and EnvAttempt set. The child, before doing any real
// work, prints the marker on its own line and waits for one line on stdin
// (see EnterChild). The parent watches the child's combined output for the
// marker, writes a newline to release it, and only then starts the attempt
// window. Exit status 0 is a pass, any other status a failure, and a child
// that outlives its window is killed together with its process group.
package isolation

import (
	"errors"
	"time"
)

const (
	// EnvMarker carries the per-attempt marker the child echoes back.
	EnvMarker = "TIMEBOX_ISOLATION_MARKER"
	// EnvAttempt carries the 1-based attempt number.
	EnvAttempt = "TIMEBOX_ISOLATION_ATTEMPT"
	// MarkerPrefix is prepended to the session id to form the marker.
	MarkerPrefix = "timebox-isolation:"
)

const (
	// DefaultStartupTimeout bounds the wait for the handshake. It covers
	// process and runtime start, which do not count against the attempt.
	DefaultStartupTimeout = 10 * time.Second
	// DefaultKillTimeout bounds the wait for a killed child to be reaped.
	DefaultKillTimeout = 5 * time.Second

	drainTimeout = time.Second
	maxLineSize  = 1024 * 1024
)

var (
	// ErrHandshake is reported when the handshake could not be completed.
	ErrHandshake = errors.New("isolation handshake failed")
	// ErrNotChild is returned by the child-side helpers outside an isolated child.
	ErrNotChild = errors.New("not running as an isolated child")
	// ErrKillUnconfirmed is reported when a killed child was not reaped in time.
	ErrKillUnconfirmed = errors.New("child still running after kill")

	errReaderStuck = errors.New("output reader did not stop")
)
