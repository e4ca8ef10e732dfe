package isolation

import (
	"context"
	"errors"
	"io/fs"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strconv"

	"github.com/amp-labs/amp-timebox/attempt"
)

// CommandFactory builds the command for one attempt. The Executor owns the
// command's stdio, adds its own environment on top of cmd.Env (or the
// current environment when cmd.Env is nil) and puts the child in its own
// process group, so factories should leave those alone.
type CommandFactory func(ctx context.Context, req attempt.Request) (*exec.Cmd, error)

// Command returns a CommandFactory that starts the same program for every
// attempt.
func Command(name string, args ...string) CommandFactory {
	return func(context.Context, attempt.Request) (*exec.Cmd, error) {
		return exec.Command(name, args...), nil //nolint:gosec
	}
}

func (e *Executor) prepare(cmd *exec.Cmd, s *session) {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}

	for _, key := range slices.Sorted(maps.Keys(e.env)) {
		appendEnv(cmd, key, e.env[key])
	}

	appendEnv(cmd, EnvMarker, s.marker)
	appendEnv(cmd, EnvAttempt, strconv.Itoa(s.index))

	if e.dir != "" && cmd.Dir == "" {
		cmd.Dir = e.dir
	}

	setProcessGroup(cmd)
}

// appendEnv adds key=value. exec.Cmd keeps the last value of a duplicated
// key, so this overrides anything inherited.
func appendEnv(cmd *exec.Cmd, key, value string) {
	cmd.Env = append(cmd.Env, key+"="+value)
}

// exitCode extracts the exit status from the result of Cmd.Wait. The second
// value is false when there is none, as for a child ended by a signal.
func exitCode(err error) (int, bool) {
	if err == nil {
		return 0, true
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()

		return code, code >= 0
	}

	return -1, false
}

// unrunnable reports whether a start error means the command can never run.
func unrunnable(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, exec.ErrDot) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}
