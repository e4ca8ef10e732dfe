package main

import (
	"bytes"
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/amp-labs/amp-timebox/isolation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain lets the test binary stand in for the timebox binary when the
// isolation executor re-executes it as "child".
func TestMain(m *testing.M) {
	if len(os.Args) > 1 && os.Args[1] == "child" {
		main()
	}

	os.Exit(m.Run())
}

// execute runs the root command with args and returns its combined output.
// Logging is configured globally, so these tests do not run in parallel.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)

	err := root.ExecuteContext(t.Context())

	return out.String(), err
}

func requireExitCode(t *testing.T, err error, code int) *exitError {
	t.Helper()

	var ee *exitError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, code, ee.code)

	return ee
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected int
		printed  string
	}{
		{name: "success", err: nil, expected: 0},
		{name: "plain error", err: errors.New("bad flag"), expected: exitUsage, printed: "Error: bad flag\n"},
		{name: "quiet exit", err: &exitError{code: 3, err: errors.New("reported"), quiet: true}, expected: 3},
		{name: "loud exit", err: &exitError{code: exitNotFound, err: errors.New("missing")}, expected: exitNotFound, printed: "Error: missing\n"},
		{name: "exit without cause", err: &exitError{code: 9}, expected: 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var stderr bytes.Buffer

			assert.Equal(t, tt.expected, exitCode(tt.err, &stderr))
			assert.Equal(t, tt.printed, stderr.String())
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")

	assert.Equal(t, "boom", (&exitError{code: 1, err: cause}).Error())
	assert.Equal(t, "exit status 4", (&exitError{code: 4}).Error())
	assert.ErrorIs(t, &exitError{code: 1, err: cause}, cause)
}

func TestWithoutEnv(t *testing.T) {
	t.Parallel()

	env := []string{
		"PATH=/bin",
		isolation.EnvMarker + "=" + isolation.MarkerPrefix + "abc",
		isolation.EnvAttempt + "=2",
		isolation.EnvMarker + "_OTHER=kept",
	}

	assert.Equal(t, []string{
		"PATH=/bin",
		isolation.EnvAttempt + "=2",
		isolation.EnvMarker + "_OTHER=kept",
	}, withoutEnv(env, isolation.EnvMarker))
}

//nolint:paralleltest
func TestChildRequiresMarker(t *testing.T) {
	_, err := execute(t, "child", "--", "true")

	ee := requireExitCode(t, err, exitUsage)
	require.ErrorIs(t, ee, isolation.ErrNotChild)
}

func TestSignalExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, signalExitCode(nil, 1))
	assert.Equal(t, exitSignalBase+int(syscall.SIGTERM), signalExitCode(syscall.SIGTERM, 1))
}

//nolint:paralleltest
func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")
	require.NoError(t, err)

	assert.Contains(t, out, "timebox version ")
}
