package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/amp-labs/amp-timebox/isolation"
	"github.com/amp-labs/amp-timebox/logger"
	"github.com/spf13/cobra"
)

func newChildCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "child -- command [args...]",
		Short:  "Run a command as an isolated attempt (started by run)",
		Hidden: true,
		Args:   cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Anything the child logs would land in the attempt's captured output.
			ctx := logger.WithMuted(cmd.Context(), true)

			if !isolation.IsChild(ctx) {
				return &exitError{code: exitUsage, err: fmt.Errorf("%w: child must be started by run", isolation.ErrNotChild)}
			}

			if err := isolation.Handshake(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return &exitError{code: exitUsage, err: err}
			}

			target := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec
			target.Stdin = cmd.InOrStdin()
			target.Stdout = cmd.OutOrStdout()
			target.Stderr = cmd.ErrOrStderr()
			target.Env = withoutEnv(os.Environ(), isolation.EnvMarker)

			return targetExit(target.Run())
		},
	}
}

// targetExit maps the target's result to the child's own exit status.
func targetExit(err error) error {
	if err == nil {
		return nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code := ee.ExitCode()
		if code < 1 {
			code = exitFailed
		}

		return &exitError{code: code, err: err, quiet: true}
	}

	if isNotRunnable(err) {
		return &exitError{code: exitNotFound, err: err}
	}

	return &exitError{code: exitFailed, err: err}
}

// withoutEnv drops key from env, so the target cannot mistake itself for an
// isolated child.
func withoutEnv(env []string, key string) []string {
	out := make([]string, 0, len(env))

	for _, kv := range env {
		if strings.HasPrefix(kv, key+"=") {
			continue
		}

		out = append(out, kv)
	}

	return out
}
