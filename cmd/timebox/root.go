package main

import (
	"github.com/amp-labs/amp-timebox/build"
	"github.com/amp-labs/amp-timebox/logger"
	"github.com/spf13/cobra"
)

const appName = "timebox"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Run commands under hard time limits with retries",
		Long: `timebox runs a command under a per-attempt timeout and retries it until it
passes, the attempts run out, or the overall time budget is spent.

Attempts run in a child process by default, so an attempt that overruns is
killed rather than left behind.`,
		Version:       build.Read().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := logger.ConfigureLogging(cmd.Context(), appName, logger.WithOutput(cmd.ErrOrStderr()))

			return err
		},
	}

	root.AddCommand(newRunCmd(), newChildCmd())

	return root
}
