package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/amp-labs/amp-timebox/attempt"
	"github.com/amp-labs/amp-timebox/config"
	"github.com/amp-labs/amp-timebox/isolation"
	"github.com/amp-labs/amp-timebox/logger"
	"github.com/amp-labs/amp-timebox/report"
	"github.com/amp-labs/amp-timebox/retry"
	"github.com/amp-labs/amp-timebox/shutdown"
	"github.com/amp-labs/amp-timebox/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type runFlags struct {
	configPath string
	retries    int
	timeout    time.Duration
	overall    time.Duration
	startup    time.Duration
	backoff    time.Duration
	noTiming   bool
	inProcess  bool
	width      int
	plain      bool
	showLogs   bool
	hideLogs   bool
	quiet      bool
	runningEnv string
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [flags] -- command [args...]",
		Short: "Run a command with retries under a time budget",
		Example: `  timebox run --retries 3 --timeout 30s -- go test ./integration/...
  timebox run --config timebox.yaml -- ./smoke.sh
  TIMEBOX_DISABLE_TIMING_ENFORCEMENT=true timebox run -- ./debug-me.sh`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, &flags, args)
		},
	}

	set := cmd.Flags()
	set.StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file")
	set.IntVarP(&flags.retries, "retries", "r", retry.DefaultAttempts, "maximum number of attempts")
	set.DurationVarP(&flags.timeout, "timeout", "t", retry.DefaultTimeout, "hard limit on a single attempt")
	set.DurationVar(&flags.overall, "overall-timeout", 0,
		"limit on all attempts together (default retries × timeout + 500ms per attempt)")
	set.DurationVar(&flags.startup, "startup-timeout", isolation.DefaultStartupTimeout,
		"how long an isolated child may take to check in")
	set.DurationVar(&flags.backoff, "backoff", 0, "pause between attempts")
	set.BoolVar(&flags.noTiming, "no-timing", false, "disable all deadlines, for debugging")
	set.BoolVar(&flags.inProcess, "in-process", false, "run attempts without a child process")
	set.IntVar(&flags.width, "width", report.DefaultWidth, "width of the summary box")
	set.BoolVar(&flags.plain, "plain", false, "print the summary without box drawing")
	set.BoolVar(&flags.showLogs, "show-logs", false, "print attempt output even when the run passes")
	set.BoolVar(&flags.hideLogs, "hide-logs", false, "never print attempt output")
	set.BoolVarP(&flags.quiet, "quiet", "q", false, "suppress diagnostic logging, the report is still printed")
	set.StringVar(&flags.runningEnv, "env", "local", "deployment environment reported to tracing")

	cmd.MarkFlagsMutuallyExclusive("show-logs", "hide-logs")

	return cmd
}

// resolveConfig layers explicitly set flags over the file and environment
// configuration.
func resolveConfig(ctx context.Context, set *pflag.FlagSet, flags *runFlags) (config.Config, error) {
	cfg, err := config.Load(ctx, flags.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if set.Changed("retries") {
		cfg.Retries = flags.retries
	}

	if set.Changed("timeout") {
		cfg.PerAttemptTimeout = config.Duration(flags.timeout)
	}

	if set.Changed("overall-timeout") {
		cfg.OverallTimeout = config.Duration(flags.overall)
	}

	if set.Changed("startup-timeout") {
		cfg.StartupTimeout = config.Duration(flags.startup)
	}

	if set.Changed("backoff") {
		cfg.Backoff = config.Duration(flags.backoff)
	}

	if set.Changed("no-timing") {
		cfg.DisableTimingEnforcement = flags.noTiming
	}

	if set.Changed("in-process") {
		cfg.Isolate = !flags.inProcess
	}

	return cfg, cfg.Validate()
}

func runCommand(cmd *cobra.Command, flags *runFlags, args []string) error {
	ctx := logger.WithMuted(cmd.Context(), flags.quiet)

	cfg, err := resolveConfig(ctx, cmd.Flags(), flags)
	if err != nil {
		return &exitError{code: exitUsage, err: err}
	}

	stopTracing := startTracing(ctx, flags.runningEnv)
	defer stopTracing()

	opts := cfg.Options()

	if cfg.Isolate {
		self, err := os.Executable()
		if err != nil {
			return &exitError{code: exitFailed, err: fmt.Errorf("locating own executable: %w", err)}
		}

		isolationOpts := append(cfg.IsolationOptions(), isolation.WithUnrunnableExitCode(exitNotFound))

		opts = append(opts, retry.WithExecutor(isolation.NewExecutor(childCommand(self, args), isolationOpts...)))
	}

	shutdown.BeforeShutdown(ctx, func() {
		logger.Get(ctx).Warn("interrupted, stopping run")
	})

	logger.Get(ctx).Debug("starting run",
		"command", args,
		"retries", cfg.Retries,
		"per_attempt", cfg.PerAttemptTimeout,
		"overall", cfg.EffectiveOverall(),
		"isolate", cfg.Isolate)

	res := retry.Run(ctx, commandWork(args), opts...)

	logMode := report.LogsOnFailure

	switch {
	case flags.showLogs:
		logMode = report.LogsAlways
	case flags.hideLogs:
		logMode = report.LogsNever
	}

	if err := report.Write(cmd.OutOrStdout(), res,
		report.WithWidth(flags.width),
		report.WithPlain(flags.plain || report.PlainFromEnv(ctx)),
		report.WithLogs(logMode)); err != nil {
		return &exitError{code: exitFailed, err: fmt.Errorf("writing report: %w", err)}
	}

	if res.Err != nil {
		return &exitError{code: exitFailed, err: res.Err, quiet: true}
	}

	return nil
}

// startTracing initializes tracing when OTEL_ENABLED is set. Failures are
// logged and the run goes ahead untraced.
func startTracing(ctx context.Context, runningEnv string) func() {
	log := logger.Get(ctx)

	cfg, err := telemetry.LoadConfigFromEnv(ctx, runningEnv)
	if err != nil {
		log.Warn("ignoring tracing configuration", "error", err)

		return func() {}
	}

	if err := telemetry.Initialize(ctx, cfg); err != nil {
		log.Warn("tracing disabled", "error", err)

		return func() {}
	}

	return func() {
		if err := telemetry.Shutdown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}
}

// childCommand re-executes this binary as "child -- command args...", which
// performs the handshake and then runs the command. The child exits with
// exitNotFound when the command cannot be launched.
func childCommand(self string, args []string) isolation.CommandFactory {
	childArgs := append([]string{"child", "--"}, args...)

	return isolation.Command(self, childArgs...)
}

// commandWork runs the command directly. Its combined output becomes the
// attempt log. The command is killed when the attempt's context ends.
func commandWork(args []string) attempt.Work {
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec

		out, err := cmd.CombinedOutput()

		scanner := bufio.NewScanner(bytes.NewReader(out))
		for scanner.Scan() {
			attempt.Logf(ctx, "%s", scanner.Text())
		}

		if err != nil && isNotRunnable(err) {
			return fmt.Errorf("%w: %w", attempt.ErrUnrunnable, err)
		}

		return err
	}
}

func isNotRunnable(err error) bool {
	return errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, exec.ErrDot) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}
