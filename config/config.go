// Package config loads run configuration from a YAML file and from
// TIMEBOX_* environment variables, and turns it into retry and isolation
// options.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/amp-labs/amp-timebox/envutil"
	"github.com/amp-labs/amp-timebox/isolation"
	"github.com/amp-labs/amp-timebox/retry"
	"gopkg.in/yaml.v3"
)

// Environment variables read by FromEnv. Durations accept Go duration
// strings or bare integers taken as milliseconds.
const (
	EnvRetries           = "TIMEBOX_RETRIES"
	EnvPerAttemptTimeout = "TIMEBOX_PER_ATTEMPT_TIMEOUT"
	EnvOverallTimeout    = "TIMEBOX_OVERALL_TIMEOUT"
	EnvDisableTiming     = "TIMEBOX_DISABLE_TIMING_ENFORCEMENT"
	EnvStartupTimeout    = "TIMEBOX_STARTUP_TIMEOUT"
	EnvIsolate           = "TIMEBOX_ISOLATE"
	EnvBackoff           = "TIMEBOX_BACKOFF"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the configuration of a run.
type Config struct {
	// Retries is the maximum number of attempts.
	Retries int `yaml:"retries"`
	// PerAttemptTimeout is the hard ceiling on one attempt.
	PerAttemptTimeout Duration `yaml:"per_attempt_timeout"`
	// OverallTimeout caps all attempts together. Zero means
	// Retries × PerAttemptTimeout + 500ms × Retries.
	OverallTimeout Duration `yaml:"overall_timeout,omitempty"`
	// DisableTimingEnforcement suspends both deadlines. Meant for debugging.
	DisableTimingEnforcement bool `yaml:"disable_timing_enforcement,omitempty"`
	// StartupTimeout bounds the isolation handshake.
	StartupTimeout Duration `yaml:"startup_timeout,omitempty"`
	// Isolate runs each attempt in a child process.
	Isolate bool `yaml:"isolate"`
	// Backoff is a constant pause between attempts.
	Backoff Duration `yaml:"backoff,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Retries:           retry.DefaultAttempts,
		PerAttemptTimeout: Duration(retry.DefaultTimeout),
		StartupTimeout:    Duration(isolation.DefaultStartupTimeout),
		Isolate:           true,
	}
}

// Load builds a configuration from the defaults, then the YAML file at path
// (skipped when path is empty), then the environment, and validates it.
func Load(ctx context.Context, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		fromFile, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}

		cfg = fromFile
	}

	cfg, err := FromEnv(ctx, cfg)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFile reads a YAML configuration file on top of the defaults.
// Environment variable references in the file are expanded.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := Parse(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return cfg, nil
}

// FromEnv overlays the TIMEBOX_* environment variables on base. Variables
// that are not set leave the corresponding field alone.
func FromEnv(ctx context.Context, base Config) (Config, error) {
	cfg := base

	retries := envutil.Int(ctx, EnvRetries, envutil.Default(cfg.Retries))
	perAttempt := envutil.Duration(ctx, EnvPerAttemptTimeout, envutil.Default(time.Duration(cfg.PerAttemptTimeout)))
	overall := envutil.Duration(ctx, EnvOverallTimeout, envutil.Default(time.Duration(cfg.OverallTimeout)))
	disable := envutil.Bool(ctx, EnvDisableTiming, envutil.Default(cfg.DisableTimingEnforcement))
	startup := envutil.Duration(ctx, EnvStartupTimeout, envutil.Default(time.Duration(cfg.StartupTimeout)))
	isolate := envutil.Bool(ctx, EnvIsolate, envutil.Default(cfg.Isolate))
	backoff := envutil.Duration(ctx, EnvBackoff, envutil.Default(time.Duration(cfg.Backoff)))

	var err error

	if cfg.Retries, err = retries.Value(); err != nil {
		return Config{}, err
	}

	if cfg.PerAttemptTimeout, err = durationValue(perAttempt); err != nil {
		return Config{}, err
	}

	if cfg.OverallTimeout, err = durationValue(overall); err != nil {
		return Config{}, err
	}

	if cfg.DisableTimingEnforcement, err = disable.Value(); err != nil {
		return Config{}, err
	}

	if cfg.StartupTimeout, err = durationValue(startup); err != nil {
		return Config{}, err
	}

	if cfg.Isolate, err = isolate.Value(); err != nil {
		return Config{}, err
	}

	if cfg.Backoff, err = durationValue(backoff); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func durationValue(rdr envutil.Reader[time.Duration]) (Duration, error) {
	d, err := rdr.Value()

	return Duration(d), err
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Retries < 1:
		return fmt.Errorf("%w: retries must be at least 1, got %d", ErrInvalidConfig, c.Retries)
	case c.PerAttemptTimeout <= 0:
		return fmt.Errorf("%w: per_attempt_timeout must be positive, got %s", ErrInvalidConfig, c.PerAttemptTimeout)
	case c.OverallTimeout < 0:
		return fmt.Errorf("%w: overall_timeout must not be negative, got %s", ErrInvalidConfig, c.OverallTimeout)
	case c.StartupTimeout < 0:
		return fmt.Errorf("%w: startup_timeout must not be negative, got %s", ErrInvalidConfig, c.StartupTimeout)
	case c.Backoff < 0:
		return fmt.Errorf("%w: backoff must not be negative, got %s", ErrInvalidConfig, c.Backoff)
	default:
		return nil
	}
}

// EffectiveOverall returns the overall budget the run will use.
func (c Config) EffectiveOverall() time.Duration {
	if c.OverallTimeout > 0 {
		return time.Duration(c.OverallTimeout)
	}

	return retry.DefaultOverall(c.Retries, time.Duration(c.PerAttemptTimeout), -1)
}

// Options converts the configuration to retry options. The executor is not
// included; see IsolationOptions.
func (c Config) Options() []retry.Option {
	opts := []retry.Option{
		retry.WithAttempts(c.Retries),
		retry.WithTimeout(time.Duration(c.PerAttemptTimeout)),
		retry.WithEnforceTimings(!c.DisableTimingEnforcement),
	}

	if c.OverallTimeout > 0 {
		opts = append(opts, retry.WithOverallTimeout(time.Duration(c.OverallTimeout)))
	}

	if c.Backoff > 0 {
		opts = append(opts, retry.WithBackoff(retry.ConstBackoff(c.Backoff)))
	}

	return opts
}

// IsolationOptions converts the configuration to isolation executor options.
func (c Config) IsolationOptions() []isolation.Option {
	return []isolation.Option{
		isolation.WithStartupTimeout(time.Duration(c.StartupTimeout)),
		isolation.WithEnforceTimings(!c.DisableTimingEnforcement),
	}
}
