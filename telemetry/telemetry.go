// Package telemetry wires OpenTelemetry tracing for timebox runs. The retry
// package starts its spans on the global tracer provider, so nothing is
// exported until Initialize installs one.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amp-labs/amp-timebox/build"
	"github.com/amp-labs/amp-timebox/envutil"
	"github.com/amp-labs/amp-timebox/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	defaultServiceName = "timebox"
	defaultTimeout     = 5 * time.Second
	defaultSampleRatio = 1.0
)

var (
	providerMu     sync.Mutex                //nolint:gochecknoglobals
	tracerProvider *sdktrace.TracerProvider //nolint:gochecknoglobals
)

// Config holds the OpenTelemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Enabled        bool
	Timeout        time.Duration
	// SampleRatio is the fraction of root spans kept, between 0 and 1.
	SampleRatio float64
}

// LoadConfigFromEnv loads the configuration from the standard OTEL_*
// environment variables. The traces endpoint falls back to the generic
// OTLP endpoint.
func LoadConfigFromEnv(ctx context.Context, runningEnv string) (*Config, error) {
	enabled := envutil.Bool(ctx, "OTEL_ENABLED", envutil.Default(false)).ValueOrElse(false)

	serviceName := logger.GetSubsystem(ctx)
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	svcName, err := envutil.String(ctx, "OTEL_SERVICE_NAME", envutil.Default(serviceName)).Value()
	if err != nil {
		return nil, err
	}

	svcVersion, err := envutil.String(ctx, "OTEL_SERVICE_VERSION",
		envutil.Default(build.Read().Version)).
		Value()
	if err != nil {
		return nil, err
	}

	endpoint := envutil.String(ctx, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT").ValueOrElse("")
	if endpoint == "" {
		endpoint = envutil.String(ctx, "OTEL_EXPORTER_OTLP_ENDPOINT").ValueOrElse("")
	}

	timeout, err := envutil.Duration(ctx, "OTEL_EXPORTER_OTLP_TRACES_TIMEOUT",
		envutil.Default(defaultTimeout),
		envutil.Positive[time.Duration]()).
		Value()
	if err != nil {
		return nil, err
	}

	ratio, err := envutil.Float(ctx, "OTEL_TRACES_SAMPLER_ARG",
		envutil.Default(defaultSampleRatio),
		envutil.Validate(validRatio)).
		Value()
	if err != nil {
		return nil, err
	}

	return &Config{
		ServiceName:    svcName,
		ServiceVersion: svcVersion,
		Environment:    runningEnv,
		Endpoint:       endpoint,
		Enabled:        enabled,
		Timeout:        timeout,
		SampleRatio:    ratio,
	}, nil
}

func validRatio(ratio float64) error {
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("%w: sample ratio %v outside [0, 1]", envutil.ErrBadEnvVar, ratio)
	}

	return nil
}

// Initialize installs a tracer provider exporting over OTLP/HTTP as the
// global provider. It does nothing when tracing is disabled or no endpoint
// is configured.
func Initialize(ctx context.Context, config *Config) error {
	log := logger.Get(ctx)

	if !config.Enabled {
		log.Debug("OpenTelemetry tracing is disabled")

		return nil
	}

	if config.Endpoint == "" {
		log.Warn("OpenTelemetry endpoint not configured, tracing will be disabled")

		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(config.Endpoint),
		otlptracehttp.WithTimeout(config.Timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRatio))),
	)

	providerMu.Lock()
	previous := tracerProvider
	tracerProvider = provider
	providerMu.Unlock()

	if previous != nil {
		_ = previous.Shutdown(ctx)
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("OpenTelemetry tracing initialized",
		"service", config.ServiceName,
		"version", config.ServiceVersion,
		"environment", config.Environment,
		"endpoint", config.Endpoint,
		"sample_ratio", config.SampleRatio,
	)

	return nil
}

// Shutdown flushes and stops the tracer provider installed by Initialize.
func Shutdown(ctx context.Context) error {
	providerMu.Lock()
	provider := tracerProvider
	tracerProvider = nil
	providerMu.Unlock()

	if provider == nil {
		return nil
	}

	logger.Get(ctx).Debug("shutting down OpenTelemetry tracer provider")

	return provider.Shutdown(ctx)
}
