package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "timebox_attempts_total",
		Help: "The total number of attempts, by executor and outcome",
	}, []string{"executor", "outcome"})

	attemptDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "timebox_attempt_duration_seconds",
		Help:    "Wall time spent on a single attempt",
		Buckets: prometheus.ExponentialBuckets(0.005, 4, 10), //nolint:mnd
	}, []string{"executor"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "timebox_runs_total",
		Help: "The total number of runs, by how they ended",
	}, []string{"outcome"})
)

const (
	runPassed         = "passed"
	runExhausted      = "exhausted"
	runOverallTimeout = "overall_timeout"
	runAborted        = "aborted"
	runInvalid        = "invalid"
)
