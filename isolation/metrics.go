package isolation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	killsTotal = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "timebox_isolation_kills_total",
		Help: "The total number of isolated children killed for overrunning",
	})

	startupSeconds = promauto.NewHistogram(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "timebox_isolation_startup_seconds",
		Help:    "Time from spawning a child to completing the handshake",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), //nolint:mnd
	})

	startupTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "timebox_isolation_startup_timeouts_total",
		Help: "The total number of children that never completed the handshake",
	})
)
