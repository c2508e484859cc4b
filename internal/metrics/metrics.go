package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bpmon",
			Subsystem: "monitor",
			Name:      "checks_total",
			Help:      "Number of completed reconciliation cycles by result.",
		}, []string{"result"},
	)
	checkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bpmon",
			Subsystem: "monitor",
			Name:      "check_duration_seconds",
			Help:      "Duration of one reconciliation cycle including upstream calls.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	activeMonitors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bpmon",
			Subsystem: "monitor",
			Name:      "active",
			Help:      "Current number of tracked monitors.",
		},
	)
	loginsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bpmon",
			Subsystem: "upstream",
			Name:      "logins_total",
			Help:      "Number of form logins performed against the upstream.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{checksTotal, checkDuration, activeMonitors, loginsTotal}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncCheck(result string) {
	if regOK.Load() {
		checksTotal.WithLabelValues(result).Inc()
	}
}

func ObserveCheckDuration(seconds float64) {
	if regOK.Load() {
		checkDuration.Observe(seconds)
	}
}

func SetActiveMonitors(n int) {
	if regOK.Load() {
		activeMonitors.Set(float64(n))
	}
}

func IncLogin() {
	if regOK.Load() {
		loginsTotal.Inc()
	}
}
