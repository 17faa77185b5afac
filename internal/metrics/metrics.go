// Package metrics counts what a run did and can push the result to a
// Prometheus pushgateway once the run is over. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/sourceplane/litejob/internal/model"
)

// Metrics holds the run's collectors in a private registry
type Metrics struct {
	registry *prometheus.Registry

	triggered prometheus.Counter
	skipped   prometheus.Counter
	polls     prometheus.Counter
	results   *prometheus.CounterVec
	wait      prometheus.Histogram
}

// New creates the collectors and registers them
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		triggered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "litejob_builds_triggered_total",
			Help: "Builds triggered on the CI server.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "litejob_triggers_skipped_total",
			Help: "Triggers skipped because the previous build was still running.",
		}),
		polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "litejob_status_polls_total",
			Help: "Build status requests sent to the CI server.",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "litejob_build_results_total",
			Help: "Completed builds by result.",
		}, []string{"status"}),
		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "litejob_build_wait_seconds",
			Help:    "Time spent polling a build until it completed.",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10),
		}),
	}
	m.registry.MustRegister(m.triggered, m.skipped, m.polls, m.results, m.wait)
	return m
}

// Registry exposes the registry the collectors live in
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) BuildTriggered() {
	if m != nil {
		m.triggered.Inc()
	}
}

func (m *Metrics) TriggerSkipped() {
	if m != nil {
		m.skipped.Inc()
	}
}

func (m *Metrics) StatusPolled() {
	if m != nil {
		m.polls.Inc()
	}
}

// BuildFinished records a completed build and how long it was waited on
func (m *Metrics) BuildFinished(status model.BuildStatus, waited time.Duration) {
	if m != nil {
		m.results.WithLabelValues(string(status)).Inc()
		m.wait.Observe(waited.Seconds())
	}
}

// Push sends the collected metrics to a pushgateway under the given job name
func (m *Metrics) Push(gateway, job string) error {
	if m == nil || gateway == "" {
		return nil
	}
	if err := push.New(gateway, job).Gatherer(m.registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", gateway, err)
	}
	return nil
}
