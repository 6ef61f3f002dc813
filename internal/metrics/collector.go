// Package metrics exposes pipeline counters and timings in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	ModeBuild  = "build"
	ModeLaunch = "launch"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Collector owns its registry. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	attemptsTotal      *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	executionDuration  *prometheus.HistogramVec
	stateTransitions   *prometheus.CounterVec
	telemetryDropped   prometheus.Counter
}

// NewCollector registers every metric on a fresh registry.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	c := &Collector{registry: reg}

	c.attemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instruction_attempts_total",
			Help:      "Total number of instruction attempts",
		},
		[]string{"mode", "outcome"},
	)

	c.generationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent retrieving evidence and generating code",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	c.executionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Time spent executing generated code against the browser",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	c.stateTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runner_state_transitions_total",
			Help:      "Total number of interactive runner state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	c.telemetryDropped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_dropped_total",
			Help:      "Telemetry events discarded before delivery",
		},
	)

	logger.Debug("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

func (c *Collector) RecordAttempt(mode, outcome string) {
	if c == nil {
		return
	}
	c.attemptsTotal.WithLabelValues(mode, outcome).Inc()
}

func (c *Collector) ObserveGeneration(mode string, d time.Duration) {
	if c == nil {
		return
	}
	c.generationDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (c *Collector) ObserveExecution(mode string, d time.Duration) {
	if c == nil {
		return
	}
	c.executionDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (c *Collector) RecordStateTransition(from, to string) {
	if c == nil {
		return
	}
	c.stateTransitions.WithLabelValues(from, to).Inc()
}

func (c *Collector) RecordTelemetryDropped() {
	if c == nil {
		return
	}
	c.telemetryDropped.Inc()
}

// Handler serves the registry for scraping.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
