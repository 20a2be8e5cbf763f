// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "runtext"

// Metrics holds the Prometheus collectors for the engine. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	events          *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	actionErrors    *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
	triggerFailures *prometheus.CounterVec
	activeTriggers  *prometheus.GaugeVec
	running         *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trigger_events_total",
				Help:      "Activity edges received from triggers",
			},
			[]string{"context", "trigger", "activity"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Enter and leave batches issued to actions",
			},
			[]string{"context", "decision"},
		),
		actionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_errors_total",
				Help:      "Failed enter or leave calls",
			},
			[]string{"context", "action", "operation"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Time taken by one enter or leave batch",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"context", "decision"},
		),
		triggerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trigger_failures_total",
				Help:      "Trigger sequences that ended with an error",
			},
			[]string{"context", "trigger"},
		),
		activeTriggers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_triggers",
				Help:      "Current activity counter of a context",
			},
			[]string{"context"},
		),
		running: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "context_running",
				Help:      "Whether the driver of a context is running",
			},
			[]string{"context"},
		),
	}

	registry.MustRegister(
		m.events,
		m.transitions,
		m.actionErrors,
		m.actionDuration,
		m.triggerFailures,
		m.activeTriggers,
		m.running,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordEvent(contextName, trigger, activity string, counter int) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(contextName, trigger, activity).Inc()
	m.activeTriggers.WithLabelValues(contextName).Set(float64(counter))
}

func (m *Metrics) RecordTransition(contextName, decision string, took time.Duration) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(contextName, decision).Inc()
	m.actionDuration.WithLabelValues(contextName, decision).Observe(took.Seconds())
}

func (m *Metrics) RecordActionError(contextName, action, operation string) {
	if m == nil {
		return
	}
	m.actionErrors.WithLabelValues(contextName, action, operation).Inc()
}

func (m *Metrics) RecordTriggerFailure(contextName, trigger string) {
	if m == nil {
		return
	}
	m.triggerFailures.WithLabelValues(contextName, trigger).Inc()
}

func (m *Metrics) SetRunning(contextName string, running bool) {
	if m == nil {
		return
	}
	v := 0.0
	if running {
		v = 1
	}
	m.running.WithLabelValues(contextName).Set(v)
}
