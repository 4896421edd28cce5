// Package metrics exposes coordinator metrics in the Prometheus text format.
//
//   - coordinator_tasks_submitted_total{kind}              sessions that reached Polling
//   - coordinator_sessions_finished_total{kind,outcome}    terminal sessions by outcome
//   - coordinator_sessions_live{kind}                      sessions currently polling
//   - coordinator_task_progress_total{kind}                progress messages surfaced
//   - coordinator_session_duration_seconds{kind,outcome}   submit to terminal
//   - coordinator_reconciled_records_total{classification} reconciler output
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aristath/splitrelay/internal/tasks"
)

// Metrics owns a private registry so tests and multiple servers do not collide.
type Metrics struct {
	registry *prometheus.Registry

	submitted  *prometheus.CounterVec
	finished   *prometheus.CounterVec
	live       *prometheus.GaugeVec
	progress   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	reconciled *prometheus.CounterVec

	mu      sync.Mutex
	started map[string]time.Time
}

// New creates and registers the coordinator metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_tasks_submitted_total",
				Help: "Tasks submitted and being polled",
			},
			[]string{"kind"},
		),
		finished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_sessions_finished_total",
				Help: "Sessions that reached a terminal state, by outcome",
			},
			[]string{"kind", "outcome"},
		),
		live: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coordinator_sessions_live",
				Help: "Sessions currently polling",
			},
			[]string{"kind"},
		),
		progress: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_task_progress_total",
				Help: "Worker progress updates surfaced to observers",
			},
			[]string{"kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coordinator_session_duration_seconds",
				Help:    "Time from submission to the terminal state",
				Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 180, 300},
			},
			[]string{"kind", "outcome"},
		),
		reconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coordinator_reconciled_records_total",
				Help: "Buy-side trade records classified by the reconciler",
			},
			[]string{"classification"},
		),
		started: make(map[string]time.Time),
	}

	m.registry.MustRegister(m.submitted, m.finished, m.live, m.progress, m.duration, m.reconciled)
	return m
}

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SessionEvent implements tasks.EventSink.
func (m *Metrics) SessionEvent(ev tasks.StatusEvent) {
	kind := string(ev.Kind)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case ev.Terminal():
		m.finished.WithLabelValues(kind, string(ev.Outcome)).Inc()
		if start, ok := m.started[ev.TaskID]; ok && ev.TaskID != "" {
			delete(m.started, ev.TaskID)
			m.live.WithLabelValues(kind).Dec()
			m.duration.WithLabelValues(kind, string(ev.Outcome)).Observe(ev.At.Sub(start).Seconds())
		}
	case ev.Seq == 1:
		m.submitted.WithLabelValues(kind).Inc()
		m.live.WithLabelValues(kind).Inc()
		m.started[ev.TaskID] = ev.At
	default:
		m.progress.WithLabelValues(kind).Inc()
	}
}

// ObserveReconciliation counts classified records.
func (m *Metrics) ObserveReconciliation(counts map[string]int) {
	for classification, n := range counts {
		m.reconciled.WithLabelValues(classification).Add(float64(n))
	}
}
