// Package metric provides Prometheus metrics for WirePool.
//
// It exposes metrics in Prometheus format for monitoring
// session counts, admission decisions, node health, and request rates.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wirepool"

// Registry holds all counter and histogram metrics, fed by hooks at
// the point of occurrence. Point-in-time gauges (sessions, occupancy,
// per-node load, subscribers) live in Collector, computed at scrape
// time, so the two never disagree with broker state.
type Registry struct {
	reg *prometheus.Registry

	// Session metrics
	ConnectsTotal    *prometheus.CounterVec
	DisconnectsTotal *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	SupersededTotal  prometheus.Counter

	// Admission metrics
	AdmissionRejected *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Sweep metrics
	SweepDuration *prometheus.HistogramVec

	// Event metrics
	EventsDropped prometheus.Counter
}

// NewRegistry creates a new metrics registry with all application
// metrics registered, plus Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		ConnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connects_total",
			Help:      "Total connect attempts by outcome",
		}, []string{"outcome"}),
		DisconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "disconnects_total",
			Help:      "Total terminal sessions by cause (client, superseded, timed_out, establish_failed, node_offline)",
		}, []string{"cause"}),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Observed session durations at disconnect",
			Buckets:   []float64{10, 60, 300, 1800, 3600, 14400, 86400},
		}),
		SupersededTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "superseded_total",
			Help:      "Sessions terminated because the same client reconnected",
		}),

		AdmissionRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "rejected_total",
			Help:      "Requests rejected by the admission gate, by limit class",
		}, []string{"class"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route, and status code",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Background sweep execution time by sweep name",
			Buckets:   []float64{.005, .025, .1, .5, 1, 5, 15},
		}, []string{"sweep"}),

		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "event",
			Name:      "dropped_total",
			Help:      "Events dropped because a subscriber channel was full",
		}),
	}

	r.reg.MustRegister(
		r.ConnectsTotal,
		r.DisconnectsTotal,
		r.SessionDuration,
		r.SupersededTotal,
		r.AdmissionRejected,
		r.RequestsTotal,
		r.RequestDuration,
		r.SweepDuration,
		r.EventsDropped,
	)

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// ConnectAttempt counts one connect attempt by outcome. Satisfies the
// orchestrator's instrumentation hook.
func (r *Registry) ConnectAttempt(outcome string) {
	r.ConnectsTotal.WithLabelValues(outcome).Inc()
}

// SessionEnded counts one terminal session by cause and observes its
// lifetime. Satisfies the orchestrator's instrumentation hook.
func (r *Registry) SessionEnded(cause string, duration time.Duration) {
	r.DisconnectsTotal.WithLabelValues(cause).Inc()
	r.SessionDuration.Observe(duration.Seconds())
	if cause == "superseded" {
		r.SupersededTotal.Inc()
	}
}

// Prometheus returns the underlying registry for custom registration.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
