package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	Admissions     *prometheus.CounterVec
	CacheLookups   *prometheus.CounterVec
	ProofOfWork    prometheus.Histogram
	EventsSent     prometheus.Counter
	Subscriptions  prometheus.Counter
	Notices        prometheus.Counter
	ActiveSessions prometheus.Gauge
}

// New builds the collectors under namespace on a fresh registry.
func New(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.Admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "admissions_total",
			Namespace: namespace,
			Subsystem: "relay",
			Help:      "Admitted and rejected events by route and outcome.",
		},
		[]string{"route", "outcome"},
	)

	m.CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:      "dedupe_lookups_total",
			Namespace: namespace,
			Subsystem: "cache",
			Help:      "Dedupe cache lookups by result.",
		},
		[]string{"result"},
	)

	m.ProofOfWork = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:      "proof_of_work_difficulty",
			Namespace: namespace,
			Subsystem: "relay",
			Help:      "Achieved difficulty of proof of work events.",
			Buckets:   prometheus.LinearBuckets(0, 4, 16),
		},
	)

	m.EventsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "events_sent_total",
			Namespace: namespace,
			Subsystem: "relay",
			Help:      "EVENT frames sent in answer to REQ.",
		},
	)

	m.Subscriptions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "requests_total",
			Namespace: namespace,
			Subsystem: "relay",
			Help:      "REQ messages answered.",
		},
	)

	m.Notices = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:      "notices_total",
			Namespace: namespace,
			Subsystem: "relay",
			Help:      "NOTICE frames sent.",
		},
	)

	m.ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:      "active_sessions",
			Namespace: namespace,
			Subsystem: "websocket",
			Help:      "Open websocket sessions.",
		},
	)

	m.registry.MustRegister(
		m.Admissions,
		m.CacheLookups,
		m.ProofOfWork,
		m.EventsSent,
		m.Subscriptions,
		m.Notices,
		m.ActiveSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Admission(route, outcome string) {
	if m == nil {
		return
	}
	m.Admissions.WithLabelValues(route, outcome).Inc()
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) Difficulty(bits int) {
	if m == nil {
		return
	}
	m.ProofOfWork.Observe(float64(bits))
}

func (m *Metrics) EventSent() {
	if m == nil {
		return
	}
	m.EventsSent.Inc()
}

func (m *Metrics) Request() {
	if m == nil {
		return
	}
	m.Subscriptions.Inc()
}

func (m *Metrics) Notice() {
	if m == nil {
		return
	}
	m.Notices.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}
