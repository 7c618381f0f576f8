// Package metrics holds the prometheus collectors of the server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "tradecycle"

type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	reviews      *prometheus.CounterVec
	cyclesIssued *prometheus.CounterVec
	quotaDenials prometheus.Counter
	ledgerVolume *prometheus.CounterVec
}

// New builds a Metrics with its own registry, so tests can create many.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "decisions_total",
			Help:      "Review decisions by entity and outcome.",
		}, []string{"entity", "outcome"}),
		cyclesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycles",
			Name:      "issued_total",
			Help:      "Cycles issued by plan.",
		}, []string{"plan"}),
		quotaDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycles",
			Name:      "quota_denials_total",
			Help:      "Cycle requests refused because the daily quota was used up.",
		}),
		ledgerVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "volume_usd_total",
			Help:      "USD moved through the ledger by kind.",
		}, []string{"kind"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.reviews,
		m.cyclesIssued,
		m.quotaDenials,
		m.ledgerVolume,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) InFlight(delta float64) {
	m.httpInFlight.Add(delta)
}

// ObserveHTTP records one request. path is the route template, not the raw URL.
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) ReviewDecided(entity, outcome string) {
	m.reviews.WithLabelValues(entity, outcome).Inc()
}

func (m *Metrics) CycleIssued(planID string) {
	m.cyclesIssued.WithLabelValues(planID).Inc()
}

func (m *Metrics) QuotaDenied() {
	m.quotaDenials.Inc()
}

func (m *Metrics) LedgerMoved(kind string, amount decimal.Decimal) {
	m.ledgerVolume.WithLabelValues(kind).Add(amount.Abs().InexactFloat64())
}
