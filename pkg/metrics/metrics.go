// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/ledger-bot/pkg/store"
)

const namespace = "ledgerbot"

// Metrics holds the collectors and the registry they are registered in
type Metrics struct {
	registry *prometheus.Registry

	updates       *prometheus.CounterVec
	parseResults  *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	commits       *prometheus.CounterVec
	storeRequests *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	trackedUsers  prometheus.Gauge
}

// New creates and registers all collectors on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound chat events by kind.",
		}, []string{"kind"}),
		parseResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_results_total",
			Help:      "Transaction parse outcomes.",
		}, []string{"result"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Events rejected by the per-user rate limiter.",
		}, []string{"kind"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_commits_total",
			Help:      "Ledger record commits by outcome.",
		}, []string{"outcome"}),
		storeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_requests_total",
			Help:      "Remote store requests by operation and status.",
		}, []string{"op", "table", "status"}),
		storeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_request_duration_seconds",
			Help:      "Remote store request latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		trackedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_users",
			Help:      "Users currently held in the conversation state store.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.updates,
		m.parseResults,
		m.rateLimited,
		m.commits,
		m.storeRequests,
		m.storeLatency,
		m.trackedUsers,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) IncUpdate(kind string) {
	m.updates.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncParseResult(result string) {
	m.parseResults.WithLabelValues(result).Inc()
}

func (m *Metrics) IncRateLimited(kind string) {
	m.rateLimited.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncCommit(outcome string) {
	m.commits.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetTrackedUsers(n int) {
	m.trackedUsers.Set(float64(n))
}

// ObserveStoreRequest implements store.Observer
func (m *Metrics) ObserveStoreRequest(op, table string, err error, elapsed time.Duration) {
	m.storeRequests.WithLabelValues(op, table, storeStatus(err)).Inc()
	m.storeLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func storeStatus(err error) string {
	var apiErr *store.APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "transport_error"
	}
}
