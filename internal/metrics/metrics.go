// Package metrics holds the daemon's Prometheus collectors. One Metrics
// value is created at startup and injected wherever counters are bumped;
// the registry backs both the /metrics endpoint and the optional Grafana
// Cloud push.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles all collectors with their registry.
type Metrics struct {
	registry *prometheus.Registry

	SwapsCreated     *prometheus.CounterVec
	DepositsDetected *prometheus.CounterVec
	OrdersSubmitted  *prometheus.CounterVec
	SwapsCompleted   *prometheus.CounterVec
	SwapsFailed      *prometheus.CounterVec
	SwapsExpired     prometheus.Counter
	PollerErrors     *prometheus.CounterVec

	SwapsByStatus *prometheus.GaugeVec

	CompletionSeconds prometheus.Histogram
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		SwapsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultswap_swaps_created_total",
			Help: "Swaps created, by chain.",
		}, []string{"chain"}),
		DepositsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultswap_deposits_detected_total",
			Help: "Vault deposits detected, by chain.",
		}, []string{"chain"}),
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultswap_orders_submitted_total",
			Help: "Orders submitted to the orderbook, by chain.",
		}, []string{"chain"}),
		SwapsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultswap_swaps_completed_total",
			Help: "Swaps that reached a settled fill, by chain.",
		}, []string{"chain"}),
		SwapsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultswap_swaps_failed_total",
			Help: "Swaps that ended in failed or refund_pending, by chain.",
		}, []string{"chain"}),
		SwapsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vaultswap_swaps_expired_total",
			Help: "Swaps expired without a deposit.",
		}),
		PollerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultswap_poller_errors_total",
			Help: "Errors swallowed by the polling loops, by component.",
		}, []string{"component"}),
		SwapsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vaultswap_swaps_by_status",
			Help: "Current swap count, by chain and status.",
		}, []string{"chain", "status"}),
		CompletionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vaultswap_swap_completion_seconds",
			Help:    "Time from swap creation to settled fill.",
			Buckets: prometheus.ExponentialBuckets(15, 2, 12),
		}),
	}

	registry.MustRegister(
		m.SwapsCreated,
		m.DepositsDetected,
		m.OrdersSubmitted,
		m.SwapsCompleted,
		m.SwapsFailed,
		m.SwapsExpired,
		m.PollerErrors,
		m.SwapsByStatus,
		m.CompletionSeconds,
	)

	return m
}

// Registry returns the backing registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the exposition handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetStatusGauge replaces the swaps_by_status matrix with fresh counts.
// Cells absent from counts are reset to zero rather than left stale.
func (m *Metrics) SetStatusGauge(counts map[uint64]map[string]int64) {
	m.SwapsByStatus.Reset()
	for chainID, byStatus := range counts {
		chain := strconv.FormatUint(chainID, 10)
		for status, count := range byStatus {
			m.SwapsByStatus.WithLabelValues(chain, status).Set(float64(count))
		}
	}
}

// ChainLabel formats a chain ID for use as a metric label.
func ChainLabel(chainID uint64) string {
	return strconv.FormatUint(chainID, 10)
}
