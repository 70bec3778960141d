// Package metrics holds the portal's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_store_calls_total",
			Help: "Record store calls by table, operation and outcome",
		},
		[]string{"table", "op", "outcome"},
	)

	StoreCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_store_call_duration_seconds",
			Help:    "Latency of record store calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table", "op"},
	)

	TableFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_table_fallbacks_total",
			Help: "Reads served by a fallback table or query instead of the first candidate",
		},
		[]string{"resource", "candidate"},
	)

	ReadConfirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_read_confirmations_total",
			Help: "Notice read confirmations by step and outcome",
		},
		[]string{"step", "outcome"},
	)

	Reservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_reservations_total",
			Help: "Pre-reservations submitted by agents",
		},
		[]string{"outcome"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// Outcome maps an error to the "outcome" label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
