// Package metrics defines the Prometheus collectors for the diary backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "moodiary"

var (
	// EntrySaves counts SaveEntry calls by path (create|update) and outcome
	// (ok|invalid|not_found|forbidden|conflict|error).
	EntrySaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "entries",
		Name:      "saves_total",
		Help:      "Entry saves by path and outcome",
	}, []string{"path", "outcome"})

	// EntrySaveDuration observes SaveEntry latency, transaction retries included.
	EntrySaveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "entries",
		Name:      "save_duration_seconds",
		Help:      "Entry save latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"path"})

	// StoreTxRetries counts transactions re-run after a conflict, by backend.
	StoreTxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "tx_retries_total",
		Help:      "Transactions retried after a write conflict",
	}, []string{"backend"})

	// Uploads counts image and drawing uploads by kind and outcome.
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "uploads",
		Name:      "total",
		Help:      "File uploads by kind and outcome",
	}, []string{"kind", "outcome"})

	// LiveConnections tracks open live-update WebSocket connections on this instance.
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "live",
		Name:      "connections",
		Help:      "Open live-update WebSocket connections",
	})
)
