// Package metrics exposes the engine's Prometheus counters. Everything is
// registered on the default registry and served from /metrics by cmd/server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_reservations_total",
		Help: "Successful stock reservations.",
	})

	InsufficientStockTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_insufficient_total",
		Help: "Reservations rejected because the available pool was short.",
	})

	VersionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_version_conflicts_total",
		Help: "Optimistic-lock conflicts retried by the ledger.",
	})

	ClampAnomaliesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_clamp_anomalies_total",
		Help: "Counter mutations clamped at zero; indicates inconsistent upstream state.",
	})

	ConsistencyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_consistency_failures_total",
		Help: "Invariant violations detected after a counter mutation.",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "request_transitions_total",
		Help: "Request lifecycle transitions by action.",
	}, []string{"action"})
)
