// Package metrics declares the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPC metrics
	RPCRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "residuals_rpc_requests_total",
			Help: "Total number of RPC requests",
		},
		[]string{"procedure", "code"},
	)

	RPCDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "residuals_rpc_duration_seconds",
			Help:    "RPC duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"procedure"},
	)

	// Ledger sync metrics
	LedgerOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "residuals_ledger_records_total",
			Help: "Ledger records written by the reconciler, by operation",
		},
		[]string{"op"},
	)

	LedgerBatchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "residuals_ledger_batch_errors_total",
		Help: "Total number of failed ledger write batches",
	})

	LedgerDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "residuals_ledger_duplicates_total",
		Help: "Total number of duplicate ledger records detected",
	})

	LedgerOrphans = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "residuals_ledger_orphans",
		Help: "Orphaned ledger records found by the last full sync",
	})

	// Workflow metrics
	AdjustmentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "residuals_adjustment_transitions_total",
			Help: "Adjustment records moved into each status",
		},
		[]string{"status"},
	)

	PartnerCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "residuals_partner_cache_hits_total",
		Help: "Total number of partner directory cache hits",
	})

	PartnerCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "residuals_partner_cache_misses_total",
		Help: "Total number of partner directory cache misses",
	})
)

// Ledger operation labels.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)
