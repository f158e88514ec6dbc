// Package metrics exposes the Prometheus collectors shared by every role
// process (dispatcher, advance-runner, authority-claimer, indexer).
//
// Handler exposes the registry over HTTP; each role's main serves it on a
// role-specific port.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rollups"

var (
	// Registry holds every collector registered by this process.
	Registry = prometheus.NewRegistry()

	// InputsSentTotal counts AdvanceStateInput events written to the broker.
	InputsSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "inputs_sent_total",
		Help:      "Total AdvanceStateInput events enqueued to rollups-inputs.",
	})

	// EpochsFinishedTotal counts FinishEpoch events written to the broker.
	EpochsFinishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatcher",
		Name:      "epochs_finished_total",
		Help:      "Total FinishEpoch events enqueued to rollups-inputs.",
	})

	// ClaimsSubmittedTotal counts claim transactions submitted to L1.
	ClaimsSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "claimer",
		Name:      "claims_submitted_total",
		Help:      "Total claim transactions submitted, by outcome.",
	}, []string{"outcome"})

	// AdvanceDuration measures machine AdvanceState call latency.
	AdvanceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "advance_runner",
		Name:      "advance_state_duration_seconds",
		Help:      "Duration of AdvanceState machine calls.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	// SnapshotsTakenTotal counts completed snapshot repoints.
	SnapshotsTakenTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "advance_runner",
		Name:      "snapshots_taken_total",
		Help:      "Total snapshots successfully promoted to latest.",
	})

	// IndexedRowsTotal counts rows written by the indexer, by table.
	IndexedRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "rows_written_total",
		Help:      "Total rows inserted (including no-op conflicts), by table.",
	}, []string{"table"})

	// BlockLag reports the gap between the chain tip and the folded view.
	BlockLag = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "statefold",
		Name:      "block_lag",
		Help:      "Blocks between the L1 chain tip and the last folded block.",
	})
)

func init() {
	Registry.MustRegister(
		InputsSentTotal,
		EpochsFinishedTotal,
		ClaimsSubmittedTotal,
		AdvanceDuration,
		SnapshotsTakenTotal,
		IndexedRowsTotal,
		BlockLag,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
