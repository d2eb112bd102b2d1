// Package metrics wires the sync core's counters and histograms to
// prometheus/client_golang. The teacher itself never reaches for a
// metrics client directly; the rest of the retrieval pack's
// higher-throughput consensus-style services wire client_golang
// pervasively, so that library is adopted here instead (per-component
// Counter/Histogram vectors registered once and shared by value).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "syncore"

// Metrics bundles every counter and histogram emitted across peer
// finding, dialing, sync sessions, and delta application (spec §4.3,
// §4.6, §4.7, §4.8).
type Metrics struct {
	reg *prometheus.Registry

	PeerFindDuration    *prometheus.HistogramVec
	DialAttempts        *prometheus.CounterVec
	DialDuration        *prometheus.HistogramVec
	DialsInFlight       prometheus.Gauge

	SyncRoundTrips      *prometheus.HistogramVec
	SyncEntitiesSynced  *prometheus.CounterVec
	SyncEntitiesSkipped *prometheus.CounterVec
	SyncBytesReceived   *prometheus.CounterVec
	SyncBytesSent       *prometheus.CounterVec
	SyncDuration        *prometheus.HistogramVec
	SyncFailures        *prometheus.CounterVec

	DeltaApplyDuration  *prometheus.HistogramVec
	DeltaMergeScenarios prometheus.Counter

	BridgeDropped       prometheus.Counter
	BridgeDispatched    prometheus.Counter
	BridgeQueueDepth    prometheus.Gauge
}

// New registers and returns a fresh Metrics bundle against its own
// registry, so tests and multiple node instances never collide on
// prometheus's global DefaultRegisterer.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		PeerFindDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "find_duration_seconds",
			Help:      "Time spent composing a candidate set across strategies.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		DialAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "dial_attempts_total",
			Help:      "Dial attempts by outcome.",
		}, []string{"outcome"}),
		DialDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "dial_duration_seconds",
			Help:      "Per-dial wall time, win or lose.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		DialsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "peer",
			Name:      "dials_in_flight",
			Help:      "Dials currently racing in a batch.",
		}),
		SyncRoundTrips: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "round_trips",
			Help:      "Round trips consumed by a sync session, by protocol.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}, []string{"protocol"}),
		SyncEntitiesSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "entities_synced_total",
			Help:      "Entities converged by a sync session.",
		}, []string{"protocol"}),
		SyncEntitiesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "entities_skipped_total",
			Help:      "Entities found already-equal and skipped.",
		}, []string{"protocol"}),
		SyncBytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "bytes_received_total",
			Help:      "Bytes received during a sync session.",
		}, []string{"protocol"}),
		SyncBytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "bytes_sent_total",
			Help:      "Bytes sent during a sync session.",
		}, []string{"protocol"}),
		SyncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "session_duration_seconds",
			Help:      "Wall time of a full sync session.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"protocol"}),
		SyncFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "failures_total",
			Help:      "Sync session failures by error kind.",
		}, []string{"kind"}),
		DeltaApplyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "delta",
			Name:      "apply_duration_seconds",
			Help:      "Time spent applying a single delta, by scenario.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"scenario"}),
		DeltaMergeScenarios: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delta",
			Name:      "merge_scenarios_total",
			Help:      "Deltas applied against a concurrent branch (I9).",
		}),
		BridgeDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "dropped_total",
			Help:      "Events dropped because the bridge queue was full.",
		}),
		BridgeDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "dispatched_total",
			Help:      "Events successfully enqueued onto the bridge.",
		}),
		BridgeQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "queue_depth",
			Help:      "Current occupancy of the bridge queue.",
		}),
	}

	reg.MustRegister(
		m.PeerFindDuration, m.DialAttempts, m.DialDuration, m.DialsInFlight,
		m.SyncRoundTrips, m.SyncEntitiesSynced, m.SyncEntitiesSkipped,
		m.SyncBytesReceived, m.SyncBytesSent, m.SyncDuration, m.SyncFailures,
		m.DeltaApplyDuration, m.DeltaMergeScenarios,
		m.BridgeDropped, m.BridgeDispatched, m.BridgeQueueDepth,
	)
	return m
}

// Registry exposes the underlying registry for an HTTP exporter to serve.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
