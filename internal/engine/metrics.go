package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Node outcomes, used as the "outcome" label and as Stats fields.
const (
	outcomeInvalid     = "invalid"
	outcomeFiltered    = "filtered"
	outcomeSkipped     = "skipped"
	outcomeFailed      = "failed"
	outcomeCommitted   = "committed"
	outcomeAlreadyDone = "already_done"
)

type metrics struct {
	nodes     *prometheus.CounterVec
	position  prometheus.Gauge
	remaining prometheus.Gauge
	simulate  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		nodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridmaker",
			Name:      "nodes_total",
			Help:      "Grid nodes processed, by outcome.",
		}, []string{"outcome"}),
		position: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridmaker",
			Name:      "shard_position",
			Help:      "Nodes of the current shard dispatched so far, including those done by earlier runs.",
		}),
		remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridmaker",
			Name:      "shard_remaining",
			Help:      "Nodes of the current shard not yet dispatched.",
		}),
		simulate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridmaker",
			Name:      "simulate_duration_seconds",
			Help:      "Time spent in the simulator per node.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
	reg.MustRegister(m.nodes, m.position, m.remaining, m.simulate)
	return m
}
