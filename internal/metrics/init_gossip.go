package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initGossipMetrics() {
	r.GossipPeers = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "turbine_gossip_peers",
			Help: "Contact records currently held, excluding self",
		},
	)

	r.GossipPushesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbine_gossip_pushes_total",
			Help: "Contact records received by push",
		},
		[]string{"result"}, // accepted, ignored
	)

	r.GossipPrunedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "turbine_gossip_pruned_total",
			Help: "Contact records dropped for being stale",
		},
	)
}
