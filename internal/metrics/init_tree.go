package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initTreeMetrics() {
	r.TreePeers = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "turbine_tree_peers",
			Help: "Nodes in the most recently built snapshot, excluding self",
		},
		[]string{"role"},
	)

	r.TreePeersLive = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "turbine_tree_peers_live",
			Help: "Nodes in the most recently built snapshot with fresh contact info",
		},
		[]string{"role"},
	)

	r.RetransmitFromLeaderTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "turbine_retransmit_from_leader_total",
			Help: "Retransmit derivations where the local node was the slot leader",
		},
	)

	r.RetransmitSelfMissingTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "turbine_retransmit_self_missing_total",
			Help: "Retransmit derivations aborted because the local node was not in the shuffle",
		},
	)
}
