package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCacheMetrics() {
	r.CacheHitsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbine_cache_hits_total",
			Help: "Lookups answered by a cached snapshot within its TTL",
		},
		[]string{"role"}, // broadcast, retransmit
	)

	r.CacheRecomputesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbine_cache_recomputes_total",
			Help: "Snapshots rebuilt because the epoch was missing or expired",
		},
		[]string{"role"},
	)

	r.CacheRecomputeDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turbine_cache_recompute_duration_seconds",
			Help:    "Time spent rebuilding a snapshot",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"role"},
	)

	r.UnknownEpochStakesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbine_unknown_epoch_staked_nodes_total",
			Help: "Lookups whose epoch stakes were unknown to both root and working views",
		},
		[]string{"role"},
	)

	r.UnknownRootEpochStakesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbine_unknown_epoch_staked_nodes_root_total",
			Help: "Lookups where even the root's own leader schedule epoch had no stakes",
		},
		[]string{"role"},
	)
}
