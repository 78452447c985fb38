// Package metrics holds the prometheus collectors exported by a turbine node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Role label values.
const (
	RoleBroadcast  = "broadcast"
	RoleRetransmit = "retransmit"
)

// Registry holds all metrics for a turbine node.
//
// A nil *Registry is valid: every recording method on it is a no-op, so
// components can take one optionally.
type Registry struct {
	// Cache Metrics
	CacheHitsTotal              *prometheus.CounterVec
	CacheRecomputesTotal        *prometheus.CounterVec
	CacheRecomputeDuration      *prometheus.HistogramVec
	UnknownEpochStakesTotal     *prometheus.CounterVec
	UnknownRootEpochStakesTotal *prometheus.CounterVec

	// Tree Metrics
	TreePeers                  *prometheus.GaugeVec
	TreePeersLive              *prometheus.GaugeVec
	RetransmitFromLeaderTotal  prometheus.Counter
	RetransmitSelfMissingTotal prometheus.Counter

	// Gossip Metrics
	GossipPeers       prometheus.Gauge
	GossipPushesTotal *prometheus.CounterVec
	GossipPrunedTotal prometheus.Counter

	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry backed by a fresh prometheus registry
// with every metric initialized.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initCacheMetrics()
	r.initTreeMetrics()
	r.initGossipMetrics()
	r.initHTTPMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
