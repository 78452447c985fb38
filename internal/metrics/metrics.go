package metrics

import (
	"strconv"
	"time"
)

// RecordCacheHit counts a lookup served from a fresh snapshot.
func (r *Registry) RecordCacheHit(role string) {
	if r == nil {
		return
	}
	r.CacheHitsTotal.WithLabelValues(role).Inc()
}

// RecordRecompute counts a snapshot rebuild and records how long it took
// and how many peers it holds.
func (r *Registry) RecordRecompute(role string, duration time.Duration, peers, live int) {
	if r == nil {
		return
	}
	r.CacheRecomputesTotal.WithLabelValues(role).Inc()
	r.CacheRecomputeDuration.WithLabelValues(role).Observe(duration.Seconds())
	r.TreePeers.WithLabelValues(role).Set(float64(peers))
	r.TreePeersLive.WithLabelValues(role).Set(float64(live))
}

// RecordUnknownEpochStakes counts a lookup whose epoch neither view knew.
func (r *Registry) RecordUnknownEpochStakes(role string) {
	if r == nil {
		return
	}
	r.UnknownEpochStakesTotal.WithLabelValues(role).Inc()
}

// RecordUnknownRootEpochStakes counts a lookup that fell back to the
// root's own epoch and still found nothing.
func (r *Registry) RecordUnknownRootEpochStakes(role string) {
	if r == nil {
		return
	}
	r.UnknownRootEpochStakesTotal.WithLabelValues(role).Inc()
}

// RecordRetransmitFromLeader counts a retransmit derivation made by the
// slot leader itself.
func (r *Registry) RecordRetransmitFromLeader() {
	if r == nil {
		return
	}
	r.RetransmitFromLeaderTotal.Inc()
}

// RecordRetransmitSelfMissing counts an aborted retransmit derivation.
func (r *Registry) RecordRetransmitSelfMissing() {
	if r == nil {
		return
	}
	r.RetransmitSelfMissingTotal.Inc()
}

// RecordGossipPush counts a pushed contact record.
func (r *Registry) RecordGossipPush(accepted bool) {
	if r == nil {
		return
	}
	result := "ignored"
	if accepted {
		result = "accepted"
	}
	r.GossipPushesTotal.WithLabelValues(result).Inc()
}

// RecordGossipPruned counts dropped contact records.
func (r *Registry) RecordGossipPruned(n int) {
	if r == nil {
		return
	}
	r.GossipPrunedTotal.Add(float64(n))
}

// SetGossipPeers sets the number of held contact records.
func (r *Registry) SetGossipPeers(n int) {
	if r == nil {
		return
	}
	r.GossipPeers.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request
func (r *Registry) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
