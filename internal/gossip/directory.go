// Package gossip keeps the local view of the cluster's contact records.
package gossip

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/dreamware/turbine/internal/cluster"
)

// DefaultMaxClockSkew is how far ahead of the local clock a record's
// wallclock may be before the directory refuses it.
const DefaultMaxClockSkew = time.Minute

// Directory is an in-memory gossip table: the local node's own contact
// record plus the latest record received for every other node.
// Thread-safe: All methods are safe for concurrent access.
type Directory struct {
	peers   map[cluster.Pubkey]cluster.ContactInfo // Latest record per remote node
	clock   func() uint64                          // Milliseconds, cluster.Timestamp by default
	self    cluster.ContactInfo                    // The local node's record
	space   cluster.SocketAddrSpace                // Policy applied by TVUPeers
	maxSkew time.Duration                          // Furthest a wallclock may run ahead of clock
	mu      sync.RWMutex                           // Protects peers, self and maxSkew
}

// NewDirectory creates a directory for the node described by self.
//
// Parameters:
//   - self: the local node's contact record
//   - space: address policy a peer's TVU address must pass to be listed by TVUPeers
//
// Example:
//
//	dir := gossip.NewDirectory(me, cluster.SocketAddrSpaceGlobal)
//	dir.Upsert(peer)
func NewDirectory(self cluster.ContactInfo, space cluster.SocketAddrSpace) *Directory {
	return &Directory{
		self:    self,
		space:   space,
		clock:   cluster.Timestamp,
		maxSkew: DefaultMaxClockSkew,
		peers:   make(map[cluster.Pubkey]cluster.ContactInfo),
	}
}

// SetMaxClockSkew changes how far in the future a record's wallclock may be.
func (d *Directory) SetMaxClockSkew(skew time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxSkew = skew
}

// ID returns the local node identity.
func (d *Directory) ID() cluster.Pubkey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.self.ID
}

// MyContactInfo returns the local node's record.
func (d *Directory) MyContactInfo() cluster.ContactInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.self
}

// RefreshSelf restamps the local record's wallclock.
func (d *Directory) RefreshSelf(now uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.self.Wallclock = now
}

// Upsert records ci unless a record at least as new is already known.
// Records for the local identity, and records stamped further ahead of the
// local clock than the max clock skew, are ignored.
//
// Returns:
//   - true if the directory changed
func (d *Directory) Upsert(ci cluster.ContactInfo) bool {
	now := d.clock()

	d.mu.Lock()
	defer d.mu.Unlock()

	if ci.ID == d.self.ID {
		return false
	}
	if ci.Wallclock > now && ci.Wallclock-now > uint64(d.maxSkew.Milliseconds()) {
		return false
	}
	if old, ok := d.peers[ci.ID]; ok && old.Wallclock >= ci.Wallclock {
		return false
	}
	d.peers[ci.ID] = ci
	return true
}

// Remove forgets a peer. No error if the peer is unknown.
func (d *Directory) Remove(id cluster.Pubkey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.peers, id)
}

// Len returns the number of remote peers known.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// Peers returns every remote record, ordered by identity.
func (d *Directory) Peers() []cluster.ContactInfo {
	d.mu.RLock()
	out := make([]cluster.ContactInfo, 0, len(d.peers))
	for _, ci := range d.peers {
		out = append(out, ci)
	}
	d.mu.RUnlock()

	slices.SortFunc(out, func(a, b cluster.ContactInfo) int { return a.ID.Compare(b.ID) })
	return out
}

// TVUPeers returns the remote peers that can receive shreds: every record
// whose TVU address passes the directory's address policy.
func (d *Directory) TVUPeers() []cluster.ContactInfo {
	peers := d.Peers()
	return slices.DeleteFunc(peers, func(ci cluster.ContactInfo) bool {
		return !d.space.IsValid(ci.TVU)
	})
}

// Prune removes peers whose wallclock is more than maxAge away from now
// (milliseconds), in either direction, and returns their identities.
func (d *Directory) Prune(now uint64, maxAge time.Duration) []cluster.Pubkey {
	limit := uint64(maxAge.Milliseconds())

	d.mu.Lock()
	defer d.mu.Unlock()

	var removed []cluster.Pubkey
	for id, ci := range d.peers {
		stale := now > ci.Wallclock && now-ci.Wallclock > limit
		ahead := ci.Wallclock > now && ci.Wallclock-now > limit
		if stale || ahead {
			delete(d.peers, id)
			removed = append(removed, id)
		}
	}
	slices.SortFunc(removed, func(a, b cluster.Pubkey) int { return a.Compare(b) })
	return removed
}
