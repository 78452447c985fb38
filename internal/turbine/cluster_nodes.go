package turbine

import (
	"math/bits"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/dreamware/turbine/internal/cluster"
	"github.com/dreamware/turbine/internal/metrics"
	"github.com/dreamware/turbine/internal/shuffle"
)

// GossipPullTimeout bounds how far a contact record's wallclock may be
// from now for the peer to count as live.
const GossipPullTimeout = 15 * time.Second

// clusterNodes is the registry shared by both roles. It is immutable once
// built.
type clusterNodes struct {
	log     logrus.FieldLogger
	metrics *metrics.Registry
	index   map[cluster.Pubkey]int
	shuffle *shuffle.WeightedShuffle
	nodes   []Node // sorted by (stake, pubkey) descending
	pubkey  cluster.Pubkey
	epoch   cluster.Epoch // set by Cache to the epoch the stakes came from
	total   uint64        // saturating sum of stakes
}

// newClusterNodes builds the registry from the local node, its gossip
// peers and the epoch stakes. Every staked identity is included even when
// gossip has no contact record for it.
func newClusterNodes(self cluster.ContactInfo, peers []cluster.ContactInfo, stakes map[cluster.Pubkey]uint64) clusterNodes {
	nodes := make([]Node, 0, 1+len(peers)+len(stakes))
	nodes = append(nodes, Node{pubkey: self.ID, contact: &self, stake: stakes[self.ID]})
	for i := range peers {
		ci := peers[i]
		nodes = append(nodes, Node{pubkey: ci.ID, contact: &ci, stake: stakes[ci.ID]})
	}
	for id, stake := range stakes {
		if stake > 0 {
			nodes = append(nodes, Node{pubkey: id, stake: stake})
		}
	}

	// Stable, so for a duplicated identity the entry carrying contact info,
	// appended first, is the one kept.
	slices.SortStableFunc(nodes, func(a, b Node) int {
		switch {
		case a.stake > b.stake:
			return -1
		case a.stake < b.stake:
			return 1
		}
		return b.pubkey.Compare(a.pubkey)
	})
	nodes = slices.CompactFunc(nodes, func(a, b Node) bool {
		return a.pubkey == b.pubkey
	})

	index := make(map[cluster.Pubkey]int, len(nodes))
	weights := make([]uint64, len(nodes))
	var total uint64
	for i := range nodes {
		index[nodes[i].pubkey] = i
		weights[i] = nodes[i].stake
		sum, carry := bits.Add64(total, nodes[i].stake, 0)
		if carry != 0 {
			sum = ^uint64(0)
		}
		total = sum
	}

	return clusterNodes{
		pubkey:  self.ID,
		nodes:   nodes,
		index:   index,
		shuffle: shuffle.New(weights),
		total:   total,
		log:     logrus.StandardLogger(),
	}
}

// NumPeers is the number of nodes other than the local one.
func (c *clusterNodes) NumPeers() int {
	if len(c.nodes) == 0 {
		return 0
	}
	return len(c.nodes) - 1
}

// NumPeersLive counts the other nodes whose contact record was generated
// within GossipPullTimeout of now, in either direction. now is in
// milliseconds.
func (c *clusterNodes) NumPeersLive(now uint64) int {
	timeout := uint64(GossipPullTimeout.Milliseconds())
	live := 0
	for i := range c.nodes {
		node := &c.nodes[i]
		if node.pubkey == c.pubkey || node.contact == nil {
			continue
		}
		elapsed := now - node.contact.Wallclock
		if node.contact.Wallclock > now {
			elapsed = node.contact.Wallclock - now
		}
		if elapsed < timeout {
			live++
		}
	}
	return live
}

// Nodes returns the registry in order.
func (c *clusterNodes) Nodes() []*Node {
	out := make([]*Node, len(c.nodes))
	for i := range c.nodes {
		out[i] = &c.nodes[i]
	}
	return out
}

// Index returns the registry position of id.
func (c *clusterNodes) Index(id cluster.Pubkey) (int, bool) {
	i, ok := c.index[id]
	return i, ok
}

// TotalStake is the sum of every registry stake.
func (c *clusterNodes) TotalStake() uint64 {
	return c.total
}

// Epoch is the leader schedule epoch whose stakes the registry was built
// from. It can differ from the epoch of the slot passed to Cache.Get when
// the cache fell back to the root epoch. Registries built outside a Cache
// report zero.
func (c *clusterNodes) Epoch() cluster.Epoch {
	return c.epoch
}

// Pubkey is the local identity the registry was built for.
func (c *clusterNodes) Pubkey() cluster.Pubkey {
	return c.pubkey
}
