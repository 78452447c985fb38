package turbine

import (
	"net/netip"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/turbine/internal/cluster"
	tree "github.com/dreamware/turbine/internal/fanout"
	"github.com/dreamware/turbine/internal/metrics"
	"github.com/dreamware/turbine/internal/shred"
	"github.com/dreamware/turbine/internal/shuffle"
)

// MaxContactInfoAge is how old the first pick's contact record may be for
// the leader to send it the shred alone.
const MaxContactInfoAge = 2 * time.Minute

// BroadcastNodes is the registry as seen by the slot leader sending its
// own shreds. The local node is never a target.
type BroadcastNodes struct {
	clusterNodes
}

// NewBroadcastNodes builds a broadcast snapshot from gossip and the epoch
// stakes. A nil log uses the logrus standard logger.
func NewBroadcastNodes(peers PeerSource, stakes map[cluster.Pubkey]uint64, log logrus.FieldLogger) *BroadcastNodes {
	return newBroadcastNodes(peers, stakes, log, nil)
}

func newBroadcastNodes(peers PeerSource, stakes map[cluster.Pubkey]uint64, log logrus.FieldLogger, m *metrics.Registry) *BroadcastNodes {
	c := newClusterNodes(peers.MyContactInfo(), peers.TVUPeers(), stakes)
	if log != nil {
		c.log = log
	}
	c.metrics = m
	c.shuffle.Remove(c.index[c.pubkey])
	return &BroadcastNodes{clusterNodes: c}
}

// BroadcastAddrs returns where the leader sends shred id. In the common
// case that is just the TVU address of the stake-weighted first pick; if
// that pick looks stale or unreachable the first layer of the tree is
// used instead. Addresses rejected by policy are dropped. The result is
// empty when no node holds stake or fanout is not positive.
func (b *BroadcastNodes) BroadcastAddrs(id shred.ID, fanout int, policy AddrPolicy) []netip.AddrPort {
	return b.broadcastAddrs(id, fanout, policy, cluster.Timestamp())
}

func (b *BroadcastNodes) broadcastAddrs(id shred.ID, fanout int, policy AddrPolicy, now uint64) []netip.AddrPort {
	if fanout < 1 || b.total == 0 {
		return nil
	}
	if policy == nil {
		policy = cluster.SocketAddrSpaceUnspecified
	}

	seed := id.Seed(b.pubkey)
	first, ok := b.shuffle.First(shuffle.NewChaChaRng(seed))
	if !ok {
		return nil
	}
	if ci := b.nodes[first].contact; ci != nil {
		var age uint64
		if now > ci.Wallclock {
			age = now - ci.Wallclock
		}
		if age < uint64(MaxContactInfoAge.Milliseconds()) && policy.IsValid(ci.TVU) {
			return []netip.AddrPort{ci.TVU}
		}
	}

	perm := b.shuffle.Shuffle(shuffle.NewChaChaRng(seed))
	if len(perm) == 0 {
		return nil
	}
	nodes := make([]*Node, len(perm))
	for i, p := range perm {
		nodes[i] = &b.nodes[p]
	}
	neighbors, children := tree.Peers(fanout, 0, nodes)

	addrs := make([]netip.AddrPort, 0, len(neighbors)+len(children))
	add := func(node *Node, forwards bool) {
		if node.contact == nil {
			return
		}
		addr := node.contact.TVU
		if forwards {
			addr = node.contact.TVUForwards
		}
		if policy.IsValid(addr) {
			addrs = append(addrs, addr)
		}
	}
	add(neighbors[0], false)
	for _, node := range neighbors[1:] {
		add(node, true)
	}
	for _, node := range children {
		add(node, false)
	}
	return addrs
}
