package turbine

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/sirupsen/logrus"

	"github.com/dreamware/turbine/internal/cluster"
	tree "github.com/dreamware/turbine/internal/fanout"
	"github.com/dreamware/turbine/internal/metrics"
	"github.com/dreamware/turbine/internal/shred"
	"github.com/dreamware/turbine/internal/shuffle"
)

var (
	// ErrInvalidFanout is returned for a fanout below one.
	ErrInvalidFanout = errors.New("fanout must be positive")

	// ErrNodeNotInShuffle means the local node was missing from the
	// retransmit permutation. The computation is abandoned since any
	// target set derived without it would be wrong.
	ErrNodeNotInShuffle = errors.New("local node missing from retransmit shuffle")
)

// RetransmitNodes is the registry as seen by a node relaying shreds it
// received. Every node holding the same registry derives the same tree for
// a shred.
type RetransmitNodes struct {
	clusterNodes
}

// NewRetransmitNodes builds a retransmit snapshot from gossip and the
// epoch stakes. A nil log uses the logrus standard logger.
func NewRetransmitNodes(peers PeerSource, stakes map[cluster.Pubkey]uint64, log logrus.FieldLogger) *RetransmitNodes {
	return newRetransmitNodes(peers, stakes, log, nil)
}

func newRetransmitNodes(peers PeerSource, stakes map[cluster.Pubkey]uint64, log logrus.FieldLogger, m *metrics.Registry) *RetransmitNodes {
	c := newClusterNodes(peers.MyContactInfo(), peers.TVUPeers(), stakes)
	if log != nil {
		c.log = log
	}
	c.metrics = m
	return &RetransmitNodes{clusterNodes: c}
}

// RetransmitTargets is one derivation of the retransmit tree for a shred:
// the local node's neighborhood, its children and the addresses it sends
// to.
type RetransmitTargets struct {
	Neighbors []*Node
	Children  []*Node
	Addrs     []netip.AddrPort
}

// RetransmitPeers places the local node in the tree for shred id from
// leader and returns its neighborhood and children. The local node is
// always neighbors[i%fanout] where i is its position in the tree.
//
// A registry without stake has no tree; both lists are then empty and the
// error is nil.
func (r *RetransmitNodes) RetransmitPeers(leader cluster.Pubkey, id shred.ID, fanout int) (neighbors, children []*Node, err error) {
	if fanout < 1 {
		return nil, nil, ErrInvalidFanout
	}
	if r.total == 0 {
		return nil, nil, nil
	}

	ws := r.shuffle.Clone()
	if leader == r.pubkey {
		r.log.WithFields(logrus.Fields{
			"leader": leader,
			"shred":  id,
		}).Error("retransmit from slot leader")
		r.metrics.RecordRetransmitFromLeader()
	} else if i, ok := r.index[leader]; ok {
		ws.Remove(i)
	}

	perm := ws.Shuffle(shuffle.NewChaChaRng(id.Seed(leader)))
	nodes := make([]*Node, len(perm))
	self := -1
	for i, p := range perm {
		nodes[i] = &r.nodes[p]
		if nodes[i].pubkey == r.pubkey {
			self = i
		}
	}
	if self < 0 {
		r.log.WithFields(logrus.Fields{
			"leader": leader,
			"shred":  id,
			"nodes":  len(nodes),
		}).Error("local node missing from retransmit shuffle")
		r.metrics.RecordRetransmitSelfMissing()
		return nil, nil, fmt.Errorf("%w: %s", ErrNodeNotInShuffle, r.pubkey)
	}

	neighbors, children = tree.Peers(fanout, self, nodes)
	return neighbors, children, nil
}

// RetransmitAddrs returns where the local node relays shred id from
// leader. The head of a neighborhood sends to its children's TVU and to
// its neighbors' TVU forwards; any other node only sends to its children's
// TVU forwards, since the head already covers the primary path.
func (r *RetransmitNodes) RetransmitAddrs(leader cluster.Pubkey, id shred.ID, fanout int) ([]netip.AddrPort, error) {
	targets, err := r.Retransmit(leader, id, fanout)
	if err != nil {
		return nil, err
	}
	return targets.Addrs, nil
}

// Retransmit derives the tree for shred id once and returns both the peers
// and the addresses RetransmitAddrs would give.
func (r *RetransmitNodes) Retransmit(leader cluster.Pubkey, id shred.ID, fanout int) (RetransmitTargets, error) {
	neighbors, children, err := r.RetransmitPeers(leader, id, fanout)
	if err != nil {
		return RetransmitTargets{}, err
	}
	return RetransmitTargets{
		Neighbors: neighbors,
		Children:  children,
		Addrs:     r.retransmitAddrs(neighbors, children),
	}, nil
}

func (r *RetransmitNodes) retransmitAddrs(neighbors, children []*Node) []netip.AddrPort {
	if len(neighbors) == 0 {
		return nil
	}

	if neighbors[0].pubkey != r.pubkey {
		addrs := make([]netip.AddrPort, 0, len(children))
		for _, node := range children {
			if node.contact != nil {
				addrs = append(addrs, node.contact.TVUForwards)
			}
		}
		return addrs
	}

	addrs := make([]netip.AddrPort, 0, len(neighbors)-1+len(children))
	for _, node := range neighbors[1:] {
		if node.contact != nil {
			addrs = append(addrs, node.contact.TVUForwards)
		}
	}
	for _, node := range children {
		if node.contact != nil {
			addrs = append(addrs, node.contact.TVU)
		}
	}
	return addrs
}
