package turbine

import (
	"github.com/dreamware/turbine/internal/cluster"
)

// Node is one entry of the registry: an identity, its stake and, if gossip
// knows it, how to reach it.
type Node struct {
	contact *cluster.ContactInfo
	pubkey  cluster.Pubkey
	stake   uint64
}

// Pubkey returns the node identity.
func (n *Node) Pubkey() cluster.Pubkey {
	return n.pubkey
}

// ContactInfo returns the node's contact record, or false for a staked
// node gossip has no record of.
func (n *Node) ContactInfo() (cluster.ContactInfo, bool) {
	if n.contact == nil {
		return cluster.ContactInfo{}, false
	}
	return *n.contact, true
}

// Stake returns the node's stake in the registry's epoch.
func (n *Node) Stake() uint64 {
	return n.stake
}
