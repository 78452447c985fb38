// Package turbine derives the stake-weighted propagation tree used to
// spread shreds across the cluster, both for the slot leader sending its
// own shreds and for every other node relaying what it received.
//
// # Overview
//
// Every node computes its targets independently from public inputs only:
// the epoch's stake distribution, its gossip view of the cluster and a
// seed derived from the shred. Nodes with the same inputs derive the same
// tree, so no coordination is needed to agree who sends to whom.
//
// # Architecture
//
//	┌──────────────────────────────────────────────┐
//	│  Cache[T]  (one per role)                    │
//	│    epoch → { asOf, snapshot }   LRU + TTL    │
//	└──────────────────────┬───────────────────────┘
//	                       │ rebuild on miss/expiry
//	┌──────────────────────▼───────────────────────┐
//	│  registry                                    │
//	│    self + gossip peers + staked identities   │
//	│    sorted by (stake, pubkey) descending      │
//	│    pubkey → position index                   │
//	│    weighted shuffle over stakes              │
//	└───────────┬──────────────────────┬───────────┘
//	            │                      │
//	┌───────────▼─────────┐  ┌─────────▼───────────┐
//	│  BroadcastNodes     │  │  RetransmitNodes    │
//	│  seed(shred, self)  │  │  seed(shred, leader)│
//	│  self excluded      │  │  leader excluded    │
//	└─────────────────────┘  └─────────────────────┘
//
// # Registry
//
// A registry lists the local node first, then every gossip peer with a
// TVU address, then every identity holding stake in the epoch. After a
// stable sort by (stake, pubkey) in descending order duplicates are
// dropped keeping the first entry, which means an identity known both to
// gossip and to the stake table keeps its contact info. The order is part
// of the protocol: two nodes that disagree on it build different trees.
//
// # Broadcast
//
// The leader draws only the first pick of the shuffle. If that node's
// contact info is recent and its address is allowed, the shred goes to
// that one address. Otherwise the full permutation is drawn and the shred
// goes to the first layer of the tree:
//
//	root TVU, neighbors[1:] TVU forwards, children TVU
//
// # Retransmit
//
// Relaying nodes seed the shuffle with the leader's identity so that all
// of them agree on one permutation, with the leader itself removed. The
// local node finds its own position in it and looks up its neighborhood
// and children with the fanout layout:
//
//	head of neighborhood:  neighbors[1:] TVU forwards + children TVU
//	any other member:      children TVU forwards
//
// # Caching
//
// Building a registry sorts and indexes the whole cluster, so snapshots are
// cached per leader schedule epoch and rebuilt once older than the TTL.
// Only one goroutine rebuilds a given epoch; concurrent callers wait for
// and share its result. Snapshots are never modified after construction
// and may be used from any number of goroutines.
//
// # Example
//
//	reg := metrics.NewRegistry()
//	retransmit := turbine.NewRetransmitCache(turbine.DefaultCacheCapacity,
//	    turbine.DefaultCacheTTL, turbine.WithMetrics(reg), turbine.WithLogger(log))
//
//	nodes := retransmit.Get(id.Slot, rootBank, workingBank, directory)
//	addrs, err := nodes.RetransmitAddrs(leader, id, 200)
//	if err != nil {
//	    return err
//	}
package turbine
