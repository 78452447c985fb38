// Package cluster holds the vocabulary shared by every part of the turbine
// engine: node identities, slots and epochs, gossip contact records, the
// address validity policy, and the small JSON-over-HTTP helpers the node
// binary uses to exchange contact records with its entrypoints.
//
// # Identities
//
// A Pubkey is a 32 byte node identity. Its text form is base58, which is
// what appears in configuration files, JSON bodies and log fields. Pubkeys
// order by raw bytes; that order is the tie-break used when the registry
// sorts nodes by stake, so it must never change.
//
// # Contact records
//
// ContactInfo is what gossip knows about a reachable peer:
//
//	┌──────────────────────────────────────────────┐
//	│ ContactInfo                                  │
//	├──────────────────────────────────────────────┤
//	│ ID           base58 pubkey                   │
//	│ TVU          primary shred receive address   │
//	│ TVUForwards  secondary (forwarding) address  │
//	│ Wallclock    ms timestamp of last refresh    │
//	└──────────────────────────────────────────────┘
//
// Staked nodes that gossip has never heard from have no ContactInfo at
// all; the registry keeps them as identity-only entries so that every
// validator derives the same tree regardless of what its own gossip table
// happens to contain.
//
// # Address validity
//
// SocketAddrSpace decides which addresses are worth sending to. Port zero,
// unspecified and multicast IPs are always rejected. The global space also
// rejects private, loopback, link-local, broadcast and documentation ranges,
// which is what a mainnet node wants; local clusters use the unspecified
// space.
//
// # HTTP helpers
//
// PostJSON and GetJSON wrap a shared client with a 5 second timeout. They
// return an error for any status >= 300 and decode the body only when an
// output value is given.
package cluster
