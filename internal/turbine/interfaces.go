package turbine

import (
	"net/netip"

	"github.com/dreamware/turbine/internal/cluster"
)

// PeerSource is the gossip view the registry is built from.
// gossip.Directory implements it.
type PeerSource interface {
	// ID is the local identity.
	ID() cluster.Pubkey
	// MyContactInfo is the local contact record.
	MyContactInfo() cluster.ContactInfo
	// TVUPeers lists every other peer with a usable TVU address.
	TVUPeers() []cluster.ContactInfo
}

// StakeView answers epoch and stake questions as of one bank.
// stakes.Bank implements it.
type StakeView interface {
	Slot() cluster.Slot
	LeaderScheduleEpoch(slot cluster.Slot) cluster.Epoch
	// EpochStakedNodes returns false when the view does not know epoch.
	EpochStakedNodes(epoch cluster.Epoch) (map[cluster.Pubkey]uint64, bool)
}

// AddrPolicy decides whether a socket address may be sent to.
// cluster.SocketAddrSpace implements it.
type AddrPolicy interface {
	IsValid(addr netip.AddrPort) bool
}
