package turbine

import (
	"fmt"
	"net/netip"

	"github.com/dreamware/turbine/internal/cluster"
)

// fakeGossip is a fixed PeerSource.
type fakeGossip struct {
	self  cluster.ContactInfo
	peers []cluster.ContactInfo
}

func (g *fakeGossip) ID() cluster.Pubkey                 { return g.self.ID }
func (g *fakeGossip) MyContactInfo() cluster.ContactInfo { return g.self }
func (g *fakeGossip) TVUPeers() []cluster.ContactInfo    { return g.peers }

// pubkey returns an identity whose first byte is b.
func pubkey(b byte) cluster.Pubkey {
	var pk cluster.Pubkey
	pk[0] = b
	pk[31] = 1
	return pk
}

// contactFor gives node n a distinct 10.0.x.y IP with TVU on 8001 and
// TVU forwards on 8002.
func contactFor(id cluster.Pubkey, n int, wallclock uint64) cluster.ContactInfo {
	ip := netip.MustParseAddr(fmt.Sprintf("10.0.%d.%d", n/250, n%250+1))
	return cluster.ContactInfo{
		ID:          id,
		TVU:         netip.AddrPortFrom(ip, 8001),
		TVUForwards: netip.AddrPortFrom(ip, 8002),
		Wallclock:   wallclock,
	}
}

// makeCluster builds a local node plus size-1 gossip peers, every node
// staked with 1 + its position, and extra stake-only identities.
func makeCluster(size, stakeOnly int, wallclock uint64) (*fakeGossip, map[cluster.Pubkey]uint64) {
	stakes := make(map[cluster.Pubkey]uint64)
	g := &fakeGossip{}
	for i := 0; i < size; i++ {
		id := pubkey(byte(i + 1))
		stakes[id] = uint64(i%7 + 1)
		ci := contactFor(id, i, wallclock)
		if i == 0 {
			g.self = ci
			continue
		}
		g.peers = append(g.peers, ci)
	}
	for i := 0; i < stakeOnly; i++ {
		var id cluster.Pubkey
		id[0] = 0xff
		id[1] = byte(i)
		stakes[id] = uint64(i + 1)
	}
	return g, stakes
}
