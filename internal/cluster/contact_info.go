package cluster

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// ContactInfo is a node's gossip contact record: where it receives shreds
// and when it last refreshed the record.
type ContactInfo struct {
	// ID is the node identity the record belongs to.
	ID Pubkey `json:"id"`

	// TVU is the primary shred receive address.
	TVU netip.AddrPort `json:"tvu"`

	// TVUForwards is the secondary address used for redundant delivery
	// within a neighborhood and by non-head relays.
	TVUForwards netip.AddrPort `json:"tvu_forwards"`

	// Wallclock is the record's creation time in milliseconds since the
	// Unix epoch, as stamped by the node itself.
	Wallclock uint64 `json:"wallclock"`
}

// Timestamp returns the current wall clock in milliseconds, the unit
// ContactInfo.Wallclock is stamped in.
func Timestamp() uint64 {
	return uint64(time.Now().UnixMilli())
}

// SocketAddrSpace selects which addresses are acceptable send targets.
type SocketAddrSpace int

const (
	// SocketAddrSpaceUnspecified accepts any routable address, including
	// private and loopback ranges. Used by local clusters and tests.
	SocketAddrSpaceUnspecified SocketAddrSpace = iota
	// SocketAddrSpaceGlobal accepts only globally routable addresses.
	SocketAddrSpaceGlobal
)

// ParseSocketAddrSpace maps a config value to a SocketAddrSpace.
func ParseSocketAddrSpace(s string) (SocketAddrSpace, error) {
	switch strings.ToLower(s) {
	case "", "unspecified":
		return SocketAddrSpaceUnspecified, nil
	case "global":
		return SocketAddrSpaceGlobal, nil
	}
	return 0, fmt.Errorf("unknown socket address space %q", s)
}

func (s SocketAddrSpace) String() string {
	if s == SocketAddrSpaceGlobal {
		return "global"
	}
	return "unspecified"
}

var documentationPrefixes = []netip.Prefix{
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("2001:db8::/32"),
}

var broadcastAddr = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// IsValid reports whether addr can be used as a send target: a non-zero
// port, an IP that is neither unspecified nor multicast, and, for the
// global space, an IP outside private, loopback, link-local, broadcast and
// documentation ranges.
func (s SocketAddrSpace) IsValid(addr netip.AddrPort) bool {
	if !addr.IsValid() || addr.Port() == 0 {
		return false
	}
	ip := addr.Addr().Unmap()
	if ip.IsUnspecified() || ip.IsMulticast() {
		return false
	}
	if s == SocketAddrSpaceUnspecified {
		return true
	}
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip == broadcastAddr {
		return false
	}
	for _, p := range documentationPrefixes {
		if p.Contains(ip) {
			return false
		}
	}
	return true
}
