package gossip

import (
	"context"
	"math"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/turbine/internal/cluster"
)

func contact(id cluster.Pubkey, ip string, wallclock uint64) cluster.ContactInfo {
	return cluster.ContactInfo{
		ID:          id,
		TVU:         netip.MustParseAddrPort(ip + ":8001"),
		TVUForwards: netip.MustParseAddrPort(ip + ":8002"),
		Wallclock:   wallclock,
	}
}

// TestDirectoryUpsert verifies newer records replace older ones and the
// local identity is never listed as a peer.
func TestDirectoryUpsert(t *testing.T) {
	self := contact(cluster.NewRandPubkey(), "10.0.0.1", 100)
	dir := NewDirectory(self, cluster.SocketAddrSpaceUnspecified)

	peer := cluster.NewRandPubkey()
	assert.True(t, dir.Upsert(contact(peer, "10.0.0.2", 100)))
	assert.False(t, dir.Upsert(contact(peer, "10.0.0.3", 100)), "same wallclock must not replace")
	assert.False(t, dir.Upsert(contact(peer, "10.0.0.3", 50)), "older record must not replace")
	assert.True(t, dir.Upsert(contact(peer, "10.0.0.4", 200)))
	assert.False(t, dir.Upsert(contact(self.ID, "10.0.0.9", 500)))

	require.Equal(t, 1, dir.Len())
	assert.Equal(t, "10.0.0.4:8001", dir.Peers()[0].TVU.String())
	assert.Equal(t, self.ID, dir.ID())
	assert.Equal(t, self, dir.MyContactInfo())

	dir.Remove(peer)
	dir.Remove(peer)
	assert.Zero(t, dir.Len())
}

// TestDirectoryTVUPeers verifies peers with unusable TVU addresses are
// filtered according to the address space.
func TestDirectoryTVUPeers(t *testing.T) {
	self := contact(cluster.NewRandPubkey(), "8.8.8.8", 1)
	dir := NewDirectory(self, cluster.SocketAddrSpaceGlobal)

	public := cluster.NewRandPubkey()
	private := cluster.NewRandPubkey()
	unset := cluster.NewRandPubkey()
	dir.Upsert(contact(public, "1.1.1.1", 1))
	dir.Upsert(contact(private, "192.168.0.2", 1))
	dir.Upsert(cluster.ContactInfo{ID: unset, Wallclock: 1})

	peers := dir.TVUPeers()
	require.Len(t, peers, 1)
	assert.Equal(t, public, peers[0].ID)
	assert.Len(t, dir.Peers(), 3)
}

// TestDirectoryPrune verifies only records older than maxAge are dropped.
func TestDirectoryPrune(t *testing.T) {
	dir := NewDirectory(contact(cluster.NewRandPubkey(), "10.0.0.1", 0), cluster.SocketAddrSpaceUnspecified)
	stale := cluster.NewRandPubkey()
	fresh := cluster.NewRandPubkey()
	future := cluster.NewRandPubkey()
	dir.Upsert(contact(stale, "10.0.0.2", 500))
	dir.Upsert(contact(fresh, "10.0.0.3", 55_000))
	dir.Upsert(contact(future, "10.0.0.4", 90_000))

	removed := dir.Prune(61_000, time.Minute)
	assert.Equal(t, []cluster.Pubkey{stale}, removed)
	assert.Equal(t, 2, dir.Len())
}

// TestDirectoryFutureWallclock verifies a record stamped too far ahead of
// the local clock can neither enter the directory nor outlive pruning.
func TestDirectoryFutureWallclock(t *testing.T) {
	dir := NewDirectory(contact(cluster.NewRandPubkey(), "10.0.0.1", 0), cluster.SocketAddrSpaceUnspecified)
	dir.clock = func() uint64 { return 1_000_000 }
	assert.Equal(t, DefaultMaxClockSkew, dir.maxSkew)

	peer := cluster.NewRandPubkey()
	assert.False(t, dir.Upsert(contact(peer, "10.0.0.2", math.MaxUint64)))
	assert.False(t, dir.Upsert(contact(peer, "10.0.0.2", 1_000_000+60_001)))
	assert.Zero(t, dir.Len())

	assert.True(t, dir.Upsert(contact(peer, "10.0.0.2", 1_000_000+30_000)))
	assert.True(t, dir.Upsert(contact(peer, "10.0.0.3", 1_000_000+60_000)), "a newer record within the skew still replaces")
	assert.False(t, dir.Upsert(contact(peer, "10.0.0.5", math.MaxUint64)))
	assert.Equal(t, "10.0.0.3:8001", dir.Peers()[0].TVU.String())

	dir.SetMaxClockSkew(time.Second)
	other := cluster.NewRandPubkey()
	assert.False(t, dir.Upsert(contact(other, "10.0.0.4", 1_000_000+1_001)))
	assert.True(t, dir.Upsert(contact(other, "10.0.0.4", 1_000_000+1_000)))

	// A record far ahead of the sweep time is pruned like a stale one.
	removed := dir.Prune(1_000_000, 30*time.Second)
	assert.Equal(t, []cluster.Pubkey{peer}, removed)
	assert.Equal(t, 1, dir.Len())
}

// TestSweeper verifies the sweep loop prunes stale peers, refreshes the
// local record and reports removals through the callback.
func TestSweeper(t *testing.T) {
	self := contact(cluster.NewRandPubkey(), "10.0.0.1", 0)
	dir := NewDirectory(self, cluster.SocketAddrSpaceUnspecified)
	stale := cluster.NewRandPubkey()
	dir.Upsert(contact(stale, "10.0.0.2", 1_000))
	dir.Upsert(contact(cluster.NewRandPubkey(), "10.0.0.3", 100_000))

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	sweeper := NewSweeper(dir, 20*time.Millisecond, time.Minute, logger)
	sweeper.clock = func() uint64 { return 100_500 }

	var mu sync.Mutex
	var pruned []cluster.Pubkey
	sweeper.SetOnPruned(func(ids []cluster.Pubkey) {
		mu.Lock()
		pruned = append(pruned, ids...)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Start(ctx)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(pruned) == 1
	}, time.Second, 10*time.Millisecond)

	sweeper.Stop()

	assert.Equal(t, []cluster.Pubkey{stale}, pruned)
	assert.Equal(t, 1, dir.Len())
	assert.Equal(t, uint64(100_500), dir.MyContactInfo().Wallclock)

	var sawDrop bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "dropped stale contact info" {
			sawDrop = true
			assert.Equal(t, stale, entry.Data["peer"])
		}
	}
	assert.True(t, sawDrop)
}

// TestNewSweeperDefaults verifies a nil logger falls back to the standard logger.
func TestNewSweeperDefaults(t *testing.T) {
	dir := NewDirectory(contact(cluster.NewRandPubkey(), "10.0.0.1", 0), cluster.SocketAddrSpaceUnspecified)
	sweeper := NewSweeper(dir, time.Second, time.Minute, nil)
	defer sweeper.cancel()

	assert.Equal(t, logrus.StandardLogger(), sweeper.log)
	assert.Equal(t, time.Second, sweeper.interval)
	assert.Equal(t, time.Minute, sweeper.maxAge)
	assert.Nil(t, sweeper.Sweep())
}
