package turbine

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/sirupsen/logrus"

	"github.com/dreamware/turbine/internal/cluster"
	"github.com/dreamware/turbine/internal/metrics"
)

// Defaults for NewBroadcastCache and NewRetransmitCache callers.
const (
	DefaultCacheCapacity = 8
	DefaultCacheTTL      = 5 * time.Second
)

// Snapshot is what a Cache holds per epoch.
type Snapshot interface {
	Epoch() cluster.Epoch
	NumPeers() int
	NumPeersLive(now uint64) int
}

// Cache hands out one shared snapshot per leader schedule epoch and
// rebuilds it once it is older than the TTL, so fresh gossip contact info
// is picked up between epoch boundaries.
//
// Concurrency Model:
//   - A short global lock guards the epoch index
//   - Each epoch has its own lock, held while its snapshot is rebuilt
//   - Concurrent lookups for one epoch share a single rebuild
//   - Lookups for different epochs never wait on each other
//
// Snapshots are immutable; callers may keep and share them freely.
type Cache[T Snapshot] struct {
	entries *lru.LRU[cluster.Epoch, *cacheEntry[T]]
	build   func(PeerSource, cluster.Epoch, map[cluster.Pubkey]uint64) T
	log     logrus.FieldLogger
	metrics *metrics.Registry
	clock   func() time.Time
	role    string
	ttl     time.Duration
	mu      sync.Mutex
}

type cacheEntry[T any] struct {
	asOf  time.Time
	nodes T
	ok    bool
	mu    sync.Mutex
}

type cacheOptions struct {
	log     logrus.FieldLogger
	metrics *metrics.Registry
	clock   func() time.Time
}

// Option configures a Cache.
type Option func(*cacheOptions)

// WithLogger sets the logger used by the cache and the snapshots it builds.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *cacheOptions) { o.log = log }
}

// WithMetrics records cache and derivation metrics into m.
func WithMetrics(m *metrics.Registry) Option {
	return func(o *cacheOptions) { o.metrics = m }
}

// WithClock replaces time.Now for TTL checks.
func WithClock(clock func() time.Time) Option {
	return func(o *cacheOptions) { o.clock = clock }
}

// NewBroadcastCache creates a cache of BroadcastNodes holding at most
// capacity epochs.
//
// Example:
//
//	cache := turbine.NewBroadcastCache(8, 5*time.Second, turbine.WithMetrics(reg))
//	nodes := cache.Get(slot, root, working, dir)
//	addrs := nodes.BroadcastAddrs(id, 200, cluster.SocketAddrSpaceGlobal)
func NewBroadcastCache(capacity int, ttl time.Duration, opts ...Option) *Cache[*BroadcastNodes] {
	o := newCacheOptions(opts)
	return newCache(capacity, ttl, metrics.RoleBroadcast, o,
		func(peers PeerSource, epoch cluster.Epoch, stakes map[cluster.Pubkey]uint64) *BroadcastNodes {
			nodes := newBroadcastNodes(peers, stakes, o.log, o.metrics)
			nodes.epoch = epoch
			return nodes
		})
}

// NewRetransmitCache creates a cache of RetransmitNodes holding at most
// capacity epochs.
func NewRetransmitCache(capacity int, ttl time.Duration, opts ...Option) *Cache[*RetransmitNodes] {
	o := newCacheOptions(opts)
	return newCache(capacity, ttl, metrics.RoleRetransmit, o,
		func(peers PeerSource, epoch cluster.Epoch, stakes map[cluster.Pubkey]uint64) *RetransmitNodes {
			nodes := newRetransmitNodes(peers, stakes, o.log, o.metrics)
			nodes.epoch = epoch
			return nodes
		})
}

func newCacheOptions(opts []Option) cacheOptions {
	o := cacheOptions{
		log:   logrus.StandardLogger(),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	return o
}

func newCache[T Snapshot](capacity int, ttl time.Duration, role string, o cacheOptions, build func(PeerSource, cluster.Epoch, map[cluster.Pubkey]uint64) T) *Cache[T] {
	if capacity < 1 {
		capacity = 1
	}
	entries, err := lru.NewLRU[cluster.Epoch, *cacheEntry[T]](capacity, nil)
	if err != nil {
		panic(err) // unreachable: capacity is positive
	}
	return &Cache[T]{
		entries: entries,
		build:   build,
		log:     o.log.WithField("role", role),
		metrics: o.metrics,
		clock:   o.clock,
		role:    role,
		ttl:     ttl,
	}
}

func (c *Cache[T]) entry(epoch cluster.Epoch) *cacheEntry[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries.Get(epoch); ok {
		return e
	}
	e := &cacheEntry[T]{}
	c.entries.Add(epoch, e)
	return e
}

// Get returns the snapshot for the leader schedule epoch of slot.
//
// Stakes come from root, or from working if root does not know the epoch
// yet. If neither does, the lookup is redone for the root's own slot,
// whose epoch the root always knows; should even that fail the snapshot
// is built without stakes.
func (c *Cache[T]) Get(slot cluster.Slot, root, working StakeView, gossip PeerSource) T {
	epoch := root.LeaderScheduleEpoch(slot)
	e := c.entry(epoch)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ok && c.clock().Sub(e.asOf) < c.ttl {
		c.metrics.RecordCacheHit(c.role)
		return e.nodes
	}

	stakes, ok := root.EpochStakedNodes(epoch)
	if !ok {
		stakes, ok = working.EpochStakedNodes(epoch)
	}
	if !ok {
		c.metrics.RecordUnknownEpochStakes(c.role)
		rootSlot := root.Slot()
		if epoch != root.LeaderScheduleEpoch(rootSlot) {
			c.log.WithFields(logrus.Fields{
				"epoch":     epoch,
				"slot":      slot,
				"root_slot": rootSlot,
			}).Debug("unknown epoch staked nodes, using root epoch")
			return c.Get(rootSlot, root, working, gossip)
		}
		c.metrics.RecordUnknownRootEpochStakes(c.role)
		c.log.WithFields(logrus.Fields{
			"epoch":     epoch,
			"root_slot": rootSlot,
		}).Warn("unknown epoch staked nodes for root epoch")
	}

	start := time.Now()
	nodes := c.build(gossip, epoch, stakes)
	elapsed := time.Since(start)

	e.asOf = c.clock()
	e.nodes = nodes
	e.ok = true

	peers, live := nodes.NumPeers(), nodes.NumPeersLive(cluster.Timestamp())
	c.metrics.RecordRecompute(c.role, elapsed, peers, live)
	c.log.WithFields(logrus.Fields{
		"epoch":    epoch,
		"peers":    peers,
		"live":     live,
		"duration": elapsed,
	}).Debug("rebuilt cluster nodes")
	return nodes
}

// Len is the number of epochs currently cached.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
