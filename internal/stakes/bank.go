package stakes

import (
	"sync"

	"github.com/dreamware/turbine/internal/cluster"
)

// Bank is an in-memory view of the chain at one slot: the epoch schedule
// and the staked nodes of every epoch the view knows about.
// Thread-safe: All methods are safe for concurrent access.
type Bank struct {
	epochStakes map[cluster.Epoch]map[cluster.Pubkey]uint64
	schedule    EpochSchedule
	slot        cluster.Slot
	mu          sync.RWMutex
}

// NewBank creates a view positioned at slot with no known stakes.
func NewBank(slot cluster.Slot, schedule EpochSchedule) *Bank {
	return &Bank{
		slot:        slot,
		schedule:    schedule,
		epochStakes: make(map[cluster.Epoch]map[cluster.Pubkey]uint64),
	}
}

// Slot returns the slot this view is at.
func (b *Bank) Slot() cluster.Slot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.slot
}

// SetSlot moves the view to slot.
func (b *Bank) SetSlot(slot cluster.Slot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slot = slot
}

// Schedule returns the epoch schedule.
func (b *Bank) Schedule() EpochSchedule {
	return b.schedule
}

// LeaderScheduleEpoch returns the epoch whose stakes govern slot.
func (b *Bank) LeaderScheduleEpoch(slot cluster.Slot) cluster.Epoch {
	return b.schedule.LeaderScheduleEpoch(slot)
}

// SetEpochStakes records the staked nodes for epoch. The map is copied.
func (b *Bank) SetEpochStakes(epoch cluster.Epoch, stakes map[cluster.Pubkey]uint64) {
	cp := make(map[cluster.Pubkey]uint64, len(stakes))
	for id, stake := range stakes {
		cp[id] = stake
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.epochStakes[epoch] = cp
}

// ForgetEpoch drops the stakes recorded for epoch.
func (b *Bank) ForgetEpoch(epoch cluster.Epoch) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.epochStakes, epoch)
}

// EpochStakedNodes returns a copy of the staked nodes for epoch, or false
// if this view does not know the epoch.
func (b *Bank) EpochStakedNodes(epoch cluster.Epoch) (map[cluster.Pubkey]uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stakes, ok := b.epochStakes[epoch]
	if !ok {
		return nil, false
	}
	cp := make(map[cluster.Pubkey]uint64, len(stakes))
	for id, stake := range stakes {
		cp[id] = stake
	}
	return cp, true
}
