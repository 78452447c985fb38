package stakes

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/turbine/internal/cluster"
)

// TestEpochScheduleNoWarmup verifies plain division of slots into epochs.
func TestEpochScheduleNoWarmup(t *testing.T) {
	s := NewEpochSchedule(1000, 1000, false)

	epoch, index := s.EpochAndSlotIndex(0)
	assert.Equal(t, uint64(0), epoch)
	assert.Equal(t, uint64(0), index)

	epoch, index = s.EpochAndSlotIndex(2_345)
	assert.Equal(t, uint64(2), epoch)
	assert.Equal(t, uint64(345), index)

	assert.Equal(t, uint64(1), s.LeaderScheduleEpoch(0))
	assert.Equal(t, uint64(3), s.LeaderScheduleEpoch(2_345))
	assert.Equal(t, uint64(3000), s.FirstSlotInEpoch(3))
	assert.Equal(t, uint64(1000), s.SlotsInEpoch(7))
}

// TestEpochScheduleMinimum verifies tiny epochs are raised to the minimum.
func TestEpochScheduleMinimum(t *testing.T) {
	s := NewEpochSchedule(4, 0, false)
	assert.Equal(t, MinimumSlotsPerEpoch, s.SlotsPerEpoch)
}

// TestEpochScheduleWarmup verifies the doubling warmup epochs line up with
// the first normal epoch.
func TestEpochScheduleWarmup(t *testing.T) {
	s := NewEpochSchedule(8192, 8192, true)
	require.Equal(t, uint64(8), s.FirstNormalEpoch)
	require.Equal(t, uint64(8160), s.FirstNormalSlot)

	tests := []struct {
		slot  uint64
		epoch uint64
		index uint64
	}{
		{0, 0, 0},
		{31, 0, 31},
		{32, 1, 0},
		{95, 1, 63},
		{96, 2, 0},
		{8159, 7, 4095},
		{8160, 8, 0},
		{8160 + 8192 + 5, 9, 5},
	}
	for _, tt := range tests {
		epoch, index := s.EpochAndSlotIndex(tt.slot)
		assert.Equal(t, tt.epoch, epoch, "epoch of slot %d", tt.slot)
		assert.Equal(t, tt.index, index, "index of slot %d", tt.slot)
		assert.Equal(t, tt.slot-tt.index, s.FirstSlotInEpoch(tt.epoch))
	}

	assert.Equal(t, uint64(1), s.LeaderScheduleEpoch(0))
	assert.Equal(t, uint64(8), s.LeaderScheduleEpoch(8159))
	assert.Equal(t, uint64(9), s.LeaderScheduleEpoch(8160))
	assert.Equal(t, uint64(64), s.SlotsInEpoch(1))
	assert.Equal(t, uint64(8192), s.SlotsInEpoch(8))
}

// TestBankEpochStakes verifies stakes are copied in and out of the view.
func TestBankEpochStakes(t *testing.T) {
	bank := NewBank(100, NewEpochSchedule(32, 32, false))
	a, b := cluster.NewRandPubkey(), cluster.NewRandPubkey()

	_, ok := bank.EpochStakedNodes(3)
	assert.False(t, ok)

	in := map[cluster.Pubkey]uint64{a: 10, b: 20}
	bank.SetEpochStakes(3, in)
	in[a] = 999

	out, ok := bank.EpochStakedNodes(3)
	require.True(t, ok)
	assert.Equal(t, uint64(10), out[a])
	out[b] = 0

	again, _ := bank.EpochStakedNodes(3)
	assert.Equal(t, uint64(20), again[b])

	bank.ForgetEpoch(3)
	_, ok = bank.EpochStakedNodes(3)
	assert.False(t, ok)

	assert.Equal(t, uint64(100), bank.Slot())
	bank.SetSlot(200)
	assert.Equal(t, uint64(200), bank.Slot())
	assert.Equal(t, uint64(7), bank.LeaderScheduleEpoch(200))
	assert.Equal(t, uint64(32), bank.Schedule().SlotsPerEpoch)
}

// TestBankConcurrentAccess verifies readers and writers can interleave.
func TestBankConcurrentAccess(t *testing.T) {
	bank := NewBank(0, NewEpochSchedule(32, 32, false))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(epoch uint64) {
			defer wg.Done()
			bank.SetEpochStakes(epoch, map[cluster.Pubkey]uint64{cluster.NewRandPubkey(): epoch})
		}(uint64(i))
		go func(epoch uint64) {
			defer wg.Done()
			bank.EpochStakedNodes(epoch)
		}(uint64(i))
	}
	wg.Wait()

	for i := uint64(0); i < 8; i++ {
		_, ok := bank.EpochStakedNodes(i)
		assert.True(t, ok)
	}
}
