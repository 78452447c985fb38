// Package stakes provides the epoch schedule and an in-memory view of the
// per-epoch stake distribution.
package stakes

import (
	"math/bits"

	"github.com/dreamware/turbine/internal/cluster"
)

// MinimumSlotsPerEpoch is the length of the first warmup epoch.
const MinimumSlotsPerEpoch uint64 = 32

// DefaultSlotsPerEpoch is the mainnet epoch length.
const DefaultSlotsPerEpoch uint64 = 432_000

// EpochSchedule maps slots to epochs. With warmup enabled, epochs start at
// MinimumSlotsPerEpoch slots and double until they reach SlotsPerEpoch.
type EpochSchedule struct {
	SlotsPerEpoch            uint64
	LeaderScheduleSlotOffset uint64
	Warmup                   bool
	FirstNormalEpoch         cluster.Epoch
	FirstNormalSlot          cluster.Slot
}

// NewEpochSchedule builds a schedule whose leader schedule for an epoch is
// known leaderScheduleSlotOffset slots before the epoch starts.
func NewEpochSchedule(slotsPerEpoch, leaderScheduleSlotOffset uint64, warmup bool) EpochSchedule {
	if slotsPerEpoch < MinimumSlotsPerEpoch {
		slotsPerEpoch = MinimumSlotsPerEpoch
	}
	s := EpochSchedule{
		SlotsPerEpoch:            slotsPerEpoch,
		LeaderScheduleSlotOffset: leaderScheduleSlotOffset,
		Warmup:                   warmup,
	}
	if warmup {
		next := nextPowerOfTwo(slotsPerEpoch)
		log2 := bits.TrailingZeros64(next) - bits.TrailingZeros64(MinimumSlotsPerEpoch)
		if log2 < 0 {
			log2 = 0
		}
		s.FirstNormalEpoch = cluster.Epoch(log2)
		s.FirstNormalSlot = next - MinimumSlotsPerEpoch
	}
	return s
}

func nextPowerOfTwo(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	return 1 << bits.Len64(x-1)
}

// SlotsInEpoch returns the length of epoch.
func (s EpochSchedule) SlotsInEpoch(epoch cluster.Epoch) uint64 {
	if epoch < s.FirstNormalEpoch {
		return 1 << (epoch + uint64(bits.TrailingZeros64(MinimumSlotsPerEpoch)))
	}
	return s.SlotsPerEpoch
}

// EpochAndSlotIndex returns the epoch containing slot and slot's offset
// within it.
func (s EpochSchedule) EpochAndSlotIndex(slot cluster.Slot) (cluster.Epoch, uint64) {
	if slot < s.FirstNormalSlot {
		tz := uint64(bits.TrailingZeros64(MinimumSlotsPerEpoch))
		epoch := uint64(bits.TrailingZeros64(nextPowerOfTwo(slot+MinimumSlotsPerEpoch+1))) - tz - 1
		epochLen := uint64(1) << (epoch + tz)
		return epoch, slot - (epochLen - MinimumSlotsPerEpoch)
	}
	normal := slot - s.FirstNormalSlot
	return s.FirstNormalEpoch + normal/s.SlotsPerEpoch, normal % s.SlotsPerEpoch
}

// Epoch returns the epoch containing slot.
func (s EpochSchedule) Epoch(slot cluster.Slot) cluster.Epoch {
	epoch, _ := s.EpochAndSlotIndex(slot)
	return epoch
}

// FirstSlotInEpoch returns the first slot of epoch.
func (s EpochSchedule) FirstSlotInEpoch(epoch cluster.Epoch) cluster.Slot {
	if epoch <= s.FirstNormalEpoch {
		return (uint64(1)<<epoch - 1) * MinimumSlotsPerEpoch
	}
	return (epoch-s.FirstNormalEpoch)*s.SlotsPerEpoch + s.FirstNormalSlot
}

// LeaderScheduleEpoch returns the epoch whose leader schedule, and so whose
// stake distribution, governs slot. During warmup the offset behaves as a
// full epoch.
func (s EpochSchedule) LeaderScheduleEpoch(slot cluster.Slot) cluster.Epoch {
	if slot < s.FirstNormalSlot {
		return s.Epoch(slot) + 1
	}
	sinceFirstNormal := slot - s.FirstNormalSlot
	return s.FirstNormalEpoch + (sinceFirstNormal+s.LeaderScheduleSlotOffset)/s.SlotsPerEpoch
}
