// Package shred identifies a block data fragment and derives the
// deterministic seed used to shuffle the propagation tree for it.
package shred

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/dreamware/turbine/internal/cluster"
)

// Type distinguishes data shreds from erasure coding shreds.
type Type uint8

const (
	TypeData Type = 0b1010_0101
	TypeCode Type = 0b0101_1010
)

func (t Type) String() string {
	switch t {
	case TypeData:
		return "data"
	case TypeCode:
		return "code"
	}
	return fmt.Sprintf("unknown(%#x)", uint8(t))
}

// ParseType maps "data" and "code" to their Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "", "data":
		return TypeData, nil
	case "code":
		return TypeCode, nil
	}
	return 0, fmt.Errorf("unknown shred type %q", s)
}

// ID is everything about a shred that the propagation tree depends on.
type ID struct {
	Slot  cluster.Slot
	Index uint32
	Type  Type
}

func (id ID) String() string {
	return fmt.Sprintf("%s/%d/%d", id.Type, id.Slot, id.Index)
}

// Seed hashes the shred identity together with a keyed node identity.
// Keyed by the slot leader it yields the seed every retransmitting node
// agrees on; keyed by the local node it yields the broadcast seed.
func (id ID) Seed(key cluster.Pubkey) [32]byte {
	var buf [8 + 1 + 4 + cluster.PubkeySize]byte
	binary.LittleEndian.PutUint64(buf[0:8], id.Slot)
	buf[8] = byte(id.Type)
	binary.LittleEndian.PutUint32(buf[9:13], id.Index)
	copy(buf[13:], key[:])
	return sha256.Sum256(buf[:])
}
