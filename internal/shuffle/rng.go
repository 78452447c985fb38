package shuffle

import (
	"encoding/binary"
	"math/bits"

	"golang.org/x/crypto/chacha20"
)

const blockSize = 64

// ChaChaRng is a deterministic random source keyed by a 32 byte seed. It
// reads the ChaCha20 keystream under an all-zero nonce, so two nodes
// holding the same seed draw the same sequence.
type ChaChaRng struct {
	cipher *chacha20.Cipher
	buf    [blockSize]byte
	off    int
}

// NewChaChaRng returns a generator positioned at the start of the
// keystream for seed.
func NewChaChaRng(seed [32]byte) *ChaChaRng {
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], nonce[:])
	if err != nil {
		// key and nonce sizes are fixed above
		panic(err)
	}
	return &ChaChaRng{cipher: c, off: blockSize}
}

func (r *ChaChaRng) refill() {
	clear(r.buf[:])
	r.cipher.XORKeyStream(r.buf[:], r.buf[:])
	r.off = 0
}

// Uint64 returns the next little-endian word of the keystream.
func (r *ChaChaRng) Uint64() uint64 {
	if r.off+8 > blockSize {
		r.refill()
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

// Uint64n returns a uniform value in [0, n). It panics if n is zero.
func (r *ChaChaRng) Uint64n(n uint64) uint64 {
	if n == 0 {
		panic("shuffle: Uint64n with n == 0")
	}
	hi, lo := bits.Mul64(r.Uint64(), n)
	if lo < n {
		thresh := -n % n
		for lo < thresh {
			hi, lo = bits.Mul64(r.Uint64(), n)
		}
	}
	return hi
}
