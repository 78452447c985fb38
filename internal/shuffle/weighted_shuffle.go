// Package shuffle implements the seeded, stake-weighted permutation used to
// order nodes in the propagation tree.
//
// A WeightedShuffle is built once from a weight per position and then only
// read: First and Shuffle never modify the receiver, so a single instance
// can be shared by any number of goroutines. Per-call exclusions go through
// Clone followed by Remove.
package shuffle

import (
	"math/bits"

	"golang.org/x/exp/slices"
)

// WeightedShuffle draws positions without replacement with probability
// proportional to their weight. Positions of weight zero are drawn last, in
// uniform random order, so they still get a place in the permutation.
type WeightedShuffle struct {
	weights []uint64 // remaining weight per position, zero once drawn or removed
	tree    []uint64 // 1-based Fenwick tree over weights
	zeros   []int    // eligible positions of weight zero, ascending
	total   uint64
	count   int
}

// New builds a shuffle over weights. A weight that would overflow the
// running total is treated as zero.
func New(weights []uint64) *WeightedShuffle {
	n := len(weights)
	ws := &WeightedShuffle{
		weights: make([]uint64, n),
		tree:    make([]uint64, n+1),
		count:   n,
	}
	for i, w := range weights {
		if w == 0 {
			ws.zeros = append(ws.zeros, i)
			continue
		}
		sum, carry := bits.Add64(ws.total, w, 0)
		if carry != 0 {
			ws.zeros = append(ws.zeros, i)
			continue
		}
		ws.total = sum
		ws.weights[i] = w
	}
	for i := 1; i <= n; i++ {
		ws.tree[i] += ws.weights[i-1]
		if j := i + (i & -i); j <= n {
			ws.tree[j] += ws.tree[i]
		}
	}
	return ws
}

// Clone returns an independent copy.
func (ws *WeightedShuffle) Clone() *WeightedShuffle {
	return &WeightedShuffle{
		weights: slices.Clone(ws.weights),
		tree:    slices.Clone(ws.tree),
		zeros:   slices.Clone(ws.zeros),
		total:   ws.total,
		count:   ws.count,
	}
}

// Len is the number of positions still eligible to be drawn.
func (ws *WeightedShuffle) Len() int {
	return ws.count
}

// TotalWeight is the sum of the weights still eligible to be drawn.
func (ws *WeightedShuffle) TotalWeight() uint64 {
	return ws.total
}

// Remove makes position i ineligible. Out of range or already removed
// positions are ignored.
func (ws *WeightedShuffle) Remove(i int) {
	if i < 0 || i >= len(ws.weights) {
		return
	}
	if ws.weights[i] > 0 {
		ws.removeWeight(i)
		return
	}
	if k, ok := slices.BinarySearch(ws.zeros, i); ok {
		ws.zeros = slices.Delete(ws.zeros, k, k+1)
		ws.count--
	}
}

func (ws *WeightedShuffle) removeWeight(i int) {
	w := ws.weights[i]
	ws.weights[i] = 0
	ws.total -= w
	ws.count--
	for j := i + 1; j < len(ws.tree); j += j & -j {
		ws.tree[j] -= w
	}
}

// search returns the position whose cumulative weight range contains r.
// Requires r < total.
func (ws *WeightedShuffle) search(r uint64) int {
	n := len(ws.weights)
	pos := 0
	for step := 1 << (bits.Len(uint(n)) - 1); step > 0; step >>= 1 {
		if next := pos + step; next <= n && ws.tree[next] <= r {
			pos = next
			r -= ws.tree[next]
		}
	}
	return pos
}

// First returns the position Shuffle would place first under the same rng
// state, without materializing the permutation.
func (ws *WeightedShuffle) First(rng *ChaChaRng) (int, bool) {
	if ws.total > 0 {
		return ws.search(rng.Uint64n(ws.total)), true
	}
	if len(ws.zeros) > 0 {
		return ws.zeros[rng.Uint64n(uint64(len(ws.zeros)))], true
	}
	return 0, false
}

// Shuffle returns every eligible position in weighted random order.
func (ws *WeightedShuffle) Shuffle(rng *ChaChaRng) []int {
	c := ws.Clone()
	out := make([]int, 0, c.count)
	for c.total > 0 {
		i := c.search(rng.Uint64n(c.total))
		out = append(out, i)
		c.removeWeight(i)
	}
	zeros := c.zeros
	for i := range zeros {
		j := i + int(rng.Uint64n(uint64(len(zeros)-i)))
		zeros[i], zeros[j] = zeros[j], zeros[i]
	}
	return append(out, zeros...)
}
