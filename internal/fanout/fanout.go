// Package fanout lays a shuffled node sequence out as the propagation tree.
//
// The sequence is cut into layers: layer 1 holds positions [0, F), layer 2
// the next F*F positions, layer 3 the next F*F*F, and so on. Every layer is
// split into neighborhoods of F consecutive positions. The node at offset o
// of neighborhood a sends to the nodes at offset o of the F neighborhoods
// that hang below a in the next layer:
//
//	layer 1      [ 0  1 ]                    F = 2
//	              /  \ \ \
//	layer 2      [ 2  3 ] [ 4  5 ]
//	             children(0) = {2, 4}, children(1) = {3, 5}
//
// Position 0 is the root. Positions 1..F-1 receive from the root over the
// forwarding channel as its neighbors; every position from F on has
// exactly one parent. A position always appears in its own neighborhood at
// index position mod F.
package fanout

// Positions returns the neighborhood and the children of index in a tree of
// n positions with the given fanout. Both slices hold at most fanout
// positions and are truncated at n. fanout must be positive.
func Positions(fanout, index, n int) (neighbors, children []int) {
	offset := index % fanout
	anchor := index - offset
	neighbors = make([]int, 0, fanout)
	for i := anchor; i < anchor+fanout && i < n; i++ {
		neighbors = append(neighbors, i)
	}
	children = make([]int, 0, fanout)
	first := (anchor+1)*fanout + offset
	for k := 0; k < fanout; k++ {
		i := first + k*fanout
		if i >= n {
			break
		}
		children = append(children, i)
	}
	return neighbors, children
}

// Peers is Positions mapped onto nodes.
func Peers[T any](fanout, index int, nodes []T) (neighbors, children []T) {
	np, cp := Positions(fanout, index, len(nodes))
	neighbors = make([]T, len(np))
	for i, p := range np {
		neighbors[i] = nodes[p]
	}
	children = make([]T, len(cp))
	for i, p := range cp {
		children[i] = nodes[p]
	}
	return neighbors, children
}
