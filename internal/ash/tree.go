package ash

import "sort"

// huffNode is a node in one of ASH's two Huffman trees (symbol, 9-bit
// alphabet of 512; distance, 11-bit alphabet of 2048).
type huffNode struct {
	freq        int
	sym         int
	leaf        bool
	left, right *huffNode
}

// buildHuffman builds a tree bottom-up from per-symbol frequencies: sort
// leaves ascending by frequency, repeatedly combine the two lowest into a
// parent, re-sort (ties broken by original insertion order, which
// sort.SliceStable preserves since newly merged nodes are appended after
// the existing ones before each re-sort). A degenerate input (fewer than
// two distinct symbols) gets a dummy leaf of frequency 1 so the resulting
// tree always has at least two leaves.
func buildHuffman(freq []int) *huffNode {
	var nodes []*huffNode
	for sym, f := range freq {
		if f > 0 {
			nodes = append(nodes, &huffNode{freq: f, sym: sym, leaf: true})
		}
	}
	if len(nodes) == 0 {
		nodes = append(nodes, &huffNode{freq: 1, sym: 0, leaf: true})
	}
	if len(nodes) == 1 {
		dummy := 0
		if nodes[0].sym == 0 {
			dummy = 1
		}
		nodes = append(nodes, &huffNode{freq: 1, sym: dummy, leaf: true})
	}
	for len(nodes) > 1 {
		sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].freq < nodes[j].freq })
		a, b := nodes[0], nodes[1]
		parent := &huffNode{freq: a.freq + b.freq, left: a, right: b}
		nodes = append(nodes[2:], parent)
	}
	root := nodes[0]
	normalizeLeft(root)
	return root
}

// normalizeLeft ensures the child with fewer descendant leaves is always
// the left (smaller-code) child, recursively, and returns the leaf count of
// the subtree rooted at n.
func normalizeLeft(n *huffNode) int {
	if n.leaf {
		return 1
	}
	lc := normalizeLeft(n.left)
	rc := normalizeLeft(n.right)
	if lc > rc {
		n.left, n.right = n.right, n.left
	}
	return lc + rc
}

// depths returns, for every symbol with a leaf in the tree, its code
// length in bits.
func depths(root *huffNode, width int) []int {
	d := make([]int, 1<<uint(width))
	for i := range d {
		d[i] = -1
	}
	var walk func(n *huffNode, depth int)
	walk = func(n *huffNode, depth int) {
		if n.leaf {
			d[n.sym] = depth
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(root, 0)
	return d
}
