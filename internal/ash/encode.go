package ash

import (
	"encoding/binary"

	"github.com/barnettlynn/fwimage/internal/bitio"
)

// token is one ASH-coded unit: a literal byte, or a length/distance
// back-reference.
type token struct {
	literal  bool
	lit      byte
	length   int
	distance int
}

// DefaultPasses is the default re-tokenisation iteration count.
const DefaultPasses = 2

// Encode compresses src into a complete ASH stream (12-byte header + two
// bit-streams), iterating the cost-driven re-tokenisation `passes` times
// (DefaultPasses when passes <= 0).
func Encode(src []byte, passes int) []byte {
	if passes <= 0 {
		passes = DefaultPasses
	}

	e := newAshEncoder(src)
	tokens := e.initialTokenize()
	tree := buildTreesFromTokens(tokens)

	for i := 0; i < passes; i++ {
		tokens = e.retokenize(tree)
		tree = buildTreesFromTokens(tokens)
	}

	symW := bitio.NewWriter()
	serializeTree(symW, tree.sym, symbolWidth)
	distW := bitio.NewWriter()
	serializeTree(distW, tree.dist, distanceWidth)

	// Each token is written as its Huffman code: the root-to-leaf path of
	// its symbol, 0 for left and 1 for right, as readSymbol walks it.
	symCodes, distCodes := make([]string, symbolAlpha), make([]string, distAlpha)
	var walk func(n *huffNode, path string, table []string)
	walk = func(n *huffNode, path string, table []string) {
		if n.leaf {
			table[n.sym] = path
			return
		}
		walk(n.left, path+"0", table)
		walk(n.right, path+"1", table)
	}
	walk(tree.sym, "", symCodes)
	walk(tree.dist, "", distCodes)
	put := func(w *bitio.Writer, code string) {
		for _, c := range code {
			w.WriteBit(int(c - '0'))
		}
	}

	for _, tk := range tokens {
		if tk.literal {
			put(symW, symCodes[tk.lit])
			continue
		}
		put(symW, symCodes[256+tk.length-minLength])
		put(distW, distCodes[tk.distance-1])
	}

	symBytes := symW.Bytes()
	distBytes := distW.Bytes()

	out := make([]byte, headerSize, headerSize+len(symBytes)+len(distBytes))
	copy(out, []byte{'A', 'S', 'H', '0'})
	binary.BigEndian.PutUint32(out[4:8], uint32(len(src))&0x00FFFFFF)
	binary.BigEndian.PutUint32(out[8:12], uint32(headerSize+len(symBytes)))
	out = append(out, symBytes...)
	out = append(out, distBytes...)

	firmwarePostProcess(out)
	return out
}

// huffPair bundles the symbol and distance trees plus their code-length
// tables, which double as the cost model for the next re-tokenisation pass.
type huffPair struct {
	sym       *huffNode
	dist      *huffNode
	symDepth  []int
	distDepth []int
}

func buildTreesFromTokens(tokens []token) *huffPair {
	symFreq := make([]int, symbolAlpha)
	distFreq := make([]int, distAlpha)
	for _, tk := range tokens {
		if tk.literal {
			symFreq[tk.lit]++
			continue
		}
		symFreq[256+tk.length-minLength]++
		distFreq[tk.distance-1]++
	}
	symTree := buildHuffman(symFreq)
	distTree := buildHuffman(distFreq)
	return &huffPair{
		sym:       symTree,
		dist:      distTree,
		symDepth:  depths(symTree, symbolWidth),
		distDepth: depths(distTree, distanceWidth),
	}
}

// ashEncoder holds the hash-chain match finder used by both the initial
// greedy tokenisation and the cost-driven re-tokenisation. ASH reuses the
// LZ graph-search pattern (chained hash over a rolling fingerprint) without
// calling into the lz package. Match candidates depend only on the data,
// not on Huffman costs, so they are computed once and shared by every
// re-tokenisation pass.
type ashEncoder struct {
	data     []byte
	head     [512]int
	next     []int
	allCands [][]token
}

func newAshEncoder(data []byte) *ashEncoder {
	e := &ashEncoder{data: data, next: make([]int, len(data))}
	for i := range e.head {
		e.head[i] = -1
	}
	e.allCands = make([][]token, len(data))
	for p := 0; p < len(data); p++ {
		e.allCands[p] = e.findCandidates(p)
		e.insert(p)
	}
	return e
}

func ashHash3(a, b, c byte) int {
	A, B, C := uint32(a), uint32(b), uint32(c)
	h := A ^ ((A ^ B) << 1) ^ ((A ^ C ^ B ^ C) << 2) ^ ((A ^ C) >> 7)
	return int(h % 512)
}

func (e *ashEncoder) insert(p int) {
	if p+minLength > len(e.data) {
		return
	}
	h := ashHash3(e.data[p], e.data[p+1], e.data[p+2])
	e.next[p] = e.head[h]
	e.head[h] = p
}

// findCandidates returns up to maxCandidates matches at position p against
// strictly earlier positions only (the chain, at the time this is called,
// holds nothing but positions < p), walking no further back than the
// 2048-byte distance window.
func (e *ashEncoder) findCandidates(p int) []token {
	if p+minLength > len(e.data) {
		return nil
	}
	h := ashHash3(e.data[p], e.data[p+1], e.data[p+2])
	maxLen := len(e.data) - p
	if maxLen > maxLength {
		maxLen = maxLength
	}
	const maxCandidates = 32
	var cands []token
	for cand := e.head[h]; cand != -1 && len(cands) < maxCandidates; cand = e.next[cand] {
		d := p - cand
		if d > maxDistance {
			break
		}
		l := matchLength(e.data, cand, p, maxLen)
		if l >= minLength {
			cands = append(cands, token{length: l, distance: d})
		}
	}
	return cands
}

func matchLength(data []byte, a, b, maxLen int) int {
	n := 0
	for n < maxLen && data[a+n] == data[b+n] {
		n++
	}
	return n
}

// initialTokenize performs a greedy maximal match per position,
// considering all distances in [1,2048] and lengths in [3,257]. Candidates
// come only from earlier positions, so a position is never matched against
// itself (distance 0); distance 1 is reachable and legal in ASH, unlike LZ.
func (e *ashEncoder) initialTokenize() []token {
	var tokens []token
	p := 0
	n := len(e.data)
	for p < n {
		best := bestCandidate(e.allCands[p])
		if best.length >= minLength {
			tokens = append(tokens, best)
			p += best.length
			continue
		}
		tokens = append(tokens, token{literal: true, lit: e.data[p]})
		p++
	}
	return tokens
}

func bestCandidate(cands []token) token {
	var best token
	for _, c := range cands {
		if c.length > best.length || (c.length == best.length && c.distance < best.distance) {
			best = c
		}
	}
	return best
}

// cost helpers: fall back to a flat-code estimate for symbols not yet
// present in the previous pass's tree, so the DP always has a finite,
// if pessimistic, cost and never deadlocks waiting for a symbol that
// hasn't appeared yet.
func symCost(depth []int, sym int) int {
	if depth[sym] >= 0 {
		return depth[sym]
	}
	return symbolWidth
}

func distCost(depth []int, distance int) int {
	if depth[distance-1] >= 0 {
		return depth[distance-1]
	}
	return distanceWidth
}

// retokenize solves the backward shortest-path problem using tree's code
// lengths as costs: at each position, every length representable (i.e.
// achievable by some candidate match, priced at its cheapest matching
// distance) competes against the literal. Ties prefer the shorter length.
func (e *ashEncoder) retokenize(tree *huffPair) []token {
	n := len(e.data)
	weight := make([]int, n+1)
	choiceLen := make([]int, n)
	choiceDist := make([]int, n)

	for p := n - 1; p >= 0; p-- {
		litCost := symCost(tree.symDepth, int(e.data[p]))
		best := litCost + weight[p+1]
		bestLen, bestDist := 0, 0

		maxLen := 0
		for _, c := range e.allCands[p] {
			if c.length > maxLen {
				maxLen = c.length
			}
		}
		for l := minLength; l <= maxLen; l++ {
			d := cheapestDistanceForLength(e.allCands[p], l, tree.distDepth)
			if d == 0 {
				continue
			}
			c := symCost(tree.symDepth, 256+l-minLength) + distCost(tree.distDepth, d) + weight[p+l]
			if c < best {
				best = c
				bestLen, bestDist = l, d
			}
		}
		weight[p] = best
		choiceLen[p] = bestLen
		choiceDist[p] = bestDist
	}

	var tokens []token
	p := 0
	for p < n {
		if choiceLen[p] == 0 {
			tokens = append(tokens, token{literal: true, lit: e.data[p]})
			p++
			continue
		}
		tokens = append(tokens, token{length: choiceLen[p], distance: choiceDist[p]})
		p += choiceLen[p]
	}
	return tokens
}

// cheapestDistanceForLength linearly probes the candidates achieving at
// least length l and returns the one with the smallest distance code cost
// (ties broken by smallest distance), or 0 if none qualifies.
func cheapestDistanceForLength(cands []token, l int, distDepth []int) int {
	best := 0
	bestCost := 1 << 30
	for _, c := range cands {
		if c.length < l {
			continue
		}
		cost := distCost(distDepth, c.distance)
		if cost < bestCost || (cost == bestCost && (best == 0 || c.distance < best)) {
			bestCost = cost
			best = c.distance
		}
	}
	return best
}
