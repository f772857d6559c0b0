package lz

import (
	"encoding/binary"
)

// token is one emitted unit: either a single literal byte, or a
// length/distance back-reference.
type token struct {
	literal  bool
	lit      byte
	length   int
	distance int
}

// Encode compresses src into a complete LZ stream (header + body). It never
// emits a distance of 1, and back-references may overlap forward (the match
// finder is happy to match across the position being encoded).
func Encode(src []byte) []byte {
	e := newEncoder(src)
	tokens := e.parse()

	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(headerTag)|uint32(len(src))<<8)

	i := 0
	for i < len(tokens) {
		groupEnd := i + 8
		if groupEnd > len(tokens) {
			groupEnd = len(tokens)
		}
		group := tokens[i:groupEnd]

		var flag byte
		for j, tk := range group {
			if !tk.literal {
				flag |= 1 << uint(7-j)
			}
		}
		out = append(out, flag)
		for _, tk := range group {
			if tk.literal {
				out = append(out, tk.lit)
				continue
			}
			d := tk.distance - 1
			h := byte((tk.length-3)<<4) | byte((d>>8)&0x0F)
			l := byte(d & 0xFF)
			out = append(out, h, l)
		}
		i = groupEnd
	}
	return out
}

type encoder struct {
	data []byte
	head [512]int
	next []int
}

func newEncoder(data []byte) *encoder {
	e := &encoder{data: data, next: make([]int, len(data))}
	for i := range e.head {
		e.head[i] = -1
	}
	return e
}

func hash3(a, b, c byte) int {
	A, B, C := uint32(a), uint32(b), uint32(c)
	h := A ^ ((A ^ B) << 1) ^ ((A ^ C ^ B ^ C) << 2) ^ ((A ^ C) >> 7)
	return int(h % 512)
}

// bestMatch returns the longest feasible match at position p (length 0 if
// none), tie-breaking on shortest distance among equal-length candidates,
// walking the hash chain backward no further than the 4096-byte window.
func (e *encoder) bestMatch(p int) (length, distance int) {
	if p+minLength > len(e.data) {
		return 0, 0
	}
	h := hash3(e.data[p], e.data[p+1], e.data[p+2])
	cand := e.head[h]
	maxLen := len(e.data) - p
	if maxLen > maxLength {
		maxLen = maxLength
	}
	for cand != -1 {
		d := p - cand
		if d > maxDist {
			break
		}
		if d >= 2 {
			l := matchLength(e.data, cand, p, maxLen)
			if l >= minLength && (l > length || (l == length && d < distance)) {
				length, distance = l, d
			}
		}
		cand = e.next[cand]
	}
	return length, distance
}

func matchLength(data []byte, a, b, maxLen int) int {
	n := 0
	for n < maxLen && data[a+n] == data[b+n] {
		n++
	}
	return n
}

// insert records position p in the hash chain so later positions can match
// against it.
func (e *encoder) insert(p int) {
	if p+minLength > len(e.data) {
		return
	}
	h := hash3(e.data[p], e.data[p+1], e.data[p+2])
	e.next[p] = e.head[h]
	e.head[h] = p
}

// parse runs the backward shortest-path search and returns the chosen
// tokens in forward order.
func (e *encoder) parse() []token {
	n := len(e.data)
	matchLen := make([]int, n)
	matchDist := make([]int, n)
	for p := 0; p < n; p++ {
		matchLen[p], matchDist[p] = e.bestMatch(p)
		e.insert(p)
	}

	const literalCost = 9
	const refCost = 17

	weight := make([]int, n+1)
	choiceLen := make([]int, n) // 0 means literal
	for p := n - 1; p >= 0; p-- {
		litCost := literalCost + weight[p+1]
		best, bestLen := litCost, 0
		if ml := matchLen[p]; ml >= minLength {
			refBest, refLen := refCost+weight[p+minLength], minLength
			for l := minLength + 1; l <= ml; l++ {
				c := refCost + weight[p+l]
				// <=: on equal cost, prefer the longest length, per the
				// stated tie-break (distance is fixed per p, so only length
				// varies here).
				if c <= refBest {
					refBest, refLen = c, l
				}
			}
			if refBest < best {
				best, bestLen = refBest, refLen
			}
		}
		weight[p] = best
		choiceLen[p] = bestLen
	}

	var tokens []token
	p := 0
	for p < n {
		l := choiceLen[p]
		if l == 0 {
			tokens = append(tokens, token{literal: true, lit: e.data[p]})
			p++
			continue
		}
		tokens = append(tokens, token{length: l, distance: matchDist[p]})
		p += l
	}
	return tokens
}
