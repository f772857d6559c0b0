// Package ash implements the two-stream Huffman-over-LZ-tokens compression
// scheme used by the firmware's secondary and resource modules.
//
// Layout: a 12-byte header (4-byte magic, a 24-bit big-endian uncompressed
// size packed in a 32-bit field whose top byte is repurposed by the
// firmware-specific post-processing below, and a 32-bit big-endian absolute
// offset to the second bit-stream), followed by two big-endian,
// bit-reversed (bit 7 first) bit streams: the symbol stream (9-bit
// alphabet: 0..255 literal bytes, 256..510 reference lengths 3..257) and
// the distance stream (11-bit alphabet: symbol k means distance k+1). Each
// stream opens with a serialised Huffman tree (§ tree.go), then its data.
package ash

import (
	"encoding/binary"
	"errors"

	"github.com/barnettlynn/fwimage/internal/bitio"
)

var (
	ErrTruncated = errors.New("ash: truncated compressed stream")
	ErrMalformed = errors.New("ash: malformed stream (degenerate tree or bad offset)")
	ErrOverflow  = errors.New("ash: reference would overflow uncompressed size")
	ErrUnderflow = errors.New("ash: reference distance exceeds bytes decoded so far")
)

const (
	symbolWidth   = 9
	distanceWidth = 11
	symbolAlpha   = 1 << symbolWidth
	distAlpha     = 1 << distanceWidth
	minLength     = 3
	maxLength     = 257
	maxDistance   = distAlpha
	headerSize    = 12
)

// Decode decompresses a complete ASH stream, including its 12-byte header.
// The header's magic is not validated ("magic is read defensively"): the
// firmware-specific post-processing in Encode overwrites it, so a real
// module's first 4 bytes never hold the literal 'A' 'S' 'H' '0' magic.
func Decode(src []byte) ([]byte, error) {
	if len(src) < headerSize {
		return nil, ErrTruncated
	}
	sizeField := binary.BigEndian.Uint32(src[4:8])
	uncompressedSize := int(sizeField & 0x00FFFFFF)
	offset := int(binary.BigEndian.Uint32(src[8:12]))
	if offset < headerSize || offset > len(src) {
		return nil, ErrMalformed
	}

	symReader := bitio.NewReader(src[headerSize:offset])
	symTree, err := parseTree(symReader, symbolWidth)
	if err != nil {
		return nil, err
	}
	if symTree.leaf {
		return nil, ErrMalformed
	}

	distReader := bitio.NewReader(src[offset:])
	distTree, err := parseTree(distReader, distanceWidth)
	if err != nil {
		return nil, err
	}
	if distTree.leaf {
		return nil, ErrMalformed
	}

	out := make([]byte, 0, uncompressedSize)
	for len(out) < uncompressedSize {
		sym, err := readSymbol(symReader, symTree)
		if err != nil {
			return nil, ErrTruncated
		}
		if sym < 256 {
			out = append(out, byte(sym))
			continue
		}
		length := sym - 256 + minLength
		distSym, err := readSymbol(distReader, distTree)
		if err != nil {
			return nil, ErrTruncated
		}
		distance := distSym + 1
		if distance > len(out) {
			return nil, ErrUnderflow
		}
		if len(out)+length > uncompressedSize {
			return nil, ErrOverflow
		}
		for i := 0; i < length; i++ {
			out = append(out, out[len(out)-distance])
		}
	}
	return out, nil
}

// serializeTree writes n using the tree serialisation rule shared by both
// streams: bit 1 means "internal node, left then right"; bit 0 means "leaf,
// followed by width bits of the symbol value".
func serializeTree(w *bitio.Writer, n *huffNode, width uint) {
	if n.leaf {
		w.WriteBit(0)
		w.WriteBits(uint32(n.sym), width)
		return
	}
	w.WriteBit(1)
	serializeTree(w, n.left, width)
	serializeTree(w, n.right, width)
}

func parseTree(r *bitio.Reader, width uint) (*huffNode, error) {
	bit, err := r.ReadBit()
	if err != nil {
		return nil, ErrTruncated
	}
	if bit == 0 {
		v, err := r.ReadBits(width)
		if err != nil {
			return nil, ErrTruncated
		}
		return &huffNode{leaf: true, sym: int(v)}, nil
	}
	left, err := parseTree(r, width)
	if err != nil {
		return nil, err
	}
	right, err := parseTree(r, width)
	if err != nil {
		return nil, err
	}
	return &huffNode{left: left, right: right}, nil
}

func readSymbol(r *bitio.Reader, root *huffNode) (int, error) {
	n := root
	for !n.leaf {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit == 0 {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.sym, nil
}

// firmwarePostProcess overwrites the first 4 bytes of a freshly assembled
// ASH stream of length S with (S<<2)|0x80000000, little-endian, and sets
// bit 0x80 of byte 4, per the firmware's on-ROM encoding. Decode never
// relies on either field (the size/offset fields it reads live at byte
// offsets 4 and 8 and are otherwise untouched), so this only matters for
// producing byte-compatible output, not for this package's own round trip.
func firmwarePostProcess(buf []byte) {
	s := uint32(len(buf))
	v := (s << 2) | 0x80000000
	binary.LittleEndian.PutUint32(buf[0:4], v)
	buf[4] |= 0x80
}
