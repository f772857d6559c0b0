// Package lz implements the fixed-header sliding-window LZ variant used by
// the firmware's static modules (inside the Feistel cipher) and optionally
// by secondary/resource modules.
//
// Format: a 4-byte little-endian header 0x10 | (uncompressedSize << 8),
// followed by groups of a flag byte F (MSB first = first token in the
// group) and up to 8 tokens. A 0 flag bit means "one literal byte follows";
// a 1 flag bit means "two bytes H L follow", encoding a back-reference of
// distance = ((H&0xF)<<8 | L) + 1 and length = (H>>4) + 3.
package lz

import (
	"encoding/binary"
	"errors"
)

// Errors returned by Decode and DecodeStream. These map to the
// MalformedStream / TruncatedStream kinds at the pkg/fwimage layer.
var (
	ErrBadHeader    = errors.New("lz: bad header tag")
	ErrTruncated    = errors.New("lz: truncated compressed stream")
	ErrDistanceOne  = errors.New("lz: reference distance of 1 is forbidden")
	ErrOverflow     = errors.New("lz: reference would overflow uncompressed size")
	ErrUnderflow    = errors.New("lz: reference distance exceeds bytes decoded so far")
	headerTag  byte = 0x10
)

const (
	minLength = 3
	maxLength = 18
	maxDist   = 4096
)

// Decode decompresses a complete LZ stream, including its 4-byte header.
func Decode(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, ErrTruncated
	}
	tag := binary.LittleEndian.Uint32(src[:4])
	if byte(tag) != headerTag {
		return nil, ErrBadHeader
	}
	size := int(tag >> 8)
	pos := 4

	readByte := func() (byte, bool) {
		if pos >= len(src) {
			return 0, false
		}
		b := src[pos]
		pos++
		return b, true
	}
	out, _, err := decodeBody(readByte, size)
	return out, err
}

// DecodeStream decompresses an LZ stream whose header is also pulled from
// next, one byte at a time, with no prior knowledge of its compressed
// length. It returns the decompressed bytes and the number of bytes pulled
// from next, so the caller (the image model, decrypting static modules
// streamingly) can derive the module's compressed size after the fact.
func DecodeStream(next func() (byte, bool)) ([]byte, int, error) {
	var header [4]byte
	for i := range header {
		b, ok := next()
		if !ok {
			return nil, i, ErrTruncated
		}
		header[i] = b
	}
	tag := binary.LittleEndian.Uint32(header[:])
	if byte(tag) != headerTag {
		return nil, len(header), ErrBadHeader
	}
	size := int(tag >> 8)

	out, bodyConsumed, err := decodeBody(next, size)
	return out, len(header) + bodyConsumed, err
}

// decodeBody decodes size uncompressed bytes from readByte (which is
// expected to already be positioned just past the 4-byte header), returning
// the output and the number of bytes this call pulled from readByte. The
// 4 header bytes are not included; callers add them.
func decodeBody(readByte func() (byte, bool), size int) ([]byte, int, error) {
	out := make([]byte, 0, size)
	consumedBody := 0
	countedRead := func() (byte, bool) {
		b, ok := readByte()
		if ok {
			consumedBody++
		}
		return b, ok
	}

	for len(out) < size {
		flag, ok := countedRead()
		if !ok {
			return nil, consumedBody, ErrTruncated
		}
		for bit := 7; bit >= 0 && len(out) < size; bit-- {
			isRef := (flag>>uint(bit))&1 == 1
			if !isRef {
				b, ok := countedRead()
				if !ok {
					return nil, consumedBody, ErrTruncated
				}
				out = append(out, b)
				continue
			}

			h, ok := countedRead()
			if !ok {
				return nil, consumedBody, ErrTruncated
			}
			l, ok := countedRead()
			if !ok {
				return nil, consumedBody, ErrTruncated
			}
			distance := (int(h&0x0F)<<8 | int(l)) + 1
			length := int(h>>4) + 3
			if distance == 1 {
				return nil, consumedBody, ErrDistanceOne
			}
			if distance > len(out) {
				return nil, consumedBody, ErrUnderflow
			}
			if len(out)+length > size {
				return nil, consumedBody, ErrOverflow
			}
			for i := 0; i < length; i++ {
				out = append(out, out[len(out)-distance])
			}
		}
	}
	return out, consumedBody, nil
}
