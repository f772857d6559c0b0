package lz

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestRoundTripSmallInputs(t *testing.T) {
	inputs := [][]byte{
		nil,
		{0x41},
		bytes.Repeat([]byte{0x41}, 10),
		[]byte("the quick brown fox jumps over the lazy dog, the quick brown fox"),
		bytes.Repeat([]byte{0x00}, 4096),
	}
	for i, in := range inputs {
		enc := Encode(in)
		dec, err := Decode(enc)
		if err != nil {
			t.Fatalf("input %d: Decode: %v", i, err)
		}
		if !bytes.Equal(dec, in) {
			t.Fatalf("input %d: round trip mismatch: got %v want %v", i, dec, in)
		}
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		n := rng.Intn(8000)
		data := make([]byte, n)
		// Biased toward repeats of a small alphabet, like real firmware data,
		// which is what exercises the back-reference path.
		alphabet := byte(rng.Intn(4) + 1)
		for i := range data {
			if rng.Intn(3) == 0 {
				data[i] = byte(rng.Intn(256))
			} else {
				data[i] = alphabet
			}
		}
		enc := Encode(data)
		dec, err := Decode(enc)
		if err != nil {
			t.Fatalf("trial %d (n=%d): Decode: %v", trial, n, err)
		}
		if !bytes.Equal(dec, data) {
			t.Fatalf("trial %d (n=%d): round trip mismatch", trial, n)
		}
	}
}

func TestEncodeNeverEmitsDistanceOne(t *testing.T) {
	data := bytes.Repeat([]byte{0x41}, 200)
	enc := Encode(data)
	body := enc[4:]
	pos := 0
	for pos < len(body) {
		flag := body[pos]
		pos++
		for bit := 7; bit >= 0 && pos < len(body); bit-- {
			if (flag>>uint(bit))&1 == 0 {
				pos++
				continue
			}
			if pos+2 > len(body) {
				break
			}
			h, l := body[pos], body[pos+1]
			distance := (int(h&0x0F)<<8 | int(l)) + 1
			if distance == 1 {
				t.Fatalf("encoder emitted forbidden distance=1 reference")
			}
			pos += 2
		}
	}
}

func TestDecodeRejectsDistanceOne(t *testing.T) {
	// Hand-crafted stream: header for 10 bytes, one group: flag=0x80
	// (first token is a reference), H=0x70 L=0x00 -> distance=1.
	src := []byte{0x10, 0x0A, 0x00, 0x00, 0x80, 0x70, 0x00}
	if _, err := Decode(src); err != ErrDistanceOne {
		t.Fatalf("Decode = %v, want ErrDistanceOne", err)
	}
}

func TestDecodeRejectsBadHeaderTag(t *testing.T) {
	src := []byte{0x11, 0x00, 0x00, 0x00}
	if _, err := Decode(src); err != ErrBadHeader {
		t.Fatalf("Decode = %v, want ErrBadHeader", err)
	}
}

func TestDecodeStreamMatchesDecode(t *testing.T) {
	data := []byte("ABCABCABCABCABCABCABCXYZXYZXYZ")
	enc := Encode(data)

	pos := 0
	dec, consumed, err := DecodeStream(func() (byte, bool) {
		if pos >= len(enc) {
			return 0, false
		}
		b := enc[pos]
		pos++
		return b, true
	})
	if err != nil {
		t.Fatalf("DecodeStream: %v", err)
	}
	if !bytes.Equal(dec, data) {
		t.Fatalf("DecodeStream mismatch: got %v want %v", dec, data)
	}
	if consumed > len(enc) {
		t.Fatalf("DecodeStream consumed %d bytes, more than the %d-byte stream", consumed, len(enc))
	}
}

func TestDecodeTruncatedStream(t *testing.T) {
	src := []byte{0x10, 0x0A, 0x00, 0x00, 0x80}
	if _, err := Decode(src); err != ErrTruncated {
		t.Fatalf("Decode = %v, want ErrTruncated", err)
	}
}
