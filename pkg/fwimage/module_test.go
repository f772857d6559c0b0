package fwimage

import (
	"bytes"
	"testing"
)

func TestParseModuleTag(t *testing.T) {
	for _, tag := range moduleOrder {
		got, ok := ParseModuleTag(tag.String())
		if !ok || got != tag {
			t.Fatalf("ParseModuleTag(%q) = (%v, %v), want (%v, true)", tag.String(), got, ok, tag)
		}
	}
	if _, ok := ParseModuleTag("bogus"); ok {
		t.Fatalf("expected ParseModuleTag to reject an unknown mnemonic")
	}
}

func TestDecodeModuleRoundTripsSyntheticImage(t *testing.T) {
	data := buildImage(t)
	img, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, tag := range moduleOrder {
		info, err := img.decodeModule(tag)
		if err != nil {
			t.Fatalf("decodeModule(%v): %v", tag, err)
		}
		if !info.Decodable {
			t.Fatalf("decodeModule(%v): expected Decodable", tag)
		}
		want := moduleContent(tag, len(info.Data))
		if !bytes.Equal(info.Data, want) {
			t.Fatalf("decodeModule(%v): content mismatch", tag)
		}
	}
}

func TestRoundUp8(t *testing.T) {
	cases := map[int]int{0: 0, 1: 8, 7: 8, 8: 8, 9: 16}
	for in, want := range cases {
		if got := roundUp8(in); got != want {
			t.Fatalf("roundUp8(%d) = %d, want %d", in, got, want)
		}
	}
}
