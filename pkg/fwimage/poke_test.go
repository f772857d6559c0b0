package fwimage

import (
	"bytes"
	"testing"
)

func TestEbDbRoundTrip(t *testing.T) {
	data := buildImage(t)
	img, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := img.Eb(0x300, payload); err != nil {
		t.Fatalf("Eb: %v", err)
	}
	if !img.Dirty() {
		t.Fatalf("expected Eb to mark the image dirty")
	}
	out, err := img.Db(0x300, len(payload))
	if err != nil {
		t.Fatalf("Db: %v", err)
	}
	if !bytes.Equal(out, payload) {
		t.Fatalf("Db returned %x, want %x", out, payload)
	}
}

func TestEbRejectsOutOfBounds(t *testing.T) {
	data := buildImage(t)
	img, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = img.Eb(uint32(img.Size()-1), []byte{1, 2, 3, 4})
	if err == nil || !IsOutOfSpace(err) {
		t.Fatalf("expected KindOutOfSpace, got %v", err)
	}
}

func TestDbRejectsOutOfBounds(t *testing.T) {
	data := buildImage(t)
	img, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, err = img.Db(uint32(img.Size()), 1)
	if err == nil || !IsOutOfSpace(err) {
		t.Fatalf("expected KindOutOfSpace, got %v", err)
	}
}
