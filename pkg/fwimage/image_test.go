package fwimage

import "testing"

func TestLoadRejectsShortBuffer(t *testing.T) {
	if _, err := Load(make([]byte, 100)); err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
}

func TestLoadAcceptsSyntheticImage(t *testing.T) {
	data := buildImage(t)
	img, err := Load(data)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if img.State() != StateLoaded {
		t.Fatalf("expected StateLoaded, got %v", img.State())
	}
	if img.Dirty() {
		t.Fatalf("freshly loaded image should not be dirty")
	}
	if img.Size() != len(data) {
		t.Fatalf("expected size %d, got %d", len(data), img.Size())
	}
}

func TestSaveResetsDirtyFlag(t *testing.T) {
	data := buildImage(t)
	img, err := Load(data)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	img.markDirty()
	if !img.Dirty() {
		t.Fatalf("expected dirty after markDirty")
	}
	out := img.Save()
	if img.Dirty() {
		t.Fatalf("expected Save to clear dirty flag")
	}
	if len(out) != len(data) {
		t.Fatalf("expected Save to return a full-size copy")
	}
}

func TestStateStrings(t *testing.T) {
	cases := map[State]string{
		StateEmpty:       "empty",
		StateLoaded:      "loaded",
		StateLoadedDirty: "loaded-dirty",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
