// Package fwimage's core session type: a loaded firmware image buffer and
// the state machine Load/Save and the operations in verify.go, fix.go,
// compact.go, importexport.go, clean.go, and poke.go drive it through.
package fwimage

import (
	"github.com/barnettlynn/fwimage/internal/fwhdr"
)

// State is the image session's lifecycle position.
type State int

const (
	// StateEmpty is the zero-value state; no usable *Image is ever returned
	// in this state (a failed Load returns nil, not an Empty *Image).
	StateEmpty State = iota
	// StateLoaded is an image that has been read and not modified since.
	StateLoaded
	// StateLoadedDirty is an image with at least one unmediated mutation
	// since the last Save.
	StateLoadedDirty
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateLoadedDirty:
		return "loaded-dirty"
	default:
		return "empty"
	}
}

// minImageSize is the smallest buffer Load accepts, per invariant "Image:
// owned contiguous byte buffer of length N >= 4096".
const minImageSize = 4096

// Image is a single loaded firmware image and its session state. It is not
// safe for concurrent use: the governing model is "one shared resource,
// mutated exclusively by the operation in progress."
type Image struct {
	buf   []byte
	state State
}

// Load validates data as a firmware image and returns an owned copy wrapped
// in a new *Image in StateLoaded. data is not retained; the returned Image
// owns its own buffer.
func Load(data []byte) (*Image, error) {
	if len(data) < minImageSize {
		return nil, newErr("Load", KindInvalidImage, nil)
	}
	if _, err := fwhdr.New(data); err != nil {
		return nil, newErr("Load", KindInvalidImage, err)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Image{buf: buf, state: StateLoaded}, nil
}

// Save returns the current image buffer (a copy, safe for the caller to
// persist or mutate independently) and transitions the session back to
// StateLoaded. Save never fails.
func (img *Image) Save() []byte {
	out := make([]byte, len(img.buf))
	copy(out, img.buf)
	img.state = StateLoaded
	return out
}

// State reports the session's current lifecycle position.
func (img *Image) State() State { return img.state }

// Dirty reports whether the image has unsaved mutations.
func (img *Image) Dirty() bool { return img.state == StateLoadedDirty }

// Size returns the image buffer's length in bytes.
func (img *Image) Size() int { return len(img.buf) }

func (img *Image) markDirty() { img.state = StateLoadedDirty }

func (img *Image) header() *fwhdr.Header {
	h, err := fwhdr.New(img.buf)
	if err != nil {
		// Load already validated this; the buffer only shrinks via
		// operations that re-validate length first.
		panic("fwimage: unreachable header parse failure: " + err.Error())
	}
	return h
}
