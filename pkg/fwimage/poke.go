package fwimage

// Eb pokes data directly into the image buffer at addr with no invariant
// maintenance — no CRC refresh, no offset revalidation. It's the escape
// hatch for scripting raw patches; the caller is on their own for keeping
// the image self-consistent afterward.
func (img *Image) Eb(addr uint32, data []byte) error {
	end := uint64(addr) + uint64(len(data))
	if end > uint64(len(img.buf)) {
		return newErr("Eb", KindOutOfSpace, nil)
	}
	copy(img.buf[addr:], data)
	if len(data) > 0 {
		img.markDirty()
	}
	return nil
}

// Db dumps size raw bytes from the image buffer starting at addr.
func (img *Image) Db(addr uint32, size int) ([]byte, error) {
	if size < 0 {
		return nil, newErr("Db", KindOutOfSpace, nil)
	}
	end := uint64(addr) + uint64(size)
	if end > uint64(len(img.buf)) {
		return nil, newErr("Db", KindOutOfSpace, nil)
	}
	out := make([]byte, size)
	copy(out, img.buf[addr:end])
	return out, nil
}
