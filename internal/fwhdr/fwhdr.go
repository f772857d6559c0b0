// Package fwhdr models the firmware image's flash header: the fixed 0x2A-byte
// region at the start of the image that locates the five modules and the
// user-config/connection-settings area below them.
package fwhdr

import (
	"encoding/binary"
	"errors"
)

// Size is the number of bytes the flash header occupies at the start of the
// image.
const Size = 0x2A

// Byte offsets within the header. The specification describes these fields
// by name and scaling rule but not by exact byte position; this layout is a
// concrete choice (see DESIGN.md) that packs every field described in the
// data model into the first 0x2A bytes.
const (
	offArm9StaticRomAddr = 0x00
	offArm9RomAddrScale  = 0x02
	offArm7RomAddrScale  = 0x03
	offArm7StaticRomAddr = 0x04
	offRamAddrScale      = 0x06
	offArm7MainRamSelect = 0x07
	offArm9StaticRamAddr = 0x08
	offArm7StaticRamAddr = 0x0A
	offArm9SecondaryRom  = 0x0C
	offArm7SecondaryRom  = 0x0E
	offResourceRom       = 0x10
	offStaticCrc         = 0x12
	offSecondaryCrc      = 0x14
	offResourceCrc       = 0x16
	offIpl2Type          = 0x18
	offNvramUserConfig   = 0x1A
	offFlashCapacity     = 0x1C
	offBlowfishKey       = 0x1E
)

// KeyOffset is the header byte offset of the 8-byte static-module cipher
// key. It is deliberately placed outside the [0x00,0x08) region the ROM
// offset/scale fields occupy, so that Compact/Import rewriting those
// offsets never changes the key a previously-encoded static module was
// encrypted under.
const KeyOffset = offBlowfishKey

// IPL2 flag bits. 0xFF alone means the oldest (original) platform, carrying
// none of the other flags; any other value is a bitmask.
const (
	Ipl2Oldest            = 0xFF
	Ipl2CpuNtr            = 0x80
	Ipl2ExtendedSettings  = 0x40
	Ipl2USG               = 0x20
	Ipl2SuccessorPlatform = 0x10
	Ipl2Korean            = 0x04
	Ipl2Chinese           = 0x02
	Ipl2ExtLanguage       = 0x01
)

// connBlockSize values, keyed by whether the image carries extended
// (successor-platform) connection data.
const (
	ConnBlockSizeNormal   = 0x400
	ConnBlockSizeExtended = 0xA00
)

var (
	// ErrShortImage is returned when the buffer is too small to hold a
	// flash header.
	ErrShortImage = errors.New("fwhdr: image shorter than flash header")
	// ErrUnrepresentable is returned when a byte offset cannot be encoded
	// by any of the eight available scale values.
	ErrUnrepresentable = errors.New("fwhdr: rom offset not representable by any scale")
)

// Header is a view over the first Size bytes of an image buffer. It does not
// copy; writes through its setters mutate the underlying image.
type Header struct {
	buf []byte
}

// New wraps the first Size bytes of buf as a Header. buf must outlive the
// returned Header.
func New(buf []byte) (*Header, error) {
	if len(buf) < Size {
		return nil, ErrShortImage
	}
	return &Header{buf: buf[:Size:Size]}, nil
}

func (h *Header) u16(off int) uint16      { return binary.LittleEndian.Uint16(h.buf[off:]) }
func (h *Header) putU16(off int, v uint16) { binary.LittleEndian.PutUint16(h.buf[off:], v) }

// Arm9StaticRomOffset returns the byte offset of the ARM9 static module.
func (h *Header) Arm9StaticRomOffset() int {
	return int(h.u16(offArm9StaticRomAddr)) * 4 << h.Arm9RomAddrScale()
}

// Arm7StaticRomOffset returns the byte offset of the ARM7 static module.
func (h *Header) Arm7StaticRomOffset() int {
	return int(h.u16(offArm7StaticRomAddr)) * 4 << h.Arm7RomAddrScale()
}

// Arm9RomAddrScale returns the 3-bit scale exponent for the ARM9 static
// module's ROM field.
func (h *Header) Arm9RomAddrScale() uint { return uint(h.buf[offArm9RomAddrScale] & 0x07) }

// Arm7RomAddrScale returns the 3-bit scale exponent for the ARM7 static
// module's ROM field.
func (h *Header) Arm7RomAddrScale() uint { return uint(h.buf[offArm7RomAddrScale] & 0x07) }

// RamAddrScale returns the shared 3-bit scale exponent used by both static
// modules' RAM address fields.
func (h *Header) RamAddrScale() uint { return uint(h.buf[offRamAddrScale] & 0x07) }

// Arm9StaticRamAddr returns the ARM9 static module's RAM load address.
func (h *Header) Arm9StaticRamAddr() uint32 {
	field := uint32(h.u16(offArm9StaticRamAddr))
	return 0x02800000 - (field * 4 << h.RamAddrScale())
}

// Arm7MainRamSelect reports whether the ARM7 static module loads into main
// RAM (base 0x02800000) rather than ARM7 work RAM (base 0x03810000).
func (h *Header) Arm7MainRamSelect() bool { return h.buf[offArm7MainRamSelect]&0x01 != 0 }

// Arm7StaticRamAddr returns the ARM7 static module's RAM load address.
func (h *Header) Arm7StaticRamAddr() uint32 {
	base := uint32(0x03810000)
	if h.Arm7MainRamSelect() {
		base = 0x02800000
	}
	field := uint32(h.u16(offArm7StaticRamAddr))
	return base - (field * 4 << h.RamAddrScale())
}

// Arm9SecondaryRomOffset returns the byte offset of the ARM9 secondary
// module.
func (h *Header) Arm9SecondaryRomOffset() int { return int(h.u16(offArm9SecondaryRom)) * 8 }

// Arm7SecondaryRomOffset returns the byte offset of the ARM7 secondary
// module.
func (h *Header) Arm7SecondaryRomOffset() int { return int(h.u16(offArm7SecondaryRom)) * 8 }

// ResourceRomOffset returns the byte offset of the resource-pack module.
func (h *Header) ResourceRomOffset() int { return int(h.u16(offResourceRom)) * 8 }

// NvramUserConfigOffset returns the byte offset of the user-config area.
func (h *Header) NvramUserConfigOffset() int { return int(h.u16(offNvramUserConfig)) * 8 }

// StaticCrc, SecondaryCrc, and ResourceCrc return the header's stored CRC-16
// values for the corresponding module pair.
func (h *Header) StaticCrc() uint16    { return h.u16(offStaticCrc) }
func (h *Header) SecondaryCrc() uint16 { return h.u16(offSecondaryCrc) }
func (h *Header) ResourceCrc() uint16  { return h.u16(offResourceCrc) }

// SetStaticCrc, SetSecondaryCrc, and SetResourceCrc rewrite the header's
// stored CRC-16 values.
func (h *Header) SetStaticCrc(v uint16)    { h.putU16(offStaticCrc, v) }
func (h *Header) SetSecondaryCrc(v uint16) { h.putU16(offSecondaryCrc, v) }
func (h *Header) SetResourceCrc(v uint16)  { h.putU16(offResourceCrc, v) }

// Ipl2Type returns the raw IPL2 flags byte.
func (h *Header) Ipl2Type() byte { return h.buf[offIpl2Type] }

// HasExConfig reports whether the image's user-config slots carry the
// extended sub-record (exVersion/exLanguage/language mask).
func (h *Header) HasExConfig() bool {
	t := h.Ipl2Type()
	return t != Ipl2Oldest && t&(Ipl2ExtendedSettings|Ipl2SuccessorPlatform) != 0
}

// HasTwlSettings reports whether the image is a successor-platform (TWL)
// image, which widens the reserved connection-settings region below the
// user-config area to include the extended connection-settings block.
func (h *Header) HasTwlSettings() bool {
	t := h.Ipl2Type()
	return t != Ipl2Oldest && t&Ipl2SuccessorPlatform != 0
}

// ExtendedSettings reports whether the image carries extended (successor
// platform) connection data, which widens connBlockSize.
func (h *Header) ExtendedSettings() bool { return h.HasTwlSettings() }

// ConnBlockSize returns the reserved size below the user-config area for
// connection settings, per the image's IPL2 flags.
func (h *Header) ConnBlockSize() int {
	if h.ExtendedSettings() {
		return ConnBlockSizeExtended
	}
	return ConnBlockSizeNormal
}

// FlashCapacity returns the flash chip's capacity in bytes: 128 KiB scaled
// by a 3-bit exponent.
func (h *Header) FlashCapacity() int {
	scale := uint(h.buf[offFlashCapacity] & 0x07)
	return 128 * 1024 << scale
}

// SetArm9StaticRomOffset writes the ARM9 static ROM offset, choosing the
// smallest scale that represents it exactly, per invariant 2.
func (h *Header) SetArm9StaticRomOffset(byteOffset int) error {
	field, scale, err := encodeScaledOffset(byteOffset)
	if err != nil {
		return err
	}
	h.buf[offArm9RomAddrScale] = byte(scale)
	h.putU16(offArm9StaticRomAddr, field)
	return nil
}

// SetArm7StaticRomOffset writes the ARM7 static ROM offset, choosing the
// smallest scale that represents it exactly, per invariant 2.
func (h *Header) SetArm7StaticRomOffset(byteOffset int) error {
	field, scale, err := encodeScaledOffset(byteOffset)
	if err != nil {
		return err
	}
	h.buf[offArm7RomAddrScale] = byte(scale)
	h.putU16(offArm7StaticRomAddr, field)
	return nil
}

// SetArm9StaticRomOffsetScale1 and SetArm7StaticRomOffsetScale1 write a
// static ROM offset using the fixed scale=1 (byte factor 8) encoding that
// compact uses, rather than the smallest representable scale — compact's
// modules are already 8-byte aligned, so every static offset it produces
// fits scale 1 exactly.
func (h *Header) SetArm9StaticRomOffsetScale1(byteOffset int) error {
	if byteOffset < 0 || byteOffset%8 != 0 || byteOffset/8 > 0xFFFF {
		return ErrUnrepresentable
	}
	h.buf[offArm9RomAddrScale] = 1
	h.putU16(offArm9StaticRomAddr, uint16(byteOffset/8))
	return nil
}

func (h *Header) SetArm7StaticRomOffsetScale1(byteOffset int) error {
	if byteOffset < 0 || byteOffset%8 != 0 || byteOffset/8 > 0xFFFF {
		return ErrUnrepresentable
	}
	h.buf[offArm7RomAddrScale] = 1
	h.putU16(offArm7StaticRomAddr, uint16(byteOffset/8))
	return nil
}

// SetArm9SecondaryRomOffset, SetArm7SecondaryRomOffset, and
// SetResourceRomOffset write the unscaled (`*8`) module offsets.
func (h *Header) SetArm9SecondaryRomOffset(byteOffset int) error {
	return h.setUnscaledOffset(offArm9SecondaryRom, byteOffset)
}

func (h *Header) SetArm7SecondaryRomOffset(byteOffset int) error {
	return h.setUnscaledOffset(offArm7SecondaryRom, byteOffset)
}

func (h *Header) SetResourceRomOffset(byteOffset int) error {
	return h.setUnscaledOffset(offResourceRom, byteOffset)
}

func (h *Header) setUnscaledOffset(off, byteOffset int) error {
	if byteOffset < 0 || byteOffset%8 != 0 || byteOffset/8 > 0xFFFF {
		return ErrUnrepresentable
	}
	h.putU16(off, uint16(byteOffset/8))
	return nil
}

// encodeScaledOffset finds the smallest scale in [0,7] such that
// byteOffset == field*4<<scale for some 16-bit field, per invariant 2
// ("the codec chooses the smallest scale keeping the address
// representable").
func encodeScaledOffset(byteOffset int) (field uint16, scale uint, err error) {
	if byteOffset < 0 || byteOffset%4 != 0 {
		return 0, 0, ErrUnrepresentable
	}
	for s := uint(0); s <= 7; s++ {
		unit := 4 << s
		if byteOffset%unit != 0 {
			continue
		}
		f := byteOffset / unit
		if f <= 0xFFFF {
			return uint16(f), s, nil
		}
	}
	return 0, 0, ErrUnrepresentable
}
