package fwimage

import (
	"encoding/binary"
	"testing"

	"github.com/barnettlynn/fwimage/internal/crc"
	"github.com/barnettlynn/fwimage/internal/feistel"
	"github.com/barnettlynn/fwimage/internal/fwhdr"
	"github.com/barnettlynn/fwimage/internal/userconfig"
)

// moduleContent returns deterministic, distinguishable plaintext for a
// module tag, sized so LZ/ASH both have something to chew on.
func moduleContent(tag ModuleTag, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(int(tag)*7 + i%251)
	}
	return out
}

// buildImage assembles a minimal, fully self-consistent synthetic firmware
// image: a real header, all five modules compressed and (for the static
// pair) encrypted and placed contiguously from 0x200, a valid wireless init
// table, and two clean user-config slots. Every invariant Verify checks
// holds; tests mutate a copy to exercise failure paths.
func buildImage(t *testing.T) []byte {
	t.Helper()

	const imgSize = 0x10000
	buf := make([]byte, imgSize)

	// Header key lives at its own dedicated, never-relocated field, not in
	// the ROM offset/scale bytes SetArm9StaticRomOffset etc. below rewrite.
	copy(buf[fwhdr.KeyOffset:fwhdr.KeyOffset+8], []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88})
	cipher := feistel.NewCipher(headerKey(buf))

	plains := map[ModuleTag][]byte{
		Arm9Static:    moduleContent(Arm9Static, 64),
		Arm7Static:    moduleContent(Arm7Static, 64),
		Arm9Secondary: moduleContent(Arm9Secondary, 48),
		Arm7Secondary: moduleContent(Arm7Secondary, 48),
		Resources:     moduleContent(Resources, 96),
	}

	pos := moduleRegionStart
	offsets := make(map[ModuleTag]int, 5)
	for _, tag := range moduleOrder {
		offsets[tag] = pos
		enc := encodeModule(tag, plains[tag], cipher)
		copy(buf[pos:], enc)
		pos += len(enc)
	}

	hdr, err := fwhdr.New(buf)
	if err != nil {
		t.Fatalf("fwhdr.New: %v", err)
	}
	if err := hdr.SetArm9StaticRomOffset(offsets[Arm9Static]); err != nil {
		t.Fatalf("SetArm9StaticRomOffset: %v", err)
	}
	if err := hdr.SetArm7StaticRomOffset(offsets[Arm7Static]); err != nil {
		t.Fatalf("SetArm7StaticRomOffset: %v", err)
	}
	if err := hdr.SetArm9SecondaryRomOffset(offsets[Arm9Secondary]); err != nil {
		t.Fatalf("SetArm9SecondaryRomOffset: %v", err)
	}
	if err := hdr.SetArm7SecondaryRomOffset(offsets[Arm7Secondary]); err != nil {
		t.Fatalf("SetArm7SecondaryRomOffset: %v", err)
	}
	if err := hdr.SetResourceRomOffset(offsets[Resources]); err != nil {
		t.Fatalf("SetResourceRomOffset: %v", err)
	}

	staticCrc := crc.CRC16(plains[Arm9Static], 0xFFFF)
	staticCrc = crc.CRC16(plains[Arm7Static], staticCrc)
	hdr.SetStaticCrc(staticCrc)

	secondaryCrc := crc.CRC16(plains[Arm9Secondary], 0xFFFF)
	secondaryCrc = crc.CRC16(plains[Arm7Secondary], secondaryCrc)
	hdr.SetSecondaryCrc(secondaryCrc)

	hdr.SetResourceCrc(crc.CRC16(plains[Resources], 0xFFFF))

	// nvramUserConfigAddr: place the user-config area comfortably above the
	// packed modules and the (normal-size) connection-settings block.
	const ucOff = 0x4000
	putUcOffset(buf, ucOff)

	writeValidWirelessTable(buf)
	writeValidUserConfig(t, buf, ucOff)

	return buf
}

// putUcOffset writes the header's nvramUserConfigAddr field directly
// (fwhdr.Header exposes no setter for it; only compact/import need to move
// modules, never the user-config area itself).
func putUcOffset(buf []byte, byteOffset int) {
	binary.LittleEndian.PutUint16(buf[0x1A:], uint16(byteOffset/8))
}

func writeValidWirelessTable(buf []byte) {
	base := fwhdr.Size
	const tableSize = 0x40
	binary.LittleEndian.PutUint16(buf[base+wlOffTableSize:], tableSize)
	for i := base + wlOffTableSize + 2; i < base+wlOffTableSize+tableSize; i++ {
		buf[i] = byte(i)
	}
	binary.LittleEndian.PutUint16(buf[base+wlOffAllowedChan:], 0x0006)
	buf[base+wlOffRfType] = 1
	computed := crc.CRC16(buf[base+wlOffTableSize:base+wlOffTableSize+tableSize], 0)
	binary.LittleEndian.PutUint16(buf[base+wlOffCrc:], computed)
}

func writeValidUserConfig(t *testing.T, buf []byte, ucOff int) {
	t.Helper()
	region, err := userconfig.New(buf[ucOff:])
	if err != nil {
		t.Fatalf("userconfig.New: %v", err)
	}
	region.Clean(false, false, false)
}
