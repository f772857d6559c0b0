package fwimage

import (
	"github.com/barnettlynn/fwimage/internal/crc"
	"github.com/barnettlynn/fwimage/internal/feistel"
)

// moduleRegionStart is the fixed byte offset compact repacks modules from.
const moduleRegionStart = 0x200

// Compact decompresses all five modules, re-encodes each with its default
// compression kind (static modules LZ, the rest ASH), and repacks them
// contiguously from offset 0x200 in moduleOrder, rewriting the five header
// ROM offsets and refreshing every module CRC. It fails hard — leaving the
// image unchanged — if any module isn't decodable, or if the repacked
// modules would overrun the space reserved for connection settings and
// user config.
func (img *Image) Compact() error {
	hdr := img.header()
	cipher := feistel.NewCipher(headerKey(img.buf))

	decoded := make(map[ModuleTag]ModuleInfo, 5)
	for _, tag := range moduleOrder {
		info, err := img.decodeModule(tag)
		if err != nil {
			return newErr("Compact", KindInvalidImage, err)
		}
		if !info.Decodable {
			return newErr("Compact", KindMalformedStream, nil)
		}
		decoded[tag] = info
	}

	encoded := make(map[ModuleTag][]byte, 5)
	total := moduleRegionStart
	for _, tag := range moduleOrder {
		enc := encodeModule(tag, decoded[tag].Data, cipher)
		encoded[tag] = enc
		total += len(enc)
	}

	ceiling := hdr.NvramUserConfigOffset() - hdr.ConnBlockSize()
	if total > ceiling {
		return newErr("Compact", KindOutOfSpace, nil)
	}

	newBuf := make([]byte, len(img.buf))
	copy(newBuf, img.buf[:moduleRegionStart])

	offsets := make(map[ModuleTag]int, 5)
	pos := moduleRegionStart
	for _, tag := range moduleOrder {
		offsets[tag] = pos
		copy(newBuf[pos:], encoded[tag])
		pos += len(encoded[tag])
	}
	// preserve everything below the module region (connection settings,
	// user config) unchanged.
	copy(newBuf[pos:], img.buf[pos:])

	img.buf = newBuf
	hdr = img.header()

	if err := hdr.SetArm9StaticRomOffsetScale1(offsets[Arm9Static]); err != nil {
		return newErr("Compact", KindOutOfSpace, err)
	}
	if err := hdr.SetArm7StaticRomOffsetScale1(offsets[Arm7Static]); err != nil {
		return newErr("Compact", KindOutOfSpace, err)
	}
	if err := hdr.SetArm9SecondaryRomOffset(offsets[Arm9Secondary]); err != nil {
		return newErr("Compact", KindOutOfSpace, err)
	}
	if err := hdr.SetArm7SecondaryRomOffset(offsets[Arm7Secondary]); err != nil {
		return newErr("Compact", KindOutOfSpace, err)
	}
	if err := hdr.SetResourceRomOffset(offsets[Resources]); err != nil {
		return newErr("Compact", KindOutOfSpace, err)
	}

	staticCrc := crc.CRC16(decoded[Arm9Static].Data, 0xFFFF)
	staticCrc = crc.CRC16(decoded[Arm7Static].Data, staticCrc)
	hdr.SetStaticCrc(staticCrc)

	secondaryCrc := crc.CRC16(decoded[Arm9Secondary].Data, 0xFFFF)
	secondaryCrc = crc.CRC16(decoded[Arm7Secondary].Data, secondaryCrc)
	hdr.SetSecondaryCrc(secondaryCrc)

	hdr.SetResourceCrc(crc.CRC16(decoded[Resources].Data, 0xFFFF))

	img.markDirty()
	return nil
}
