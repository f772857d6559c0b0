package fwimage

import (
	"github.com/barnettlynn/fwimage/internal/crc"
	"github.com/barnettlynn/fwimage/internal/feistel"
	"github.com/barnettlynn/fwimage/internal/lz"
)

// Export returns tag's module content. By default that's the decompressed
// plaintext; compressed requests the raw compressed bytes instead (still
// decrypted, for a static module); encrypted additionally requests the
// on-ROM encrypted form for a static module (ignored for non-static tags,
// which are never encrypted) and implies compressed.
func (img *Image) Export(tag ModuleTag, compressed, encrypted bool) ([]byte, error) {
	if encrypted {
		compressed = true
	}
	info, err := img.decodeModule(tag)
	if err != nil {
		return nil, newErr("Export", KindInvalidImage, err)
	}
	if !info.Decodable {
		return nil, newErr("Export", KindMalformedStream, nil)
	}
	if !compressed {
		out := make([]byte, len(info.Data))
		copy(out, info.Data)
		return out, nil
	}

	raw := make([]byte, info.CompressedSize)
	copy(raw, img.buf[info.RomOffset:info.RomOffset+info.CompressedSize])
	if tag.static() && !encrypted {
		cipher := feistel.NewCipher(headerKey(img.buf))
		if err := cipher.Decrypt(raw); err != nil {
			return nil, newErr("Export", KindMalformedStream, err)
		}
	}
	return raw, nil
}

// Import replaces tag's module content and repacks the image so every
// module offset stays correct. data is plaintext unless compressed is set,
// in which case data is already-compressed bytes (already-encrypted too,
// for a static tag, when encrypted is also set — encrypted implies
// compressed). Import refuses — leaving the image unchanged — if the
// resulting layout would overrun the space reserved for connection settings
// and user config.
func (img *Image) Import(tag ModuleTag, data []byte, compressed, encrypted bool) error {
	if encrypted {
		compressed = true
	}
	hdr := img.header()
	cipher := feistel.NewCipher(headerKey(img.buf))

	decoded := make(map[ModuleTag]ModuleInfo, 5)
	raw := make(map[ModuleTag][]byte, 5)
	for _, t := range moduleOrder {
		info, err := img.decodeModule(t)
		if err != nil {
			return newErr("Import", KindInvalidImage, err)
		}
		decoded[t] = info
		if t != tag {
			if !info.Decodable {
				return newErr("Import", KindMalformedStream, nil)
			}
			seg := make([]byte, info.CompressedSize)
			copy(seg, img.buf[info.RomOffset:info.RomOffset+info.CompressedSize])
			raw[t] = seg
		}
	}

	plain, encodedNew, err := img.prepareImport(tag, data, compressed, encrypted, cipher)
	if err != nil {
		return newErr("Import", KindMalformedStream, err)
	}
	newInfo := decoded[tag]
	newInfo.Data = plain
	newInfo.Decodable = true
	decoded[tag] = newInfo
	raw[tag] = encodedNew

	total := moduleRegionStart
	for _, t := range moduleOrder {
		total += len(raw[t])
	}
	ceiling := hdr.NvramUserConfigOffset() - hdr.ConnBlockSize()
	if total > ceiling {
		return newErr("Import", KindOutOfSpace, nil)
	}

	newBuf := make([]byte, len(img.buf))
	copy(newBuf, img.buf[:moduleRegionStart])
	offsets := make(map[ModuleTag]int, 5)
	pos := moduleRegionStart
	for _, t := range moduleOrder {
		offsets[t] = pos
		copy(newBuf[pos:], raw[t])
		pos += len(raw[t])
	}
	copy(newBuf[pos:], img.buf[pos:])
	img.buf = newBuf
	hdr = img.header()

	if err := hdr.SetArm9StaticRomOffset(offsets[Arm9Static]); err != nil {
		return newErr("Import", KindOutOfSpace, err)
	}
	if err := hdr.SetArm7StaticRomOffset(offsets[Arm7Static]); err != nil {
		return newErr("Import", KindOutOfSpace, err)
	}
	if err := hdr.SetArm9SecondaryRomOffset(offsets[Arm9Secondary]); err != nil {
		return newErr("Import", KindOutOfSpace, err)
	}
	if err := hdr.SetArm7SecondaryRomOffset(offsets[Arm7Secondary]); err != nil {
		return newErr("Import", KindOutOfSpace, err)
	}
	if err := hdr.SetResourceRomOffset(offsets[Resources]); err != nil {
		return newErr("Import", KindOutOfSpace, err)
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

// prepareImport normalizes data into (plaintext, final on-ROM bytes) per the
// compressed/encrypted flags.
func (img *Image) prepareImport(tag ModuleTag, data []byte, compressed, encrypted bool, cipher *feistel.Cipher) ([]byte, []byte, error) {
	if !compressed {
		return data, encodeModule(tag, data, cipher), nil
	}

	raw := make([]byte, roundUp8(len(data)))
	copy(raw, data)

	compBytes := raw
	if tag.static() && encrypted {
		decrypted := make([]byte, len(raw))
		copy(decrypted, raw)
		if err := cipher.Decrypt(decrypted); err != nil {
			return nil, nil, err
		}
		compBytes = decrypted
	}

	var plain []byte
	var err error
	if tag.static() {
		plain, _, err = decodeLZFromOffset(compBytes, 0)
	} else if len(compBytes) > 0 && compBytes[0] == 0x10 {
		plain, _, err = decodeLZFromOffset(compBytes, 0)
	} else {
		plain, _, err = decodeASHFromOffset(compBytes, 0)
	}
	if err != nil {
		return nil, nil, err
	}

	final := raw
	if tag.static() && !encrypted {
		final = make([]byte, len(raw))
		copy(final, raw)
		if err := cipher.Encrypt(final); err != nil {
			return nil, nil, err
		}
	}
	return plain, final, nil
}
