package fwimage

import (
	"encoding/binary"

	"github.com/barnettlynn/fwimage/internal/ash"
	"github.com/barnettlynn/fwimage/internal/feistel"
	"github.com/barnettlynn/fwimage/internal/fwhdr"
	"github.com/barnettlynn/fwimage/internal/lz"
	"github.com/barnettlynn/fwimage/internal/ramscan"
)

// ModuleTag identifies one of the five modules a firmware image carries.
type ModuleTag int

const (
	Arm9Static ModuleTag = iota
	Arm7Static
	Arm9Secondary
	Arm7Secondary
	Resources
)

// moduleOrder is the order modules sit in after compact, per invariant 10.
var moduleOrder = [5]ModuleTag{Arm9Static, Arm7Static, Arm9Secondary, Arm7Secondary, Resources}

func (t ModuleTag) String() string {
	switch t {
	case Arm9Static:
		return "arm9"
	case Arm7Static:
		return "arm7"
	case Arm9Secondary:
		return "arm9s"
	case Arm7Secondary:
		return "arm7s"
	case Resources:
		return "rsrc"
	default:
		return "unknown"
	}
}

// ParseModuleTag maps a CLI module mnemonic (arm9, arm7, arm9s, arm7s, rsrc)
// to a ModuleTag.
func ParseModuleTag(s string) (ModuleTag, bool) {
	for _, t := range moduleOrder {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

func (t ModuleTag) static() bool { return t == Arm9Static || t == Arm7Static }

// CompressionKind is the compression scheme a module uses.
type CompressionKind int

const (
	CompressionNone CompressionKind = iota
	CompressionLZ
	CompressionASH
)

func (k CompressionKind) String() string {
	switch k {
	case CompressionLZ:
		return "LZ"
	case CompressionASH:
		return "ASH"
	default:
		return "none"
	}
}

// ModuleInfo is the descriptor decodeModule returns: everything §4.5's
// get_*_info contract promises, plus the decompressed bytes when decoding
// succeeded.
type ModuleInfo struct {
	Tag              ModuleTag
	RomOffset        int
	CompressedSize   int // rounded up to 8 bytes
	RamAddr          uint32
	RamAddrKnown     bool // false only for Arm9Secondary/Arm7Secondary/Resources when the instruction scan missed
	UncompressedSize int
	Kind             CompressionKind
	Encrypted        bool
	Decodable        bool
	Data             []byte // nil when Decodable is false
}

func roundUp8(n int) int { return (n + 7) &^ 7 }

// headerKey reads the static-module cipher key from its dedicated, never
// relocated header field — not from the ROM offset/scale bytes at the start
// of the header, which Compact and Import rewrite.
func headerKey(buf []byte) [8]byte {
	var k [8]byte
	copy(k[:], buf[fwhdr.KeyOffset:fwhdr.KeyOffset+8])
	return k
}

func romOffset(hdr *fwhdr.Header, tag ModuleTag) int {
	switch tag {
	case Arm9Static:
		return hdr.Arm9StaticRomOffset()
	case Arm7Static:
		return hdr.Arm7StaticRomOffset()
	case Arm9Secondary:
		return hdr.Arm9SecondaryRomOffset()
	case Arm7Secondary:
		return hdr.Arm7SecondaryRomOffset()
	case Resources:
		return hdr.ResourceRomOffset()
	default:
		return -1
	}
}

// decodeLZFromOffset runs the LZ streaming decoder directly over img starting
// at offset (no decryption), returning the decompressed bytes and the real
// (unpadded) number of ROM bytes consumed.
func decodeLZFromOffset(img []byte, offset int) ([]byte, int, error) {
	pos := offset
	next := func() (byte, bool) {
		if pos >= len(img) {
			return 0, false
		}
		b := img[pos]
		pos++
		return b, true
	}
	data, _, err := lz.DecodeStream(next)
	if err != nil {
		return nil, 0, err
	}
	return data, pos - offset, nil
}

// decodeStaticFromOffset decrypts and LZ-decodes a static module, returning
// the real (block-aligned) number of ciphertext bytes the decrypter
// consumed.
func decodeStaticFromOffset(img []byte, offset int, cipher *feistel.Cipher) ([]byte, int, error) {
	pos := offset
	rawNext := func() (byte, bool) {
		if pos >= len(img) {
			return 0, false
		}
		b := img[pos]
		pos++
		return b, true
	}
	sd := cipher.NewStreamDecrypter(rawNext)
	plainNext := func() (byte, bool) {
		b, err := sd.ReadByte()
		return b, err == nil
	}
	data, _, err := lz.DecodeStream(plainNext)
	if err != nil {
		return nil, 0, err
	}
	return data, pos - offset, nil
}

// ashCompressedSize recovers the real on-ROM byte length of an ASH module
// from the firmware-specific header post-processing: the first 4 bytes hold
// (S<<2)|0x80000000 little-endian, where S is the raw stream length.
func ashCompressedSize(img []byte, offset int) (int, bool) {
	if offset+4 > len(img) {
		return 0, false
	}
	raw := binary.LittleEndian.Uint32(img[offset : offset+4])
	size := int((raw &^ 0x80000000) >> 2)
	if size < 12 || offset+size > len(img) {
		return 0, false
	}
	return size, true
}

func decodeASHFromOffset(img []byte, offset int) ([]byte, int, error) {
	size, ok := ashCompressedSize(img, offset)
	if !ok {
		return nil, 0, ash.ErrMalformed
	}
	data, err := ash.Decode(img[offset : offset+size])
	if err != nil {
		return nil, 0, err
	}
	return data, size, nil
}

// decodeModule locates and, when possible, decompresses tag's module. It
// never returns an error for a decode failure on a secondary/resource
// module — those fail soft (Decodable=false) per §4.5's contract — but does
// return an error when the module's ROM offset itself is out of bounds
// (InvalidImage, not advisory) or for a static module's cipher/LZ failure,
// since static modules must always be decodable for the image to be usable.
func (img *Image) decodeModule(tag ModuleTag) (ModuleInfo, error) {
	hdr := img.header()
	off := romOffset(hdr, tag)
	info := ModuleInfo{Tag: tag, RomOffset: off, Encrypted: tag.static()}

	if off < 0 || off >= len(img.buf) {
		return info, newErr("decodeModule", KindInvalidImage, nil)
	}

	if tag.static() {
		info.Kind = CompressionLZ
		cipher := feistel.NewCipher(headerKey(img.buf))
		data, n, err := decodeStaticFromOffset(img.buf, off, cipher)
		if err != nil {
			return info, newErr("decodeModule", KindMalformedStream, err)
		}
		info.Data = data
		info.Decodable = true
		info.UncompressedSize = len(data)
		info.CompressedSize = roundUp8(n)
		if tag == Arm9Static {
			info.RamAddr = hdr.Arm9StaticRamAddr()
		} else {
			info.RamAddr = hdr.Arm7StaticRamAddr()
		}
		info.RamAddrKnown = true
		return info, nil
	}

	if off >= len(img.buf) {
		return info, nil
	}
	if img.buf[off] == 0x10 {
		info.Kind = CompressionLZ
		data, n, err := decodeLZFromOffset(img.buf, off)
		if err != nil {
			return info, nil // fails soft
		}
		info.Data = data
		info.Decodable = true
		info.UncompressedSize = len(data)
		info.CompressedSize = roundUp8(n)
	} else {
		info.Kind = CompressionASH
		data, n, err := decodeASHFromOffset(img.buf, off)
		if err != nil {
			return info, nil // fails soft
		}
		info.Data = data
		info.Decodable = true
		info.UncompressedSize = len(data)
		info.CompressedSize = roundUp8(n)
	}

	img.fillRamAddr(&info)
	return info, nil
}

// fillRamAddr recovers RAM addresses for the three modules the header
// doesn't store them for, via the instruction-scan heuristic. It requires
// the static module it scans (ARM9Static for ARM9Secondary and Resources,
// ARM7Static for ARM7Secondary) to be decodable; if it isn't, the address
// is left unknown rather than erroring, matching the advisory policy for RAM-scan
// failures.
func (img *Image) fillRamAddr(info *ModuleInfo) {
	if !info.Decodable {
		return
	}
	switch info.Tag {
	case Arm9Secondary, Resources:
		arm9, err := img.decodeModule(Arm9Static)
		if err != nil || !arm9.Decodable {
			return
		}
		res := ramscan.ScanArm9(arm9.Data)
		if info.Tag == Arm9Secondary {
			info.RamAddr, info.RamAddrKnown = res.Arm9SecondaryRamAddr, res.Arm9SecondaryFound
		} else {
			info.RamAddr, info.RamAddrKnown = res.ResourceRamAddr, res.ResourceFound
		}
	case Arm7Secondary:
		arm7, err := img.decodeModule(Arm7Static)
		if err != nil || !arm7.Decodable {
			return
		}
		addr, found := ramscan.ScanArm7(arm7.Data)
		info.RamAddr, info.RamAddrKnown = addr, found
	}
}

// encodeModule compresses plaintext per tag's default compression kind
// (static modules always LZ, others ASH), pads to 8 bytes, and — for static
// modules — encrypts in place. The returned bytes are ready to be written
// directly into the image's ROM region.
func encodeModule(tag ModuleTag, plaintext []byte, cipher *feistel.Cipher) []byte {
	var compressed []byte
	if tag.static() {
		compressed = lz.Encode(plaintext)
	} else {
		compressed = ash.Encode(plaintext, 0)
	}
	padded := make([]byte, roundUp8(len(compressed)))
	copy(padded, compressed)

	if tag.static() {
		if err := cipher.Encrypt(padded); err != nil {
			// padded is always 8-aligned by construction.
			panic("fwimage: unreachable encrypt alignment failure: " + err.Error())
		}
	}
	return padded
}
