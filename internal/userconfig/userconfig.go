// Package userconfig implements the two-slot user-config arbitration, the
// "clean" rewrite rules, and the fixed-size backup/restore record described
// by the image model's config component.
package userconfig

import (
	"encoding/binary"
	"errors"

	"github.com/barnettlynn/fwimage/internal/crc"
)

// SlotSize is the size in bytes of one user-config slot. Two slots sit back
// to back starting at the header's nvramUserConfigAddr offset.
const SlotSize = 0x100

// NumSlots is the number of user-config slots.
const NumSlots = 2

// RequiredVersion is the only schema version this package recognises.
const RequiredVersion = 5

// Byte offsets within one slot.
const (
	offVersion      = 0x00
	offSaveCount    = 0x70
	offCrc          = 0x72
	bodyCrcLen      = 0x70 // bytes [0x00,0x70) are covered by the main CRC
	offExVersion    = 0x74
	offExLanguage   = 0x75
	offLanguageMask = 0x76
	offExCrc        = 0xFE
	exCrcLen        = 0x8A // bytes [offExVersion, offExVersion+exCrcLen) covered by the extended CRC
	exRegionLen     = 0x8C // offExVersion .. SlotSize
)

// Language-mask values for the two locales the extended sub-record
// distinguishes; every other locale combination falls back to the Chinese
// mask, matching the original firmware tool's own (undocumented) behaviour.
const (
	LanguageMaskKorean  = 0x00AF // Japanese, English, French, German, Spanish, Korean
	LanguageMaskChinese = 0x007E // English, French, German, Italian, Spanish, Chinese
)

var (
	// ErrShortRegion is returned when the buffer is too small to hold both
	// user-config slots.
	ErrShortRegion = errors.New("userconfig: region shorter than two slots")
	// ErrInvalid is returned when neither slot's CRC matches, per invariant
	// 4 ("If neither matches the slot is considered corrupt").
	ErrInvalid = errors.New("userconfig: neither slot's CRC matches; config is corrupt")
)

// Region is a view over the 0x200-byte user-config area (two SlotSize
// slots). It does not copy; writes through it mutate the underlying image.
type Region struct {
	buf []byte
}

// New wraps the first 2*SlotSize bytes of buf as a Region.
func New(buf []byte) (*Region, error) {
	if len(buf) < NumSlots*SlotSize {
		return nil, ErrShortRegion
	}
	return &Region{buf: buf[:NumSlots*SlotSize : NumSlots*SlotSize]}, nil
}

func (r *Region) slot(i int) []byte { return r.buf[i*SlotSize : (i+1)*SlotSize] }

// SaveCount returns slot i's 7-bit save counter.
func (r *Region) SaveCount(i int) byte {
	return byte(binary.LittleEndian.Uint16(r.slot(i)[offSaveCount:]) & 0x7F)
}

func (r *Region) version(i int) byte { return r.slot(i)[offVersion] }

func (r *Region) storedCrc(i int) uint16 {
	return binary.LittleEndian.Uint16(r.slot(i)[offCrc:])
}

func (r *Region) computedCrc(i int) uint16 {
	return crc.CRC16(r.slot(i)[:bodyCrcLen], 0xFFFF)
}

// SlotValid reports whether slot i's schema version is recognised and its
// CRC matches its content.
func (r *Region) SlotValid(i int) bool {
	return r.version(i) == RequiredVersion && r.storedCrc(i) == r.computedCrc(i)
}

// EffectiveSlot selects the effective slot per invariant 4: the one whose
// CRC matches; if both match, the newer by saveCount modulo 128; if neither
// matches, ErrInvalid.
func (r *Region) EffectiveSlot() (int, error) {
	valid0, valid1 := r.SlotValid(0), r.SlotValid(1)
	switch {
	case valid0 && !valid1:
		return 0, nil
	case valid1 && !valid0:
		return 1, nil
	case valid0 && valid1:
		sc0, sc1 := r.saveCountRaw(0), r.saveCountRaw(1)
		if (sc0+1)&0x7F == sc1 {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, ErrInvalid
	}
}

func (r *Region) saveCountRaw(i int) byte {
	return byte(binary.LittleEndian.Uint16(r.slot(i)[offSaveCount:]))
}

// Clean rewrites both slots to fresh, default content: saveCount = i&0x7F,
// version = 5, a zeroed body with a freshly computed CRC, and — when
// hasExConfig is set — an extended sub-record populated per locale (Korean
// or Chinese-and-not-USG gets the 0xFF sentinel fill first, then every
// locale gets exVersion=1, exLanguage=1, and a language mask selected by
// isKorean alone). When the image has no extended config at all, the entire
// extended region (including its own CRC field) is simply filled with 0xFF.
func (r *Region) Clean(hasExConfig, isKorean, isChineseNonUSG bool) {
	r.CleanWithMasks(hasExConfig, isKorean, isChineseNonUSG, LanguageMaskKorean, LanguageMaskChinese)
}

// CleanWithMasks is Clean with the two language-mask values supplied by the
// caller instead of fixed to LanguageMaskKorean/LanguageMaskChinese —
// callers that load a locale table from configuration use this to clean
// against region variants the built-in table doesn't cover.
func (r *Region) CleanWithMasks(hasExConfig, isKorean, isChineseNonUSG bool, koreanMask, chineseMask uint16) {
	for i := 0; i < NumSlots; i++ {
		s := r.slot(i)
		for j := range s {
			s[j] = 0
		}
		s[offVersion] = RequiredVersion
		binary.LittleEndian.PutUint16(s[offSaveCount:], uint16(i&0x7F))
		binary.LittleEndian.PutUint16(s[offCrc:], crc.CRC16(s[:bodyCrcLen], 0xFFFF))

		if !hasExConfig {
			for j := offExVersion; j < SlotSize; j++ {
				s[j] = 0xFF
			}
			continue
		}

		if isKorean || isChineseNonUSG {
			for j := offExVersion; j < offExVersion+exRegionLen; j++ {
				s[j] = 0xFF
			}
		}
		s[offExVersion] = 1
		s[offExLanguage] = 1
		mask := chineseMask
		if isKorean {
			mask = koreanMask
		}
		binary.LittleEndian.PutUint16(s[offLanguageMask:], mask)
		binary.LittleEndian.PutUint16(s[offExCrc:], crc.CRC16(s[offExVersion:offExVersion+exCrcLen], 0xFFFF))
	}
}

// ExVersion returns slot i's extended sub-record version byte (0 when the
// slot predates the extended sub-record).
func (r *Region) ExVersion(i int) byte { return r.slot(i)[offExVersion] }

// storedExCrc and computedExCrc mirror storedCrc/computedCrc for the
// extended sub-record's own CRC field.
func (r *Region) storedExCrc(i int) uint16 {
	return binary.LittleEndian.Uint16(r.slot(i)[offExCrc:])
}

func (r *Region) computedExCrc(i int) uint16 {
	s := r.slot(i)
	return crc.CRC16(s[offExVersion:offExVersion+exCrcLen], 0xFFFF)
}

// Fix recomputes and rewrites slot i's CRC if it doesn't match its content,
// and — when the slot carries a recognised schema version but has never
// seen the extended sub-record (exVersion byte still zero) — upgrades it to
// exVersion 1 and recomputes the extended CRC, matching the real firmware
// tool's "fix" upgrade-in-place behaviour; otherwise it rewrites a stale
// extended CRC. It reports whether anything changed. A slot with an
// unrecognised schema version is left untouched, and so is an extended
// region whose exVersion byte is 0xFF (the fill Clean writes for an image
// without extended config).
func (r *Region) Fix(i int) bool {
	if r.version(i) != RequiredVersion {
		return false
	}
	changed := false
	s := r.slot(i)
	if r.storedCrc(i) != r.computedCrc(i) {
		binary.LittleEndian.PutUint16(s[offCrc:], r.computedCrc(i))
		changed = true
	}
	if r.ExVersion(i) == 0xFF {
		return changed
	}
	if r.ExVersion(i) == 0 {
		s[offExVersion] = 1
		changed = true
	}
	if r.storedExCrc(i) != r.computedExCrc(i) {
		binary.LittleEndian.PutUint16(s[offExCrc:], r.computedExCrc(i))
		changed = true
	}
	return changed
}
