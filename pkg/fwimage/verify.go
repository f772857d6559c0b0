package fwimage

import (
	"encoding/binary"

	"github.com/barnettlynn/fwimage/internal/crc"
	"github.com/barnettlynn/fwimage/internal/fwhdr"
)

// wirelessTableOffset returns the byte offset of the wireless init table,
// which sits immediately after the flash header.
func wirelessTableOffset() int { return fwhdr.Size }

// Wireless init table layout, relative to the table's start at fwhdr.Size:
// a CRC, then a table-size field, then vendor/module/serial/MAC/channel/RF
// fields. Only the fields verify/fix actually inspect are named.
const (
	wlOffCrc           = 0x00
	wlOffTableSize     = 0x02
	wlOffAllowedChan   = 0x12
	wlOffRfType        = 0x16
	wlHeaderSize       = 0x2E // smallest accepted tableSize; also the bytes past fwhdr.Size that must exist before the table is read
	wlMaxTableCapacity = 0x200
)

var validRfTypes = map[byte]bool{1: true, 2: true, 3: true, 5: true, 6: true}

// VerifyError is one named problem verify found.
type VerifyError struct {
	// Kind is a short, stable machine-readable label (e.g.
	// "arm9-not-decodable", "static-crc-mismatch").
	Kind string
	// Message is a human-readable description.
	Message string
}

// VerifyReport is the outcome of Verify: a list of named problems plus the
// per-module info it gathered along the way.
type VerifyReport struct {
	Errors  []VerifyError
	Modules map[ModuleTag]ModuleInfo
}

// ErrorCount returns len(r.Errors), for the common "any errors?" check.
func (r *VerifyReport) ErrorCount() int { return len(r.Errors) }

func (r *VerifyReport) fail(kind, msg string) { r.Errors = append(r.Errors, VerifyError{kind, msg}) }

// Verify decompresses all five modules, recomputes CRCs, and validates RAM
// reachability and the wireless channel mask / RF type, returning a
// VerifyReport rather than an error — a non-empty report is advisory, not a
// failure of the Verify call itself.
func (img *Image) Verify() (*VerifyReport, error) {
	report := &VerifyReport{Modules: make(map[ModuleTag]ModuleInfo, 5)}

	for _, tag := range moduleOrder {
		info, err := img.decodeModule(tag)
		if err != nil {
			return nil, newErr("Verify", KindInvalidImage, err)
		}
		report.Modules[tag] = info
		if !info.Decodable {
			report.fail(tag.String()+"-not-decodable", "the "+tag.String()+" module could not be decompressed")
		}
	}

	img.verifyRamAddresses(report)
	img.verifyModuleCrcs(report)
	img.verifyWireless(report)

	return report, nil
}

func reachable(addr uint32, size int) bool {
	if addr < 0x02000000 || addr >= 0x04000000 {
		return false
	}
	end := addr + uint32(size)
	if end < addr { // wrapped
		return false
	}
	return end < 0x04000000
}

func (img *Image) verifyRamAddresses(report *VerifyReport) {
	for _, tag := range []ModuleTag{Arm9Static, Arm7Static} {
		info := report.Modules[tag]
		if !info.Decodable {
			continue
		}
		if !reachable(info.RamAddr, info.UncompressedSize) {
			report.fail(tag.String()+"-bad-ram-addr", "invalid load address for the "+tag.String()+" module")
		}
	}
}

func (img *Image) verifyModuleCrcs(report *VerifyReport) {
	hdr := img.header()
	arm9s, arm7s := report.Modules[Arm9Static], report.Modules[Arm7Static]
	if arm9s.Decodable && arm7s.Decodable {
		c := crc.CRC16(arm9s.Data, 0xFFFF)
		c = crc.CRC16(arm7s.Data, c)
		if c != hdr.StaticCrc() {
			report.fail("static-crc-mismatch", "checksum mismatch for static module")
		}
	}

	arm9sec, arm7sec := report.Modules[Arm9Secondary], report.Modules[Arm7Secondary]
	if arm9sec.Decodable && arm7sec.Decodable {
		c := crc.CRC16(arm9sec.Data, 0xFFFF)
		c = crc.CRC16(arm7sec.Data, c)
		if c != hdr.SecondaryCrc() {
			report.fail("secondary-crc-mismatch", "checksum mismatch for secondary module")
		}
	}

	rsrc := report.Modules[Resources]
	if rsrc.Decodable {
		c := crc.CRC16(rsrc.Data, 0xFFFF)
		if c != hdr.ResourceCrc() {
			report.fail("resource-crc-mismatch", "checksum mismatch for resources pack")
		}
	}
}

func (img *Image) verifyWireless(report *VerifyReport) {
	buf := img.buf
	wlBase := wirelessTableOffset()
	if wlBase+wlHeaderSize > len(buf) {
		report.fail("wireless-table-short", "wireless init table does not fit in the image")
		return
	}

	tableSize := int(binary.LittleEndian.Uint16(buf[wlBase+wlOffTableSize:]))
	if tableSize+0x2C > wlMaxTableCapacity || tableSize < wlHeaderSize {
		report.fail("wireless-table-bad-size", "invalid wireless init table size")
	} else {
		storedCrc := binary.LittleEndian.Uint16(buf[wlBase+wlOffCrc:])
		dataStart := wlBase + wlOffTableSize
		if dataStart+tableSize <= len(buf) {
			computed := crc.CRC16(buf[dataStart:dataStart+tableSize], 0)
			if storedCrc != computed {
				report.fail("wireless-crc-mismatch", "CRC mismatch for wireless initialization")
			}
		}
	}

	allowedChannel := binary.LittleEndian.Uint16(buf[wlBase+wlOffAllowedChan:])
	validChannels := allowedChannel&0x8001 == 0 && allowedChannel&0x7FFE != 0
	if !validChannels {
		report.fail("wireless-bad-channels", "invalid wireless channel specification")
	}

	rfType := buf[wlBase+wlOffRfType]
	if !validRfTypes[rfType] {
		report.fail("wireless-bad-rftype", "no valid wireless RF type specified")
	}
}
