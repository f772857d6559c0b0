package fwimage

import (
	"encoding/binary"

	"github.com/barnettlynn/fwimage/internal/crc"
	"github.com/barnettlynn/fwimage/internal/userconfig"
)

// Fix recomputes and writes back every CRC this package knows how to
// recompute: the static/secondary/resource module CRCs (only for pairs that
// both decoded), the wireless init table CRC (only when its declared size is
// in range), and the user-config slot CRC (the effective slot's, or both
// slots' when neither validates) — upgrading a slot to the extended
// sub-record if it predates one. Unlike Verify, Fix mutates the
// image and marks it dirty; it never errors on a checksum mismatch, only on
// conditions that make the image impossible to interpret at all.
func (img *Image) Fix() error {
	modules := make(map[ModuleTag]ModuleInfo, 5)
	for _, tag := range moduleOrder {
		info, err := img.decodeModule(tag)
		if err != nil {
			return newErr("Fix", KindInvalidImage, err)
		}
		modules[tag] = info
	}

	hdr := img.header()
	changed := false

	if a9, a7 := modules[Arm9Static], modules[Arm7Static]; a9.Decodable && a7.Decodable {
		c := crc.CRC16(a9.Data, 0xFFFF)
		c = crc.CRC16(a7.Data, c)
		if c != hdr.StaticCrc() {
			hdr.SetStaticCrc(c)
			changed = true
		}
	}
	if a9s, a7s := modules[Arm9Secondary], modules[Arm7Secondary]; a9s.Decodable && a7s.Decodable {
		c := crc.CRC16(a9s.Data, 0xFFFF)
		c = crc.CRC16(a7s.Data, c)
		if c != hdr.SecondaryCrc() {
			hdr.SetSecondaryCrc(c)
			changed = true
		}
	}
	if rsrc := modules[Resources]; rsrc.Decodable {
		c := crc.CRC16(rsrc.Data, 0xFFFF)
		if c != hdr.ResourceCrc() {
			hdr.SetResourceCrc(c)
			changed = true
		}
	}

	if img.fixWirelessCrc() {
		changed = true
	}
	if img.fixUserConfigCrc() {
		changed = true
	}

	if changed {
		img.markDirty()
	}
	return nil
}

// fixWirelessCrc recomputes the wireless init table's CRC over its declared
// tableSize bytes (the field itself through the table's end), writing the
// correction only when the declared size is plausible — matching the real
// fix tool's guard of refusing to touch a table whose size field looks
// corrupt rather than guessing a length.
func (img *Image) fixWirelessCrc() bool {
	buf := img.buf
	wlBase := wirelessTableOffset()
	if wlBase+wlHeaderSize > len(buf) {
		return false
	}
	tableSize := int(binary.LittleEndian.Uint16(buf[wlBase+wlOffTableSize:]))
	if tableSize+0x2C > wlMaxTableCapacity || tableSize < wlHeaderSize {
		return false
	}
	dataStart := wlBase + wlOffTableSize
	if dataStart+tableSize > len(buf) {
		return false
	}
	computed := crc.CRC16(buf[dataStart:dataStart+tableSize], 0)
	stored := binary.LittleEndian.Uint16(buf[wlBase+wlOffCrc:])
	if stored == computed {
		return false
	}
	binary.LittleEndian.PutUint16(buf[wlBase+wlOffCrc:], computed)
	return true
}

// fixUserConfigCrc recomputes the CRC (and, where applicable, upgrades the
// extended sub-record) of whichever user-config slot Fix can reach: the
// effective slot if one validates, or both slots if neither currently does
// (a corrupt region has nothing to prefer between).
func (img *Image) fixUserConfigCrc() bool {
	hdr := img.header()
	ucOff := hdr.NvramUserConfigOffset()
	if ucOff < 0 || ucOff+userconfig.NumSlots*userconfig.SlotSize > len(img.buf) {
		return false
	}
	region, err := userconfig.New(img.buf[ucOff:])
	if err != nil {
		return false
	}
	changed := false
	if i, err := region.EffectiveSlot(); err == nil {
		changed = region.Fix(i)
	} else {
		changed = region.Fix(0)
		if region.Fix(1) {
			changed = true
		}
	}
	return changed
}
