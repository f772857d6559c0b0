package fwimage

import (
	"github.com/barnettlynn/fwimage/internal/fwhdr"
	"github.com/barnettlynn/fwimage/internal/userconfig"
)

// Clean rewrites both user-config slots to fresh, default content per the
// image's locale, and wipes the wireless init table (up to the module region
// at 0x200) and connection-settings blocks to 0xFF. locales resolves which of the two extended-sub-record
// language masks a Korean-flagged or non-USG-Chinese-flagged image gets;
// pass replconfig.DefaultLocales() for the built-in table.
func (img *Image) Clean(locales LocaleMaskResolver) error {
	hdr := img.header()

	wlBase := wirelessTableOffset()
	if wlBase > len(img.buf) {
		return newErr("Clean", KindInvalidImage, nil)
	}
	wlEnd := moduleRegionStart
	if wlEnd > len(img.buf) {
		wlEnd = len(img.buf)
	}

	connOff := hdr.NvramUserConfigOffset() - hdr.ConnBlockSize()
	ucOff := hdr.NvramUserConfigOffset()
	if connOff < fwhdr.Size || ucOff > len(img.buf) {
		return newErr("Clean", KindInvalidImage, nil)
	}

	if ucOff+userconfig.NumSlots*userconfig.SlotSize > len(img.buf) {
		return newErr("Clean", KindInvalidImage, nil)
	}
	region, err := userconfig.New(img.buf[ucOff:])
	if err != nil {
		return newErr("Clean", KindInvalidImage, err)
	}
	fillFF(img.buf[wlBase:wlEnd])
	fillFF(img.buf[connOff:ucOff])

	t := hdr.Ipl2Type()
	isKorean := t != fwhdr.Ipl2Oldest && t&fwhdr.Ipl2Korean != 0
	isChineseNonUSG := t != fwhdr.Ipl2Oldest && t&fwhdr.Ipl2Chinese != 0 && t&fwhdr.Ipl2USG == 0

	if locales == nil {
		region.Clean(hdr.HasExConfig(), isKorean, isChineseNonUSG)
	} else {
		koreanMask := locales.MaskFor(true, false)
		chineseMask := locales.MaskFor(false, true)
		region.CleanWithMasks(hdr.HasExConfig(), isKorean, isChineseNonUSG, koreanMask, chineseMask)
	}
	img.markDirty()
	return nil
}

func fillFF(b []byte) {
	for i := range b {
		b[i] = 0xFF
	}
}

// LocaleMaskResolver is implemented by replconfig.LocaleConfig; Clean only
// needs the interface so pkg/fwimage doesn't import the config package.
type LocaleMaskResolver interface {
	MaskFor(isKorean, isChineseNonUSG bool) uint16
}

// Backup produces a fixed-size backup record covering the wireless init
// table, connection settings, extended connection settings, and both
// user-config slots.
func (img *Image) Backup() ([]byte, error) {
	hdr := img.header()
	rec, err := userconfig.Save(img.buf, hdr)
	if err != nil {
		return nil, newErr("Backup", KindInvalidImage, err)
	}
	out, err := rec.Marshal()
	if err != nil {
		return nil, newErr("Backup", KindInvalidImage, err)
	}
	return out, nil
}

// Restore writes a backup record produced by Backup back into the image.
func (img *Image) Restore(backup []byte) error {
	rec, err := userconfig.UnmarshalBackupRecord(backup)
	if err != nil {
		return newErr("Restore", KindInvalidImage, err)
	}
	hdr := img.header()
	if err := rec.Restore(img.buf, hdr); err != nil {
		return newErr("Restore", KindInvalidImage, err)
	}
	img.markDirty()
	return nil
}
