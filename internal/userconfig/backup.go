package userconfig

import (
	"encoding/binary"
	"errors"

	"github.com/barnettlynn/fwimage/internal/fwhdr"
)

// Per-field capacities within a backup record: the wireless init table and
// the two connection-settings blocks below the user-config area, plus the
// user-config area itself.
const (
	WlTableCapacity       = 0x200
	ConnSettingCapacity   = 0x400
	ConnExSettingCapacity = 0x600
	UserConfigCapacity    = NumSlots * SlotSize

	lengthPrefixSize = 2
	numBackupFields  = 4

	// BackupRecordSize is the fixed size of a marshalled backup record: four
	// u16-length-prefixed fields, each field's capacity fully reserved
	// regardless of its recorded length.
	BackupRecordSize = numBackupFields*lengthPrefixSize +
		WlTableCapacity + ConnSettingCapacity + ConnExSettingCapacity + UserConfigCapacity
)

var (
	// ErrFieldTooLarge is returned by Marshal when a field exceeds its
	// reserved capacity.
	ErrFieldTooLarge = errors.New("userconfig: backup field exceeds its reserved capacity")
	// ErrShortBackupRecord is returned when a buffer is too small to hold a
	// full backup record.
	ErrShortBackupRecord = errors.New("userconfig: buffer shorter than a backup record")
	// ErrCorruptBackupRecord is returned when a length prefix claims more
	// data than its field's reserved capacity.
	ErrCorruptBackupRecord = errors.New("userconfig: backup record length prefix exceeds field capacity")
	// ErrShortImageForBackup is returned when the image is too small to
	// hold the regions a backup record restores into.
	ErrShortImageForBackup = errors.New("userconfig: image too small for backup/restore region")
)

// BackupRecord is the fixed-size, length-prefixed snapshot of the wireless
// init table, the connection-settings blocks, and the user-config area, in
// the field order the firmware tool itself backs them up and restores them.
type BackupRecord struct {
	WlTable       []byte
	ConnSetting   []byte
	ConnExSetting []byte
	UserConfig    []byte
}

type backupField struct {
	data []byte
	cap  int
}

func (b *BackupRecord) fields() [numBackupFields]backupField {
	return [numBackupFields]backupField{
		{b.WlTable, WlTableCapacity},
		{b.ConnSetting, ConnSettingCapacity},
		{b.ConnExSetting, ConnExSettingCapacity},
		{b.UserConfig, UserConfigCapacity},
	}
}

// Marshal encodes the record into a fixed BackupRecordSize-byte buffer: each
// field as a 2-byte little-endian length followed by its capacity's worth of
// bytes (padded with zero beyond the real length).
func (b *BackupRecord) Marshal() ([]byte, error) {
	out := make([]byte, BackupRecordSize)
	off := 0
	for _, f := range b.fields() {
		if len(f.data) > f.cap {
			return nil, ErrFieldTooLarge
		}
		binary.LittleEndian.PutUint16(out[off:], uint16(len(f.data)))
		off += lengthPrefixSize
		copy(out[off:], f.data)
		off += f.cap
	}
	return out, nil
}

// UnmarshalBackupRecord decodes a BackupRecordSize-byte buffer produced by
// Marshal.
func UnmarshalBackupRecord(buf []byte) (*BackupRecord, error) {
	if len(buf) < BackupRecordSize {
		return nil, ErrShortBackupRecord
	}
	var b BackupRecord
	off := 0
	read := func(cap int) ([]byte, error) {
		n := binary.LittleEndian.Uint16(buf[off:])
		off += lengthPrefixSize
		if int(n) > cap {
			return nil, ErrCorruptBackupRecord
		}
		data := make([]byte, n)
		copy(data, buf[off:off+int(n)])
		off += cap
		return data, nil
	}
	var err error
	if b.WlTable, err = read(WlTableCapacity); err != nil {
		return nil, err
	}
	if b.ConnSetting, err = read(ConnSettingCapacity); err != nil {
		return nil, err
	}
	if b.ConnExSetting, err = read(ConnExSettingCapacity); err != nil {
		return nil, err
	}
	if b.UserConfig, err = read(UserConfigCapacity); err != nil {
		return nil, err
	}
	return &b, nil
}

// connRegionOffset returns the byte offset of the connection-settings block
// that sits immediately below the user-config area.
func connRegionOffset(hdr *fwhdr.Header) int {
	return hdr.NvramUserConfigOffset() - hdr.ConnBlockSize()
}

// Save captures a BackupRecord from img: the wireless init table (the fixed
// span between the flash header and the user-config area, capped at
// WlTableCapacity), the connection-settings blocks immediately below the
// user-config area, and the user-config area itself.
func Save(img []byte, hdr *fwhdr.Header) (*BackupRecord, error) {
	ucOff := hdr.NvramUserConfigOffset()
	connOff := connRegionOffset(hdr)
	if connOff < fwhdr.Size || ucOff+UserConfigCapacity > len(img) {
		return nil, ErrShortImageForBackup
	}

	wlEnd := fwhdr.Size + WlTableCapacity
	if wlEnd > ucOff {
		wlEnd = ucOff
	}

	b := &BackupRecord{
		WlTable:    append([]byte(nil), img[fwhdr.Size:wlEnd]...),
		UserConfig: append([]byte(nil), img[ucOff:ucOff+UserConfigCapacity]...),
	}

	connSetting := img[connOff:ucOff]
	if len(connSetting) > ConnSettingCapacity {
		b.ConnSetting = append([]byte(nil), connSetting[:ConnSettingCapacity]...)
		b.ConnExSetting = append([]byte(nil), connSetting[ConnSettingCapacity:]...)
	} else {
		b.ConnSetting = append([]byte(nil), connSetting...)
	}
	return b, nil
}

// Restore writes a BackupRecord's fields back into img at the same offsets
// Save reads them from. Each field is written only up to its own recorded
// length; bytes beyond it (up to the field's region) are left untouched.
func (b *BackupRecord) Restore(img []byte, hdr *fwhdr.Header) error {
	ucOff := hdr.NvramUserConfigOffset()
	connOff := connRegionOffset(hdr)
	if connOff < fwhdr.Size || ucOff+UserConfigCapacity > len(img) {
		return ErrShortImageForBackup
	}

	copy(img[fwhdr.Size:], b.WlTable)
	copy(img[connOff:], b.ConnSetting)
	if len(b.ConnExSetting) > 0 {
		copy(img[connOff+ConnSettingCapacity:], b.ConnExSetting)
	}
	copy(img[ucOff:], b.UserConfig)
	return nil
}
