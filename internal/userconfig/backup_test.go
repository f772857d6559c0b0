package userconfig

import (
	"bytes"
	"testing"

	"github.com/barnettlynn/fwimage/internal/fwhdr"
)

func newTestImage(t *testing.T, size int) (*fwhdr.Header, []byte) {
	t.Helper()
	img := make([]byte, size)
	hdr, err := fwhdr.New(img)
	if err != nil {
		t.Fatal(err)
	}
	return hdr, img
}

func TestBackupRecordSizeIsFixed(t *testing.T) {
	b := &BackupRecord{}
	buf, err := b.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != BackupRecordSize {
		t.Fatalf("Marshal length = %#x, want %#x", len(buf), BackupRecordSize)
	}
	if BackupRecordSize != 0xE08 {
		t.Fatalf("BackupRecordSize = %#x, want 0xE08", BackupRecordSize)
	}
}

func TestBackupRecordRoundTrip(t *testing.T) {
	b := &BackupRecord{
		WlTable:       bytes.Repeat([]byte{0x11}, 50),
		ConnSetting:   bytes.Repeat([]byte{0x22}, ConnSettingCapacity),
		ConnExSetting: bytes.Repeat([]byte{0x33}, 10),
		UserConfig:    bytes.Repeat([]byte{0x44}, UserConfigCapacity),
	}
	buf, err := b.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalBackupRecord(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.WlTable, b.WlTable) {
		t.Fatalf("WlTable round trip mismatch")
	}
	if !bytes.Equal(got.ConnSetting, b.ConnSetting) {
		t.Fatalf("ConnSetting round trip mismatch")
	}
	if !bytes.Equal(got.ConnExSetting, b.ConnExSetting) {
		t.Fatalf("ConnExSetting round trip mismatch")
	}
	if !bytes.Equal(got.UserConfig, b.UserConfig) {
		t.Fatalf("UserConfig round trip mismatch")
	}
}

func TestMarshalRejectsOversizedField(t *testing.T) {
	b := &BackupRecord{WlTable: make([]byte, WlTableCapacity+1)}
	if _, err := b.Marshal(); err != ErrFieldTooLarge {
		t.Fatalf("Marshal = %v, want ErrFieldTooLarge", err)
	}
}

func TestUnmarshalRejectsShortBuffer(t *testing.T) {
	if _, err := UnmarshalBackupRecord(make([]byte, BackupRecordSize-1)); err != ErrShortBackupRecord {
		t.Fatalf("UnmarshalBackupRecord = %v, want ErrShortBackupRecord", err)
	}
}

func TestUnmarshalRejectsCorruptLengthPrefix(t *testing.T) {
	b := &BackupRecord{}
	buf, err := b.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	// Claim the wlTable field is larger than its capacity allows.
	buf[0] = 0xFF
	buf[1] = 0xFF
	if _, err := UnmarshalBackupRecord(buf); err != ErrCorruptBackupRecord {
		t.Fatalf("UnmarshalBackupRecord = %v, want ErrCorruptBackupRecord", err)
	}
}

func TestSaveRestoreRoundTrip(t *testing.T) {
	const imgSize = 0x4000
	hdr, img := newTestImage(t, imgSize)

	ucOff := 0x3000
	// Write nvramUserConfigAddr directly, since fwhdr has no exported
	// setter for it yet; IPL2 type defaults to zero bytes, giving a normal
	// (non-extended) connBlockSize.
	putNvramUserConfigOffset(img, ucOff)

	for i := fwhdr.Size; i < ucOff; i++ {
		img[i] = byte(i)
	}
	for i := ucOff; i < ucOff+UserConfigCapacity; i++ {
		img[i] = byte(0xA0 + i%16)
	}

	rec, err := Save(img, hdr)
	if err != nil {
		t.Fatal(err)
	}

	dst := make([]byte, imgSize)
	copy(dst, img)
	for i := range dst {
		dst[i] = 0
	}
	putNvramUserConfigOffset(dst, ucOff)

	if err := rec.Restore(dst, hdr); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(dst[fwhdr.Size:fwhdr.Size+len(rec.WlTable)], img[fwhdr.Size:fwhdr.Size+len(rec.WlTable)]) {
		t.Fatalf("wireless init table did not round trip")
	}
	if !bytes.Equal(dst[ucOff:ucOff+UserConfigCapacity], img[ucOff:ucOff+UserConfigCapacity]) {
		t.Fatalf("user-config area did not round trip")
	}
}

// putNvramUserConfigOffset writes the raw *8-scaled field fwhdr.Header reads
// for NvramUserConfigOffset, at the same byte offset fwhdr.go uses.
func putNvramUserConfigOffset(img []byte, byteOffset int) {
	const offNvramUserConfig = 0x1A
	img[offNvramUserConfig] = byte((byteOffset / 8) & 0xFF)
	img[offNvramUserConfig+1] = byte((byteOffset / 8) >> 8)
}
