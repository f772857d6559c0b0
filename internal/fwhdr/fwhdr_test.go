package fwhdr

import "testing"

func newTestBuf() []byte {
	return make([]byte, Size)
}

func TestNewRejectsShortBuffer(t *testing.T) {
	if _, err := New(make([]byte, Size-1)); err != ErrShortImage {
		t.Fatalf("New = %v, want ErrShortImage", err)
	}
}

func TestArm9StaticRomOffsetRoundTrip(t *testing.T) {
	h, err := New(newTestBuf())
	if err != nil {
		t.Fatal(err)
	}
	for _, offset := range []int{0x200, 0x8000, 0x40000, 0x100000} {
		if err := h.SetArm9StaticRomOffset(offset); err != nil {
			t.Fatalf("SetArm9StaticRomOffset(%#x): %v", offset, err)
		}
		if got := h.Arm9StaticRomOffset(); got != offset {
			t.Fatalf("Arm9StaticRomOffset() = %#x, want %#x", got, offset)
		}
	}
}

func TestEncodeScaledOffsetChoosesSmallestScale(t *testing.T) {
	// 0x200 = 512 = 128*4<<0, representable at scale 0 without needing a
	// wider scale.
	field, scale, err := encodeScaledOffset(0x200)
	if err != nil {
		t.Fatal(err)
	}
	if scale != 0 || field != 128 {
		t.Fatalf("encodeScaledOffset(0x200) = (%d, %d), want (128, 0)", field, scale)
	}
}

func TestEncodeScaledOffsetRejectsUnaligned(t *testing.T) {
	if _, _, err := encodeScaledOffset(0x201); err != ErrUnrepresentable {
		t.Fatalf("encodeScaledOffset(0x201) = %v, want ErrUnrepresentable", err)
	}
}

func TestUnscaledOffsetRoundTrip(t *testing.T) {
	h, err := New(newTestBuf())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.SetArm9SecondaryRomOffset(0x12340); err != nil {
		t.Fatal(err)
	}
	if got := h.Arm9SecondaryRomOffset(); got != 0x12340 {
		t.Fatalf("Arm9SecondaryRomOffset() = %#x, want 0x12340", got)
	}
}

func TestArm7RamAddrBaseSelect(t *testing.T) {
	h, err := New(newTestBuf())
	if err != nil {
		t.Fatal(err)
	}
	h.buf[offArm7MainRamSelect] = 0
	if got := h.Arm7StaticRamAddr(); got != 0x03810000 {
		t.Fatalf("Arm7StaticRamAddr() (work RAM) = %#x, want 0x03810000", got)
	}
	h.buf[offArm7MainRamSelect] = 1
	if got := h.Arm7StaticRamAddr(); got != 0x02800000 {
		t.Fatalf("Arm7StaticRamAddr() (main RAM) = %#x, want 0x02800000", got)
	}
}

func TestConnBlockSizeSelectsExtended(t *testing.T) {
	h, err := New(newTestBuf())
	if err != nil {
		t.Fatal(err)
	}
	h.buf[offIpl2Type] = Ipl2SuccessorPlatform
	if got := h.ConnBlockSize(); got != ConnBlockSizeExtended {
		t.Fatalf("ConnBlockSize() = %#x, want extended %#x", got, ConnBlockSizeExtended)
	}
	h.buf[offIpl2Type] = 0
	if got := h.ConnBlockSize(); got != ConnBlockSizeNormal {
		t.Fatalf("ConnBlockSize() = %#x, want normal %#x", got, ConnBlockSizeNormal)
	}
}

func TestCrcFieldsRoundTrip(t *testing.T) {
	h, err := New(newTestBuf())
	if err != nil {
		t.Fatal(err)
	}
	h.SetStaticCrc(0xAE28)
	h.SetSecondaryCrc(0x1234)
	h.SetResourceCrc(0xFFB0)
	if h.StaticCrc() != 0xAE28 || h.SecondaryCrc() != 0x1234 || h.ResourceCrc() != 0xFFB0 {
		t.Fatalf("CRC fields did not round trip: static=%04X secondary=%04X resource=%04X",
			h.StaticCrc(), h.SecondaryCrc(), h.ResourceCrc())
	}
}

func TestFlashCapacityScale(t *testing.T) {
	h, err := New(newTestBuf())
	if err != nil {
		t.Fatal(err)
	}
	h.buf[offFlashCapacity] = 3
	if got, want := h.FlashCapacity(), 128*1024*8; got != want {
		t.Fatalf("FlashCapacity() = %#x, want %#x", got, want)
	}
}
