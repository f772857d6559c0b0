package crc

import "testing"

func TestCRC16Vectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		init uint16
		want uint16
	}{
		{"empty", nil, 0xFFFF, 0xFFFF},
		{"single zero byte", []byte{0x00}, 0xFFFF, 0x40BF},
		{"four byte vector", []byte{0x01, 0x02, 0x03, 0x04}, 0x0000, 0x0FA1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CRC16(tt.data, tt.init)
			if got != tt.want {
				t.Fatalf("CRC16(%v, %#04x) = %#04x, want %#04x", tt.data, tt.init, got, tt.want)
			}
		})
	}
}

func TestCRC16Associative(t *testing.T) {
	a := []byte{0x10, 0x20, 0x30, 0x40, 0x50}
	b := []byte{0x60, 0x70, 0x80, 0x90}
	whole := CRC16(append(append([]byte{}, a...), b...), 0xFFFF)
	split := CRC16(b, CRC16(a, 0xFFFF))
	if whole != split {
		t.Fatalf("CRC16(a++b) = %#04x, CRC16(b, CRC16(a)) = %#04x", whole, split)
	}
}

func TestMD5Deterministic(t *testing.T) {
	data := []byte("firmware image fixture")
	a := MD5(data)
	b := MD5(data)
	if a != b {
		t.Fatalf("MD5 not deterministic: %x != %x", a, b)
	}
}
