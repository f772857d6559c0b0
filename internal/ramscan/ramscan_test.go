package ramscan

import (
	"encoding/binary"
	"encoding/hex"
	"testing"
)

// launchSignatureHex must match the "launch" entry in signatures.toml.
const launchSignatureHex = "30402DE9000050E300005DE510FFFFEB0050E3FCFFFF1A30809DE830809DE812"

// putBL writes a Thumb long-branch-with-link pair at pos whose computed
// target (per the same formula ScanArm9 uses) equals target.
func putBL(data []byte, pos, target int) {
	disp := target - pos - 4
	hi := uint16((disp >> 12) & 0x7FF)
	lo := uint16((disp >> 1) & 0x7FF)
	binary.LittleEndian.PutUint16(data[pos:], 0xF000|hi)
	binary.LittleEndian.PutUint16(data[pos+2:], 0xF800|lo)
}

// putLDRPool writes a `LDR r0, [pc, #imm8]` at pos whose literal pool entry
// (at poolOff) holds value. poolOff must be reachable as
// (pos&^3)+4+imm8*4 for some imm8 in [0,255].
func putLDRPool(data []byte, pos, poolOff int, value uint32) {
	imm8 := (poolOff - (pos &^ 3) - 4) / 4
	binary.LittleEndian.PutUint16(data[pos:], 0x4800|uint16(imm8))
	binary.LittleEndian.PutUint32(data[poolOff:], value)
}

func TestScanArm9FindsBothAddresses(t *testing.T) {
	data := make([]byte, 1000)

	const routineOff = 800
	sig, err := hex.DecodeString(launchSignatureHex)
	if err != nil {
		t.Fatal(err)
	}
	copy(data[routineOff:], sig)

	putBL(data, 40, routineOff)
	putLDRPool(data, 38, 700, 0x02004000)

	putBL(data, 300, routineOff)
	putLDRPool(data, 298, 748, 0x02100000)

	res := ScanArm9(data)
	if !res.Arm9SecondaryFound || res.Arm9SecondaryRamAddr != 0x02004000 {
		t.Fatalf("Arm9Secondary = (%#x, %v), want (0x02004000, true)", res.Arm9SecondaryRamAddr, res.Arm9SecondaryFound)
	}
	if !res.ResourceFound || res.ResourceRamAddr != 0x02100000 {
		t.Fatalf("Resource = (%#x, %v), want (0x02100000, true)", res.ResourceRamAddr, res.ResourceFound)
	}
}

func TestScanArm9SignatureAbsent(t *testing.T) {
	data := make([]byte, 256)
	res := ScanArm9(data)
	if res.Arm9SecondaryFound || res.ResourceFound {
		t.Fatalf("expected no signature match in zeroed buffer, got %+v", res)
	}
}

func TestScanArm7FindsAddress(t *testing.T) {
	data := make([]byte, 200)
	putLDRPool(data, 0, 100, 0x02004000)
	putLDRPool(data, 2, 104, Arm7PoolTarget)

	addr, found := ScanArm7(data)
	if !found || addr != 0x02004000 {
		t.Fatalf("ScanArm7 = (%#x, %v), want (0x02004000, true)", addr, found)
	}
}

func TestScanArm7TargetAbsent(t *testing.T) {
	data := make([]byte, 200)
	putLDRPool(data, 0, 100, 0x02004000)
	putLDRPool(data, 2, 104, 0x01234567)

	if _, found := ScanArm7(data); found {
		t.Fatalf("ScanArm7 found a match where none should exist")
	}
}
