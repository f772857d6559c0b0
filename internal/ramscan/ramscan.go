// Package ramscan recovers RAM load addresses that the flash header does
// not store, by scanning a decompressed static module for a known
// decompression-routine signature and the Thumb call sites that reference
// it. The scan is advisory: when the signature is absent, callers get a
// zero address and a reported miss, never an error.
package ramscan

import (
	_ "embed"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/BurntSushi/toml"
)

//go:embed signatures.toml
var signatureTOML []byte

type signatureTable struct {
	Routine []struct {
		Generation string `toml:"generation"`
		PatternHex string `toml:"pattern_hex"`
	} `toml:"arm9_decompress_routine"`
}

var decompressSignatures = loadSignatures()

func loadSignatures() [][]byte {
	var tbl signatureTable
	if _, err := toml.Decode(string(signatureTOML), &tbl); err != nil {
		panic(fmt.Sprintf("ramscan: embedded signature table is invalid: %v", err))
	}
	sigs := make([][]byte, 0, len(tbl.Routine))
	for _, e := range tbl.Routine {
		b, err := hex.DecodeString(e.PatternHex)
		if err != nil {
			panic(fmt.Sprintf("ramscan: signature %q is not valid hex: %v", e.Generation, err))
		}
		sigs = append(sigs, b)
	}
	return sigs
}

// Arm7PoolTarget is the known "pointer to pointer" literal that identifies
// the second of the two adjacent PC-relative loads preceding the ARM7
// secondary module's decode call.
const Arm7PoolTarget = 0x027FF86C

// Result holds the addresses recovered from one ARM9 static module scan.
type Result struct {
	Arm9SecondaryRamAddr uint32
	Arm9SecondaryFound   bool
	ResourceRamAddr      uint32
	ResourceFound        bool
}

// ScanArm9 scans a decompressed ARM9 static module for the decompression
// routine signature and the two call sites that reference it, returning the
// ARM9-secondary and resource-pack RAM load addresses. A Result with both
// Found fields false means the signature was not present; this is not an
// error.
func ScanArm9(data []byte) Result {
	var res Result
	routineOff, ok := findSignature(data)
	if !ok {
		return res
	}
	routineOff4 := routineOff &^ 3

	sites := findThumbBLCallSites(data, routineOff4)
	if len(sites) > 0 {
		if addr, ok := poolAddressBefore(data, sites[0]); ok {
			res.Arm9SecondaryRamAddr = addr
			res.Arm9SecondaryFound = true
		}
	}
	if len(sites) > 1 {
		if addr, ok := poolAddressBefore(data, sites[1]); ok {
			res.ResourceRamAddr = addr
			res.ResourceFound = true
		}
	}
	return res
}

// ScanArm7 scans a decompressed ARM7 static module for two adjacent
// PC-relative loads where the second loads Arm7PoolTarget, returning the
// ARM7-secondary RAM load address from the first load's pool entry.
func ScanArm7(data []byte) (addr uint32, found bool) {
	for pos := 0; pos+4 <= len(data); pos += 2 {
		firstAddr, ok := ldrLiteralPoolValue(data, pos)
		if !ok {
			continue
		}
		secondAddr, ok := ldrLiteralPoolValue(data, pos+2)
		if !ok {
			continue
		}
		if secondAddr == Arm7PoolTarget {
			return firstAddr, true
		}
	}
	return 0, false
}

func findSignature(data []byte) (int, bool) {
	for _, sig := range decompressSignatures {
		if len(sig) == 0 || len(sig) > len(data) {
			continue
		}
		for pos := 0; pos+len(sig) <= len(data); pos++ {
			if bytesEqual(data[pos:pos+len(sig)], sig) {
				return pos, true
			}
		}
	}
	return 0, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// findThumbBLCallSites walks data at 2-byte stride looking for a Thumb
// long-branch-with-link pair whose computed target equals routineOff4.
func findThumbBLCallSites(data []byte, routineOff4 int) []int {
	var sites []int
	for pos := 0; pos+4 <= len(data); pos += 2 {
		u1 := binary.LittleEndian.Uint16(data[pos:])
		u2 := binary.LittleEndian.Uint16(data[pos+2:])
		if u1&0xF800 != 0xF000 || u2&0xF800 != 0xF800 {
			continue
		}
		target := (pos + 4 + ((int(u1&0x7FF) << 12) | (int(u2&0x7FF) << 1))) % (1 << 23)
		if target&^3 == routineOff4 {
			sites = append(sites, pos)
		}
	}
	return sites
}

// poolAddressBefore reads the literal pool entry for the `LDR r0,
// [pc, #imm8]` instruction immediately preceding site.
func poolAddressBefore(data []byte, site int) (uint32, bool) {
	if site-2 < 0 {
		return 0, false
	}
	return ldrLiteralPoolValue(data, site-2)
}

// ldrLiteralPoolValue decodes a Thumb `LDR r0, [pc, #imm8]` at pos (encoding
// 0100100i iiiiiiii) and returns the 32-bit value stored in its literal
// pool.
func ldrLiteralPoolValue(data []byte, pos int) (uint32, bool) {
	if pos < 0 || pos+2 > len(data) {
		return 0, false
	}
	instr := binary.LittleEndian.Uint16(data[pos:])
	if instr&0xF800 != 0x4800 {
		return 0, false
	}
	imm8 := int(instr & 0xFF)
	poolOff := (pos &^ 3) + 4 + imm8*4
	if poolOff+4 > len(data) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(data[poolOff:]), true
}
