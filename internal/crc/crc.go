// Package crc implements the CRC-16 variant used across the firmware image
// header and its derived structures, plus an MD5 wrapper used for reporting.
package crc

import "crypto/md5"

// table is the 16-entry nibble lookup table for the CRC-16 variant used by
// the flash image: every field that is "a CRC" in this codec is this CRC,
// seeded either with 0x0000 (connection settings, wireless init table) or
// 0xFFFF (user config, static/secondary/resource modules).
var table = [16]uint16{
	0x0000, 0xCC01, 0xD801, 0x1400, 0xF001, 0x3C00, 0x2800, 0xE401,
	0xA001, 0x6C00, 0x7800, 0xB401, 0x5000, 0x9C01, 0x8801, 0x4400,
}

// CRC16 computes the running CRC-16 of data starting from init. Callers that
// need to checksum several byte spans as one logical stream (e.g. ARM9 then
// ARM7 uncompressed module bytes) pass the previous result back in as init
// rather than reinitialising, per CRC16(a++b, init) = CRC16(b, CRC16(a, init)).
func CRC16(data []byte, init uint16) uint16 {
	r := init
	for _, b := range data {
		r = table[b&0xF] ^ (r >> 4) ^ table[r&0xF]
		r = table[b>>4] ^ (r >> 4) ^ table[r&0xF]
	}
	return r
}

// MD5 returns the RFC 1321 digest of data, used only for reporting.
func MD5(data []byte) [16]byte {
	return md5.Sum(data)
}
