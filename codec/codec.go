// Package codec provides the fixed-width binary packing primitives shared
// by the key, value, uid, and layer/aol packages: big-endian integer and
// NUL-padded string packing, CRC-32 (IEEE, zlib-compatible), and Adler-32.
package codec

import (
	"encoding/binary"
	"hash/adler32"
	"hash/crc32"
)

// PutInt64 encodes v as 8 big-endian bytes (two's complement).
func PutInt64(v int64) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b
}

// Int64 decodes 8 big-endian bytes into a signed int64.
func Int64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

// PutInt16 encodes v as 2 big-endian bytes (two's complement).
func PutInt16(v int16) [2]byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	return b
}

// Int16 decodes 2 big-endian bytes into a signed int16.
func Int16(b []byte) int16 {
	return int16(binary.BigEndian.Uint16(b))
}

// PutString left-justifies s into a width-byte buffer, NUL-padding the
// remainder. Callers must ensure len(s) < width; PutString does not
// check the length, and a longer s is silently cut to width bytes.
func PutString(s string, width int) []byte {
	buf := make([]byte, width)
	copy(buf, s)
	return buf
}

// String trims trailing NUL bytes from a fixed-width buffer.
func String(b []byte) string {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return string(b[:i])
}

// CRC32 computes the IEEE (zlib-compatible) CRC-32 checksum of data.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Adler32 computes the zlib Adler-32 checksum of data.
func Adler32(data []byte) uint32 {
	return adler32.Checksum(data)
}

// RoundUp32 returns the smallest multiple of 32 that is >= n.
func RoundUp32(n int) int {
	if rem := n % 32; rem != 0 {
		return n + (32 - rem)
	}
	return n
}
