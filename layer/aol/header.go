package aol

import (
	"encoding/binary"
	"fmt"

	"github.com/papyrusdb/papyrus/codec"
	"github.com/papyrusdb/papyrus/layer"
)

// magic, version, and type identify an AOL file, per spec.md §4.7/§6.
var magic = [4]byte{0x30, 0x14, 0x15, 0x92}

const (
	currentVersion = 1
	typeAOL        = 'A' // 0x41

	headerSize = 16
	alignment  = 512
)

// fileHeader is the 16-byte AOL file header.
type fileHeader struct {
	version  byte
	typ      byte
	flags    uint16
	metaSize uint32
}

func newHeader() fileHeader {
	return fileHeader{version: currentVersion, typ: typeAOL}
}

// toBytes renders h per spec.md §6: 4-byte magic, 1-byte version, 1-byte
// type, little-endian flags and meta_size, then a little-endian CRC-32 of
// the preceding 12 bytes.
func (h fileHeader) toBytes() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:4], magic[:])
	buf[4] = h.version
	buf[5] = h.typ
	binary.LittleEndian.PutUint16(buf[6:8], h.flags)
	binary.LittleEndian.PutUint32(buf[8:12], h.metaSize)
	crc := codec.CRC32(buf[0:12])
	binary.LittleEndian.PutUint32(buf[12:16], crc)
	return buf
}

// decodeHeader validates and parses the first headerSize bytes of an AOL
// file, returning layer.ErrInvalidEncoding wrapped with context on any
// magic, version, or checksum mismatch.
func decodeHeader(b []byte) (fileHeader, error) {
	if len(b) < headerSize {
		return fileHeader{}, fmt.Errorf("%w: header truncated at %d bytes", layer.ErrInvalidEncoding, len(b))
	}
	if [4]byte(b[0:4]) != magic {
		return fileHeader{}, fmt.Errorf("%w: bad magic %x", layer.ErrInvalidEncoding, b[0:4])
	}
	if b[4] != currentVersion {
		return fileHeader{}, fmt.Errorf("%w: unsupported version %d", layer.ErrInvalidEncoding, b[4])
	}
	if b[5] != typeAOL {
		return fileHeader{}, fmt.Errorf("%w: unexpected file type %q", layer.ErrInvalidEncoding, b[5])
	}
	wantCRC := binary.LittleEndian.Uint32(b[12:16])
	gotCRC := codec.CRC32(b[0:12])
	if gotCRC != wantCRC {
		return fileHeader{}, fmt.Errorf("%w: header checksum mismatch", layer.ErrInvalidEncoding)
	}
	return fileHeader{
		version:  b[4],
		typ:      b[5],
		flags:    binary.LittleEndian.Uint16(b[6:8]),
		metaSize: binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// recordsOffset returns the first byte offset eligible for records: the
// header plus any meta block, rounded up to the alignment boundary.
func recordsOffset(metaSize uint32) int64 {
	n := headerSize + int(metaSize)
	if rem := n % alignment; rem != 0 {
		n += alignment - rem
	}
	return int64(n)
}
