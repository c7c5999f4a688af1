package value

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/papyrusdb/papyrus/codec"
)

// ErrInvalidArgument is returned when a payload cannot be represented
// under the requested ValueType.
var ErrInvalidArgument = errors.New("value: invalid argument")

// ErrInvalidEncoding is returned by FromBytes on malformed wire input:
// short length, checksum mismatch, or bad vtype.
var ErrInvalidEncoding = errors.New("value: invalid encoding")

const headerSize = 4 // 1 byte vtype + 3 byte length
const trailerSize = 4 // adler32
const minRecordSize = 32

// Value is an immutable (ValueType, payload) pair. Equality compares both
// fields; for CMP values, Raw returns the inflated bytes but the ValueType
// stays CMP so re-serialization recompresses.
type Value struct {
	vtype ValueType
	raw   []byte
}

// Type returns v's ValueType.
func (v Value) Type() ValueType { return v.vtype }

// Raw returns v's logical payload: nil for NIL/DEL, the stored bytes for
// RAW, and the inflated bytes for CMP.
func (v Value) Raw() []byte { return v.raw }

// New classifies raw: nil becomes NIL, otherwise RAW, auto-promoted to CMP
// when len(raw) exceeds CompressionThreshold.
func New(raw []byte) (Value, error) {
	if raw == nil {
		return Value{vtype: NIL}, nil
	}
	if len(raw) > CompressionThreshold {
		return NewCompressed(raw)
	}
	return Value{vtype: RAW, raw: raw}, nil
}

// NewCompressed forces vtype CMP regardless of size.
func NewCompressed(raw []byte) (Value, error) {
	if raw == nil {
		return Value{}, fmt.Errorf("%w: CMP requires a non-nil payload", ErrInvalidArgument)
	}
	return Value{vtype: CMP, raw: raw}, nil
}

// NewTombstone returns the dedicated DEL sentinel value produced by
// delete operations.
func NewTombstone() Value {
	return Value{vtype: DEL}
}

// Equal compares (Type, Raw).
func Equal(a, b Value) bool {
	return a.vtype == b.vtype && bytes.Equal(a.raw, b.raw)
}

// compressedBytes returns raw deflated through zlib.
func compressedBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// ToBytes serializes v to the wire format: a 4-byte header (1-byte vtype,
// 3-byte big-endian length), the payload (raw for RAW/NIL/DEL, the zlib
// stream for CMP), NUL padding so the record is 32-byte aligned, and a
// 4-byte big-endian Adler-32 trailer covering every preceding byte.
func (v Value) ToBytes() ([]byte, error) {
	var wire []byte
	switch v.vtype {
	case NIL, DEL:
		wire = nil
	case RAW:
		wire = v.raw
	case CMP:
		c, err := compressedBytes(v.raw)
		if err != nil {
			return nil, fmt.Errorf("value: compressing CMP payload: %w", err)
		}
		wire = c
	default:
		return nil, fmt.Errorf("%w: unknown ValueType %d", ErrInvalidArgument, v.vtype)
	}

	if len(wire) >= 1<<24 {
		return nil, fmt.Errorf("%w: wire payload of %d bytes exceeds the 24-bit length field", ErrInvalidArgument, len(wire))
	}

	total := codec.RoundUp32(headerSize + len(wire) + trailerSize)
	buf := make([]byte, total)
	buf[0] = byte(v.vtype)
	l := len(wire)
	buf[1] = byte(l >> 16)
	buf[2] = byte(l >> 8)
	buf[3] = byte(l)
	copy(buf[headerSize:], wire)
	// buf[headerSize+len(wire) : total-trailerSize] is already zero (NUL pad)

	sum := codec.Adler32(buf[:total-trailerSize])
	buf[total-4] = byte(sum >> 24)
	buf[total-3] = byte(sum >> 16)
	buf[total-2] = byte(sum >> 8)
	buf[total-1] = byte(sum)
	return buf, nil
}

// FromBytes decodes the wire format produced by ToBytes.
func FromBytes(b []byte) (Value, error) {
	if len(b) < minRecordSize || len(b)%32 != 0 {
		return Value{}, fmt.Errorf("%w: length %d is not a positive multiple of 32", ErrInvalidEncoding, len(b))
	}

	vtype := ValueType(b[0])
	if vtype > DEL {
		return Value{}, fmt.Errorf("%w: unknown vtype ordinal %d", ErrInvalidEncoding, b[0])
	}

	payloadLen := int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	if headerSize+payloadLen+trailerSize > len(b) {
		return Value{}, fmt.Errorf("%w: declared length %d overruns record of %d bytes", ErrInvalidEncoding, payloadLen, len(b))
	}

	gotSum := codec.Adler32(b[:len(b)-trailerSize])
	wantSum := uint32(b[len(b)-4])<<24 | uint32(b[len(b)-3])<<16 | uint32(b[len(b)-2])<<8 | uint32(b[len(b)-1])
	if gotSum != wantSum {
		return Value{}, fmt.Errorf("%w: adler32 mismatch", ErrInvalidEncoding)
	}

	wire := b[headerSize : headerSize+payloadLen]

	switch vtype {
	case NIL, DEL:
		return Value{vtype: vtype}, nil
	case RAW:
		raw := make([]byte, len(wire))
		copy(raw, wire)
		return Value{vtype: RAW, raw: raw}, nil
	case CMP:
		raw, err := inflate(wire)
		if err != nil {
			return Value{}, fmt.Errorf("%w: zlib inflate: %v", ErrInvalidEncoding, err)
		}
		return Value{vtype: CMP, raw: raw}, nil
	default:
		return Value{}, fmt.Errorf("%w: unknown vtype ordinal %d", ErrInvalidEncoding, vtype)
	}
}
