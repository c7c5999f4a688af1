package aol

import (
	"encoding/binary"
	"fmt"

	"github.com/papyrusdb/papyrus/key"
	"github.com/papyrusdb/papyrus/layer"
	"github.com/papyrusdb/papyrus/value"
)

// pairPadding is the fixed trailer every record carries, per spec.md §4.7/§6.
const pairPadding = 2

// encodePair renders (k, v) as spec.md §6's Pair/record layout: a 32-bit
// little-endian size covering the KeyType tag, the key bytes, and the
// value's own wire bytes, followed by two zero padding bytes. Tags are not
// part of this wire format; AOLFileLayer persists only the key and value.
func encodePair(k key.Key, v value.Value) ([]byte, error) {
	kb := k.ToBytes()
	vb, err := v.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("aol: encoding value: %w", err)
	}

	body := 1 + len(kb) + len(vb)
	if body > 1<<32-1 {
		return nil, fmt.Errorf("%w: record of %d bytes exceeds the 32-bit size field", layer.ErrInvalidArgument, body)
	}

	buf := make([]byte, 4+body+pairPadding)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(body))
	buf[4] = byte(k.Type())
	copy(buf[5:5+len(kb)], kb)
	copy(buf[5+len(kb):5+len(kb)+len(vb)], vb)
	// buf[4+body:] is already zero: the 0x0000 padding.
	return buf, nil
}

// recordLen returns the total on-disk length of the record whose declared
// body size is bodySize, matching the layout encodePair produces.
func recordLen(bodySize uint32) int64 {
	return 4 + int64(bodySize) + pairPadding
}

// decodePair parses a single record's on-disk bytes (exactly recordLen(size)
// long, including the leading 4-byte size field) back into a Key and Value.
func decodePair(raw []byte) (key.Key, value.Value, error) {
	if len(raw) < 4 {
		return key.Key{}, value.Value{}, fmt.Errorf("%w: record truncated before size field", layer.ErrInvalidEncoding)
	}
	size := binary.LittleEndian.Uint32(raw[0:4])
	want := recordLen(size)
	if int64(len(raw)) != want {
		return key.Key{}, value.Value{}, fmt.Errorf("%w: record declares size %d, got %d bytes", layer.ErrInvalidEncoding, size, len(raw))
	}
	if size < 1 {
		return key.Key{}, value.Value{}, fmt.Errorf("%w: record body too short for a KeyType tag", layer.ErrInvalidEncoding)
	}

	body := raw[4 : 4+size]
	kt := key.KeyType(body[0])
	width := kt.Width()
	if int(size)-1 < width {
		return key.Key{}, value.Value{}, fmt.Errorf("%w: record body too short for %s key", layer.ErrInvalidEncoding, kt)
	}

	keyBytes := body[1 : 1+width]
	valueBytes := body[1+width:]

	k, err := key.FromBytes(keyBytes)
	if err != nil {
		return key.Key{}, value.Value{}, fmt.Errorf("%w: decoding key: %v", layer.ErrInvalidEncoding, err)
	}
	v, err := value.FromBytes(valueBytes)
	if err != nil {
		return key.Key{}, value.Value{}, fmt.Errorf("%w: decoding value: %v", layer.ErrInvalidEncoding, err)
	}
	return k, v, nil
}
