package key

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/papyrusdb/papyrus/codec"
)

// ErrInvalidArgument is returned when a raw value does not fit any
// KeyType's domain, or does not fit the explicitly pinned KeyType.
var ErrInvalidArgument = errors.New("key: invalid argument")

// ErrInvalidEncoding is returned by FromBytes when the input length does
// not match any KeyType's fixed width.
var ErrInvalidEncoding = errors.New("key: invalid encoding")

// Key is an immutable, typed, fixed-width value: a (KeyType, value) pair.
// All fields are comparable primitives, so Key itself is comparable and
// usable directly as a Go map key — two Keys compare == only when both
// their KeyType and underlying bit pattern match, which is exactly the
// "same ktype" hash behavior the domain model calls for.
type Key struct {
	ktype KeyType
	i64   int64  // BOOL (0/1), WORD, INT
	hi    uint64 // UID high 64 bits
	lo    uint64 // UID low 64 bits
	str   string // STR, TEXT
}

// Type returns k's KeyType.
func (k Key) Type() KeyType { return k.ktype }

// Detect returns the narrowest KeyType admitting raw, where raw is a bool,
// a signed or unsigned integer type, *big.Int, or string.
func Detect(raw any) (KeyType, error) {
	switch v := raw.(type) {
	case bool:
		return BOOL, nil
	case string:
		switch {
		case len(v) < int(STR.Width()):
			return STR, nil
		case len(v) < int(TEXT.Width()):
			return TEXT, nil
		default:
			return 0, fmt.Errorf("%w: string of length %d exceeds TEXT domain", ErrInvalidArgument, len(v))
		}
	case *big.Int:
		return detectInt(v)
	default:
		i, ok := toInt64(raw)
		if ok {
			return detectSignedWidth(i), nil
		}
		u, ok := toUint64(raw)
		if ok {
			return detectInt(new(big.Int).SetUint64(u))
		}
		return 0, fmt.Errorf("%w: unsupported raw type %T", ErrInvalidArgument, raw)
	}
}

func detectSignedWidth(i int64) KeyType {
	const wordMin, wordMax = -(1 << 15), (1 << 15) - 1
	if i >= wordMin && i <= wordMax {
		return WORD
	}
	return INT
}

func detectInt(v *big.Int) (KeyType, error) {
	if v.Sign() < 0 {
		if v.IsInt64() {
			return detectSignedWidth(v.Int64()), nil
		}
		return 0, fmt.Errorf("%w: negative value %s does not fit INT", ErrInvalidArgument, v.String())
	}
	if v.IsInt64() {
		return detectSignedWidth(v.Int64()), nil
	}
	maxUID := new(big.Int).Lsh(big.NewInt(1), 128)
	if v.Cmp(maxUID) >= 0 {
		return 0, fmt.Errorf("%w: value %s exceeds UID domain", ErrInvalidArgument, v.String())
	}
	return UID, nil
}

func toInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

func toUint64(raw any) (uint64, bool) {
	switch v := raw.(type) {
	case uint:
		return uint64(v), true
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	default:
		return 0, false
	}
}

// New constructs a Key with the narrowest KeyType admitting raw.
func New(raw any) (Key, error) {
	kt, err := Detect(raw)
	if err != nil {
		return Key{}, err
	}
	return NewTyped(raw, kt)
}

// NewTyped constructs a Key pinned to kt, validating that raw lies in kt's
// domain.
func NewTyped(raw any, kt KeyType) (Key, error) {
	switch kt {
	case BOOL:
		b, ok := raw.(bool)
		if !ok {
			return Key{}, fmt.Errorf("%w: %T is not a bool", ErrInvalidArgument, raw)
		}
		v := int64(0)
		if b {
			v = 1
		}
		return Key{ktype: BOOL, i64: v}, nil

	case WORD, INT:
		i, ok := toInt64(raw)
		if !ok {
			if u, uok := toUint64(raw); uok && u <= (1<<63)-1 {
				i, ok = int64(u), true
			} else if bi, bok := raw.(*big.Int); bok && bi.IsInt64() {
				i, ok = bi.Int64(), true
			}
		}
		if !ok {
			return Key{}, fmt.Errorf("%w: %T is not an integer", ErrInvalidArgument, raw)
		}
		if kt == WORD {
			const wordMin, wordMax = -(1 << 15), (1 << 15) - 1
			if i < wordMin || i > wordMax {
				return Key{}, fmt.Errorf("%w: %d out of WORD domain", ErrInvalidArgument, i)
			}
		}
		return Key{ktype: kt, i64: i}, nil

	case UID:
		v, err := toBigInt(raw)
		if err != nil {
			return Key{}, err
		}
		if v.Sign() < 0 {
			return Key{}, fmt.Errorf("%w: UID domain is non-negative", ErrInvalidArgument)
		}
		maxUID := new(big.Int).Lsh(big.NewInt(1), 128)
		if v.Cmp(maxUID) >= 0 {
			return Key{}, fmt.Errorf("%w: value exceeds 2^128-1", ErrInvalidArgument)
		}
		hi, lo := bigToHiLo(v)
		return Key{ktype: UID, hi: hi, lo: lo}, nil

	case STR, TEXT:
		s, ok := raw.(string)
		if !ok {
			return Key{}, fmt.Errorf("%w: %T is not a string", ErrInvalidArgument, raw)
		}
		if !utf8.ValidString(s) {
			return Key{}, fmt.Errorf("%w: not valid UTF-8", ErrInvalidArgument)
		}
		if len(s) >= kt.Width() {
			return Key{}, fmt.Errorf("%w: string of length %d does not fit %s domain", ErrInvalidArgument, len(s), kt)
		}
		return Key{ktype: kt, str: s}, nil

	default:
		return Key{}, fmt.Errorf("%w: unknown KeyType %d", ErrInvalidArgument, kt)
	}
}

func toBigInt(raw any) (*big.Int, error) {
	switch v := raw.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case bool:
		if v {
			return big.NewInt(1), nil
		}
		return big.NewInt(0), nil
	default:
		if i, ok := toInt64(raw); ok {
			return big.NewInt(i), nil
		}
		if u, ok := toUint64(raw); ok {
			return new(big.Int).SetUint64(u), nil
		}
		return nil, fmt.Errorf("%w: %T is not representable as an integer", ErrInvalidArgument, raw)
	}
}

func bigToHiLo(v *big.Int) (hi, lo uint64) {
	var b [16]byte
	v.FillBytes(b[:])
	hi = binary.BigEndian.Uint64(b[0:8])
	lo = binary.BigEndian.Uint64(b[8:16])
	return hi, lo
}

func hiLoToBig(hi, lo uint64) *big.Int {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], hi)
	binary.BigEndian.PutUint64(b[8:16], lo)
	return new(big.Int).SetBytes(b[:])
}

// ToBytes serializes k to exactly k.Type().Width() bytes: big-endian
// signed integers for BOOL/WORD/INT, big-endian unsigned for UID, and
// left-justified NUL-padded UTF-8 for STR/TEXT.
func (k Key) ToBytes() []byte {
	switch k.ktype {
	case BOOL:
		return []byte{byte(k.i64)}
	case WORD:
		b := codec.PutInt16(int16(k.i64))
		return b[:]
	case INT:
		b := codec.PutInt64(k.i64)
		return b[:]
	case UID:
		var b [16]byte
		binary.BigEndian.PutUint64(b[0:8], k.hi)
		binary.BigEndian.PutUint64(b[8:16], k.lo)
		return b[:]
	case STR, TEXT:
		return codec.PutString(k.str, k.ktype.Width())
	default:
		panic(fmt.Sprintf("key: unknown KeyType %d", k.ktype))
	}
}

// FromBytes decodes b, dispatching on its length to the unambiguous
// KeyType with that fixed width.
func FromBytes(b []byte) (Key, error) {
	kt, ok := TypeForWidth(len(b))
	if !ok {
		return Key{}, fmt.Errorf("%w: length %d matches no KeyType", ErrInvalidEncoding, len(b))
	}
	switch kt {
	case BOOL:
		return Key{ktype: BOOL, i64: int64(b[0])}, nil
	case WORD:
		return Key{ktype: WORD, i64: int64(codec.Int16(b))}, nil
	case INT:
		return Key{ktype: INT, i64: codec.Int64(b)}, nil
	case UID:
		return Key{ktype: UID, hi: binary.BigEndian.Uint64(b[0:8]), lo: binary.BigEndian.Uint64(b[8:16])}, nil
	case STR, TEXT:
		return Key{ktype: kt, str: codec.String(b)}, nil
	default:
		return Key{}, fmt.Errorf("%w: unknown KeyType %d", ErrInvalidEncoding, kt)
	}
}

// bigValue returns k's numeric value as a big.Int. It panics for STR/TEXT.
func (k Key) bigValue() *big.Int {
	switch k.ktype {
	case BOOL, WORD, INT:
		return big.NewInt(k.i64)
	case UID:
		return hiLoToBig(k.hi, k.lo)
	default:
		panic("key: bigValue called on a string KeyType")
	}
}

// stringValue renders k's semantic value as a string, going through the
// integer form for BOOL ("0"/"1") as spec'd for boolean-to-string casts.
func (k Key) stringValue() string {
	switch k.ktype {
	case BOOL:
		return strconv.FormatInt(k.i64, 10)
	case WORD, INT:
		return strconv.FormatInt(k.i64, 10)
	case UID:
		return k.bigValue().String()
	case STR, TEXT:
		return k.str
	default:
		panic(fmt.Sprintf("key: unknown KeyType %d", k.ktype))
	}
}

// Cast returns a new Key holding k's semantic value reinterpreted under
// target. Casting to a numeric type from a string parses a base-10
// integer; casting to BOOL accepts only "0"/"1" or the integers 0/1.
func (k Key) Cast(target KeyType) (Key, error) {
	if target == k.ktype {
		return k, nil
	}

	switch target {
	case STR, TEXT:
		return NewTyped(k.stringValue(), target)

	case BOOL:
		switch k.ktype {
		case WORD, INT:
			if k.i64 == 0 || k.i64 == 1 {
				return Key{ktype: BOOL, i64: k.i64}, nil
			}
		case STR, TEXT:
			if k.str == "0" || k.str == "1" {
				return NewTyped(k.str == "1", BOOL)
			}
		}
		return Key{}, fmt.Errorf("%w: cannot cast %s %v to BOOL", ErrInvalidArgument, k.ktype, k.stringValue())

	case WORD, INT:
		switch k.ktype {
		case BOOL:
			return NewTyped(k.i64, target)
		case WORD, INT:
			return NewTyped(k.i64, target)
		case UID:
			v := k.bigValue()
			if !v.IsInt64() {
				return Key{}, fmt.Errorf("%w: UID value %s does not fit %s", ErrInvalidArgument, v.String(), target)
			}
			return NewTyped(v.Int64(), target)
		case STR, TEXT:
			i, err := strconv.ParseInt(k.str, 10, 64)
			if err != nil {
				return Key{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
			}
			return NewTyped(i, target)
		}

	case UID:
		switch k.ktype {
		case BOOL, WORD, INT:
			if k.i64 < 0 {
				return Key{}, fmt.Errorf("%w: negative value %d does not fit UID", ErrInvalidArgument, k.i64)
			}
			return NewTyped(big.NewInt(k.i64), UID)
		case STR, TEXT:
			v, ok := new(big.Int).SetString(k.str, 10)
			if !ok {
				return Key{}, fmt.Errorf("%w: %q is not a base-10 integer", ErrInvalidArgument, k.str)
			}
			return NewTyped(v, UID)
		}
	}

	return Key{}, fmt.Errorf("%w: cannot cast %s to %s", ErrInvalidArgument, k.ktype, target)
}

// Compare widens both keys to max(a.Type(), b.Type()) then compares
// semantic values: -1, 0, or 1.
func Compare(a, b Key) (int, error) {
	wide := Max(a.ktype, b.ktype)
	wa, err := a.Cast(wide)
	if err != nil {
		return 0, err
	}
	wb, err := b.Cast(wide)
	if err != nil {
		return 0, err
	}
	switch wide {
	case STR, TEXT:
		switch {
		case wa.str < wb.str:
			return -1, nil
		case wa.str > wb.str:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return wa.bigValue().Cmp(wb.bigValue()), nil
	}
}

// Equal reports whether a and b carry the same semantic value once widened
// to a common KeyType.
func Equal(a, b Key) bool {
	c, err := Compare(a, b)
	return err == nil && c == 0
}

// Hash returns a 64-bit hash of k over its KeyType tag and serialized
// bytes. Two Keys with different KeyTypes are not guaranteed to collide
// even when Equal(a, b) holds — consumers needing cross-KeyType hash
// equality must Cast to a common KeyType first.
func (k Key) Hash() uint64 {
	buf := make([]byte, 0, 1+k.ktype.Width())
	buf = append(buf, byte(k.ktype))
	buf = append(buf, k.ToBytes()...)
	return xxhash.Sum64(buf)
}

// String renders k for diagnostics as "KTYPE(value)".
func (k Key) String() string {
	return fmt.Sprintf("%s(%s)", k.ktype, k.stringValue())
}
