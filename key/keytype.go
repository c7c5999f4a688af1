// Package key implements Papyrus's typed, fixed-width Key: a tagged union
// over six categories (BOOL, WORD, INT, UID, STR, TEXT), each serializing
// to an exact byte width so on-disk layouts never need a length prefix for
// the key portion of a record.
package key

import "fmt"

// KeyType enumerates the six fixed-width key categories. The zero value is
// BOOL. Ordinal order is the type's total order: BOOL < WORD < INT < UID <
// STR < TEXT.
type KeyType uint8

const (
	BOOL KeyType = iota
	WORD
	INT
	UID
	STR
	TEXT
)

// widths holds each KeyType's fixed serialized byte width.
var widths = [...]int{
	BOOL: 1,
	WORD: 2,
	INT:  8,
	UID:  16,
	STR:  64,
	TEXT: 256,
}

// Width returns the fixed byte width of kt's serialized form.
func (kt KeyType) Width() int {
	return widths[kt]
}

// widthToType maps an unambiguous serialized length back to its KeyType.
var widthToType = map[int]KeyType{
	1:   BOOL,
	2:   WORD,
	8:   INT,
	16:  UID,
	64:  STR,
	256: TEXT,
}

// TypeForWidth inverts Width: it returns the KeyType whose fixed width
// equals n, or false if no KeyType has that width.
func TypeForWidth(n int) (KeyType, bool) {
	kt, ok := widthToType[n]
	return kt, ok
}

func (kt KeyType) String() string {
	switch kt {
	case BOOL:
		return "BOOL"
	case WORD:
		return "WORD"
	case INT:
		return "INT"
	case UID:
		return "UID"
	case STR:
		return "STR"
	case TEXT:
		return "TEXT"
	default:
		return fmt.Sprintf("KeyType(%d)", uint8(kt))
	}
}

// Max returns the wider of a and b by ordinal order.
func Max(a, b KeyType) KeyType {
	if a > b {
		return a
	}
	return b
}
