package codec

import (
	"fmt"
	"math/big"
)

// crockfordAlphabet is Crockford's base32 alphabet: digits 0-9 then
// uppercase letters with I, L, O, U removed to avoid transcription
// ambiguity.
const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordIndex [256]int8

func init() {
	for i := range crockfordIndex {
		crockfordIndex[i] = -1
	}
	for i := 0; i < len(crockfordAlphabet); i++ {
		crockfordIndex[crockfordAlphabet[i]] = int8(i)
	}
}

// EncodeUint128 encodes a 16-byte big-endian unsigned integer as a
// width-character, zero-padded Crockford base32 string. Used by uid.UniqueID
// for its 26-character text form.
func EncodeUint128(b []byte, width int) string {
	n := new(big.Int).SetBytes(b)
	base := big.NewInt(32)
	mod := new(big.Int)
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		n.DivMod(n, base, mod)
		out[i] = crockfordAlphabet[mod.Int64()]
	}
	return string(out)
}

// DecodeUint128 inverts EncodeUint128, returning a big-endian byte slice of
// the given length. It fails if s contains characters outside the
// Crockford alphabet.
func DecodeUint128(s string, byteLen int) ([]byte, error) {
	n := new(big.Int)
	base := big.NewInt(32)
	for i := 0; i < len(s); i++ {
		c := s[i]
		idx := crockfordIndex[c]
		if idx < 0 {
			return nil, fmt.Errorf("invalid crockford base32 character %q at offset %d", c, i)
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(idx)))
	}
	out := make([]byte, byteLen)
	n.FillBytes(out)
	return out, nil
}
