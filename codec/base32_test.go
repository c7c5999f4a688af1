package codec

import (
	"bytes"
	"testing"
)

func TestEncodeUint128MinMax(t *testing.T) {
	zero := make([]byte, 16)
	if got := EncodeUint128(zero, 26); got != "00000000000000000000000000"[:26] {
		t.Fatalf("got %q", got)
	}

	max := bytes.Repeat([]byte{0xFF}, 16)
	got := EncodeUint128(max, 26)
	want := "7" + stringsRepeat('Z', 25)
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func stringsRepeat(c byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return string(b)
}

func TestDecodeUint128RoundTrip(t *testing.T) {
	tests := [][]byte{
		make([]byte, 16),
		bytes.Repeat([]byte{0xFF}, 16),
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15},
	}
	for _, raw := range tests {
		s := EncodeUint128(raw, 26)
		if len(s) != 26 {
			t.Fatalf("encoded length = %d, want 26", len(s))
		}
		got, err := DecodeUint128(s, 16)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, raw) {
			t.Fatalf("round trip mismatch: got %x, want %x", got, raw)
		}
	}
}

func TestDecodeUint128RejectsInvalidCharacters(t *testing.T) {
	if _, err := DecodeUint128("IIIIIIIIIIIIIIIIIIIIIIIIII", 16); err == nil {
		t.Fatal("expected error for character outside crockford alphabet")
	}
}
