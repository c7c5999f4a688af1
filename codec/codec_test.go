package codec

import (
	"bytes"
	"testing"

	"github.com/orcaman/writerseeker"
)

func TestPutStringRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value string
		width int
	}{
		{"empty", "", 64},
		{"ascii", "hello", 64},
		{"exact-minus-one", bytesString(63, 'a'), 64},
		{"text-width", bytesString(255, 'z'), 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := PutString(tt.value, tt.width)
			if len(buf) != tt.width {
				t.Fatalf("got width %d, want %d", len(buf), tt.width)
			}
			if got := String(buf); got != tt.value {
				t.Fatalf("got %q, want %q", got, tt.value)
			}
		})
	}
}

func bytesString(n int, c byte) string {
	b := bytes.Repeat([]byte{c}, n)
	return string(b)
}

func TestIntRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 1 << 40, -(1 << 62)} {
		b := PutInt64(v)
		if got := Int64(b[:]); got != v {
			t.Fatalf("Int64 round trip: got %d, want %d", got, v)
		}
	}
	for _, v := range []int16{0, 1, -1, 32767, -32768} {
		b := PutInt16(v)
		if got := Int16(b[:]); got != v {
			t.Fatalf("Int16 round trip: got %d, want %d", got, v)
		}
	}
}

// TestCRC32WrittenThroughSeekableBuffer checks that CRC32 over the bytes
// held by an in-memory seekable writer equals CRC32 over the payload
// written into it.
func TestCRC32WrittenThroughSeekableBuffer(t *testing.T) {
	ws := &writerseeker.WriterSeeker{}
	payload := []byte("papyrus")
	if _, err := ws.Write(payload); err != nil {
		t.Fatal(err)
	}

	want := CRC32(payload)
	got := CRC32(ws.Bytes())
	if got != want {
		t.Fatalf("CRC32 over writerseeker buffer = %d, want %d", got, want)
	}
}

func TestRoundUp32(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 0}, {1, 32}, {31, 32}, {32, 32}, {33, 64}, {64, 64},
	}
	for _, tt := range tests {
		if got := RoundUp32(tt.in); got != tt.want {
			t.Fatalf("RoundUp32(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
