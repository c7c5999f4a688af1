package data

import (
	"testing"

	"github.com/papyrusdb/papyrus/key"
	"github.com/papyrusdb/papyrus/value"
)

func TestNewRejectsTombstoneValue(t *testing.T) {
	k, _ := key.New(int64(1))
	if _, err := New(k, value.NewTombstone(), nil); err == nil {
		t.Fatal("expected error constructing a live Data with a DEL value")
	}
}

func TestTombstoneHasNoTagsAndIsDeleted(t *testing.T) {
	k, _ := key.New(int64(1))
	d := NewTombstone(k)
	if !d.IsDeleted() {
		t.Fatal("IsDeleted() = false, want true")
	}
	if d.Value().Type() != value.DEL {
		t.Fatalf("Value().Type() = %s, want DEL", d.Value().Type())
	}
	if len(d.Tags()) != 0 {
		t.Fatal("tombstone should carry no tags")
	}
}

func TestEqualComparesTagsAndValue(t *testing.T) {
	pk, _ := key.New(int64(1))
	v, _ := value.New([]byte("hi"))
	tagVal, _ := key.New("blue")

	a, err := New(pk, v, map[string]key.Key{"color": tagVal})
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(pk, v, map[string]key.Key{"color": tagVal})
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(a, b) {
		t.Fatal("expected equal Data tuples")
	}

	other, _ := New(pk, v, nil)
	if Equal(a, other) {
		t.Fatal("expected unequal Data tuples with different tag sets")
	}
}

func TestTagsReturnsDefensiveCopy(t *testing.T) {
	pk, _ := key.New(int64(1))
	v, _ := value.New([]byte("hi"))
	tagVal, _ := key.New("blue")
	d, err := New(pk, v, map[string]key.Key{"color": tagVal})
	if err != nil {
		t.Fatal(err)
	}
	cp := d.Tags()
	delete(cp, "color")
	if _, ok := d.Tag("color"); !ok {
		t.Fatal("mutating the copy returned by Tags must not affect d")
	}
}
