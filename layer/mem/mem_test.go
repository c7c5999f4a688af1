package mem

import (
	"testing"

	"github.com/papyrusdb/papyrus/data"
	"github.com/papyrusdb/papyrus/key"
	"github.com/papyrusdb/papyrus/value"
)

func mustKey(t *testing.T, raw any) key.Key {
	t.Helper()
	k, err := key.New(raw)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func mustValue(t *testing.T, raw []byte) value.Value {
	t.Helper()
	v, err := value.New(raw)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// TestInsertLatestDeleteRevisions is spec scenario 1.
func TestInsertLatestDeleteRevisions(t *testing.T) {
	l := New("mem://")
	k := mustKey(t, int64(42))
	v := mustValue(t, []byte("hi"))
	d, err := data.New(k, v, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := l.Insert(d); err != nil {
		t.Fatal(err)
	}

	got, ok, err := l.Latest(k)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !value.Equal(got.Value(), v) {
		t.Fatalf("Latest = %v, %v, want %v", got, ok, v)
	}

	if _, err := l.Delete(k); err != nil {
		t.Fatal(err)
	}

	_, ok, err = l.Latest(k)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Latest should be absent after delete")
	}

	revs, err := l.Revisions(k)
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 2 {
		t.Fatalf("len(revisions) = %d, want 2", len(revs))
	}
	if !revs[0].IsDeleted() {
		t.Fatal("head revision should be the tombstone")
	}
}

func TestInsertUpdatesLenAndCap(t *testing.T) {
	l := New("mem://")
	k := mustKey(t, int64(1))
	v := mustValue(t, []byte("x"))
	d, _ := data.New(k, v, nil)

	id, err := l.Insert(d)
	if err != nil {
		t.Fatal(err)
	}

	n, _ := l.Len()
	c, _ := l.Cap()
	if n != 1 || c != 1 {
		t.Fatalf("Len=%d Cap=%d, want 1,1", n, c)
	}

	got, ok, err := l.Raw(id)
	if err != nil || !ok {
		t.Fatalf("Raw(%v) = %v, %v, %v", id, got, ok, err)
	}
	if !data.Equal(got, d) {
		t.Fatal("Raw returned a different Data than inserted")
	}

	ok2, err := l.Contains(k)
	if err != nil || !ok2 {
		t.Fatalf("Contains = %v, %v, want true", ok2, err)
	}
}

func TestDeleteDecrementsLenIncrementsCap(t *testing.T) {
	l := New("mem://")
	k := mustKey(t, int64(1))
	v := mustValue(t, []byte("x"))
	d, _ := data.New(k, v, nil)
	if _, err := l.Insert(d); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Delete(k); err != nil {
		t.Fatal(err)
	}

	n, _ := l.Len()
	c, _ := l.Cap()
	if n != 0 {
		t.Fatalf("Len = %d, want 0", n)
	}
	if c != 2 {
		t.Fatalf("Cap = %d, want 2", c)
	}

	ok, err := l.Contains(k)
	if err != nil || ok {
		t.Fatalf("Contains = %v, want false", ok)
	}
}

func TestPurgeAfterInsertDeleteEmptiesLayer(t *testing.T) {
	l := New("mem://")
	k := mustKey(t, int64(1))
	v := mustValue(t, []byte("x"))
	d, _ := data.New(k, v, nil)
	if _, err := l.Insert(d); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Delete(k); err != nil {
		t.Fatal(err)
	}
	if err := l.Purge(); err != nil {
		t.Fatal(err)
	}

	n, _ := l.Len()
	c, _ := l.Cap()
	if n != 0 || c != 0 {
		t.Fatalf("Len=%d Cap=%d after purge, want 0,0", n, c)
	}
}

func TestThresholdBlocksNewKeysButNotUpdates(t *testing.T) {
	l := New("mem://", WithThreshold(1))
	k1 := mustKey(t, int64(1))
	k2 := mustKey(t, int64(2))
	v := mustValue(t, []byte("x"))
	d1, _ := data.New(k1, v, nil)
	d2, _ := data.New(k2, v, nil)

	if _, err := l.Insert(d1); err != nil {
		t.Fatal(err)
	}

	full, _ := l.IsFull()
	if !full {
		t.Fatal("expected layer to be full at threshold")
	}

	if _, err := l.Insert(d2); err == nil {
		t.Fatal("expected ErrThreshold inserting a new key into a full layer")
	}

	// Updating the existing key must still succeed.
	if _, err := l.Insert(d1); err != nil {
		t.Fatalf("update of existing key should succeed when full: %v", err)
	}
}

// TestThresholdAllowsReinsertAfterDelete covers spec.md's "a key already
// present in the layer may be updated even when full" for a key whose
// only presence is in history (tombstoned, no longer live).
func TestThresholdAllowsReinsertAfterDelete(t *testing.T) {
	l := New("mem://", WithThreshold(1))
	k1 := mustKey(t, int64(1))
	v := mustValue(t, []byte("x"))
	d1, _ := data.New(k1, v, nil)

	if _, err := l.Insert(d1); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Delete(k1); err != nil {
		t.Fatal(err)
	}

	full, _ := l.IsFull()
	if !full {
		t.Fatal("expected layer to still be full: delete adds a tombstone row, it does not free capacity")
	}

	// k1 is no longer live, but it is still present in history (as a
	// tombstone); re-inserting it must not be rejected as a new key.
	if _, err := l.Insert(d1); err != nil {
		t.Fatalf("reinsert of a deleted-but-previously-seen key should succeed when full: %v", err)
	}

	got, ok, err := l.Latest(k1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !value.Equal(got.Value(), v) {
		t.Fatalf("Latest after reinsert = %v, %v, want %v", got, ok, v)
	}
}

func TestSearchReflectsOnlyLatestTagValue(t *testing.T) {
	l := New("mem://")
	pk := mustKey(t, int64(7))
	blue := mustKey(t, "blue")
	red := mustKey(t, "red")
	v := mustValue(t, []byte("x"))

	d1, _ := data.New(pk, v, map[string]key.Key{"color": blue})
	if _, err := l.Insert(d1); err != nil {
		t.Fatal(err)
	}

	set, err := l.Search("color", blue)
	if err != nil || len(set) != 1 {
		t.Fatalf("Search(color, blue) = %v, %v, want 1 match", set, err)
	}

	d2, _ := data.New(pk, v, map[string]key.Key{"color": red})
	if _, err := l.Insert(d2); err != nil {
		t.Fatal(err)
	}

	set, _ = l.Search("color", blue)
	if len(set) != 0 {
		t.Fatalf("Search(color, blue) after retag = %v, want empty", set)
	}
	set, _ = l.Search("color", red)
	if len(set) != 1 {
		t.Fatalf("Search(color, red) = %v, want 1 match", set)
	}
}

func TestIterateOrdersByKeyAndSupportsBased(t *testing.T) {
	l := New("mem://")
	v := mustValue(t, []byte("x"))
	for _, n := range []int64{3, 1, 2} {
		k := mustKey(t, n)
		d, _ := data.New(k, v, nil)
		if _, err := l.Insert(d); err != nil {
			t.Fatal(err)
		}
	}

	seq, err := l.Iterate(false, nil)
	if err != nil {
		t.Fatal(err)
	}
	var got []key.Key
	for k := range seq {
		got = append(got, k)
	}
	if len(got) != 3 {
		t.Fatalf("got %d keys, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		c, _ := key.Compare(got[i-1], got[i])
		if c > 0 {
			t.Fatal("Iterate did not yield keys in ascending order")
		}
	}

	based := got[0]
	seq2, err := l.Iterate(false, &based)
	if err != nil {
		t.Fatal(err)
	}
	var resumed []key.Key
	for k := range seq2 {
		resumed = append(resumed, k)
	}
	if len(resumed) != len(got)-1 {
		t.Fatalf("resumed iteration yielded %d keys, want %d", len(resumed), len(got)-1)
	}
}
