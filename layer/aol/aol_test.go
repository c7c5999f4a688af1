package aol

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/papyrusdb/papyrus/data"
	"github.com/papyrusdb/papyrus/key"
	"github.com/papyrusdb/papyrus/layer"
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

func openTemp(t *testing.T, opts ...Option) *Layer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.aol")
	l, err := Open(path, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// TestInsertForceUpdateRevisions is spec scenario 6: insert, force-update,
// and revisions ordering.
func TestInsertForceUpdateRevisions(t *testing.T) {
	l := openTemp(t)
	k := mustKey(t, int64(9))
	v1 := mustValue(t, []byte("one"))
	v2 := mustValue(t, []byte("two"))

	d1, _ := data.New(k, v1, nil)
	if _, err := l.Insert(d1); err != nil {
		t.Fatal(err)
	}

	d1Again, _ := data.New(k, v1, nil)
	if _, err := l.Insert(d1Again); !errors.Is(err, layer.ErrDuplicateKey) {
		t.Fatalf("Insert of existing key = %v, want ErrDuplicateKey", err)
	}

	d2, _ := data.New(k, v2, nil)
	if _, err := l.InsertForce(d2); err != nil {
		t.Fatalf("InsertForce should override the duplicate check: %v", err)
	}

	got, ok, err := l.Latest(k)
	if err != nil || !ok {
		t.Fatalf("Latest = %v, %v, %v", got, ok, err)
	}
	if !value.Equal(got.Value(), v2) {
		t.Fatalf("Latest value = %v, want %v", got.Value(), v2)
	}

	revs, err := l.Revisions(k)
	if err != nil {
		t.Fatal(err)
	}
	if len(revs) != 2 {
		t.Fatalf("len(revisions) = %d, want 2", len(revs))
	}
	if !value.Equal(revs[0].Value(), v2) || !value.Equal(revs[1].Value(), v1) {
		t.Fatal("revisions must be newest first")
	}
}

func TestDeleteNeverRejectedAsDuplicate(t *testing.T) {
	l := openTemp(t)
	k := mustKey(t, "ghost")

	if _, err := l.Delete(k); err != nil {
		t.Fatalf("deleting an absent key should succeed: %v", err)
	}
	if _, err := l.Delete(k); err != nil {
		t.Fatalf("deleting twice should succeed: %v", err)
	}

	ok, err := l.Contains(k)
	if err != nil || ok {
		t.Fatalf("Contains = %v, %v, want false", ok, err)
	}
}

// TestPersistenceAcrossReopen is spec scenario 6's close+reopen half.
func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.aol")
	k1 := mustKey(t, int64(1))
	k2 := mustKey(t, int64(2))
	v := mustValue(t, []byte("payload"))

	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	d1, _ := data.New(k1, v, nil)
	d2, _ := data.New(k2, v, nil)
	if _, err := l.Insert(d1); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Insert(d2); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Delete(k1); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	_, ok, err := reopened.Latest(k1)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("k1 should still be a tombstone after reopen")
	}

	got, ok, err := reopened.Latest(k2)
	if err != nil || !ok {
		t.Fatalf("Latest(k2) = %v, %v, %v", got, ok, err)
	}
	if !value.Equal(got.Value(), v) {
		t.Fatal("k2's value did not survive reopen")
	}

	n, _ := reopened.Len()
	c, _ := reopened.Cap()
	if n != 1 {
		t.Fatalf("Len = %d, want 1", n)
	}
	if c != 3 {
		t.Fatalf("Cap = %d, want 3", c)
	}
}

func TestThresholdBlocksNewKeysOnly(t *testing.T) {
	l := openTemp(t, WithThreshold(1))
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
		t.Fatal("expected layer full at threshold")
	}
	if _, err := l.Insert(d2); !errors.Is(err, layer.ErrThreshold) {
		t.Fatalf("Insert of a new key on a full layer = %v, want ErrThreshold", err)
	}
}

func TestPurgeAndBasedIterateUnsupported(t *testing.T) {
	l := openTemp(t)
	if err := l.Purge(); !errors.Is(err, layer.ErrUnsupported) {
		t.Fatalf("Purge() = %v, want ErrUnsupported", err)
	}

	k := mustKey(t, int64(1))
	if _, err := l.Iterate(false, &k); !errors.Is(err, layer.ErrUnsupported) {
		t.Fatalf("Iterate(based != nil) = %v, want ErrUnsupported", err)
	}
}

func TestSearchAlwaysEmpty(t *testing.T) {
	l := openTemp(t)
	pk := mustKey(t, int64(1))
	tagVal := mustKey(t, "blue")
	v := mustValue(t, []byte("x"))
	d, _ := data.New(pk, v, map[string]key.Key{"color": tagVal})
	if _, err := l.Insert(d); err != nil {
		t.Fatal(err)
	}

	set, err := l.Search("color", tagVal)
	if err != nil {
		t.Fatal(err)
	}
	if len(set) != 0 {
		t.Fatalf("Search on AOLFileLayer = %v, want empty (tags are not persisted)", set)
	}
}

func TestIterateOrdersLiveKeys(t *testing.T) {
	l := openTemp(t)
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
			t.Fatal("Iterate did not yield ascending order")
		}
	}
}

func TestRawResolvesInsertedID(t *testing.T) {
	l := openTemp(t)
	k := mustKey(t, int64(5))
	v := mustValue(t, []byte("x"))
	d, _ := data.New(k, v, nil)

	id, err := l.Insert(d)
	if err != nil {
		t.Fatal(err)
	}

	got, ok, err := l.Raw(id)
	if err != nil || !ok {
		t.Fatalf("Raw(%v) = %v, %v, %v", id, got, ok, err)
	}
	if !data.Equal(got, d) {
		t.Fatal("Raw returned a different Data than inserted")
	}
}
