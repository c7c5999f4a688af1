// Package mem implements layer.Layer as an in-memory store: every
// revision ever inserted lives in a map keyed by its UniqueID, with a
// secondary per-key history list and a name/value/primary-key tag index,
// mirroring the three coherent indices spec.md §4.6 describes.
//
// MemLayer performs no internal locking — per spec.md §5, the core is
// single-threaded cooperative, and an embedder needing concurrent readers
// must add its own reader-writer lock.
package mem

import (
	"fmt"
	"iter"
	"net/url"
	"slices"
	"strconv"

	"github.com/papyrusdb/papyrus/data"
	"github.com/papyrusdb/papyrus/key"
	"github.com/papyrusdb/papyrus/layer"
	"github.com/papyrusdb/papyrus/uid"
	"github.com/papyrusdb/papyrus/value"
)

// Scheme is the URL scheme MemLayer registers under: mem://; authority
// and path are ignored per spec.md §6.
const Scheme = "mem"

type revisionRef struct {
	id uid.UniqueID
	d  data.Data
}

// Layer is an in-memory implementation of layer.Layer.
type Layer struct {
	url       string
	threshold *int

	records  map[uid.UniqueID]data.Data
	liveKeys map[key.Key]struct{}
	history  map[key.Key][]revisionRef
	tagIndex map[string]map[key.Key]map[key.Key]struct{} // name -> tag value -> primary keys
	tagsOf   map[key.Key]map[string]key.Key              // primary key -> its current tag set
}

// Option configures a Layer at construction time.
type Option func(*Layer)

// WithThreshold sets the layer's capacity threshold.
func WithThreshold(n int) Option {
	return func(l *Layer) { t := n; l.threshold = &t }
}

// New constructs an empty in-memory Layer.
func New(rawURL string, opts ...Option) *Layer {
	l := &Layer{
		url:      rawURL,
		records:  make(map[uid.UniqueID]data.Data),
		liveKeys: make(map[key.Key]struct{}),
		history:  make(map[key.Key][]revisionRef),
		tagIndex: make(map[string]map[key.Key]map[key.Key]struct{}),
		tagsOf:   make(map[key.Key]map[string]key.Key),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register binds the "mem" scheme to this package's constructor in the
// layer registry.
func Register() {
	layer.Register(Scheme, func(u *url.URL, threshold *int) (layer.Layer, error) {
		l := New(u.String())
		if threshold != nil {
			l.threshold = threshold
		} else if raw := u.Query().Get("threshold"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: threshold query parameter %q: %v", layer.ErrInvalidArgument, raw, err)
			}
			l.threshold = &n
		}
		return l, nil
	})
}

// URL implements layer.Layer.
func (l *Layer) URL() string { return l.url }

func (l *Layer) isFull() bool {
	return l.threshold != nil && len(l.records) >= *l.threshold
}

func (l *Layer) appendRevision(d data.Data) (uid.UniqueID, error) {
	id, err := uid.New(nil, nil, nil, nil)
	if err != nil {
		return uid.UniqueID{}, err
	}

	pk := d.PrimaryKey()
	l.records[id] = d
	l.history[pk] = append(l.history[pk], revisionRef{id: id, d: d})

	if d.IsDeleted() {
		delete(l.liveKeys, pk)
		l.clearTagsOf(pk)
	} else {
		l.liveKeys[pk] = struct{}{}
		l.setTagsOf(pk, d.Tags())
	}

	return id, nil
}

// setTagsOf reconciles the tag index for pk against its previously known
// tag set so Search reflects only the latest revision, per spec.md §4.5's
// "last non-tombstone revision" contract.
func (l *Layer) setTagsOf(pk key.Key, tags map[string]key.Key) {
	old := l.tagsOf[pk]
	for name, val := range old {
		if newVal, ok := tags[name]; ok && key.Equal(newVal, val) {
			continue
		}
		l.removePosting(name, val, pk)
	}
	for name, val := range tags {
		l.addPosting(name, val, pk)
	}
	if len(tags) == 0 {
		delete(l.tagsOf, pk)
	} else {
		l.tagsOf[pk] = tags
	}
}

func (l *Layer) clearTagsOf(pk key.Key) {
	for name, val := range l.tagsOf[pk] {
		l.removePosting(name, val, pk)
	}
	delete(l.tagsOf, pk)
}

func (l *Layer) addPosting(name string, val, pk key.Key) {
	byVal, ok := l.tagIndex[name]
	if !ok {
		byVal = make(map[key.Key]map[key.Key]struct{})
		l.tagIndex[name] = byVal
	}
	set, ok := byVal[val]
	if !ok {
		set = make(map[key.Key]struct{})
		byVal[val] = set
	}
	set[pk] = struct{}{}
}

func (l *Layer) removePosting(name string, val, pk key.Key) {
	byVal, ok := l.tagIndex[name]
	if !ok {
		return
	}
	set, ok := byVal[val]
	if !ok {
		return
	}
	delete(set, pk)
	if len(set) == 0 {
		delete(byVal, val)
	}
	if len(byVal) == 0 {
		delete(l.tagIndex, name)
	}
}

// Insert implements layer.Layer. A key already present in the layer's
// history — live or previously tombstoned — may be updated even when the
// layer is full; threshold only blocks a genuinely new key.
func (l *Layer) Insert(d data.Data) (uid.UniqueID, error) {
	pk := d.PrimaryKey()
	if _, everSeen := l.history[pk]; !everSeen && l.isFull() {
		return uid.UniqueID{}, fmt.Errorf("%w: layer at capacity", layer.ErrThreshold)
	}
	return l.appendRevision(d)
}

// Delete implements layer.Layer. Tombstones are never rejected by
// threshold, matching spec.md §4.5.
func (l *Layer) Delete(k key.Key) (uid.UniqueID, error) {
	return l.appendRevision(data.NewTombstone(k))
}

// Latest implements layer.Layer.
func (l *Layer) Latest(k key.Key) (data.Data, bool, error) {
	hist := l.history[k]
	if len(hist) == 0 {
		return data.Data{}, false, nil
	}
	last := hist[len(hist)-1]
	if last.d.IsDeleted() {
		return data.Data{}, false, nil
	}
	return last.d, true, nil
}

// Revisions implements layer.Layer, newest first.
func (l *Layer) Revisions(k key.Key) ([]data.Data, error) {
	hist := l.history[k]
	out := make([]data.Data, len(hist))
	for i, r := range hist {
		out[len(hist)-1-i] = r.d
	}
	return out, nil
}

// Search implements layer.Layer.
func (l *Layer) Search(name string, kval key.Key) (map[key.Key]struct{}, error) {
	out := make(map[key.Key]struct{})
	for pk := range l.tagIndex[name][kval] {
		out[pk] = struct{}{}
	}
	return out, nil
}

// Raw implements layer.Layer.
func (l *Layer) Raw(id uid.UniqueID) (data.Data, bool, error) {
	d, ok := l.records[id]
	return d, ok, nil
}

// Contains implements layer.Layer.
func (l *Layer) Contains(k key.Key) (bool, error) {
	_, ok := l.liveKeys[k]
	return ok, nil
}

// Len implements layer.Layer: count of live (non-tombstoned) keys.
func (l *Layer) Len() (int, error) {
	return len(l.liveKeys), nil
}

// Cap implements layer.Layer: total row count, including tombstones.
func (l *Layer) Cap() (int, error) {
	return len(l.records), nil
}

// IsFull implements layer.Layer.
func (l *Layer) IsFull() (bool, error) {
	return l.isFull(), nil
}

// Iterate implements layer.Layer, yielding every live key's latest value
// in key order. MemLayer supports resuming from based, unlike AOLFileLayer.
func (l *Layer) Iterate(desc bool, based *key.Key) (iter.Seq2[key.Key, value.Value], error) {
	keys := make([]key.Key, 0, len(l.liveKeys))
	for k := range l.liveKeys {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b key.Key) int {
		c, _ := key.Compare(a, b)
		if desc {
			return -c
		}
		return c
	})

	return func(yield func(key.Key, value.Value) bool) {
		started := based == nil
		for _, k := range keys {
			if !started {
				c, err := key.Compare(k, *based)
				if err != nil {
					return
				}
				if c == 0 {
					started = true
				}
				continue
			}
			d, ok, _ := l.Latest(k)
			if !ok {
				continue
			}
			if !yield(k, d.Value()) {
				return
			}
		}
	}, nil
}

// Purge implements layer.Layer: drops tombstoned revisions and the rows
// they shadow: a live key keeps only the revisions written after its last
// tombstone, and keys that are not live are dropped entirely.
func (l *Layer) Purge() error {
	newHistory := make(map[key.Key][]revisionRef, len(l.liveKeys))
	newRecords := make(map[uid.UniqueID]data.Data)

	for pk := range l.liveKeys {
		hist := l.history[pk]
		kept := make([]revisionRef, 0, len(hist))
		for _, r := range hist {
			if r.d.IsDeleted() {
				// A tombstone shadows every revision written before it.
				kept = kept[:0]
				continue
			}
			kept = append(kept, r)
		}
		for _, r := range kept {
			newRecords[r.id] = r.d
		}
		newHistory[pk] = kept
	}

	l.history = newHistory
	l.records = newRecords
	return nil
}

// Unlink implements layer.Layer: MemLayer has no backing store to remove,
// so Unlink just discards in-memory state.
func (l *Layer) Unlink() error {
	l.records = make(map[uid.UniqueID]data.Data)
	l.liveKeys = make(map[key.Key]struct{})
	l.history = make(map[key.Key][]revisionRef)
	l.tagIndex = make(map[string]map[key.Key]map[key.Key]struct{})
	l.tagsOf = make(map[key.Key]map[string]key.Key)
	return nil
}

// Close implements layer.Layer; MemLayer holds no OS resources.
func (l *Layer) Close() error { return nil }

var _ layer.Layer = (*Layer)(nil)
