// Package aol implements layer.Layer as an append-only log file:
// AOLFileLayer. Every insert and delete appends a Pair record (spec.md
// §4.7/§6) to the end of the file; nothing already written is ever
// rewritten in place, mirroring the teacher's WAL (wal.go, wal_writer.go)
// one layer up the stack.
//
// The wire format carries only a revision's (KeyType, Key, Value) — tags
// are not persisted, so Search on an AOLFileLayer always reports no
// matches; see DESIGN.md for the open-question resolution.
package aol

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/papyrusdb/papyrus/data"
	"github.com/papyrusdb/papyrus/key"
	"github.com/papyrusdb/papyrus/layer"
	"github.com/papyrusdb/papyrus/uid"
	"github.com/papyrusdb/papyrus/value"
)

// Scheme is the URL scheme AOLFileLayer registers under: aol:///path.
const Scheme = "aol"

const estimatedKeys = 10000

type entry struct {
	id     uid.UniqueID
	key    key.Key
	offset int64
	size   int64 // total on-disk record length, including the size field
	tomb   bool
}

// Layer is a file-backed, append-only implementation of layer.Layer.
type Layer struct {
	url  string
	path string
	f    *os.File

	threshold   *int
	syncOnWrite bool
	log         *slog.Logger

	textOffset int64
	index      []entry
	byID       map[uid.UniqueID]int
	byKey      map[uint64][]int // key.Hash() -> indices into index, newest last
	liveKeys   map[key.Key]struct{}
	bloom      *bloom.BloomFilter
}

// Option configures a Layer at Open time.
type Option func(*Layer)

// WithThreshold sets the layer's capacity threshold; without it, AOLFileLayer
// never reports full, per spec.md §4.7's baseline.
func WithThreshold(n int) Option {
	return func(l *Layer) { t := n; l.threshold = &t }
}

// WithSyncOnWrite requests an explicit fsync after every append, beyond the
// default best-effort (user-space) flush.
func WithSyncOnWrite(enabled bool) Option {
	return func(l *Layer) { l.syncOnWrite = enabled }
}

// WithLogger overrides the default slog.Default() fallback.
func WithLogger(log *slog.Logger) Option {
	return func(l *Layer) { l.log = log }
}

// Open opens (creating if absent) the AOL file at path, scanning any
// existing content to rebuild the in-memory indices.
func Open(path string, opts ...Option) (*Layer, error) {
	l := &Layer{
		url:      "aol://" + path,
		path:     path,
		byID:     make(map[uid.UniqueID]int),
		byKey:    make(map[uint64][]int),
		liveKeys: make(map[key.Key]struct{}),
		bloom:    bloom.NewWithEstimates(estimatedKeys, 0.01),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", layer.ErrIOError, path, err)
	}
	l.f = f

	if err := l.initLayout(); err != nil {
		f.Close()
		return nil, err
	}
	if err := l.scan(); err != nil {
		f.Close()
		return nil, err
	}

	if l.threshold != nil {
		l.log.Info("aol layer opened", "path", path, "revisions", len(l.index), "live_keys", len(l.liveKeys), "threshold", *l.threshold)
	} else {
		l.log.Info("aol layer opened", "path", path, "revisions", len(l.index), "live_keys", len(l.liveKeys))
	}
	return l, nil
}

// Register binds the "aol" scheme to this package's constructor in the
// layer registry. The URL's path names the file. The "threshold" query
// parameter is honored when no explicit OpenOptions threshold is given;
// the "sync_on_write" query parameter is always honored.
func Register() {
	layer.Register(Scheme, func(u *url.URL, threshold *int) (layer.Layer, error) {
		var opts []Option
		if threshold != nil {
			opts = append(opts, WithThreshold(*threshold))
		} else if raw := u.Query().Get("threshold"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: threshold query parameter %q: %v", layer.ErrInvalidArgument, raw, err)
			}
			opts = append(opts, WithThreshold(n))
		}
		if raw := u.Query().Get("sync_on_write"); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: sync_on_write query parameter %q: %v", layer.ErrInvalidArgument, raw, err)
			}
			opts = append(opts, WithSyncOnWrite(b))
		}
		return Open(u.Path, opts...)
	})
}

// initLayout writes a fresh header if the file is empty, or validates the
// existing one and computes textOffset otherwise.
func (l *Layer) initLayout() error {
	info, err := l.f.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", layer.ErrIOError, err)
	}

	if info.Size() == 0 {
		h := newHeader()
		hb := h.toBytes()
		off := recordsOffset(h.metaSize)
		buf := make([]byte, off)
		copy(buf, hb)
		if _, err := l.f.WriteAt(buf, 0); err != nil {
			return fmt.Errorf("%w: writing header: %v", layer.ErrIOError, err)
		}
		l.textOffset = off
		return nil
	}

	hb := make([]byte, headerSize)
	if _, err := l.f.ReadAt(hb, 0); err != nil {
		return fmt.Errorf("%w: reading header: %v", layer.ErrIOError, err)
	}
	h, err := decodeHeader(hb)
	if err != nil {
		return err
	}
	l.textOffset = recordsOffset(h.metaSize)
	return nil
}

// scan walks every record from textOffset to EOF, rebuilding the indices.
// A short trailing record (a torn write from a crash mid-append) is logged
// and the log is treated as ending there, never surfaced as an error.
func (l *Layer) scan() error {
	off := l.textOffset
	for {
		sizeBuf := make([]byte, 4)
		n, err := l.f.ReadAt(sizeBuf, off)
		if n < 4 || err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: scanning at offset %d: %v", layer.ErrIOError, off, err)
		}

		size := int64(sizeBuf[0]) | int64(sizeBuf[1])<<8 | int64(sizeBuf[2])<<16 | int64(sizeBuf[3])<<24
		total := 4 + size + pairPadding
		rec := make([]byte, total)
		n, err = l.f.ReadAt(rec, off)
		if err != nil && err != io.EOF {
			return fmt.Errorf("%w: reading record at offset %d: %v", layer.ErrIOError, off, err)
		}
		if int64(n) < total {
			l.log.Warn("aol: truncating at short trailing record", "path", l.path, "offset", off, "want", total, "got", n)
			break
		}

		k, v, err := decodePair(rec)
		if err != nil {
			l.log.Warn("aol: truncating at corrupt record", "path", l.path, "offset", off, "error", err)
			break
		}

		l.appendIndex(k, v, off, total, freshID())
		off += total
	}
	return nil
}

// freshID mints a UniqueID for a record discovered during scan. The wire
// format carries no id field (spec.md §6), so ids assigned on reopen are
// new identities, not the ones originally minted at insert time; Raw only
// resolves ids seen by the current process.
func freshID() uid.UniqueID {
	id, err := uid.New(nil, nil, nil, nil)
	if err != nil {
		panic(fmt.Sprintf("aol: minting UniqueID: %v", err))
	}
	return id
}

func (l *Layer) appendIndex(k key.Key, v value.Value, offset, size int64, id uid.UniqueID) int {
	idx := len(l.index)
	l.index = append(l.index, entry{id: id, key: k, offset: offset, size: size, tomb: v.Type() == value.DEL})
	l.byID[id] = idx
	h := k.Hash()
	l.byKey[h] = append(l.byKey[h], idx)
	l.bloom.Add(k.ToBytes())

	if v.Type() == value.DEL {
		delete(l.liveKeys, k)
	} else {
		l.liveKeys[k] = struct{}{}
	}
	return idx
}

// findLast returns the index of the newest record for k, if any.
func (l *Layer) findLast(k key.Key) (int, bool) {
	if !l.bloom.Test(k.ToBytes()) {
		return -1, false
	}
	bucket := l.byKey[k.Hash()]
	for i := len(bucket) - 1; i >= 0; i-- {
		if l.index[bucket[i]].key == k {
			return bucket[i], true
		}
	}
	return -1, false
}

func (l *Layer) isFull() bool {
	return l.threshold != nil && len(l.index) >= *l.threshold
}

func (l *Layer) readAt(e entry) (data.Data, error) {
	buf := make([]byte, e.size)
	if _, err := l.f.ReadAt(buf, e.offset); err != nil {
		return data.Data{}, fmt.Errorf("%w: reading record at offset %d: %v", layer.ErrIOError, e.offset, err)
	}
	k, v, err := decodePair(buf)
	if err != nil {
		return data.Data{}, err
	}
	if v.Type() == value.DEL {
		return data.NewTombstone(k), nil
	}
	return data.New(k, v, nil)
}

func (l *Layer) appendEntry(k key.Key, v value.Value) (uid.UniqueID, error) {
	rec, err := encodePair(k, v)
	if err != nil {
		return uid.UniqueID{}, err
	}

	off, err := l.f.Seek(0, io.SeekEnd)
	if err != nil {
		return uid.UniqueID{}, fmt.Errorf("%w: seeking to end: %v", layer.ErrIOError, err)
	}
	if _, err := l.f.Write(rec); err != nil {
		return uid.UniqueID{}, fmt.Errorf("%w: appending record: %v", layer.ErrIOError, err)
	}
	if l.syncOnWrite {
		if err := fsync(l.f); err != nil {
			l.log.Warn("aol: fsync failed", "path", l.path, "error", err)
			return uid.UniqueID{}, fmt.Errorf("%w: fsync: %v", layer.ErrIOError, err)
		}
	}

	id, err := uid.New(nil, nil, nil, nil)
	if err != nil {
		return uid.UniqueID{}, err
	}
	l.appendIndex(k, v, off, int64(len(rec)), id)
	return id, nil
}

// Insert implements layer.Layer. A key already present in the log, live or
// tombstoned, is rejected as a duplicate; use InsertForce to override.
func (l *Layer) Insert(d data.Data) (uid.UniqueID, error) {
	pk := d.PrimaryKey()
	if _, found := l.findLast(pk); found {
		return uid.UniqueID{}, fmt.Errorf("%w: %s already present", layer.ErrDuplicateKey, pk)
	}
	if l.isFull() {
		return uid.UniqueID{}, fmt.Errorf("%w: layer at capacity", layer.ErrThreshold)
	}
	return l.appendEntry(pk, d.Value())
}

// InsertForce implements layer.ForceInserter: it appends regardless of any
// existing revision for d's primary key.
func (l *Layer) InsertForce(d data.Data) (uid.UniqueID, error) {
	pk := d.PrimaryKey()
	if _, found := l.findLast(pk); !found && l.isFull() {
		return uid.UniqueID{}, fmt.Errorf("%w: layer at capacity", layer.ErrThreshold)
	}
	return l.appendEntry(pk, d.Value())
}

// Delete implements layer.Layer: it always appends a tombstone, never
// rejected as a duplicate.
func (l *Layer) Delete(k key.Key) (uid.UniqueID, error) {
	return l.appendEntry(k, value.NewTombstone())
}

// URL implements layer.Layer.
func (l *Layer) URL() string { return l.url }

// Latest implements layer.Layer.
func (l *Layer) Latest(k key.Key) (data.Data, bool, error) {
	idx, found := l.findLast(k)
	if !found || l.index[idx].tomb {
		return data.Data{}, false, nil
	}
	d, err := l.readAt(l.index[idx])
	if err != nil {
		return data.Data{}, false, err
	}
	return d, true, nil
}

// Revisions implements layer.Layer, newest first.
func (l *Layer) Revisions(k key.Key) ([]data.Data, error) {
	var out []data.Data
	bucket := l.byKey[k.Hash()]
	for i := len(bucket) - 1; i >= 0; i-- {
		e := l.index[bucket[i]]
		if e.key != k {
			continue
		}
		d, err := l.readAt(e)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Search implements layer.Layer. AOLFileLayer's wire format does not
// persist tags, so Search always finds nothing; see DESIGN.md.
func (l *Layer) Search(name string, kval key.Key) (map[key.Key]struct{}, error) {
	return map[key.Key]struct{}{}, nil
}

// Raw implements layer.Layer. It resolves ids this process has seen, via
// Insert/Delete/Open's rebuild scan; see freshID.
func (l *Layer) Raw(id uid.UniqueID) (data.Data, bool, error) {
	idx, ok := l.byID[id]
	if !ok {
		return data.Data{}, false, nil
	}
	d, err := l.readAt(l.index[idx])
	if err != nil {
		return data.Data{}, false, err
	}
	return d, true, nil
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
	return len(l.index), nil
}

// IsFull implements layer.Layer.
func (l *Layer) IsFull() (bool, error) {
	return l.isFull(), nil
}

// Iterate implements layer.Layer. AOLFileLayer does not support resuming
// from based; callers asking for that get ErrUnsupported.
func (l *Layer) Iterate(desc bool, based *key.Key) (iter.Seq2[key.Key, value.Value], error) {
	if based != nil {
		return nil, fmt.Errorf("%w: AOLFileLayer does not support based iteration", layer.ErrUnsupported)
	}

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
		for _, k := range keys {
			d, ok, err := l.Latest(k)
			if err != nil || !ok {
				continue
			}
			if !yield(k, d.Value()) {
				return
			}
		}
	}, nil
}

// Purge implements layer.Layer. AOLFileLayer is append-only and cannot
// rewrite the file in place to drop tombstoned rows, so Purge always
// fails with ErrUnsupported.
func (l *Layer) Purge() error {
	return fmt.Errorf("%w: AOLFileLayer does not support purge", layer.ErrUnsupported)
}

// Unlink implements layer.Layer: it closes and removes the backing file.
func (l *Layer) Unlink() error {
	if err := l.Close(); err != nil {
		return err
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: removing %s: %v", layer.ErrIOError, l.path, err)
	}
	return nil
}

// Close implements layer.Layer.
func (l *Layer) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("%w: closing %s: %v", layer.ErrIOError, l.path, err)
	}
	return nil
}

var (
	_ layer.Layer         = (*Layer)(nil)
	_ layer.ForceInserter = (*Layer)(nil)
)
