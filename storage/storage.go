// Package storage implements Storage, the facade that composes one or
// more ordered layer.Layer instances into a single logical store: writes
// route to exactly one layer per call, reads merge across all of them with
// earlier layers shadowing later ones, mirroring the teacher's
// segmentmanager package one level up (a single logical log backed by
// multiple rotating files).
package storage

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/papyrusdb/papyrus/data"
	"github.com/papyrusdb/papyrus/key"
	"github.com/papyrusdb/papyrus/layer"
	"github.com/papyrusdb/papyrus/uid"
	"github.com/papyrusdb/papyrus/value"
)

// Storage composes ordered layers behind the Layer contract. It performs
// no locking itself; per spec.md §5, at most one caller mutates a given
// Storage at a time.
type Storage struct {
	layers       []layer.Layer
	defaultLayer string // URL template with one %d verb, e.g. "aol:///data/segment-%d.aol"
	cached       bool
	log          *slog.Logger
	nextIndex    int
}

// Option configures Storage construction.
type Option func(*options)

type options struct {
	defaultLayer string
	cached       bool
	logger       *slog.Logger
}

// WithDefaultLayer sets the URL template used to mint a fresh layer when
// every existing layer is full. The template must contain exactly one
// %d verb, filled with a monotonically increasing index, mirroring the
// teacher's segment-%d.log naming.
func WithDefaultLayer(urlTemplate string) Option {
	return func(o *options) { o.defaultLayer = urlTemplate }
}

// WithCached controls whether opened/rotated layers are registered in the
// shared layer.Open cache. Default true.
func WithCached(cached bool) Option {
	return func(o *options) { o.cached = cached }
}

// WithLogger overrides the default slog.Default() fallback.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.logger = log }
}

// New opens layerURLs, in order, via the layer registry and returns a
// Storage composing them.
func New(layerURLs []string, opts ...Option) (*Storage, error) {
	o := options{cached: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Storage{
		defaultLayer: o.defaultLayer,
		cached:       o.cached,
		log:          o.logger,
		nextIndex:    len(layerURLs),
	}

	for _, u := range layerURLs {
		l, err := layer.Open(u, layer.WithCached(o.cached))
		if err != nil {
			return nil, fmt.Errorf("storage: opening layer %q: %w", u, err)
		}
		s.layers = append(s.layers, l)
	}

	s.log.Info("storage opened", "layers", len(s.layers))
	return s, nil
}

// layerFor returns the first non-full layer, rotating in a freshly opened
// one from defaultLayer if every layer is currently full.
func (s *Storage) layerFor() (layer.Layer, error) {
	for _, l := range s.layers {
		full, err := l.IsFull()
		if err != nil {
			return nil, err
		}
		if !full {
			return l, nil
		}
	}

	if s.defaultLayer == "" {
		return nil, fmt.Errorf("%w: every layer is full and no default layer is configured", layer.ErrThreshold)
	}

	newURL := fmt.Sprintf(s.defaultLayer, s.nextIndex)
	s.nextIndex++
	l, err := layer.Open(newURL, layer.WithCached(s.cached))
	if err != nil {
		return nil, fmt.Errorf("storage: rotating to %q: %w", newURL, err)
	}
	s.layers = append(s.layers, l)
	s.log.Info("storage rotated to new layer", "url", newURL)
	return l, nil
}

// Insert routes d to the current write layer.
func (s *Storage) Insert(d data.Data) (uid.UniqueID, error) {
	l, err := s.layerFor()
	if err != nil {
		return uid.UniqueID{}, err
	}
	return l.Insert(d)
}

// InsertForce routes d to the current write layer, using its
// layer.ForceInserter override when available so an existing key is
// updated rather than rejected as a duplicate.
func (s *Storage) InsertForce(d data.Data) (uid.UniqueID, error) {
	l, err := s.layerFor()
	if err != nil {
		return uid.UniqueID{}, err
	}
	if fi, ok := l.(layer.ForceInserter); ok {
		return fi.InsertForce(d)
	}
	return l.Insert(d)
}

// Delete routes a tombstone for k to the current write layer, the same
// routing rule Insert uses.
func (s *Storage) Delete(k key.Key) (uid.UniqueID, error) {
	l, err := s.layerFor()
	if err != nil {
		return uid.UniqueID{}, err
	}
	return l.Delete(k)
}

// Latest scans layers in declared order and returns the first non-absent
// result; earlier layers shadow later ones.
func (s *Storage) Latest(k key.Key) (data.Data, bool, error) {
	for _, l := range s.layers {
		d, ok, err := l.Latest(k)
		if err != nil {
			return data.Data{}, false, err
		}
		if ok {
			return d, true, nil
		}
	}
	return data.Data{}, false, nil
}

// Revisions concatenates each layer's revisions for k in declared order.
func (s *Storage) Revisions(k key.Key) ([]data.Data, error) {
	var out []data.Data
	for _, l := range s.layers {
		revs, err := l.Revisions(k)
		if err != nil {
			return nil, err
		}
		out = append(out, revs...)
	}
	return out, nil
}

// Query performs the same layered scan as Latest but returns the raw
// Value of the winning layer's newest revision, tombstone included.
func (s *Storage) Query(k key.Key) (value.Value, bool, error) {
	for _, l := range s.layers {
		revs, err := l.Revisions(k)
		if err != nil {
			return value.Value{}, false, err
		}
		if len(revs) > 0 {
			return revs[0].Value(), true, nil
		}
	}
	return value.Value{}, false, nil
}

// Search unions matches across every layer.
func (s *Storage) Search(name string, kval key.Key) (map[key.Key]struct{}, error) {
	out := make(map[key.Key]struct{})
	for _, l := range s.layers {
		set, err := l.Search(name, kval)
		if err != nil {
			return nil, err
		}
		for pk := range set {
			out[pk] = struct{}{}
		}
	}
	return out, nil
}

// Contains reports whether any layer holds a live revision of k.
func (s *Storage) Contains(k key.Key) (bool, error) {
	for _, l := range s.layers {
		ok, err := l.Contains(k)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Len sums live-key counts across layers. Note a key live in two layers
// simultaneously (shadowed, not absent) is counted twice, matching the
// per-layer Len contract summed literally, per spec.md §4.8.
func (s *Storage) Len() (int, error) {
	total := 0
	for _, l := range s.layers {
		n, err := l.Len()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Capacity sums total row counts, including tombstones, across layers.
func (s *Storage) Capacity() (int, error) {
	total := 0
	for _, l := range s.layers {
		n, err := l.Cap()
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// Iterate chains each layer's iterator in declared order. A layer that
// rejects the request outright (AOLFileLayer on a non-nil based) is
// logged and skipped rather than aborting the whole chain, the same
// ignore-and-continue stance Purge/Unlink take toward per-layer
// rejections.
func (s *Storage) Iterate(desc bool, based *key.Key) (iter.Seq2[key.Key, value.Value], error) {
	return func(yield func(key.Key, value.Value) bool) {
		for _, l := range s.layers {
			seq, err := l.Iterate(desc, based)
			if err != nil {
				s.log.Warn("storage: layer iterate failed", "url", l.URL(), "error", err)
				continue
			}
			stop := false
			seq(func(k key.Key, v value.Value) bool {
				if !yield(k, v) {
					stop = true
					return false
				}
				return true
			})
			if stop {
				return
			}
		}
	}, nil
}

// Purge applies Purge to every layer, ignoring layers that reject it
// (e.g. AOLFileLayer's ErrUnsupported).
func (s *Storage) Purge() error {
	for _, l := range s.layers {
		if err := l.Purge(); err != nil {
			s.log.Warn("storage: layer rejected purge", "url", l.URL(), "error", err)
		}
	}
	return nil
}

// Unlink applies Unlink to every layer, ignoring individual failures.
func (s *Storage) Unlink() error {
	for _, l := range s.layers {
		if err := l.Unlink(); err != nil {
			s.log.Warn("storage: layer rejected unlink", "url", l.URL(), "error", err)
		}
	}
	return nil
}

// Close releases every layer's resources without removing backing stores.
func (s *Storage) Close() error {
	var first error
	for _, l := range s.layers {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
