package layer

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/papyrusdb/papyrus/data"
	"github.com/papyrusdb/papyrus/uid"
)

// Constructor builds a Layer for a parsed URL. threshold is nil unless
// OpenOptions explicitly set one (by WithThreshold, independent of any
// "threshold" query parameter the constructor may also honor itself).
type Constructor func(u *url.URL, threshold *int) (Layer, error)

// OpenOptions configures Open. Open starts from no explicit threshold
// override and Cached true (not the struct's zero value, whose Cached is
// false), matching spec.md §4.5's default of memoizing opened layers by URL.
type OpenOptions struct {
	Threshold *int
	Cached    bool
}

// Option mutates OpenOptions.
type Option func(*OpenOptions)

// WithThreshold overrides the layer-class default capacity threshold.
func WithThreshold(n int) Option {
	return func(o *OpenOptions) { o.Threshold = &n }
}

// WithCached controls whether Open consults/populates the process-wide
// cache. Default true.
func WithCached(cached bool) Option {
	return func(o *OpenOptions) { o.Cached = cached }
}

var registry = struct {
	mu    sync.Mutex
	ctors map[string]Constructor
	cache map[string]Layer
}{
	ctors: make(map[string]Constructor),
	cache: make(map[string]Layer),
}

// Register binds scheme to ctor. Layer implementations call this
// explicitly from a package-level Register function (see layer/mem and
// layer/aol) rather than relying on import-time side effects, per
// spec.md §9's "avoid runtime class discovery" guidance.
func Register(scheme string, ctor Constructor) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.ctors[scheme] = ctor
}

// Open resolves rawURL's scheme against the registry and returns a Layer,
// either a cached instance keyed by the literal URL string or a freshly
// constructed one.
func Open(rawURL string, opts ...Option) (Layer, error) {
	o := OpenOptions{Cached: true}
	for _, opt := range opts {
		opt(&o)
	}

	if o.Cached {
		registry.mu.Lock()
		if l, ok := registry.cache[rawURL]; ok {
			registry.mu.Unlock()
			return l, nil
		}
		registry.mu.Unlock()
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	registry.mu.Lock()
	ctor, ok := registry.ctors[u.Scheme]
	registry.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: scheme %q", ErrNotFound, u.Scheme)
	}

	l, err := ctor(u, o.Threshold)
	if err != nil {
		return nil, err
	}

	if o.Cached {
		registry.mu.Lock()
		registry.cache[rawURL] = l
		registry.mu.Unlock()
	}

	return l, nil
}

// CacheClear evicts rawURL from the cache, or the entire cache when
// rawURL is empty.
func CacheClear(rawURL string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if rawURL == "" {
		registry.cache = make(map[string]Layer)
		return
	}
	delete(registry.cache, rawURL)
}

// ForceInserter is implemented by Layer variants (AOLFileLayer) that
// distinguish a plain Insert from a forced update of an existing key.
// Layers without duplicate-key detection (MemLayer) need not implement
// it; Storage falls back to Insert when a layer doesn't.
type ForceInserter interface {
	InsertForce(d data.Data) (uid.UniqueID, error)
}
