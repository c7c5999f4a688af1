// Package layer defines the Layer storage-engine contract shared by
// layer/mem and layer/aol, plus the URL-addressable registry that opens
// them: scheme://authority/path?query selects a registered constructor,
// mirroring the teacher's segmentmanager/SegmentManager capability-set
// interface one level up.
package layer

import (
	"iter"

	"github.com/papyrusdb/papyrus/data"
	"github.com/papyrusdb/papyrus/key"
	"github.com/papyrusdb/papyrus/uid"
	"github.com/papyrusdb/papyrus/value"
)

// Layer is the operation contract every storage engine variant
// implements: point insert/delete/lookup, revision history, tag search,
// and lifecycle (purge, unlink). All operations are synchronous; see
// spec.md §5 for the concurrency contract.
type Layer interface {
	// URL returns the address this layer was opened from.
	URL() string

	// Insert appends a new revision and returns its UniqueID. It fails
	// ErrThreshold when the layer is full and primaryKey is not already
	// present.
	Insert(d data.Data) (uid.UniqueID, error)

	// Delete appends a tombstone revision for k and returns its
	// UniqueID, even if k was never present.
	Delete(k key.Key) (uid.UniqueID, error)

	// Latest returns the most recent non-tombstone revision of k, or
	// ok=false if k is absent or its last revision is a tombstone.
	Latest(k key.Key) (d data.Data, ok bool, err error)

	// Revisions returns every revision of k, newest first, including
	// tombstones. A key with no revisions yields an empty result and a
	// nil error.
	Revisions(k key.Key) ([]data.Data, error)

	// Search returns the primary keys whose latest non-tombstone
	// revision carries tags[name] == kval.
	Search(name string, kval key.Key) (map[key.Key]struct{}, error)

	// Raw looks up a single revision by its UniqueID, for diagnostics.
	Raw(id uid.UniqueID) (d data.Data, ok bool, err error)

	// Contains reports whether k has a live (non-tombstone) revision.
	Contains(k key.Key) (bool, error)

	// Len returns the count of live keys.
	Len() (int, error)

	// Cap returns the total row count, including tombstones.
	Cap() (int, error)

	// IsFull reports whether Cap() has reached a configured threshold.
	IsFull() (bool, error)

	// Iterate scans (Key, Value) pairs in key order (descending if desc),
	// optionally resuming after a given key. AOLFileLayer returns
	// ErrUnsupported when based is non-nil.
	Iterate(desc bool, based *key.Key) (iter.Seq2[key.Key, value.Value], error)

	// Purge drops tombstoned revisions and the rows they shadow.
	// AOLFileLayer always returns ErrUnsupported.
	Purge() error

	// Unlink releases the layer's resources and removes its backing
	// store, if any.
	Unlink() error

	// Close releases resources (e.g. an open file descriptor) without
	// removing the backing store.
	Close() error
}
