// Package data implements Data, the (primary_key, value?, tags,
// is_deleted) tuple that every Papyrus revision carries.
package data

import (
	"errors"
	"fmt"

	"github.com/papyrusdb/papyrus/key"
	"github.com/papyrusdb/papyrus/value"
)

// ErrInvalidArgument is returned when constructing a Data tuple that
// violates the tombstone invariant.
var ErrInvalidArgument = errors.New("data: invalid argument")

// Data is an immutable (primary_key, value, tags, is_deleted) tuple. A
// tombstone has IsDeleted true and Value().Type() == value.DEL; tags is a
// secondary, named Key-to-Key index consulted by Layer.Search.
type Data struct {
	primaryKey key.Key
	val        value.Value
	tags       map[string]key.Key
	isDeleted  bool
}

// New constructs a live (non-tombstone) Data record. tags may be nil,
// which is treated as empty. v must not be a tombstone value; use
// NewTombstone for deletions.
func New(primaryKey key.Key, v value.Value, tags map[string]key.Key) (Data, error) {
	if v.Type() == value.DEL {
		return Data{}, fmt.Errorf("%w: use NewTombstone to construct a deleted record", ErrInvalidArgument)
	}
	return Data{
		primaryKey: primaryKey,
		val:        v,
		tags:       copyTags(tags),
		isDeleted:  false,
	}, nil
}

// NewTombstone constructs a deletion record for primaryKey: IsDeleted is
// true and Value() is the DEL sentinel with no payload and no tags.
func NewTombstone(primaryKey key.Key) Data {
	return Data{
		primaryKey: primaryKey,
		val:        value.NewTombstone(),
		isDeleted:  true,
	}
}

func copyTags(tags map[string]key.Key) map[string]key.Key {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]key.Key, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// PrimaryKey returns d's logical row identifier.
func (d Data) PrimaryKey() key.Key { return d.primaryKey }

// Value returns d's payload. For a tombstone this is value.NewTombstone().
func (d Data) Value() value.Value { return d.val }

// IsDeleted reports whether d is a tombstone revision.
func (d Data) IsDeleted() bool { return d.isDeleted }

// Tag returns the Key bound to name in d's secondary index, if any.
func (d Data) Tag(name string) (key.Key, bool) {
	k, ok := d.tags[name]
	return k, ok
}

// Tags returns a defensive copy of d's secondary index.
func (d Data) Tags() map[string]key.Key {
	return copyTags(d.tags)
}

// Equal compares two Data tuples by primary key (widened per key.Equal),
// value, tombstone flag, and tag set.
func Equal(a, b Data) bool {
	if !key.Equal(a.primaryKey, b.primaryKey) {
		return false
	}
	if a.isDeleted != b.isDeleted {
		return false
	}
	if !value.Equal(a.val, b.val) {
		return false
	}
	if len(a.tags) != len(b.tags) {
		return false
	}
	for name, k := range a.tags {
		bk, present := b.tags[name]
		if !present || !key.Equal(k, bk) {
			return false
		}
	}
	return true
}
