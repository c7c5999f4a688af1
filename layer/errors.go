package layer

import "errors"

// Sentinel errors shared by every Layer implementation and by Storage,
// matching the error kinds in spec.md §7.
var (
	// ErrInvalidArgument is raised by constructors when a value lies
	// outside its declared domain.
	ErrInvalidArgument = errors.New("layer: invalid argument")
	// ErrInvalidEncoding is raised by decoders on length, magic, version,
	// or checksum mismatches.
	ErrInvalidEncoding = errors.New("layer: invalid encoding")
	// ErrDuplicateKey is raised by Insert without force when the key
	// already exists in the layer.
	ErrDuplicateKey = errors.New("layer: duplicate key")
	// ErrThreshold is raised by Insert of a new key on a full layer.
	ErrThreshold = errors.New("layer: threshold exceeded")
	// ErrUnsupported is raised for operations a layer variant does not
	// implement (AOLFileLayer's Purge, based-Iterate).
	ErrUnsupported = errors.New("layer: unsupported operation")
	// ErrNotFound is raised by the registry when Open names an
	// unregistered scheme.
	ErrNotFound = errors.New("layer: no such layer scheme")
	// ErrIOError wraps propagated filesystem errors.
	ErrIOError = errors.New("layer: io error")
)
