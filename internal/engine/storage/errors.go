package storage

import "errors"

// Errors returned by storage operations.
var (
	// ErrLineOutOfRange indicates a line index outside the storage.
	ErrLineOutOfRange = errors.New("line out of range")

	// ErrColumnOutOfRange indicates a column past the end of its line.
	ErrColumnOutOfRange = errors.New("column out of range")

	// ErrRangeInvalid indicates a range whose start is after its end.
	ErrRangeInvalid = errors.New("invalid range")

	// ErrEncodingNotPermitted indicates an encoding the backend cannot hold.
	ErrEncodingNotPermitted = errors.New("encoding not permitted by storage backend")

	// ErrUnknownEncoding indicates an encoding name that cannot be resolved.
	ErrUnknownEncoding = errors.New("unknown encoding")

	// ErrUnknownBackend indicates a backend kind that does not exist.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrNotPreserving indicates a request to keep original line endings on a
	// backend that does not record them.
	ErrNotPreserving = errors.New("storage backend does not preserve line endings")
)

// Programming defects. These are raised by panicking with a wrapped error,
// in every build.
var (
	// ErrBackendMismatch indicates a storage or line of one backend handed
	// to an operation that requires another.
	ErrBackendMismatch = errors.New("storage backend mismatch")

	// ErrTaken indicates use of a storage whose contents were moved away by
	// Factory.Take.
	ErrTaken = errors.New("storage contents were taken")

	// ErrProtect indicates a failure of in-memory protection. Plaintext is
	// wiped before it is raised.
	ErrProtect = errors.New("memory protection failure")
)
