package h2kv

import "errors"

var (
	// ErrInvalidPath is returned when a request or file path cannot be mapped to a storage key
	ErrInvalidPath = errors.New("invalid path")
	// ErrNotFound is returned when a key or representation does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotAcceptable is returned when no representation satisfies the request
	ErrNotAcceptable = errors.New("not acceptable")
	// ErrAmbiguousRepresentation is returned when an untyped PUT cannot pick a representation
	ErrAmbiguousRepresentation = errors.New("ambiguous representation")
	// ErrUnsupportedMediaType is returned when a Content-Type header cannot be parsed
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrPreconditionFailed is returned when a conditional write does not match the stored record
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrStorageUnavailable is returned when the storage adapter fails
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrFileIO is returned for per-file failures while syncing a directory
	ErrFileIO = errors.New("file i/o error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)
