package h2kv

import "context"

// KV is the storage adapter every component shares. Implementations must be
// safe for concurrent use.
//
// All methods accept a context for cancellation. Errors other than
// ErrNotFound are treated as the storage engine being unavailable.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Scan calls fn for every key starting with prefix, in ascending byte
	// order. Returning an error from fn stops the scan and is returned as is.
	// The slices passed to fn are only valid for the duration of the call.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
}
