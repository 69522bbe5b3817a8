// Package memory implements the storage adapter in process memory. Nothing
// survives Close; it serves tests and throwaway servers.
package memory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/h2kv/h2kv"
)

var errClosed = errors.New("memory: database is closed")

// Database is a map guarded by a read-write mutex.
type Database struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New returns an empty database.
func New() *Database {
	return &Database{data: make(map[string][]byte)}
}

func (d *Database) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return errClosed
	}
	return ctx.Err()
}

func (d *Database) Migrate(ctx context.Context) error  { return d.Ping(ctx) }
func (d *Database) Validate(ctx context.Context) error { return d.Ping(ctx) }
func (d *Database) Compact(ctx context.Context) error  { return d.Ping(ctx) }

// Close drops all data.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.data = nil
	return nil
}

func (d *Database) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, errClosed
	}

	v, ok := d.data[string(key)]
	if !ok {
		return nil, h2kv.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (d *Database) Put(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v := make([]byte, len(value))
	copy(v, value)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}
	d.data[string(key)] = v
	return nil
}

func (d *Database) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}
	delete(d.data, string(key))
	return nil
}

// Scan takes a snapshot of the matching entries, so fn may write to the
// database.
func (d *Database) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	type entry struct {
		key   string
		value []byte
	}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return errClosed
	}
	p := string(prefix)
	var entries []entry
	for k, v := range d.data {
		if strings.HasPrefix(k, p) {
			entries = append(entries, entry{key: k, value: v})
		}
	}
	d.mu.RUnlock()

	slices.SortFunc(entries, func(a, b entry) int {
		return strings.Compare(a.key, b.key)
	})

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn([]byte(e.key), e.value); err != nil {
			return err
		}
	}
	return nil
}
