// Package badger implements the storage adapter on an embedded BadgerDB.
//
// It is the default engine: no external service is needed and the data
// directory is the only state.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/h2kv/h2kv"
)

// versionKey lives outside the record and marker prefixes.
var versionKey = []byte("h2kv/version")

const schemaVersion = "1"

// gcDiscardRatio is the share of stale data a value log file needs before
// Compact rewrites it.
const gcDiscardRatio = 0.5

// Database is a BadgerDB key-value store.
type Database struct {
	db   *badger.DB
	path string
}

// Connect opens the BadgerDB at path. An empty path opens an in-memory
// database that is lost on Close.
func Connect(ctx context.Context, path string, logger *slog.Logger) (*Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("connect badger: %w", err)
	}

	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)
	if logger != nil {
		opts = opts.WithLogger(&slogAdapter{logger: logger.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("connect badger %s: %w", path, err)
	}

	return &Database{db: db, path: path}, nil
}

// Ping reports whether the database is still open.
func (d *Database) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.db.IsClosed() {
		return errors.New("badger: database is closed")
	}
	return nil
}

// Migrate records the layout version in a fresh database.
func (d *Database) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return d.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(versionKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("migrate: %w", err)
		}
		if err := txn.Set(versionKey, []byte(schemaVersion)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		return nil
	})
}

// Validate checks that the database carries a layout version this build
// understands.
func (d *Database) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	var version string
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(versionKey)
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		version = string(v)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errors.New("validate: database is not initialized")
	}
	if err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("validate: unsupported layout version %q, expected %q", version, schemaVersion)
	}
	return nil
}

// Compact runs value log garbage collection until nothing is left to
// rewrite.
func (d *Database) Compact(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("compact: %w", err)
		}

		err := d.db.RunValueLogGC(gcDiscardRatio)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrGCInMemoryMode):
			return nil
		default:
			return fmt.Errorf("compact: %w", err)
		}
	}
}

// Close closes the database.
func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	var value []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, h2kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (d *Database) Put(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put: %w", err)
	}

	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}

func (d *Database) Delete(ctx context.Context, key []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (d *Database) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	var fnErr error

	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			if bytes.Equal(item.Key(), versionKey) {
				continue
			}

			err := item.Value(func(val []byte) error {
				if err := fn(item.Key(), val); err != nil {
					fnErr = err
					return err
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}
