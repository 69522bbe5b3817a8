// Package postgres implements the storage adapter on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/database/internal"
)

// Database is a key-value table in a PostgreSQL database.
type Database struct {
	pool  *pgxpool.Pool
	table string
}

// Connect establishes a connection pool to PostgreSQL. The table is created
// by Migrate.
func Connect(ctx context.Context, dsn, table string) (*Database, error) {
	if err := internal.ValidateTableName(table); err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Database{
		pool:  pool,
		table: table,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *Database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.pool, d.table); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *Database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.pool, d.table)
}

// Compact reclaims space held by dead rows of the table.
func (d *Database) Compact(ctx context.Context) error {
	sql := fmt.Sprintf("VACUUM %s", pgx.Identifier{d.table}.Sanitize())
	if _, err := d.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (d *Database) Close() error {
	d.pool.Close()
	return nil
}

func (d *Database) Get(ctx context.Context, key []byte) ([]byte, error) {
	query := fmt.Sprintf(`SELECT v FROM %s WHERE k = $1`, pgx.Identifier{d.table}.Sanitize())

	var v []byte
	err := d.pool.QueryRow(ctx, query, key).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, h2kv.ErrNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}
	if v == nil {
		v = []byte{}
	}
	return v, nil
}

func (d *Database) Put(ctx context.Context, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (k, v)
		VALUES ($1, $2)
		ON CONFLICT (k) DO UPDATE
		SET v = EXCLUDED.v
	`, pgx.Identifier{d.table}.Sanitize())

	if _, err := d.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}

func (d *Database) Delete(ctx context.Context, key []byte) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE k = $1`, pgx.Identifier{d.table}.Sanitize())

	if _, err := d.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Scan reads the matching rows before calling fn, so fn may use the
// database itself.
func (d *Database) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	table := pgx.Identifier{d.table}.Sanitize()
	if prefix == nil {
		prefix = []byte{}
	}

	var query string
	var args []any

	end := internal.PrefixEnd(prefix)
	if end == nil {
		query = fmt.Sprintf(`SELECT k, v FROM %s WHERE k >= $1 ORDER BY k`, table)
		args = []any{prefix}
	} else {
		query = fmt.Sprintf(`SELECT k, v FROM %s WHERE k >= $1 AND k < $2 ORDER BY k`, table)
		args = []any{prefix, end}
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	collected, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (internal.Row, error) {
		var r internal.Row
		err := row.Scan(&r.Key, &r.Value)
		return r, err
	})
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	for _, r := range collected {
		if err := fn(r.Key, r.Value); err != nil {
			return err
		}
	}
	return nil
}
