// Package sqlite implements the storage adapter on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/database/internal"

	_ "modernc.org/sqlite" // SQLite driver
)

// Database is a key-value table in a SQLite database.
type Database struct {
	db    *sql.DB
	table string
}

// Connect opens a SQLite database. The table is created by Migrate.
func Connect(ctx context.Context, dsn, table string) (*Database, error) {
	if err := internal.ValidateTableName(table); err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and an in-memory
	// database only exists on the connection that created it.
	db.SetMaxOpenConns(1)

	return &Database{
		db:    db,
		table: table,
	}, nil
}

// Ping verifies the database connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Migrate runs database migrations to create required tables.
func (d *Database) Migrate(ctx context.Context) error {
	if err := Migrate(ctx, d.db, d.table); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Validate checks that the database schema matches expected structure.
func (d *Database) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db, d.table)
}

// Compact rebuilds the database file, reclaiming space left by deletes.
func (d *Database) Compact(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Get(ctx context.Context, key []byte) ([]byte, error) {
	query := fmt.Sprintf(`SELECT v FROM %s WHERE k = ?`, quoteIdentifier(d.table)) //nolint:gosec // G201: table name is validated

	var v []byte
	err := d.db.QueryRowContext(ctx, query, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, h2kv.ErrNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}
	return v, nil
}

func (d *Database) Put(ctx context.Context, key, value []byte) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (k, v) VALUES (?, ?)
		ON CONFLICT (k) DO UPDATE SET v = excluded.v`, quoteIdentifier(d.table))

	if _, err := d.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}

func (d *Database) Delete(ctx context.Context, key []byte) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE k = ?`, quoteIdentifier(d.table)) //nolint:gosec // G201: table name is validated

	if _, err := d.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Scan reads the matching rows before calling fn, so fn may use the
// database itself.
func (d *Database) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	rows, err := d.scanRows(ctx, prefix)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := fn(row.Key, row.Value); err != nil {
			return err
		}
	}
	return nil
}

func (d *Database) scanRows(ctx context.Context, prefix []byte) ([]internal.Row, error) {
	table := quoteIdentifier(d.table)

	var query string
	var args []any

	end := internal.PrefixEnd(prefix)
	if end == nil {
		query = fmt.Sprintf(`SELECT k, v FROM %s WHERE k >= ? ORDER BY k`, table) //nolint:gosec // G201: table name is validated
		args = []any{prefix}
	} else {
		query = fmt.Sprintf(`SELECT k, v FROM %s WHERE k >= ? AND k < ? ORDER BY k`, table) //nolint:gosec // G201: table name is validated
		args = []any{prefix, end}
	}
	if prefix == nil {
		args[0] = []byte{}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []internal.Row
	for rows.Next() {
		var row internal.Row
		if err := rows.Scan(&row.Key, &row.Value); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan: rows error: %w", err)
	}

	return out, nil
}
