package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the key-value table if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string) error {
	if err := createKVTable(ctx, pool, table); err != nil {
		return fmt.Errorf("migrate up %s: %w", table, err)
	}
	return nil
}

func createKVTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			k BYTEA PRIMARY KEY,
			v BYTEA NOT NULL
		);
	`, quotedTable)

	_, err := pool.Exec(ctx, sql)
	if err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}
