package e2e_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	pgOnce    sync.Once
	pgErr     error
	pgDSN     string
	pgCleanup func()
)

// getSharedPostgresDatabase returns the DSN of a PostgreSQL container shared
// by every test in the run. The container is terminated by TestMain.
func getSharedPostgresDatabase(t *testing.T) string {
	t.Helper()

	pgOnce.Do(func() {
		pgDSN, pgCleanup, pgErr = startPostgres(context.Background())
	})
	if pgErr != nil {
		t.Fatalf("postgres: %v", pgErr)
	}

	return pgDSN
}

func startPostgres(ctx context.Context) (string, func(), error) {
	pgContainer, err := pgcontainer.Run(ctx,
		"postgres:18-alpine",
		pgcontainer.WithDatabase("h2kv"),
		pgcontainer.WithUsername("h2kv"),
		pgcontainer.WithPassword("h2kv"),
		pgcontainer.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, err
	}

	cleanup := func() {
		_ = testcontainers.TerminateContainer(pgContainer)
	}

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		cleanup()
		return "", nil, err
	}

	// The server connects on its own; make sure the database accepts
	// connections before handing out the DSN.
	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(pingCtx, dsn)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	defer pool.Close()

	if err := pool.Ping(pingCtx); err != nil {
		cleanup()
		return "", nil, err
	}

	return dsn, cleanup, nil
}

// stopPostgres terminates the shared container if one was started.
func stopPostgres() {
	if pgCleanup != nil {
		pgCleanup()
	}
}
