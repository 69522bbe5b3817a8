package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/database/badger"
	"github.com/h2kv/h2kv/database/memory"
	"github.com/h2kv/h2kv/database/postgres"
	"github.com/h2kv/h2kv/database/sqlite"
)

// Supported engines.
const (
	EngineBadger   = "badger"
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

// Engines lists the accepted values of Config.Engine.
var Engines = []string{EngineBadger, EngineSQLite, EnginePostgres, EngineMemory}

// Config holds the configuration for connecting to a storage engine.
type Config struct {
	// Engine is one of Engines. Empty means badger.
	Engine string
	// Path is the badger data directory. Empty opens badger in memory.
	Path string
	// DSN is the data source name of the SQL engines.
	DSN string
	// Table is the key-value table of the SQL engines.
	Table string
	// Logger receives engine logs. Nil discards them.
	Logger *slog.Logger
}

// Database is a storage engine: the key-value adapter plus its lifecycle.
type Database interface {
	h2kv.KV

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Validate(ctx context.Context) error
	Compact(ctx context.Context) error
	Close() error
}

// Connect opens the configured engine without touching its schema.
func Connect(ctx context.Context, cfg Config) (Database, error) {
	switch cfg.Engine {
	case EngineBadger, "":
		return badger.Connect(ctx, cfg.Path, cfg.Logger)
	case EngineSQLite:
		return sqlite.Connect(ctx, cfg.DSN, cfg.Table)
	case EnginePostgres:
		return postgres.Connect(ctx, cfg.DSN, cfg.Table)
	case EngineMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database engine: %s", cfg.Engine)
	}
}

// Open connects to the configured engine, verifies the connection, runs
// migrations and validates the schema. The returned Database is ready for
// use and must be closed by the caller.
func Open(ctx context.Context, cfg Config) (Database, error) {
	db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", engineName(cfg), err)
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate %s: %w", engineName(cfg), err)
	}

	if err := db.Validate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("validate %s schema: %w", engineName(cfg), err)
	}

	return db, nil
}

func engineName(cfg Config) string {
	if cfg.Engine == "" {
		return EngineBadger
	}
	return cfg.Engine
}
