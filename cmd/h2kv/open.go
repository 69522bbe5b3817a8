package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/config"
	"github.com/h2kv/h2kv/database"
	"github.com/h2kv/h2kv/filesystem"
	"github.com/h2kv/h2kv/metrics"
	"github.com/h2kv/h2kv/syncdir"
)

// openStore opens the configured engine and the object store on top of it.
func openStore(ctx context.Context, cfg *config.Config) (database.Database, *h2kv.Store, error) {
	if cfg.Storage.Engine == database.EngineBadger && cfg.Storage.Path != "" {
		if err := os.MkdirAll(cfg.Storage.Path, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := database.Open(ctx, cfg.Storage.Database(slog.Default().With("component", "storage")))
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	store, err := h2kv.NewStore(db, cfg.Storage.Store())
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	slog.Info("opened storage", "engine", cfg.Storage.Engine)
	return db, store, nil
}

// syncSession is a locked sync directory with an engine over it.
type syncSession struct {
	engine *syncdir.Engine
	lock   *syncdir.Lock
	root   *os.Root
}

// openSync locks the configured sync directory and creates its engine.
func openSync(cfg *config.Config, store *h2kv.Store, m metrics.SyncMetrics, writeBack bool) (*syncSession, error) {
	filter, err := cfg.Sync.Filter()
	if err != nil {
		return nil, fmt.Errorf("compile ignore patterns: %w", err)
	}

	lock, err := syncdir.AcquireLock(cfg.Sync.Dir)
	if err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(cfg.Sync.Dir)
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("open sync directory: %w", err)
	}

	engine := syncdir.New(store, filesystem.NewFileStorage(root), syncdir.Config{
		WriteBack: writeBack,
		Filter:    filter,
		Metrics:   m,
		Logger:    slog.Default(),
	})

	return &syncSession{engine: engine, lock: lock, root: root}, nil
}

func (s *syncSession) Close() {
	_ = s.root.Close()
	if err := s.lock.Release(); err != nil {
		slog.Warn("failed to release sync lock", "err", err)
	}
}
