package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/database"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(t *testing.T) database.Config
	}{
		{
			name: "default engine",
			cfg: func(t *testing.T) database.Config {
				return database.Config{Path: t.TempDir()}
			},
		},
		{
			name: "badger in memory",
			cfg: func(t *testing.T) database.Config {
				return database.Config{Engine: database.EngineBadger}
			},
		},
		{
			name: "sqlite",
			cfg: func(t *testing.T) database.Config {
				return database.Config{
					Engine: database.EngineSQLite,
					DSN:    filepath.Join(t.TempDir(), "h2kv.db"),
					Table:  "h2kv_kv",
				}
			},
		},
		{
			name: "memory",
			cfg: func(t *testing.T) database.Config {
				return database.Config{Engine: database.EngineMemory}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			db, err := database.Open(ctx, tt.cfg(t))
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			require.NoError(t, db.Put(ctx, []byte("o/a\x00txt"), []byte("hello")))
			v, err := db.Get(ctx, []byte("o/a\x00txt"))
			require.NoError(t, err)
			assert.Equal(t, []byte("hello"), v)

			assert.NoError(t, db.Compact(ctx))
		})
	}
}

func TestOpen_StoreRoundTrip(t *testing.T) {
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Engine: database.EngineMemory})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store, err := h2kv.NewStore(db, h2kv.StoreConfig{})
	require.NoError(t, err)
	_, err = store.Put(ctx, h2kv.WriteRequest{
		Key:            "docs/readme",
		Representation: h2kv.Representation{Ext: "md", MediaType: "text/markdown"},
		Content:        []byte("hello"),
	})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "docs/readme", "md")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(rec.Content))
}

func TestConnect_UnsupportedEngine(t *testing.T) {
	_, err := database.Connect(context.Background(), database.Config{Engine: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database engine")
}

func TestOpen_InvalidTable(t *testing.T) {
	_, err := database.Open(context.Background(), database.Config{
		Engine: database.EngineSQLite,
		DSN:    ":memory:",
		Table:  "bad-table",
	})
	assert.Error(t, err)
}
