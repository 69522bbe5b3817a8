// Package database connects to the storage engines behind h2kv.KV.
//
// Every engine stores opaque byte values under byte keys and scans them in
// ascending key order. The store layer above decides what the keys mean.
//
// # Supported Engines
//
//   - badger: embedded BadgerDB, the default; an empty path keeps it in memory
//   - sqlite: a single key-value table through modernc.org/sqlite
//   - postgres: a single bytea key-value table through a pgx pool
//   - memory: an in-process map for tests and throwaway servers
//
// # Usage
//
//	cfg := database.Config{
//	    Engine: "sqlite",
//	    DSN:    "h2kv.db",
//	    Table:  "h2kv_kv",
//	}
//
//	db, err := database.Open(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	store, err := h2kv.NewStore(db, h2kv.StoreConfig{})
//
// Open connects, pings, runs migrations and validates the schema. Connect
// only opens the engine, which is what the compact command needs.
package database
