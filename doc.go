// Package h2kv exposes an ordered key-value store as an HTTP resource
// collection and keeps it reconciled with a directory tree.
//
// URL paths are storage keys. A key holds one or more representations, each
// identified by a file extension and carrying a media type, and reads select
// one of them through content negotiation.
//
// # Key Components
//
//   - KV: the storage adapter contract (Get, Put, Delete, ordered prefix Scan)
//   - Store: records, sync markers and per-key write serialization over a KV
//   - Service: HEAD/GET/PUT/DELETE semantics on top of a Store
//   - Codec: DecodeRequestPath, EncodeRelativePath and DecodeRelativePath
//   - Negotiate: Accept header and extension hint based variant selection
//
// # Example Usage
//
//	db, err := database.Open(ctx, database.Config{Engine: "badger", Path: "./data"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	store, err := h2kv.NewStore(db, h2kv.StoreConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	service := h2kv.NewService(store)
//
//	// Store an HTML representation of /docs/index
//	res, err := service.Put(ctx, h2kv.PutObject{Path: "/docs/index.html", Content: body})
//
//	// Read it back by negotiation
//	rec, err := service.Get(ctx, "/docs/index", "text/html")
//
// See the http package for the HTTP surface, the syncdir package for the
// filesystem sync engine and the database package for storage engines.
package h2kv
