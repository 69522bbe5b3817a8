// Package config provides configuration loading and validation for h2kv.
//
// The package handles YAML configuration files, environment variables, and CLI flags
// with automatic merging and validation using go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (H2KV_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
// # Environment Variables
//
// All config keys map to environment variables with H2KV_ prefix:
//   - server.port → H2KV_SERVER_PORT
//   - storage.engine → H2KV_STORAGE_ENGINE
//   - sync.dir → H2KV_SYNC_DIR
//
// H2KV_IGNORE is accepted as an alias of H2KV_SYNC_IGNORE.
//
// # Configuration Structure
//
// The Config struct contains:
//   - Server: listen address, upload limit, TLS certificate, shutdown timeout
//   - Storage: engine (badger, sqlite, postgres, memory), path, DSN, table, cache size
//   - Sync: directory, write-back, ignore patterns, hidden files, watching
//   - CORS: cross-origin resource sharing settings
//   - Metrics: Prometheus endpoint
//   - Log: level and format
//
// # Validation
//
// Struct tags cover single fields; Load additionally checks that SQL engines
// have a DSN, that write-back and watching have a sync directory, that the
// directory exists and that the ignore patterns compile.
package config
