package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/h2kv/h2kv/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "h2kv",
	Short:   "HTTP/2 key-value store with content negotiation",
	Long: `h2kv stores resources under URL-shaped keys and serves them over
HTTP/1.1 and HTTP/2, picking among the stored representations of a key
with the Accept header. A directory can be kept in sync with the store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFiles, _ := cmd.Flags().GetStringSlice("config")

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg.Log)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringSlice("config", nil, "config file path, repeat to merge several (default: ./config.yaml)")
	flags.String("engine", "", "storage engine: badger, sqlite, postgres, memory (env: H2KV_STORAGE_ENGINE)")
	flags.String("data", "", "badger data directory (env: H2KV_STORAGE_PATH)")
	flags.String("dsn", "", "sqlite or postgres connection string (env: H2KV_STORAGE_DSN)")
	flags.String("sync-dir", "", "directory kept in sync with the store (env: H2KV_SYNC_DIR)")
	flags.String("ignore", "", "space separated ignore patterns (env: H2KV_IGNORE)")
	flags.Bool("skip-hidden", true, "skip hidden and editor backup files while syncing (--skip-hidden=false to sync them)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
