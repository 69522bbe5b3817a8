package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/h2kv/h2kv/config"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Reclaim space in the storage engine",
	Long: `Run the storage engine's compaction: value log garbage collection for
badger, VACUUM for sqlite and postgres. The memory engine has nothing to
compact.

Run this periodically on stores with many overwrites or deletions.`,
	RunE: runCompact,
}

func init() {
	rootCmd.AddCommand(compactCmd)
}

func runCompact(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	db, _, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	slog.Info("starting compaction", "engine", cfg.Storage.Engine)
	start := time.Now()

	if err := db.Compact(ctx); err != nil {
		return fmt.Errorf("compact: %w", err)
	}

	slog.Info("compaction complete", "duration", time.Since(start))
	return nil
}
