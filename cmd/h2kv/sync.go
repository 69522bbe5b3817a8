package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/h2kv/h2kv/config"
	"github.com/h2kv/h2kv/metrics"
	"github.com/h2kv/h2kv/syncdir"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the sync directory with the store once",
	Long: `Run one offline sync cycle against the sync directory: import new and
changed files, then, with --write-back, export records changed over HTTP.
The server must not be running on the same directory.

Examples:
  # Import ./site into the default badger store
  h2kv sync --sync-dir ./site

  # Show what a sync would do
  h2kv sync --sync-dir ./site --dry-run`,
	RunE: runSyncOnce,
}

var syncDryRun bool

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "print the classification of every file and change nothing")
	syncCmd.Flags().Bool("write-back", false, "export records changed over HTTP")
	rootCmd.AddCommand(syncCmd)
}

func runSyncOnce(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	if !cfg.Sync.Enabled() {
		return fmt.Errorf("no sync directory configured (use --sync-dir or H2KV_SYNC_DIR)")
	}

	ctx := cmd.Context()

	db, store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	session, err := openSync(cfg, store, metrics.NewSyncMetrics(nil), cfg.Sync.WriteBack)
	if err != nil {
		return err
	}
	defer session.Close()

	if syncDryRun {
		plan, err := session.engine.Diff(ctx)
		if err != nil {
			return err
		}
		for _, it := range plan.Items {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-22s %s\n", it.Class, it.Path)
		}
		return nil
	}

	var report syncdir.Report
	if session.engine.WriteBack() {
		report, err = session.engine.Sync(ctx)
	} else {
		report, err = session.engine.Import(ctx)
	}
	if err != nil {
		return err
	}

	slog.Info("sync complete", "report", report)
	return nil
}
