package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/config"
)

var removeCmd = &cobra.Command{
	Use:   "remove [flags] <path1> [path2] ...",
	Short: "Remove keys from the store",
	Long: `Remove records from the store.

A path with an extension removes that representation only; a path without
one removes every representation of the key. Files in a sync directory are
removed by the next sync with write-back.

Examples:
  # Remove the markdown representation of docs/readme
  h2kv remove docs/readme.md

  # Remove every representation of docs/readme
  h2kv remove docs/readme

  # Remove everything below a prefix
  h2kv remove --prefix images/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var (
	removePrefix bool
	removeQuiet  bool
)

func init() {
	removeCmd.Flags().BoolVarP(&removePrefix, "prefix", "p", false, "treat paths as key prefixes and remove every matching record")
	removeCmd.Flags().BoolVarP(&removeQuiet, "quiet", "q", false, "suppress per-file output")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	db, store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	service := h2kv.NewService(store)

	removed := 0
	notFound := 0

	for _, path := range args {
		if removePrefix {
			count, prefixErr := removeByPrefix(ctx, store, path)
			if prefixErr != nil {
				return prefixErr
			}
			removed += count
			continue
		}

		key, rep, decodeErr := h2kv.DecodeRelativePath(path)
		if decodeErr != nil {
			return fmt.Errorf("remove %s: %w", path, decodeErr)
		}

		metas, deleteErr := service.Delete(ctx, h2kv.EscapePath(key, rep.Ext))
		if errors.Is(deleteErr, h2kv.ErrNotFound) {
			notFound++
			if !removeQuiet {
				slog.Warn("not found", "path", path)
			}
			continue
		}
		if deleteErr != nil {
			return fmt.Errorf("remove %s: %w", path, deleteErr)
		}

		removed += len(metas)
		if !removeQuiet {
			for _, m := range metas {
				slog.Info("removed", "path", m.Path())
			}
		}
	}

	slog.Info("remove complete", "removed", removed, "not_found", notFound)
	return nil
}

// removeByPrefix removes all records whose key starts with prefix.
func removeByPrefix(ctx context.Context, store *h2kv.Store, prefix string) (int, error) {
	removed := 0
	cursor := ""

	for {
		result, listErr := store.List(ctx, h2kv.ListQuery{
			Prefix: prefix,
			Limit:  100,
			Cursor: cursor,
		})
		if listErr != nil {
			return removed, fmt.Errorf("list prefix %s: %w", prefix, listErr)
		}

		for _, item := range result.Items {
			deleteErr := store.Delete(ctx, item.Key, item.Ext)
			if errors.Is(deleteErr, h2kv.ErrNotFound) {
				continue
			}
			if deleteErr != nil {
				return removed, fmt.Errorf("remove %s: %w", item.Path(), deleteErr)
			}
			removed++
			if !removeQuiet {
				slog.Info("removed", "path", item.Path())
			}
		}

		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	return removed, nil
}
