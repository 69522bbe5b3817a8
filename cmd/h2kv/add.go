package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/config"
)

var addCmd = &cobra.Command{
	Use:   "add [flags] <file1> [file2] ...",
	Short: "Import files into the store",
	Long: `Import files from arbitrary paths into the store.

Every file is stored under the key and representation its destination
path maps to: "docs/readme.md" becomes key "docs/readme" with the text/markdown
representation.

Examples:
  # Add a single file
  h2kv add /path/to/file.txt

  # Add with a destination prefix
  h2kv add --dest images/ /path/to/photo.jpg

  # Add a directory recursively
  h2kv add -r /path/to/assets

  # Skip existing representations
  h2kv add --no-clobber /path/to/file.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

var (
	addDest      string
	addRecursive bool
	addNoClobber bool
	addQuiet     bool
)

func init() {
	addCmd.Flags().StringVarP(&addDest, "dest", "d", "", "destination path prefix in the store")
	addCmd.Flags().BoolVarP(&addRecursive, "recursive", "r", false, "recursively add directories")
	addCmd.Flags().BoolVarP(&addNoClobber, "no-clobber", "n", false, "skip existing representations instead of overwriting")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "suppress per-file output")
	rootCmd.AddCommand(addCmd)
}

// fileEntry represents a file to be added with its source and destination paths.
type fileEntry struct {
	sourcePath string
	destPath   string
}

func runAdd(cmd *cobra.Command, args []string) error {
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

	// Collect files from all arguments
	var files []fileEntry
	for _, arg := range args {
		entries, collectErr := collectFiles(arg, addRecursive, addDest)
		if collectErr != nil {
			return fmt.Errorf("collect files from %s: %w", arg, collectErr)
		}
		files = append(files, entries...)
	}

	if len(files) == 0 {
		slog.Info("no files to add")
		return nil
	}

	added := 0
	skipped := 0
	var total int64

	for _, entry := range files {
		key, rep, decodeErr := h2kv.DecodeRelativePath(entry.destPath)
		if decodeErr != nil {
			return fmt.Errorf("add %s: %w", entry.destPath, decodeErr)
		}

		info, statErr := os.Stat(entry.sourcePath)
		if statErr != nil {
			return fmt.Errorf("stat %s: %w", entry.sourcePath, statErr)
		}
		content, readErr := os.ReadFile(entry.sourcePath)
		if readErr != nil {
			return fmt.Errorf("read %s: %w", entry.sourcePath, readErr)
		}

		res, putErr := store.Put(ctx, h2kv.WriteRequest{
			Key:            key,
			Representation: rep,
			Content:        content,
			ModTime:        info.ModTime(),
			IfNoneMatch:    addNoClobber,
		})
		if addNoClobber && errors.Is(putErr, h2kv.ErrPreconditionFailed) {
			skipped++
			if !addQuiet {
				slog.Info("skipped (exists)", "path", entry.destPath)
			}
			continue
		}
		if putErr != nil {
			return fmt.Errorf("add %s: %w", entry.destPath, putErr)
		}

		added++
		total += res.Meta.Size
		if !addQuiet {
			slog.Info("added", "path", entry.destPath, "media_type", res.Meta.MediaType, "size", humanize.IBytes(uint64(res.Meta.Size)))
		}
	}

	slog.Info("add complete", "added", added, "skipped", skipped, "size", humanize.IBytes(uint64(total)))
	return nil
}

// collectFiles gathers files from a path, optionally recursively.
// Returns a list of file entries with source and destination paths.
func collectFiles(path string, recursive bool, destPrefix string) ([]fileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	// Normalize dest prefix - ensure it ends with / if non-empty
	destPrefix = strings.TrimPrefix(destPrefix, "/")
	if destPrefix != "" && !strings.HasSuffix(destPrefix, "/") {
		destPrefix += "/"
	}

	if !info.IsDir() {
		destPath := destPrefix + filepath.Base(path)
		return []fileEntry{{sourcePath: path, destPath: destPath}}, nil
	}

	if !recursive {
		return nil, fmt.Errorf("%s is a directory (use -r to add recursively)", path)
	}

	var entries []fileEntry
	walkErr := filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if !d.Type().IsRegular() {
			return nil
		}

		relPath, relErr := filepath.Rel(path, walkPath)
		if relErr != nil {
			return relErr
		}

		entries = append(entries, fileEntry{
			sourcePath: walkPath,
			destPath:   destPrefix + filepath.ToSlash(relPath),
		})
		return nil
	})

	if walkErr != nil {
		return nil, walkErr
	}

	return entries, nil
}
