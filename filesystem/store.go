// Package filesystem reads and writes the files of a sync directory.
// All access goes through an os.Root, so no path can escape the directory.
// Writes are atomic (temp file plus rename) and every file is identified by
// the BLAKE3 hash of its content, the same hash the store keeps.
package filesystem

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/ignore"
)

// Entry describes one regular file found by Walk.
type Entry struct {
	// Path is relative to the root and slash separated.
	Path    string
	Size    int64
	ModTime time.Time
	Hash    string
}

// SaveResult reports a completed write.
type SaveResult struct {
	BytesWritten int64
	Hash         string
}

// WalkOptions filter and observe a Walk.
type WalkOptions struct {
	// SkipDir prunes a directory and everything below it.
	SkipDir func(rel string) bool
	// Include selects the files to hash. Nil includes every file.
	Include func(rel string) bool
	// OnError receives per-file failures. The file is skipped and the walk
	// continues. Nil drops them.
	OnError func(rel string, err error)
}

// Store provides file operations inside one directory.
type Store struct {
	root *os.Root
}

// NewFileStorage creates a new Store with the given root directory.
func NewFileStorage(root *os.Root) *Store {
	return &Store{root: root}
}

// Root returns the sandbox the store operates in.
func (s *Store) Root() *os.Root {
	return s.root
}

// Read returns the content of the file at rel. Returns h2kv.ErrNotFound if
// the file does not exist.
func (s *Store) Read(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b, err := s.root.ReadFile(filepath.FromSlash(rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, h2kv.ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return b, nil
}

// Hash returns the content hash of the file at rel. Returns h2kv.ErrNotFound
// if the file does not exist.
func (s *Store) Hash(ctx context.Context, rel string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := s.root.Open(filepath.FromSlash(rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", h2kv.ErrNotFound
		}
		return "", fmt.Errorf("hash %s: %w", rel, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Warn("failed to close file", "path", rel, "err", closeErr)
		}
	}()

	return hashReader(&ctxReader{ctx: ctx, r: f})
}

func hashReader(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// Write atomically writes content to rel using a temp file and rename.
// It creates intermediate directories as needed. A non-zero modTime is set
// on the written file. The operation respects context cancellation.
func (s *Store) Write(ctx context.Context, rel string, content io.Reader, modTime time.Time) (SaveResult, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return SaveResult{}, ctxErr
	}

	target := filepath.FromSlash(rel)
	destDir := filepath.Dir(target)
	if destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return SaveResult{}, fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	tmpFile := filepath.Join(destDir, tmpFileName())
	t, createErr := s.root.Create(tmpFile)
	if createErr != nil {
		return SaveResult{}, fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := blake3.New()
	w := io.MultiWriter(h, t)

	written, err := io.Copy(w, &ctxReader{ctx: ctx, r: content})
	if err != nil {
		return SaveResult{}, fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return SaveResult{}, fmt.Errorf("could not sync written file: %w", err)
	}
	if err := t.Close(); err != nil {
		return SaveResult{}, fmt.Errorf("could not close written file: %w", err)
	}

	if renameErr := s.root.Rename(tmpFile, target); renameErr != nil {
		return SaveResult{}, fmt.Errorf("failed to rename file: %w", renameErr)
	}
	success = true

	if !modTime.IsZero() {
		if err := s.root.Chtimes(target, modTime, modTime); err != nil {
			slog.Warn("failed to set modification time", "path", rel, "err", err)
		}
	}

	return SaveResult{BytesWritten: written, Hash: hex.EncodeToString(h.Sum(nil))}, nil
}

// Delete removes a file. Returns h2kv.ErrNotFound if the file does not exist.
func (s *Store) Delete(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.root.Remove(filepath.FromSlash(rel))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return h2kv.ErrNotFound
		}
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

// Walk recursively lists the regular files below the root in lexical order
// and hashes the included ones. Only a failure to read the root itself or
// cancellation aborts the walk.
func (s *Store) Walk(ctx context.Context, opts WalkOptions) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := fs.ReadDir(s.root.FS(), ".")
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}

	var entries []Entry
	if err := s.walkEntries(ctx, "", dirEntries, opts, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) walkEntries(ctx context.Context, dir string, dirEntries []fs.DirEntry, opts WalkOptions, entries *[]Entry) error {
	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := path.Join(dir, entry.Name())

		if entry.IsDir() {
			if opts.SkipDir != nil && opts.SkipDir(rel) {
				continue
			}
			children, err := fs.ReadDir(s.root.FS(), rel)
			if err != nil {
				opts.report(rel, err)
				continue
			}
			if err := s.walkEntries(ctx, rel, children, opts, entries); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}
		if opts.Include != nil && !opts.Include(rel) {
			continue
		}

		e, err := s.stat(ctx, rel, entry)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			opts.report(rel, err)
			continue
		}
		*entries = append(*entries, e)
	}

	return nil
}

func (s *Store) stat(ctx context.Context, rel string, entry fs.DirEntry) (Entry, error) {
	info, err := entry.Info()
	if err != nil {
		return Entry{}, err
	}

	hash, err := s.Hash(ctx, rel)
	if err != nil {
		return Entry{}, err
	}

	return Entry{
		Path:    rel,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
		Hash:    hash,
	}, nil
}

func (o WalkOptions) report(rel string, err error) {
	if o.OnError != nil {
		o.OnError(rel, err)
	}
}

func tmpFileName() string {
	return ignore.TempPrefix + uuid.New().String() + ".tmp"
}
