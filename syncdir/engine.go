// Package syncdir reconciles a directory tree with the store.
//
// A pass walks the directory, classifies every file against its stored
// record and sync marker, imports new and changed files and, with
// write-back enabled, exports records changed over HTTP back to disk.
// Sync never deletes stored data because a file disappeared.
package syncdir

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/filesystem"
	"github.com/h2kv/h2kv/ignore"
	"github.com/h2kv/h2kv/metrics"
)

// Pass kinds, as reported to metrics.
const (
	passImport = "import"
	passFull   = "full"
	passExport = "export"
)

// Config holds the options of an Engine.
type Config struct {
	// WriteBack enables the export phase of Sync.
	WriteBack bool
	// Filter selects the files taking part in sync. Nil includes all
	// files except the engine's own lock and temp files.
	Filter *ignore.Filter
	// Metrics defaults to a no-op implementation.
	Metrics metrics.SyncMetrics
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Engine runs sync passes. Passes are serialized; a call made while a pass
// is running waits for it.
type Engine struct {
	store   *h2kv.Store
	files   *filesystem.Store
	cfg     Config
	logger  *slog.Logger
	metrics metrics.SyncMetrics

	mu    sync.Mutex
	state atomic.Int32
}

// New creates an Engine over store and the sync directory files.
func New(store *h2kv.Store, files *filesystem.Store, cfg Config) *Engine {
	if cfg.Filter == nil {
		cfg.Filter = ignore.NewFilter(nil, false)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewSyncMetrics(nil)
	}

	return &Engine{
		store:   store,
		files:   files,
		cfg:     cfg,
		logger:  logger.With("component", "sync"),
		metrics: m,
	}
}

// State returns the current phase.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// WriteBack reports whether Sync exports.
func (e *Engine) WriteBack() bool {
	return e.cfg.WriteBack
}

// Import walks, diffs and imports. It never writes to the directory.
func (e *Engine) Import(ctx context.Context) (Report, error) {
	return e.run(ctx, passImport, func(ctx context.Context) (Report, error) {
		return e.importPass(ctx)
	})
}

// Sync runs a full cycle: import, then export when write-back is enabled.
func (e *Engine) Sync(ctx context.Context) (Report, error) {
	return e.run(ctx, passFull, func(ctx context.Context) (Report, error) {
		report, err := e.importPass(ctx)
		if err != nil || !e.cfg.WriteBack {
			return report, err
		}
		exported, err := e.exportPass(ctx)
		report.merge(exported)
		return report, err
	})
}

// Export writes records changed over HTTP back to their files. It runs
// regardless of the write-back setting; callers decide when to export.
func (e *Engine) Export(ctx context.Context) (Report, error) {
	return e.run(ctx, passExport, e.exportPass)
}

// Diff walks the directory and classifies every pair without changing
// anything.
func (e *Engine) Diff(ctx context.Context) (Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.setState(StateIdle)

	plan, _, err := e.diff(ctx)
	return plan, err
}

func (e *Engine) run(ctx context.Context, kind string, pass func(context.Context) (Report, error)) (Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.setState(StateIdle)

	start := time.Now()
	report, err := pass(ctx)
	report.Duration = time.Since(start)

	e.metrics.RecordPass(kind, report.Duration, err)
	e.metrics.RecordImported(report.Imported, report.BytesImported)
	e.metrics.RecordExported(report.Exported, report.BytesExported)
	e.metrics.RecordRemoved(report.Removed)

	if err != nil {
		return report, fmt.Errorf("sync %s: %w", kind, err)
	}

	level := slog.LevelDebug
	if report.Changed() || report.Failed > 0 {
		level = slog.LevelInfo
	}
	e.logger.Log(ctx, level, "sync pass finished", "kind", kind, "report", report)
	return report, nil
}

// fileError logs a per-file failure. The file is skipped.
func (e *Engine) fileError(rel string, err error) {
	e.logger.Warn("skipping file", "path", rel, "err", fmt.Errorf("%w: %w", h2kv.ErrFileIO, err))
}

func (e *Engine) diff(ctx context.Context) (Plan, int, error) {
	e.setState(StateWalking)

	failed := 0
	entries, err := e.files.Walk(ctx, filesystem.WalkOptions{
		SkipDir: e.cfg.Filter.SkipDir,
		Include: e.cfg.Filter.Included,
		OnError: func(rel string, err error) {
			failed++
			e.fileError(rel, err)
		},
	})
	if err != nil {
		return Plan{}, failed, fmt.Errorf("walk: %w", err)
	}

	e.setState(StateDiffing)

	var plan Plan
	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return Plan{}, failed, err
		}

		key, rep, err := h2kv.DecodeRelativePath(entry.Path)
		if err != nil {
			failed++
			e.fileError(entry.Path, err)
			continue
		}
		seen[entry.Path] = struct{}{}

		recordHash, err := e.recordHash(ctx, key, rep.Ext)
		if err != nil {
			return Plan{}, failed, err
		}
		markerHash, err := e.markerHash(ctx, key, rep.Ext)
		if err != nil {
			return Plan{}, failed, err
		}

		plan.Items = append(plan.Items, Item{
			Path:           entry.Path,
			Key:            key,
			Representation: rep,
			Class:          Classify(entry.Hash, recordHash, markerHash),
			FileHash:       entry.Hash,
			RecordHash:     recordHash,
			MarkerHash:     markerHash,
			Size:           entry.Size,
			ModTime:        entry.ModTime,
		})
	}

	markers, err := e.markers(ctx)
	if err != nil {
		return Plan{}, failed, err
	}
	for _, m := range markers {
		if _, ok := seen[m.path]; ok {
			continue
		}
		recordHash, err := e.recordHash(ctx, m.key, m.ext)
		if err != nil {
			return Plan{}, failed, err
		}
		plan.Items = append(plan.Items, Item{
			Path:           m.path,
			Key:            m.key,
			Representation: h2kv.Representation{Ext: m.ext, MediaType: h2kv.MediaTypeForExtension(m.ext)},
			Class:          ClassRemovedFromFilesystem,
			RecordHash:     recordHash,
			MarkerHash:     m.hash,
		})
	}

	return plan, failed, nil
}

func (e *Engine) importPass(ctx context.Context) (Report, error) {
	plan, failed, err := e.diff(ctx)
	report := Report{Failed: failed}
	if err != nil {
		return report, err
	}

	e.setState(StateImporting)

	for _, it := range plan.Items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		switch it.Class {
		case ClassRemovedFromFilesystem:
			continue
		case ClassStorageModified, ClassStorageDeleted:
			report.Scanned++
			continue
		case ClassUnchanged:
			report.Scanned++
			report.Unchanged++
			if it.MarkerHash != it.FileHash {
				if err := e.store.PutMarker(ctx, it.Key, it.Representation.Ext, it.FileHash); err != nil {
					return report, err
				}
			}
			continue
		}

		report.Scanned++
		n, err := e.importFile(ctx, it)
		switch {
		case errors.Is(err, h2kv.ErrPreconditionFailed):
			e.logger.Debug("import deferred, record changed concurrently", "path", it.Path)
			report.Deferred++
		case errors.Is(err, h2kv.ErrStorageUnavailable):
			return report, err
		case err != nil:
			report.Failed++
			e.fileError(it.Path, err)
		default:
			report.Imported++
			report.BytesImported += n
		}
	}

	return report, nil
}

// importFile stores one file. The write only succeeds if the record is
// still the one the diff observed.
func (e *Engine) importFile(ctx context.Context, it Item) (int64, error) {
	content, err := e.files.Read(ctx, it.Path)
	if err != nil {
		return 0, err
	}

	req := h2kv.WriteRequest{
		Key:            it.Key,
		Representation: it.Representation,
		Content:        content,
		ModTime:        it.ModTime,
	}
	if it.RecordHash == "" {
		req.IfNoneMatch = true
	} else {
		req.IfMatch = `"` + it.RecordHash + `"`
	}

	res, err := e.store.Put(ctx, req)
	if err != nil {
		return 0, err
	}
	if err := e.store.PutMarker(ctx, it.Key, it.Representation.Ext, res.Meta.Hash); err != nil {
		return 0, err
	}

	e.logger.Debug("imported", "path", it.Path, "class", it.Class, "size", humanizeBytes(res.Meta.Size))
	return res.Meta.Size, nil
}

func (e *Engine) exportPass(ctx context.Context) (Report, error) {
	e.setState(StateExporting)

	var report Report

	markers, err := e.markers(ctx)
	if err != nil {
		return report, err
	}

	for _, m := range markers {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !e.cfg.Filter.Included(m.path) {
			continue
		}

		if err := e.exportPair(ctx, m, &report); err != nil {
			if errors.Is(err, h2kv.ErrStorageUnavailable) {
				return report, err
			}
			report.Failed++
			e.fileError(m.path, err)
		}
	}

	return report, nil
}

func (e *Engine) exportPair(ctx context.Context, m marker, report *Report) error {
	rec, err := e.store.Get(ctx, m.key, m.ext)
	recordGone := errors.Is(err, h2kv.ErrNotFound)
	if err != nil && !recordGone {
		return err
	}

	diskHash, err := e.files.Hash(ctx, m.path)
	fileGone := errors.Is(err, h2kv.ErrNotFound)
	if err != nil && !fileGone {
		return err
	}

	switch {
	case recordGone && fileGone:
		return e.store.DeleteMarker(ctx, m.key, m.ext)

	case recordGone:
		if diskHash != m.hash {
			// Edited after the record was deleted; the next import takes it.
			report.Deferred++
			return nil
		}
		if err := e.files.Delete(ctx, m.path); err != nil && !errors.Is(err, h2kv.ErrNotFound) {
			return err
		}
		report.Removed++
		e.logger.Debug("removed", "path", m.path)
		return e.store.DeleteMarker(ctx, m.key, m.ext)

	case !fileGone && diskHash == rec.Hash:
		if m.hash != rec.Hash {
			return e.store.PutMarker(ctx, m.key, m.ext, rec.Hash)
		}
		return nil

	case !fileGone && diskHash != m.hash:
		// Local edits not imported yet win over the record.
		report.Deferred++
		return nil
	}

	res, err := e.files.Write(ctx, m.path, bytes.NewReader(rec.Content), rec.ModTime)
	if err != nil {
		return err
	}
	report.Exported++
	report.BytesExported += res.BytesWritten
	e.logger.Debug("exported", "path", m.path, "size", humanizeBytes(res.BytesWritten))

	return e.store.PutMarker(ctx, m.key, m.ext, res.Hash)
}

func (e *Engine) recordHash(ctx context.Context, key, ext string) (string, error) {
	meta, err := e.store.Meta(ctx, key, ext)
	if errors.Is(err, h2kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return meta.Hash, nil
}

func (e *Engine) markerHash(ctx context.Context, key, ext string) (string, error) {
	m, err := e.store.Marker(ctx, key, ext)
	if errors.Is(err, h2kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return m.Hash, nil
}

type marker struct {
	key, ext, path, hash string
}

// markers collects every sync marker before any is acted on, so the scan
// never runs concurrently with marker writes.
func (e *Engine) markers(ctx context.Context) ([]marker, error) {
	var out []marker
	err := e.store.Markers(ctx, func(key, ext string, m h2kv.SyncMarker) error {
		out = append(out, marker{
			key:  key,
			ext:  ext,
			path: h2kv.EncodeRelativePath(key, ext),
			hash: m.Hash,
		})
		return nil
	})
	return out, err
}
