package syncdir

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/h2kv/h2kv/ignore"
)

// DefaultDebounce is the quiet period a Watcher waits for before it fires.
const DefaultDebounce = 500 * time.Millisecond

// Watcher fires a callback after changes below a directory settle.
type Watcher struct {
	dir      string
	filter   *ignore.Filter
	debounce time.Duration
	fire     func()
	logger   *slog.Logger
}

// NewWatcher creates a Watcher calling fire once a burst of changes to dir
// has been quiet for debounce. Changes to paths on the filter's built-in
// skip list are ignored.
func NewWatcher(dir string, filter *ignore.Filter, debounce time.Duration, fire func()) (*Watcher, error) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch dir: %w", err)
	}
	resolved, err = filepath.Abs(resolved)
	if err != nil {
		return nil, fmt.Errorf("resolve watch dir: %w", err)
	}
	if filter == nil {
		filter = ignore.NewFilter(nil, false)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		dir:      resolved,
		filter:   filter,
		debounce: debounce,
		fire:     fire,
		logger:   slog.Default().With("component", "watcher"),
	}, nil
}

// Run watches until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	events := make(chan notify.EventInfo, 64)

	recursivePath := filepath.Join(w.dir, "...")
	if err := notify.Watch(recursivePath, events, notify.All); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	defer notify.Stop(events)

	w.logger.Info("file watcher start", "dir", w.dir)
	defer w.logger.Info("file watcher stop")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-events:
			if !w.relevant(ev.Path()) {
				continue
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.fire()
		}
	}
}

func (w *Watcher) relevant(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || rel == "." {
		return false
	}
	return !w.filter.Skipped(filepath.ToSlash(rel))
}
