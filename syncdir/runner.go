package syncdir

import (
	"context"
	"errors"
	"log/slog"
)

// Runner runs full sync passes on demand. Triggers arriving while a pass
// runs collapse into a single follow-up pass.
type Runner struct {
	engine  *Engine
	pending chan struct{}
	logger  *slog.Logger
}

// NewRunner creates a Runner for engine.
func NewRunner(engine *Engine) *Runner {
	return &Runner{
		engine:  engine,
		pending: make(chan struct{}, 1),
		logger:  engine.logger,
	}
}

// Trigger requests a pass. It never blocks.
func (r *Runner) Trigger() {
	select {
	case r.pending <- struct{}{}:
	default:
	}
}

// Run executes requested passes until ctx is canceled. Pass failures are
// logged, not returned.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.pending:
			if _, err := r.engine.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("sync failed", "err", err)
			}
		}
	}
}
