package badger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// slogAdapter routes badger's printf style logging to slog.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}
	a.logger.Log(ctx, level, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (a *slogAdapter) Errorf(format string, args ...any) {
	a.log(slog.LevelError, format, args...)
}

func (a *slogAdapter) Warningf(format string, args ...any) {
	a.log(slog.LevelWarn, format, args...)
}

func (a *slogAdapter) Infof(format string, args ...any) {
	a.log(slog.LevelInfo, format, args...)
}

func (a *slogAdapter) Debugf(format string, args ...any) {
	a.log(slog.LevelDebug, format, args...)
}
