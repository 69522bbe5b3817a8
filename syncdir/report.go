package syncdir

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// Report summarizes one pass.
type Report struct {
	Scanned   int
	Imported  int
	Exported  int
	Removed   int
	Unchanged int
	// Deferred counts pairs left for a later pass: a concurrent write won
	// the race, or the file changed and has not been imported yet.
	Deferred int
	// Failed counts files skipped because of file errors.
	Failed int

	BytesImported int64
	BytesExported int64
	Duration      time.Duration
}

// Changed reports whether the pass wrote anything in either direction.
func (r Report) Changed() bool {
	return r.Imported > 0 || r.Exported > 0 || r.Removed > 0
}

func (r *Report) merge(o Report) {
	r.Scanned += o.Scanned
	r.Imported += o.Imported
	r.Exported += o.Exported
	r.Removed += o.Removed
	r.Unchanged += o.Unchanged
	r.Deferred += o.Deferred
	r.Failed += o.Failed
	r.BytesImported += o.BytesImported
	r.BytesExported += o.BytesExported
}

func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("scanned", r.Scanned),
		slog.Int("imported", r.Imported),
		slog.String("imported_size", humanizeBytes(r.BytesImported)),
		slog.Int("exported", r.Exported),
		slog.String("exported_size", humanizeBytes(r.BytesExported)),
		slog.Int("removed", r.Removed),
		slog.Int("unchanged", r.Unchanged),
		slog.Int("deferred", r.Deferred),
		slog.Int("failed", r.Failed),
		slog.Duration("took", r.Duration),
	)
}

func humanizeBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
