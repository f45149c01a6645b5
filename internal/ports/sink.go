package ports

import (
	"context"
	"time"

	"github.com/navarlu/Historian/internal/domain"
)

// WriteOptions carry per-measurement write parameters to the sink.
type WriteOptions struct {
	// Precision of point timestamps; the pipeline always writes "s".
	Precision string
	// RetentionPolicy routes the batch to a non-default retention policy.
	// Empty means the sink's default.
	RetentionPolicy string
}

// Sink consumes batches of points and persists them to a time-series store.
type Sink interface {
	WriteBatch(points []domain.Point, opts WriteOptions) error
	Name() string
}

// LatestValue is the newest persisted reading for one source, as returned by
// a LatestQuerier. HasValue is false when the series exists but the value
// column was null or unparsable.
type LatestValue struct {
	NodeID    string
	Label     string
	Value     float64
	HasValue  bool
	Time      time.Time
	FromCache bool
}

// LatestQuerier reads back the last persisted value per source so the control
// surface can report per-tag freshness. Sinks that cannot be queried simply
// do not implement it.
type LatestQuerier interface {
	LatestBySource(ctx context.Context, measurement string) ([]LatestValue, error)
}
