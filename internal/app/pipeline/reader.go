package pipeline

import (
	"context"
	"time"

	"github.com/navarlu/Historian/internal/ports"
)

// ReadResult is the typed outcome of one source read. All failure modes are
// represented here; Read never panics and never loses the original error.
type ReadResult struct {
	// Value is valid only when OK is true.
	Value float64
	// OK is false when neither the live read nor the cache produced a value;
	// the caller must skip emitting a point for this source this cycle.
	OK bool
	// FromCache marks a value served from the last-good-value cache.
	FromCache bool
	// CacheAge is the age of the cached value in whole seconds; 0 for a live
	// read.
	CacheAge int
	// Err carries the live read failure, also when a cached value
	// substituted for it.
	Err error
}

// CachedReader reads a source live and falls back to the sampler's value
// cache when the read fails. The fallback horizon is bounded by maxAge, so a
// source that stays dark eventually stops producing points instead of
// repeating stale data indefinitely.
type CachedReader struct {
	source ports.ScalarSource
	cache  *ValueCache
	maxAge time.Duration
	now    func() time.Time
}

func NewCachedReader(source ports.ScalarSource, cache *ValueCache, maxAge time.Duration) *CachedReader {
	return &CachedReader{
		source: source,
		cache:  cache,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (r *CachedReader) Read(ctx context.Context, nodeID string) ReadResult {
	now := r.now()

	value, err := r.source.Read(ctx, nodeID)
	if err == nil {
		r.cache.Put(nodeID, value, now)
		return ReadResult{Value: value, OK: true}
	}

	if cached, age, ok := r.cache.Get(nodeID, now, r.maxAge); ok {
		return ReadResult{Value: cached, OK: true, FromCache: true, CacheAge: age, Err: err}
	}
	return ReadResult{Err: err}
}
