package pipeline

import (
	"context"
	"time"

	"github.com/navarlu/Historian/internal/adapters/observability"
	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

// RawSampler logs the flat tag selection: one point per readable tag per
// cycle, on a fixed-sleep cadence. Cycle overrun is not compensated; the
// loop simply sleeps the full poll interval after each pass.
type RawSampler struct {
	catalog ports.CatalogProvider
	reader  *CachedReader
	queue   ports.PointQueue
	writer  *BatchWriter
	obs     ports.Observability

	measurement  string
	pollInterval time.Duration
	now          func() time.Time
}

func NewRawSampler(
	catalog ports.CatalogProvider,
	reader *CachedReader,
	queue ports.PointQueue,
	writer *BatchWriter,
	obs ports.Observability,
	measurement string,
	pollInterval time.Duration,
) *RawSampler {
	return &RawSampler{
		catalog:      catalog,
		reader:       reader,
		queue:        queue,
		writer:       writer,
		obs:          obs,
		measurement:  measurement,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

// Run cycles until the context is cancelled. Cancellation is observed at the
// top of the sleep, so stopping can take up to one poll interval to land.
func (s *RawSampler) Run(ctx context.Context) {
	s.obs.LogInfo("raw_sampler_started", ports.Field{Key: "measurement", Value: s.measurement})
	defer s.obs.LogInfo("raw_sampler_stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		s.Cycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.pollInterval):
		}
	}
}

// Cycle performs one sampling pass: reload the selection, read every tag,
// enqueue the resulting points, and flush.
func (s *RawSampler) Cycle(ctx context.Context) {
	tags, err := s.catalog.Selection(ctx)
	if err != nil {
		s.obs.LogError("selection_reload_failed", err)
		tags = nil
	}

	ts := s.now().Unix()
	points := make([]domain.Point, 0, len(tags))

	for _, tag := range tags {
		if tag.NodeID == "" {
			continue
		}
		label := tag.Label
		if label == "" {
			label = tag.NodeID
		}

		res := s.reader.Read(ctx, tag.NodeID)
		if res.Err != nil {
			s.obs.IncCounter(observability.MetricReadFailures, 1)
		}
		if res.FromCache {
			s.obs.IncCounter(observability.MetricCacheHits, 1)
		}
		if !res.OK {
			continue
		}

		points = append(points, domain.Point{
			Measurement: s.measurement,
			Tags:        map[string]string{"nodeid": tag.NodeID, "label": label},
			Time:        ts,
			Fields: map[string]interface{}{
				"value":       res.Value,
				"from_cache":  boolField(res.FromCache),
				"cache_age_s": res.CacheAge,
				"read_error":  boolField(res.Err != nil),
			},
		})
	}

	s.queue.Enqueue(points...)
	flushAndTrim(s.queue, s.writer, s.obs)
	s.obs.SetGauge(observability.MetricRawPending, float64(s.queue.Len()))
}

// flushAndTrim is the shared tail of a sampling cycle: drain what the sink
// will take, then enforce the pending cap on whatever it would not.
func flushAndTrim(queue ports.PointQueue, writer *BatchWriter, obs ports.Observability) {
	if queue.Len() == 0 {
		return
	}

	start := time.Now()
	written, err := writer.Flush(queue)
	obs.ObserveLatency(observability.MetricFlushLatency, time.Since(start).Seconds())

	if written > 0 {
		obs.IncCounter(observability.MetricPointsWritten, float64(written))
	}
	if err != nil {
		obs.IncCounter(observability.MetricWriteFailures, 1)
		obs.LogError("sink_write_failed", err,
			ports.Field{Key: "written", Value: written},
			ports.Field{Key: "pending", Value: queue.Len()})
	}

	if dropped := queue.Trim(); dropped > 0 {
		obs.IncCounter(observability.MetricPointsDropped, float64(dropped))
		obs.LogInfo("pending_overflow_trimmed", ports.Field{Key: "dropped", Value: dropped})
	}
}

func boolField(b bool) int {
	if b {
		return 1
	}
	return 0
}
