package pipeline

import (
	"context"
	"time"

	"github.com/navarlu/Historian/internal/adapters/observability"
	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

// LoopSampler logs PID loop triples (PV, SP, CO) at a true 1 Hz wall-clock
// cadence. Unlike the raw sampler it compensates for scheduling jitter: when
// processing falls behind, missed whole-second ticks are backfilled with the
// latest readings, up to a bounded lookback. The re-poll interval only
// controls how promptly the next second boundary is caught; the emitted data
// rate stays one point per loop per second.
type LoopSampler struct {
	catalog ports.CatalogProvider
	reader  *CachedReader
	queue   ports.PointQueue
	writer  *BatchWriter
	obs     ports.Observability

	measurement      string
	defaultMachineID string
	tickPoll         time.Duration
	maxBackfill      int
	now              func() time.Time

	nextTick int64
}

func NewLoopSampler(
	catalog ports.CatalogProvider,
	reader *CachedReader,
	queue ports.PointQueue,
	writer *BatchWriter,
	obs ports.Observability,
	measurement string,
	defaultMachineID string,
	tickPoll time.Duration,
	maxBackfill int,
) *LoopSampler {
	if defaultMachineID == "" {
		defaultMachineID = "Kepware"
	}
	return &LoopSampler{
		catalog:          catalog,
		reader:           reader,
		queue:            queue,
		writer:           writer,
		obs:              obs,
		measurement:      measurement,
		defaultMachineID: defaultMachineID,
		tickPoll:         tickPoll,
		maxBackfill:      maxBackfill,
		now:              time.Now,
	}
}

func (s *LoopSampler) Run(ctx context.Context) {
	s.obs.LogInfo("loop_sampler_started", ports.Field{Key: "measurement", Value: s.measurement})
	defer s.obs.LogInfo("loop_sampler_stopped")

	s.nextTick = s.now().Unix()
	for {
		if ctx.Err() != nil {
			return
		}

		if nowSec := s.now().Unix(); nowSec >= s.nextTick {
			s.Cycle(ctx, nowSec)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.tickPoll):
		}
	}
}

// Cycle emits one point per loop for every due tick between nextTick and
// nowSec. All backfilled timestamps carry the same (latest) field values;
// only the timestamps and the tick_backfill flag differ. nextTick always
// advances to nowSec+1 so the series cadence stays second-aligned after a
// stall.
func (s *LoopSampler) Cycle(ctx context.Context, nowSec int64) {
	backfillFrom := nowSec - int64(s.maxBackfill) + 1
	if s.nextTick > backfillFrom {
		backfillFrom = s.nextTick
	}
	ticks := make([]int64, 0, nowSec-backfillFrom+1)
	for ts := backfillFrom; ts <= nowSec; ts++ {
		ticks = append(ticks, ts)
	}
	s.nextTick = nowSec + 1

	loops, err := s.catalog.LoopAssignments(ctx)
	if err != nil {
		s.obs.LogError("loop_assignments_reload_failed", err)
		loops = nil
	}

	var points []domain.Point
	for _, loop := range loops {
		if loop.MachineID == "" {
			loop.MachineID = s.defaultMachineID
		}
		if !loop.Complete() {
			continue
		}

		pv := s.readSub(ctx, loop.PVNodeID)
		sp := s.readSub(ctx, loop.SPNodeID)
		co := s.readSub(ctx, loop.CONodeID)

		// Partial triples are never emitted.
		if !pv.OK || !sp.OK || !co.OK {
			continue
		}

		for _, ts := range ticks {
			points = append(points, domain.Point{
				Measurement: s.measurement,
				Tags:        map[string]string{"loop_id": loop.LoopID, "machine_id": loop.MachineID},
				Time:        ts,
				Fields: map[string]interface{}{
					"PV":             pv.Value,
					"SP":             sp.Value,
					"CO":             co.Value,
					"PV_from_cache":  boolField(pv.FromCache),
					"SP_from_cache":  boolField(sp.FromCache),
					"CO_from_cache":  boolField(co.FromCache),
					"PV_cache_age_s": pv.CacheAge,
					"SP_cache_age_s": sp.CacheAge,
					"CO_cache_age_s": co.CacheAge,
					"tick_backfill":  boolField(ts < nowSec),
				},
			})
		}
		if backfilled := len(ticks) - 1; backfilled > 0 {
			s.obs.IncCounter(observability.MetricBackfillPoints, float64(backfilled))
		}
	}

	s.queue.Enqueue(points...)
	flushAndTrim(s.queue, s.writer, s.obs)
	s.obs.SetGauge(observability.MetricLoopPending, float64(s.queue.Len()))
}

func (s *LoopSampler) readSub(ctx context.Context, nodeID string) ReadResult {
	res := s.reader.Read(ctx, nodeID)
	if res.Err != nil {
		s.obs.IncCounter(observability.MetricReadFailures, 1)
	}
	if res.FromCache {
		s.obs.IncCounter(observability.MetricCacheHits, 1)
	}
	return res
}
