package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/navarlu/Historian/internal/ports"
)

// Metric names exposed by the sampling pipeline.
const (
	MetricPointsWritten  = "historian_points_written_total"
	MetricPointsDropped  = "historian_points_dropped_total"
	MetricReadFailures   = "historian_read_failures_total"
	MetricCacheHits      = "historian_cache_hits_total"
	MetricBackfillPoints = "historian_backfill_points_total"
	MetricWriteFailures  = "historian_write_failures_total"

	MetricRawPending  = "historian_raw_pending_points"
	MetricLoopPending = "historian_loop_pending_points"

	MetricFlushLatency = "historian_flush_latency_seconds"
)

// ZapProm pairs zap structured logging with Prometheus counters behind the
// Observability port.
type ZapProm struct {
	log      *zap.SugaredLogger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewZapProm(log *zap.SugaredLogger) *ZapProm {
	written := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricPointsWritten,
		Help: "Total points successfully written to the sink.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricPointsDropped,
		Help: "Points discarded by the pending-buffer overflow trim.",
	})
	readFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricReadFailures,
		Help: "Live reads that failed, whether or not a cached value substituted.",
	})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricCacheHits,
		Help: "Readings served from the last-good-value cache.",
	})
	backfill := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricBackfillPoints,
		Help: "Loop points synthesized for missed whole-second ticks.",
	})
	writeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: MetricWriteFailures,
		Help: "Batch writes rejected by the sink.",
	})
	rawPending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricRawPending,
		Help: "Points pending in the raw sampler's buffer.",
	})
	loopPending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: MetricLoopPending,
		Help: "Points pending in the loop sampler's buffer.",
	})
	flushLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    MetricFlushLatency,
		Help:    "Latency of one flush call against the sink.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	prometheus.MustRegister(written, dropped, readFailures, cacheHits, backfill, writeFailures, rawPending, loopPending, flushLatency)

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &ZapProm{
		log: log,
		counters: map[string]prometheus.Counter{
			MetricPointsWritten:  written,
			MetricPointsDropped:  dropped,
			MetricReadFailures:   readFailures,
			MetricCacheHits:      cacheHits,
			MetricBackfillPoints: backfill,
			MetricWriteFailures:  writeFailures,
		},
		gauges: map[string]prometheus.Gauge{
			MetricRawPending:  rawPending,
			MetricLoopPending: loopPending,
		},
		histos: map[string]prometheus.Observer{
			MetricFlushLatency: flushLatency,
		},
	}
}

func (z *ZapProm) LogInfo(msg string, fields ...ports.Field) {
	z.log.Infow(msg, flatten(fields)...)
}

func (z *ZapProm) LogError(msg string, err error, fields ...ports.Field) {
	args := flatten(fields)
	if err != nil {
		args = append(args, "error", err.Error())
	}
	z.log.Errorw(msg, args...)
}

func (z *ZapProm) IncCounter(name string, v float64) {
	if c, ok := z.counters[name]; ok {
		c.Add(v)
	}
}

func (z *ZapProm) ObserveLatency(name string, seconds float64) {
	if h, ok := z.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (z *ZapProm) SetGauge(name string, v float64) {
	if g, ok := z.gauges[name]; ok {
		g.Set(v)
	}
}

func flatten(fields []ports.Field) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*ZapProm)(nil)
