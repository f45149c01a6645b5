package historian

import (
	"github.com/navarlu/Historian/internal/adapters/catalog"
	"github.com/navarlu/Historian/internal/adapters/influx"
	"github.com/navarlu/Historian/internal/adapters/opcua"
	"github.com/navarlu/Historian/internal/adapters/timescale"
	"github.com/navarlu/Historian/internal/app/config"
	"github.com/navarlu/Historian/internal/app/pipeline"
	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

// Config re-exports the root configuration struct so embedding callers can
// construct or modify it programmatically.
type Config = config.Config

type (
	// SamplingConfig carries the pipeline tunables.
	SamplingConfig = config.SamplingConfig
	// OPCUAConfig holds the OPC UA session details.
	OPCUAConfig = opcua.Config
	// InfluxConfig configures the default sink.
	InfluxConfig = influx.Config
	// TimescaleConfig configures the alternative SQL sink.
	TimescaleConfig = timescale.Config
	// CatalogConfig locates the selection / loop-assignment documents.
	CatalogConfig = catalog.Config
	// HTTPConfig configures the control surface listener.
	HTTPConfig = config.HTTPConfig
	// MetricsConfig configures the metrics listener.
	MetricsConfig = config.MetricsConfig
	// LoggingConfig selects the zap log level.
	LoggingConfig = config.LoggingConfig
)

type (
	// Point is one timestamped set of fields for one series.
	Point = domain.Point
	// Tag is one logged scalar source.
	Tag = domain.Tag
	// LoopAssignment binds a PID loop to its PV/SP/CO sources.
	LoopAssignment = domain.LoopAssignment
	// Freshness buckets a reading's age for display.
	Freshness = domain.Freshness
)

type (
	// Kind identifies one of the two sampling loops.
	Kind = pipeline.Kind
	// ScalarSource reads one numeric value from a live signal.
	ScalarSource = ports.ScalarSource
	// Sink consumes batches of points.
	Sink = ports.Sink
	// WriteOptions carry per-measurement write parameters.
	WriteOptions = ports.WriteOptions
	// LatestQuerier reads back the last persisted value per source.
	LatestQuerier = ports.LatestQuerier
	// LatestValue is one row of a latest-value query.
	LatestValue = ports.LatestValue
	// CatalogProvider resolves the currently configured sources.
	CatalogProvider = ports.CatalogProvider
	// CatalogStore adds catalog writes for the control surface.
	CatalogStore = ports.CatalogStore
	// Observability emits metrics and structured logs.
	Observability = ports.Observability
	// Field is a structured log field.
	Field = ports.Field
	// Tunables are the sampling constants.
	Tunables = ports.Tunables
)

// The two controllable loop kinds.
const (
	KindRaw  = pipeline.KindRaw
	KindLoop = pipeline.KindLoop
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// NewMemoryCatalog returns an in-memory catalog store for embedding callers.
func NewMemoryCatalog() *catalog.MemoryStore {
	return catalog.NewMemoryStore()
}

// Classify maps an age in whole seconds to a freshness bucket.
func Classify(ageSeconds int) Freshness {
	return domain.Classify(ageSeconds)
}
