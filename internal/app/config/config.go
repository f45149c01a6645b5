package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/navarlu/Historian/internal/adapters/catalog"
	"github.com/navarlu/Historian/internal/adapters/influx"
	"github.com/navarlu/Historian/internal/adapters/opcua"
	"github.com/navarlu/Historian/internal/adapters/timescale"
	"github.com/navarlu/Historian/internal/ports"
)

const (
	SinkInflux    = "influx"
	SinkTimescale = "timescale"
)

type Config struct {
	OPCUA     opcua.Config     `yaml:"opcua"`
	Sink      string           `yaml:"sink"`
	Influx    influx.Config    `yaml:"influx"`
	Timescale timescale.Config `yaml:"timescale"`
	Catalog   catalog.Config   `yaml:"catalog"`
	Sampling  SamplingConfig   `yaml:"sampling"`
	HTTP      HTTPConfig       `yaml:"http"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// SamplingConfig carries the pipeline tunables. The defaults mirror the
// values the collector has been run with in production, but none of them are
// load-tested optima; override freely.
type SamplingConfig struct {
	PollInterval       time.Duration `yaml:"poll_interval"`
	TickPoll           time.Duration `yaml:"tick_poll"`
	WriteBatchSize     int           `yaml:"write_batch_size"`
	MaxPendingPoints   int           `yaml:"max_pending_points"`
	RawCacheMaxAge     time.Duration `yaml:"raw_cache_max_age"`
	LoopCacheMaxAge    time.Duration `yaml:"loop_cache_max_age"`
	MaxBackfillSeconds int           `yaml:"max_backfill_seconds"`

	RawMeasurement      string `yaml:"raw_measurement"`
	LoopMeasurement     string `yaml:"loop_measurement"`
	LoopRetentionPolicy string `yaml:"loop_retention_policy"`
	DefaultMachineID    string `yaml:"default_machine_id"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Sink == "" {
		c.Sink = SinkInflux
	}
	if c.Sampling.PollInterval == 0 {
		c.Sampling.PollInterval = time.Second
	}
	if c.Sampling.TickPoll == 0 {
		c.Sampling.TickPoll = 20 * time.Millisecond
	}
	if c.Sampling.WriteBatchSize == 0 {
		c.Sampling.WriteBatchSize = 5000
	}
	if c.Sampling.MaxPendingPoints == 0 {
		c.Sampling.MaxPendingPoints = 120_000
	}
	if c.Sampling.RawCacheMaxAge == 0 {
		c.Sampling.RawCacheMaxAge = 30 * time.Second
	}
	if c.Sampling.LoopCacheMaxAge == 0 {
		c.Sampling.LoopCacheMaxAge = 5 * time.Minute
	}
	if c.Sampling.MaxBackfillSeconds == 0 {
		c.Sampling.MaxBackfillSeconds = 10
	}
	if c.Sampling.RawMeasurement == "" {
		c.Sampling.RawMeasurement = "selected_tag_data"
	}
	if c.Sampling.LoopMeasurement == "" {
		c.Sampling.LoopMeasurement = "pid_loop_hf_raw"
	}
	if c.Sampling.LoopRetentionPolicy == "" {
		c.Sampling.LoopRetentionPolicy = "hf_raw_400d"
	}
	if c.Sampling.DefaultMachineID == "" {
		c.Sampling.DefaultMachineID = "Kepware"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5050"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	c.OPCUA.ApplyDefaults()
	c.Influx.ApplyDefaults()
	c.Catalog.ApplyDefaults()
}

func (c *Config) Validate() error {
	if err := c.OPCUA.Validate(); err != nil {
		return fmt.Errorf("opcua config: %w", err)
	}
	switch c.Sink {
	case SinkInflux:
		// influx has usable defaults for every field
	case SinkTimescale:
		if c.Timescale.ConnString == "" {
			return fmt.Errorf("timescale.conn_string is required when sink is %q", SinkTimescale)
		}
	default:
		return fmt.Errorf("unknown sink %q", c.Sink)
	}
	if c.Sampling.WriteBatchSize <= 0 {
		return fmt.Errorf("sampling.write_batch_size must be > 0")
	}
	if c.Sampling.MaxPendingPoints <= 0 {
		return fmt.Errorf("sampling.max_pending_points must be > 0")
	}
	if c.Sampling.MaxBackfillSeconds <= 0 {
		return fmt.Errorf("sampling.max_backfill_seconds must be > 0")
	}
	return nil
}

// Tunables converts the sampling section into the pipeline's tunables.
func (c *Config) Tunables() ports.Tunables {
	return ports.Tunables{
		PollInterval:       c.Sampling.PollInterval,
		TickPoll:           c.Sampling.TickPoll,
		WriteBatchSize:     c.Sampling.WriteBatchSize,
		MaxPendingPoints:   c.Sampling.MaxPendingPoints,
		RawCacheMaxAge:     c.Sampling.RawCacheMaxAge,
		LoopCacheMaxAge:    c.Sampling.LoopCacheMaxAge,
		MaxBackfillSeconds: c.Sampling.MaxBackfillSeconds,
	}
}
