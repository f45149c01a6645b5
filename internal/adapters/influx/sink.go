package influx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	influxclient "github.com/influxdata/influxdb1-client/v2"

	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

// Config points the sink at an InfluxDB 1.x server.
type Config struct {
	Addr     string        `yaml:"addr"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "http://localhost:8086"
	}
	if c.Database == "" {
		c.Database = "opcuadata"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

// Sink persists point batches to InfluxDB and can read back the last value
// per source for the catalog endpoint.
type Sink struct {
	client   influxclient.Client
	database string
}

func NewSink(cfg Config) (*Sink, error) {
	cfg.ApplyDefaults()
	client, err := influxclient.NewHTTPClient(influxclient.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("influx client: %w", err)
	}
	return &Sink{client: client, database: cfg.Database}, nil
}

func (s *Sink) Name() string { return "influxdb" }

// EnsureDatabase creates the target database if it does not exist yet.
func (s *Sink) EnsureDatabase() error {
	q := influxclient.NewQuery(fmt.Sprintf("CREATE DATABASE %q", s.database), "", "")
	resp, err := s.client.Query(q)
	if err != nil {
		return fmt.Errorf("create database %q: %w", s.database, err)
	}
	if resp.Error() != nil {
		return fmt.Errorf("create database %q: %w", s.database, resp.Error())
	}
	return nil
}

func (s *Sink) WriteBatch(points []domain.Point, opts ports.WriteOptions) error {
	if len(points) == 0 {
		return nil
	}

	precision := opts.Precision
	if precision == "" {
		precision = "s"
	}
	bp, err := influxclient.NewBatchPoints(influxclient.BatchPointsConfig{
		Database:        s.database,
		Precision:       precision,
		RetentionPolicy: opts.RetentionPolicy,
	})
	if err != nil {
		return fmt.Errorf("influx batch: %w", err)
	}

	for _, p := range points {
		pt, err := influxclient.NewPoint(p.Measurement, p.Tags, p.Fields, time.Unix(p.Time, 0).UTC())
		if err != nil {
			return fmt.Errorf("influx point %s: %w", p.Measurement, err)
		}
		bp.AddPoint(pt)
	}

	if err := s.client.Write(bp); err != nil {
		return fmt.Errorf("influx write %d points: %w", len(points), err)
	}
	return nil
}

// LatestBySource returns the newest persisted value per (nodeid, label)
// series of the given measurement, including whether that value was itself a
// cache-fallback write.
func (s *Sink) LatestBySource(ctx context.Context, measurement string) ([]ports.LatestValue, error) {
	cmd := fmt.Sprintf(
		`SELECT LAST("value") AS value, LAST("from_cache") AS from_cache FROM %q GROUP BY "nodeid","label"`,
		measurement,
	)
	// The client has no context-aware query; the HTTP timeout bounds it.
	q := influxclient.NewQuery(cmd, s.database, "s")
	resp, err := s.client.Query(q)
	if err != nil {
		return nil, fmt.Errorf("influx query: %w", err)
	}
	if resp.Error() != nil {
		return nil, fmt.Errorf("influx query: %w", resp.Error())
	}

	var out []ports.LatestValue
	for _, result := range resp.Results {
		for _, series := range result.Series {
			nodeID := series.Tags["nodeid"]
			if nodeID == "" {
				continue
			}
			label := series.Tags["label"]
			if label == "" {
				label = nodeID
			}
			if len(series.Values) == 0 {
				continue
			}
			row := series.Values[len(series.Values)-1]
			cols := make(map[string]interface{}, len(series.Columns))
			for i, col := range series.Columns {
				if i < len(row) {
					cols[col] = row[i]
				}
			}

			lv := ports.LatestValue{NodeID: nodeID, Label: label}
			if v, ok := toFloat(cols["value"]); ok {
				lv.Value = v
				lv.HasValue = true
			}
			if fc, ok := toFloat(cols["from_cache"]); ok && fc == 1 {
				lv.FromCache = true
			}
			if ts, ok := toFloat(cols["time"]); ok {
				lv.Time = time.Unix(int64(ts), 0).UTC()
			}
			out = append(out, lv)
		}
	}
	return out, nil
}

// Close releases the underlying HTTP client.
func (s *Sink) Close() error { return s.client.Close() }

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return val, true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

var (
	_ ports.Sink          = (*Sink)(nil)
	_ ports.LatestQuerier = (*Sink)(nil)
)
