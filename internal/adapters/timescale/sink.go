package timescale

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/navarlu/Historian/internal/domain"
	"github.com/navarlu/Historian/internal/ports"
)

// Config selects the alternative SQL sink.
type Config struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

// Sink writes point batches into a TimescaleDB hypertable. Tags and fields
// are stored as JSONB so the raw and loop measurements share one table.
// Retention policies are an Influx concept; this sink ignores them.
type Sink struct {
	db    *sql.DB
	table string
}

func NewSink(db *sql.DB, table string) *Sink {
	if table == "" {
		table = "points"
	}
	return &Sink{db: db, table: table}
}

func (s *Sink) Name() string { return "timescaledb" }

func (s *Sink) WriteBatch(points []domain.Point, _ ports.WriteOptions) error {
	if len(points) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(s.table)
	b.WriteString(" (measurement, tags, ts, fields) VALUES ")

	args := make([]any, 0, len(points)*4)
	for i, p := range points {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4))

		tags, err := json.Marshal(p.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		fields, err := json.Marshal(p.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}

		args = append(args, p.Measurement, tags, time.Unix(p.Time, 0).UTC(), fields)
	}

	b.WriteString(" ON CONFLICT (measurement, tags, ts) DO NOTHING")

	_, err := s.db.Exec(b.String(), args...)
	return err
}

var _ ports.Sink = (*Sink)(nil)
