// Package influx encodes reports as InfluxDB points and writes them in one batch per cycle.
package influx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/BR88C/discord-boilerplate/internal/stats/domain"
)

// Measurement names written by the sink.
const (
	MeasurementProcess      = "process"
	MeasurementCommand      = "command"
	MeasurementCommandError = "command_error"
	MeasurementHTTPResponse = "http_response"
	MeasurementShard        = "shard"
)

// ErrMissingConfig is returned by New when a required connection setting is empty.
var ErrMissingConfig = errors.New("influx: url, token, org and bucket are required")

// Config configures the sink.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// Tags are merged into every point; point-specific tags win.
	Tags map[string]string
}

// Sink writes reports to InfluxDB v2.
type Sink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	tags   map[string]string
}

// New returns a Sink for cfg. It does not contact the server.
func New(cfg Config) (*Sink, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, ErrMissingConfig
	}
	opts := influxdb2.DefaultOptions().SetPrecision(time.Nanosecond)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	tags := make(map[string]string, len(cfg.Tags))
	for k, v := range cfg.Tags {
		tags[k] = v
	}
	return &Sink{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		tags:   tags,
	}, nil
}

// Send encodes r and writes all points in a single request, then flushes the writer.
// The cycle is complete only once the flush returns.
func (s *Sink) Send(ctx context.Context, r *domain.Report) error {
	points := Encode(r, s.tags)
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx: write %d points: %w", len(points), err)
	}
	if err := s.writer.Flush(ctx); err != nil {
		return fmt.Errorf("influx: flush: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *Sink) Close() {
	if s != nil && s.client != nil {
		s.client.Close()
	}
}

// Encode converts a report into points: one process point, one per command, one per erroring
// command, one per response code, one per shard, followed by the report's extension records.
func Encode(r *domain.Report, fixed map[string]string) []*write.Point {
	ts := r.CollectedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	points := make([]*write.Point, 0, 1+len(r.Commands)+len(r.CommandErrors)+len(r.ResponseCodes)+len(r.Shards)+len(r.Extensions))

	points = append(points, influxdb2.NewPoint(MeasurementProcess, mergeTags(fixed, nil), map[string]any{
		"cpu_percent":  r.CPUPercent,
		"memory_bytes": int64(r.MemoryBytes),
		"shards":       int64(r.ShardCount),
		"guilds":       int64(r.GuildCount),
		"avg_ping_ms":  r.AvgLatencyMs,
	}, ts))

	for name, n := range r.Commands {
		points = append(points, influxdb2.NewPoint(MeasurementCommand,
			mergeTags(fixed, map[string]string{"command": name}),
			map[string]any{"count": int64(n)}, ts))
	}
	for name, n := range r.CommandErrors {
		points = append(points, influxdb2.NewPoint(MeasurementCommandError,
			mergeTags(fixed, map[string]string{"command": name}),
			map[string]any{"count": int64(n)}, ts))
	}
	for code, n := range r.ResponseCodes {
		points = append(points, influxdb2.NewPoint(MeasurementHTTPResponse,
			mergeTags(fixed, map[string]string{"code": strconv.Itoa(code)}),
			map[string]any{"count": int64(n)}, ts))
	}
	for _, sh := range r.Shards {
		fields := map[string]any{
			"guilds": int64(sh.Guilds),
			"state":  sh.State.String(),
		}
		if sh.LatencyMs != nil {
			fields["ping_ms"] = *sh.LatencyMs
		}
		points = append(points, influxdb2.NewPoint(MeasurementShard,
			mergeTags(fixed, map[string]string{"shard": strconv.Itoa(sh.ID)}),
			fields, ts))
	}
	for _, rec := range r.Extensions {
		if rec.Measurement == "" || len(rec.Fields) == 0 {
			continue
		}
		rts := rec.Time
		if rts.IsZero() {
			rts = ts
		}
		points = append(points, influxdb2.NewPoint(rec.Measurement, mergeTags(fixed, rec.Tags), rec.Fields, rts))
	}
	return points
}

// mergeTags combines fixed and record tags, record tags winning. Tags with an empty key or value
// are dropped since line protocol rejects them and would fail the whole batch.
func mergeTags(fixed, own map[string]string) map[string]string {
	out := make(map[string]string, len(fixed)+len(own))
	for k, v := range fixed {
		if k != "" && v != "" {
			out[k] = v
		}
	}
	for k, v := range own {
		if k == "" {
			continue
		}
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}
