// Package collector derives the gateway portion of a report from the connection-state collaborator.
package collector

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/BR88C/discord-boilerplate/internal/gateway"
	"github.com/BR88C/discord-boilerplate/internal/stats/domain"
)

// Collector reads shard, latency and response-code state. It never mutates the collaborator and
// never fails a report: a failed query degrades the affected field and is logged.
type Collector struct {
	state  gateway.State
	logger *zap.Logger
	nowF   func() time.Time
}

// New returns a Collector over state. logger may be nil.
func New(state gateway.State, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{state: state, logger: logger, nowF: time.Now}
}

// Collect returns a report with the shard, guild, latency, response-code and application id fields set.
// Shards are ordered by ascending id.
func (c *Collector) Collect(ctx context.Context) *domain.Report {
	r := &domain.Report{
		Shards:        []domain.ShardSnapshot{},
		ResponseCodes: map[int]uint64{},
		CollectedAt:   c.nowF(),
	}
	if c.state == nil {
		return r
	}

	shards, err := c.state.Shards(ctx)
	if err != nil {
		c.logger.Warn("stats: shard query failed, reporting zero shards", zap.Error(err))
		shards = nil
	}
	sorted := make([]gateway.ShardInfo, len(shards))
	copy(sorted, shards)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var latencySum float64
	var latencyCount int
	for _, s := range sorted {
		snap := domain.ShardSnapshot{ID: s.ID, Guilds: s.Guilds, State: s.State}
		d, err := c.state.ShardLatency(ctx, s.ID)
		switch {
		case err == nil:
			ms := float64(d) / float64(time.Millisecond)
			snap.LatencyMs = &ms
			if s.State == gateway.StateReady {
				latencySum += ms
				latencyCount++
			}
		case errors.Is(err, gateway.ErrLatencyPending):
		default:
			c.logger.Warn("stats: shard latency query failed, reporting 0",
				zap.Int("shard", s.ID), zap.Error(err))
			zero := 0.0
			snap.LatencyMs = &zero
		}
		r.Shards = append(r.Shards, snap)
		r.GuildCount += s.Guilds
	}
	r.ShardCount = len(r.Shards)
	if latencyCount > 0 {
		r.AvgLatencyMs = latencySum / float64(latencyCount)
	}

	if codes := c.state.ResponseCodes(); codes != nil {
		r.ResponseCodes = codes
	}
	if id, ok := c.state.ApplicationID(); ok {
		r.ApplicationID = id
	}
	return r
}
