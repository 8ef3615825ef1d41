package domain

import (
	"time"

	"github.com/BR88C/discord-boilerplate/internal/gateway"
)

// ShardSnapshot is the per-cycle view of one shard.
type ShardSnapshot struct {
	ID     int
	Guilds int
	// LatencyMs is nil until the shard has a measured heartbeat round trip.
	LatencyMs *float64
	State     gateway.ShardState
}

// Report is the payload assembled for one sink cycle. It is built, consumed by one sink, then dropped.
type Report struct {
	CPUPercent   float64
	MemoryBytes  uint64
	ShardCount   int
	GuildCount   int
	AvgLatencyMs float64
	Shards       []ShardSnapshot // ascending by ID
	// Commands and CommandErrors are only populated for sinks that consume them.
	Commands      map[string]uint64
	CommandErrors map[string]uint64
	ResponseCodes map[int]uint64
	Extensions    []Record
	// ApplicationID is empty when the gateway has not identified yet.
	ApplicationID string
	CollectedAt   time.Time
}

// Record is a caller-supplied data point merged into a time-series report.
type Record struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
	// Time defaults to the report's CollectedAt when zero.
	Time time.Time
}
