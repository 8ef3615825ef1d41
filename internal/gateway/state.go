// Package gateway defines the read-only view of the bot's live gateway connection that the stats
// engine consumes, and an in-memory Tracker implementing it from observed gateway events.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLatencyPending is returned by ShardLatency when the shard has not completed a heartbeat round trip yet.
var ErrLatencyPending = errors.New("gateway: shard latency not yet measured")

// ErrUnknownShard is returned by ShardLatency for a shard id the state has never seen.
var ErrUnknownShard = errors.New("gateway: unknown shard")

// ShardState is the connection state of a single shard.
type ShardState int

const (
	StateConnecting ShardState = iota
	StateIdentifying
	StateResuming
	StateReady
	StateDisconnected
)

var shardStateNames = [...]string{
	StateConnecting:   "connecting",
	StateIdentifying:  "identifying",
	StateResuming:     "resuming",
	StateReady:        "ready",
	StateDisconnected: "disconnected",
}

// String returns the lower-case state name.
func (s ShardState) String() string {
	if s < 0 || int(s) >= len(shardStateNames) {
		return fmt.Sprintf("unknown(%d)", int(s))
	}
	return shardStateNames[s]
}

// ParseShardState parses a state name as produced by String. Matching is case-insensitive.
func ParseShardState(name string) (ShardState, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range shardStateNames {
		if s == n {
			return ShardState(i), nil
		}
	}
	return 0, fmt.Errorf("gateway: unknown shard state %q", name)
}

// ShardInfo is the point-in-time view of one shard.
type ShardInfo struct {
	ID     int
	Guilds int
	State  ShardState
}

// State is the connection-state collaborator. All methods are reads.
type State interface {
	// Shards returns every known shard. Order is not guaranteed.
	Shards(ctx context.Context) ([]ShardInfo, error)
	// ShardLatency returns the last measured heartbeat round trip of the shard, or ErrLatencyPending.
	ShardLatency(ctx context.Context, id int) (time.Duration, error)
	// ResponseCodes returns a copy of the tally of REST response status codes.
	ResponseCodes() map[int]uint64
	// ApplicationID returns the bot's application id once known.
	ApplicationID() (string, bool)
}
