// Package ingest consumes bot events from Kafka and applies them to the command tallies and the
// gateway tracker. Producer publishes the same events from a bot process.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event types.
const (
	TypeCommand      = "command"
	TypeCommandError = "command_error"
	TypeShardState   = "shard_state"
	TypeShardGuilds  = "shard_guilds"
	TypeShardLatency = "shard_latency"
	TypeHTTPResponse = "http_response"
	TypeReady        = "ready"
)

// ErrUnknownType is returned for an event whose Type is not one of the declared types.
var ErrUnknownType = errors.New("ingest: unknown event type")

// Event is the JSON payload of one message on the bot events topic. Only the fields relevant
// to Type are read.
type Event struct {
	Type          string    `json:"type"`
	Command       string    `json:"command,omitempty"`
	Shard         int       `json:"shard,omitempty"`
	State         string    `json:"state,omitempty"`
	Guilds        int       `json:"guilds,omitempty"`
	LatencyMs     float64   `json:"latency_ms,omitempty"`
	Code          int       `json:"code,omitempty"`
	ApplicationID string    `json:"application_id,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// Decode parses a message value into an Event.
func Decode(raw []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("ingest: decode event: %w", err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("ingest: decode event: missing type")
	}
	return &e, nil
}

// Latency returns LatencyMs as a duration.
func (e *Event) Latency() time.Duration {
	return time.Duration(e.LatencyMs * float64(time.Millisecond))
}
