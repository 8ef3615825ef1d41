package gateway

import (
	"context"
	"sort"
	"sync"
	"time"
)

type shardEntry struct {
	guilds     int
	state      ShardState
	latency    time.Duration
	hasLatency bool
}

// Tracker is an in-memory State fed by gateway events. Safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	shards map[int]*shardEntry
	codes  map[int]uint64
	appID  string
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		shards: make(map[int]*shardEntry),
		codes:  make(map[int]uint64),
	}
}

func (t *Tracker) entry(id int) *shardEntry {
	e, ok := t.shards[id]
	if !ok {
		e = &shardEntry{}
		t.shards[id] = e
	}
	return e
}

// SetShardState records a state transition. A shard that disconnects loses its latency
// until the next heartbeat acknowledgement.
func (t *Tracker) SetShardState(id int, state ShardState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(id)
	e.state = state
	if state == StateDisconnected {
		e.hasLatency = false
		e.latency = 0
	}
}

// SetShardGuilds records the number of guilds served by a shard.
func (t *Tracker) SetShardGuilds(id, guilds int) {
	if guilds < 0 {
		guilds = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(id).guilds = guilds
}

// SetShardLatency records a heartbeat round trip.
func (t *Tracker) SetShardLatency(id int, latency time.Duration) {
	if latency < 0 {
		latency = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entry(id)
	e.latency = latency
	e.hasLatency = true
}

// RecordResponse counts one REST response with the given status code.
func (t *Tracker) RecordResponse(code int) {
	t.mu.Lock()
	t.codes[code]++
	t.mu.Unlock()
}

// SetApplicationID records the bot's application id (from the READY payload or configuration).
func (t *Tracker) SetApplicationID(id string) {
	t.mu.Lock()
	t.appID = id
	t.mu.Unlock()
}

// Shards returns every known shard sorted by id.
func (t *Tracker) Shards(ctx context.Context) ([]ShardInfo, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ShardInfo, 0, len(t.shards))
	for id, e := range t.shards {
		out = append(out, ShardInfo{ID: id, Guilds: e.guilds, State: e.state})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ShardLatency returns the last heartbeat round trip of the shard.
func (t *Tracker) ShardLatency(ctx context.Context, id int) (time.Duration, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.shards[id]
	if !ok {
		return 0, ErrUnknownShard
	}
	if !e.hasLatency {
		return 0, ErrLatencyPending
	}
	return e.latency, nil
}

// ResponseCodes returns a copy of the response code tally.
func (t *Tracker) ResponseCodes() map[int]uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[int]uint64, len(t.codes))
	for k, v := range t.codes {
		out[k] = v
	}
	return out
}

// ApplicationID returns the application id if one has been recorded.
func (t *Tracker) ApplicationID() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.appID, t.appID != ""
}
