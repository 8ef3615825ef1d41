// Package leaderboard posts the bot's guild and shard counts to a bot listing service.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/BR88C/discord-boilerplate/internal/rest"
	"github.com/BR88C/discord-boilerplate/internal/stats/domain"
)

// DefaultBaseURL is the top.gg API root.
const DefaultBaseURL = "https://top.gg/api"

var (
	// ErrMissingToken is returned by New when the sink is built without an API token.
	ErrMissingToken = errors.New("leaderboard: API token is required when the sink is enabled")
	// ErrNoApplicationID is returned by Send before the gateway has reported the bot's application id.
	ErrNoApplicationID = errors.New("leaderboard: application id not known yet, gateway has not identified")
)

// Config configures the sink.
type Config struct {
	Token             string
	IncludeShardCount bool
}

type statsPayload struct {
	ServerCount int  `json:"server_count"`
	ShardCount  *int `json:"shard_count,omitempty"`
}

// Sink sends one aggregate stats record per cycle.
type Sink struct {
	requester rest.Requester
	cfg       Config
}

// New returns a Sink. A missing token is a configuration error reported here rather than on the first cycle.
func New(requester rest.Requester, cfg Config) (*Sink, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	if requester == nil {
		requester = rest.NewClient(DefaultBaseURL, nil)
	}
	return &Sink{requester: requester, cfg: cfg}, nil
}

// Send posts the report's guild count, and shard count when configured.
func (s *Sink) Send(ctx context.Context, r *domain.Report) error {
	if r.ApplicationID == "" {
		return ErrNoApplicationID
	}
	body := statsPayload{ServerCount: r.GuildCount}
	if s.cfg.IncludeShardCount {
		n := r.ShardCount
		body.ShardCount = &n
	}
	path := "/bots/" + url.PathEscape(r.ApplicationID) + "/stats"
	if _, err := s.requester.Request(ctx, http.MethodPost, path, body, s.cfg.Token); err != nil {
		return fmt.Errorf("leaderboard: post stats: %w", err)
	}
	return nil
}
