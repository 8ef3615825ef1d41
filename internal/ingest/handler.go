package ingest

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BR88C/discord-boilerplate/internal/gateway"
	"github.com/BR88C/discord-boilerplate/internal/tally"
)

// ErrMissingCommand is returned for a command event with a blank command name.
var ErrMissingCommand = errors.New("ingest: command event without a command name")

// Handler applies events to the in-memory state read by the reporter.
type Handler struct {
	tracker  *gateway.Tracker
	commands *tally.Commands
	logger   *zap.Logger
}

// NewHandler returns a Handler writing to tracker and commands. logger may be nil.
func NewHandler(tracker *gateway.Tracker, commands *tally.Commands, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{tracker: tracker, commands: commands, logger: logger}
}

// Handle applies one event. It returns ErrUnknownType for an unrecognized type, ErrMissingCommand
// for a command event without a name, and an error for an unparseable shard state; the state is
// left untouched in each case. A command_error without a name counts against tally.UnknownCommand.
func (h *Handler) Handle(e *Event) error {
	if e == nil {
		return nil
	}
	switch e.Type {
	case TypeCommand:
		if strings.TrimSpace(e.Command) == "" {
			return ErrMissingCommand
		}
		h.commands.NotifyCommandInvoked(e.Command)
	case TypeCommandError:
		h.commands.NotifyCommandErrored(e.Command)
	case TypeShardState:
		state, err := gateway.ParseShardState(e.State)
		if err != nil {
			return fmt.Errorf("ingest: shard %d: %w", e.Shard, err)
		}
		h.tracker.SetShardState(e.Shard, state)
	case TypeShardGuilds:
		h.tracker.SetShardGuilds(e.Shard, e.Guilds)
	case TypeShardLatency:
		h.tracker.SetShardLatency(e.Shard, e.Latency())
	case TypeHTTPResponse:
		h.tracker.RecordResponse(e.Code)
	case TypeReady:
		if e.ApplicationID != "" {
			h.tracker.SetApplicationID(e.ApplicationID)
		}
		h.tracker.SetShardState(e.Shard, gateway.StateReady)
		if e.Guilds > 0 {
			h.tracker.SetShardGuilds(e.Shard, e.Guilds)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	h.logger.Debug("ingest: event applied", zap.String("type", e.Type), zap.Int("shard", e.Shard))
	return nil
}
