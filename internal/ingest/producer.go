package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/BR88C/discord-boilerplate/internal/gateway"
)

// ErrNoBrokers is returned by NewProducer when brokers or topic are empty.
var ErrNoBrokers = errors.New("ingest: brokers and topic are required")

// MessageWriter is the subset of *kafka.Writer the Producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes bot events to the events topic. Bot processes use it to feed the daemon.
type Producer struct {
	writer MessageWriter
	logger *zap.Logger
	nowF   func() time.Time
}

// NewProducer returns a Producer writing to topic. Call Close when shutting down.
func NewProducer(brokers []string, topic string, logger *zap.Logger) (*Producer, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, ErrNoBrokers
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return NewProducerWithWriter(writer, logger), nil
}

// NewProducerWithWriter returns a Producer over an existing writer.
func NewProducerWithWriter(writer MessageWriter, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{writer: writer, logger: logger, nowF: time.Now}
}

// Publish serializes the event as JSON and writes it keyed by type, bounded by a short timeout.
func (p *Producer) Publish(ctx context.Context, e *Event) error {
	if p == nil || p.writer == nil || e == nil {
		return nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = p.nowF().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(writeCtx, kafka.Message{Key: []byte(e.Type), Value: payload}); err != nil {
		p.logger.Warn("ingest: kafka publish failed", zap.String("type", e.Type), zap.Error(err))
		return err
	}
	return nil
}

// CommandInvoked publishes a command event.
func (p *Producer) CommandInvoked(ctx context.Context, name string) error {
	return p.Publish(ctx, &Event{Type: TypeCommand, Command: name})
}

// CommandErrored publishes a command_error event.
func (p *Producer) CommandErrored(ctx context.Context, name string) error {
	return p.Publish(ctx, &Event{Type: TypeCommandError, Command: name})
}

// ShardState publishes a shard_state event.
func (p *Producer) ShardState(ctx context.Context, shard int, state gateway.ShardState) error {
	return p.Publish(ctx, &Event{Type: TypeShardState, Shard: shard, State: state.String()})
}

// ShardLatency publishes a shard_latency event.
func (p *Producer) ShardLatency(ctx context.Context, shard int, latency time.Duration) error {
	return p.Publish(ctx, &Event{Type: TypeShardLatency, Shard: shard, LatencyMs: float64(latency) / float64(time.Millisecond)})
}

// ShardGuilds publishes a shard_guilds event.
func (p *Producer) ShardGuilds(ctx context.Context, shard, guilds int) error {
	return p.Publish(ctx, &Event{Type: TypeShardGuilds, Shard: shard, Guilds: guilds})
}

// HTTPResponse publishes an http_response event for one REST call made by the bot.
func (p *Producer) HTTPResponse(ctx context.Context, code int) error {
	return p.Publish(ctx, &Event{Type: TypeHTTPResponse, Code: code})
}

// Ready publishes a ready event. applicationID may be empty after a resume.
func (p *Producer) Ready(ctx context.Context, shard, guilds int, applicationID string) error {
	return p.Publish(ctx, &Event{Type: TypeReady, Shard: shard, Guilds: guilds, ApplicationID: applicationID})
}

// Close closes the Kafka writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
