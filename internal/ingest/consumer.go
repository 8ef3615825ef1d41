package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/BR88C/discord-boilerplate/internal/stats/domain"
)

const (
	// unhealthyAfter is the number of consecutive read failures after which Healthy reports false.
	unhealthyAfter = 5
	readBackoff    = time.Second
)

// MessageReader is the subset of *kafka.Reader the Consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReaderConfig selects the topic and consumer group.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewReader returns a group reader committing offsets every second.
func NewReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Consumer reads events and hands them to a Handler until its context ends.
type Consumer struct {
	reader   MessageReader
	handler  *Handler
	logger   *zap.Logger
	backoff  time.Duration
	failures atomic.Int32
	applied  atomic.Uint64
}

// NewConsumer returns a Consumer. logger may be nil.
func NewConsumer(reader MessageReader, handler *Handler, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{reader: reader, handler: handler, logger: logger, backoff: readBackoff}
}

// Run consumes until ctx is cancelled. Malformed or unknown events are logged and skipped.
// Read errors are logged and retried after a short backoff.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			n := c.failures.Add(1)
			c.logger.Warn("ingest: kafka read error", zap.Error(err), zap.Int32("consecutive_failures", n))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.backoff):
			}
			continue
		}
		c.failures.Store(0)

		event, err := Decode(msg.Value)
		if err != nil {
			c.logger.Warn("ingest: skipping malformed event",
				zap.Error(err), zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
			continue
		}
		if err := c.handler.Handle(event); err != nil {
			level := zap.WarnLevel
			if errors.Is(err, ErrUnknownType) {
				level = zap.InfoLevel
			}
			c.logger.Log(level, "ingest: skipping event", zap.String("type", event.Type), zap.Error(err))
			continue
		}
		c.applied.Add(1)
	}
}

// Healthy reports false while the reader is failing persistently.
func (c *Consumer) Healthy() bool {
	return c.failures.Load() < unhealthyAfter
}

// Applied is the number of events applied since start.
func (c *Consumer) Applied() uint64 {
	return c.applied.Load()
}

// Records reports the consumer's own state as an "ingest" measurement. It matches the
// reporter's extension hook signature so each Influx cycle carries ingest health.
func (c *Consumer) Records(ctx context.Context) ([]domain.Record, error) {
	return []domain.Record{{
		Measurement: "ingest",
		Fields: map[string]any{
			"events_applied": int64(c.Applied()),
			"healthy":        c.Healthy(),
		},
	}}, nil
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
