package otel

import (
	"context"
	"encoding/json"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/BR88C/discord-boilerplate/internal/telemetry"
)

// loggerName is the instrumentation scope of cycle event log records.
const loggerName = "discord-stats.reporter"

// recordEmitter is the part of otellog.Logger the adapter uses.
type recordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends cycle events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(loggerName)}
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger directly.
func NewEventEmitterWithLogger(logger recordEmitter) telemetry.EventEmitter {
	if logger == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.CycleEvent) error { return nil }

type otelEmitter struct {
	logger recordEmitter
}

// Emit converts the cycle event to an OTel log record. Failed cycles are emitted at ERROR severity.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.CycleEvent) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	if event.Outcome == telemetry.OutcomeFailure {
		rec.SetSeverity(otellog.SeverityError)
		rec.SetSeverityText("ERROR")
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetSeverityText("INFO")
	}
	if body, err := json.Marshal(event); err == nil {
		rec.SetBody(otellog.BytesValue(body))
	}
	rec.AddAttributes(
		otellog.String("cycle_id", event.CycleID),
		otellog.String("sink", event.Sink),
		otellog.String("trigger", event.Trigger),
		otellog.String("outcome", event.Outcome),
		otellog.Int64("duration_ms", event.DurationMs),
	)
	if event.Error != "" {
		rec.AddAttributes(otellog.String("error", event.Error))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
