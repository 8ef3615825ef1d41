// Package telemetry publishes the outcome of every stats reporting cycle to optional journals
// (OTel logs, Loki). Emission is best-effort: failures are logged and never affect reporting.
package telemetry

import (
	"context"
	"errors"
	"time"
)

// Outcomes of a cycle.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Triggers of a cycle.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// CycleEvent describes one finished reporting cycle.
type CycleEvent struct {
	CycleID    string    `json:"cycle_id"`
	Sink       string    `json:"sink"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventEmitter emits cycle events. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *CycleEvent) error
}

// Multi fans an event out to every non-nil emitter and joins their errors.
func Multi(emitters ...EventEmitter) EventEmitter {
	out := make(multi, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

type multi []EventEmitter

func (m multi) Emit(ctx context.Context, event *CycleEvent) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
