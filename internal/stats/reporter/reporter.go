// Package reporter drives the periodic reporting cycles: one schedule per sink, an overlap guard
// per schedule, on-demand cycles, and the extension hook that contributes records to Influx cycles.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BR88C/discord-boilerplate/internal/process"
	"github.com/BR88C/discord-boilerplate/internal/stats/domain"
	"github.com/BR88C/discord-boilerplate/internal/tally"
	"github.com/BR88C/discord-boilerplate/internal/telemetry"
)

// Sink names accepted by ReportNow.
const (
	SinkInflux      = "influx"
	SinkLeaderboard = "leaderboard"
)

// DefaultHookTimeout bounds a single extension hook invocation.
const DefaultHookTimeout = 5 * time.Second

const instrumentationName = "github.com/BR88C/discord-boilerplate/internal/stats/reporter"

var (
	// ErrUnknownSink is returned by ReportNow for a name other than SinkInflux or SinkLeaderboard.
	ErrUnknownSink = errors.New("reporter: unknown sink")
	// ErrSinkDisabled is returned by ReportNow when the named sink is not configured.
	ErrSinkDisabled = errors.New("reporter: sink not configured")
)

// Sink transmits one assembled report.
type Sink interface {
	Send(ctx context.Context, r *domain.Report) error
}

// ExtensionHook returns caller-supplied records to append to an Influx cycle.
type ExtensionHook func(ctx context.Context) ([]domain.Record, error)

// Collector builds the gateway portion of a report.
type Collector interface {
	Collect(ctx context.Context) *domain.Report
}

// CPUSampler yields CPU utilization since its previous sample.
type CPUSampler interface {
	Sample() (process.CPUSample, float64, error)
}

// Config selects sinks and their intervals. A nil sink is disabled; an interval <= 0 never fires.
type Config struct {
	Influx              Sink
	InfluxInterval      time.Duration
	Leaderboard         Sink
	LeaderboardInterval time.Duration
	HookTimeout         time.Duration
}

// Deps are the collaborators a Reporter reads from. Every field is optional.
type Deps struct {
	Collector Collector
	Commands  *tally.Commands
	CPU       CPUSampler
	Memory    func() uint64
	Emitter   telemetry.EventEmitter
	Logger    *zap.Logger
	Tracer    trace.Tracer
	Meter     metric.Meter
}

type schedule struct {
	name     string
	sink     Sink
	interval time.Duration
	running  atomic.Bool
	assemble func(ctx context.Context) *domain.Report
}

// Reporter owns the per-sink schedules.
type Reporter struct {
	deps        Deps
	logger      *zap.Logger
	tracer      trace.Tracer
	hookTimeout time.Duration
	schedules   map[string]*schedule

	hookMu sync.RWMutex
	hook   ExtensionHook

	tickerFn func(time.Duration) (<-chan time.Time, func())

	mu        sync.Mutex
	runCtx    context.Context
	cancelRun context.CancelFunc
	started   bool
	stopped   bool
	stopCh    chan struct{}
	loops     sync.WaitGroup
	cycles    sync.WaitGroup

	dropped      atomic.Uint64
	cycleCounter metric.Int64Counter
	cycleTime    metric.Float64Histogram
	dropCounter  metric.Int64Counter
}

// New returns a Reporter. Schedules are not armed until Start.
func New(cfg Config, deps Deps) *Reporter {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	hookTimeout := cfg.HookTimeout
	if hookTimeout <= 0 {
		hookTimeout = DefaultHookTimeout
	}
	r := &Reporter{
		deps:        deps,
		logger:      logger,
		tracer:      tracer,
		hookTimeout: hookTimeout,
		tickerFn:    newTicker,
		stopCh:      make(chan struct{}),
	}
	r.schedules = map[string]*schedule{
		SinkInflux:      {name: SinkInflux, sink: cfg.Influx, interval: cfg.InfluxInterval, assemble: r.assembleInflux},
		SinkLeaderboard: {name: SinkLeaderboard, sink: cfg.Leaderboard, interval: cfg.LeaderboardInterval, assemble: r.collect},
	}
	r.initInstruments(meter)
	return r
}

func (r *Reporter) initInstruments(meter metric.Meter) {
	var err error
	if r.cycleCounter, err = meter.Int64Counter("stats.cycles",
		metric.WithDescription("Reporting cycles by sink and outcome")); err != nil {
		r.logger.Warn("stats: create cycle counter", zap.Error(err))
	}
	if r.cycleTime, err = meter.Float64Histogram("stats.cycle.duration",
		metric.WithDescription("Reporting cycle duration"), metric.WithUnit("ms")); err != nil {
		r.logger.Warn("stats: create cycle histogram", zap.Error(err))
	}
	if r.dropCounter, err = meter.Int64Counter("stats.ticks.dropped",
		metric.WithDescription("Ticks dropped because the previous cycle was still running")); err != nil {
		r.logger.Warn("stats: create dropped counter", zap.Error(err))
	}
}

func newTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// RegisterExtensionHook installs fn for subsequent Influx cycles, replacing any previous hook. nil clears it.
func (r *Reporter) RegisterExtensionHook(fn ExtensionHook) {
	r.hookMu.Lock()
	r.hook = fn
	r.hookMu.Unlock()
}

func (r *Reporter) currentHook() ExtensionHook {
	r.hookMu.RLock()
	defer r.hookMu.RUnlock()
	return r.hook
}

// DroppedTicks is the number of scheduled ticks skipped because a cycle was already running.
func (r *Reporter) DroppedTicks() uint64 {
	return r.dropped.Load()
}

// Start arms a schedule for every configured sink with a positive interval. Cancelling ctx stops
// new ticks but never an in-flight cycle: cycles carry ctx's values without its cancellation and
// are only cancelled when Stop's deadline expires. Calling Start more than once has no effect.
func (r *Reporter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.stopped {
		return
	}
	r.started = true
	r.runCtx, r.cancelRun = context.WithCancel(context.WithoutCancel(ctx))

	for _, name := range []string{SinkInflux, SinkLeaderboard} {
		s := r.schedules[name]
		if s.sink == nil || s.interval <= 0 {
			r.logger.Info("stats: schedule disabled", zap.String("sink", name))
			continue
		}
		r.logger.Info("stats: schedule armed", zap.String("sink", name), zap.Duration("interval", s.interval))
		r.loops.Add(1)
		go r.loop(ctx, s)
	}
}

// Stop tears down the schedules and waits for in-flight cycles. If ctx ends first, the remaining
// cycles are cancelled and ctx.Err() is returned.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.stopCh)
	cancel := r.cancelRun
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	defer cancel()

	r.loops.Wait()
	done := make(chan struct{})
	go func() {
		r.cycles.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("stats: stop deadline reached with cycles in flight", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// loop delivers ticks until Stop or until the Start context ends.
func (r *Reporter) loop(ctx context.Context, s *schedule) {
	defer r.loops.Done()
	ticks, stop := r.tickerFn(s.interval)
	defer stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticks:
			r.tick(s)
		}
	}
}

// tick starts a cycle unless the previous one for the same sink is still running.
func (r *Reporter) tick(s *schedule) {
	ctx := r.runCtx
	if !s.running.CompareAndSwap(false, true) {
		r.dropped.Add(1)
		if r.dropCounter != nil {
			r.dropCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", s.name)))
		}
		r.logger.Debug("stats: previous cycle still running, tick dropped", zap.String("sink", s.name))
		return
	}
	r.cycles.Add(1)
	go func() {
		defer r.cycles.Done()
		defer s.running.Store(false)
		_ = r.runCycle(ctx, s, telemetry.TriggerSchedule)
	}()
}

// ReportNow runs one cycle for sink synchronously and returns its error. It ignores the overlap guard.
func (r *Reporter) ReportNow(ctx context.Context, sink string) error {
	s, ok := r.schedules[sink]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSink, sink)
	}
	if s.sink == nil {
		return fmt.Errorf("%w: %s", ErrSinkDisabled, sink)
	}
	return r.runCycle(ctx, s, telemetry.TriggerManual)
}

func (r *Reporter) runCycle(ctx context.Context, s *schedule, trigger string) (err error) {
	cycleID := uuid.NewString()
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "stats.cycle", trace.WithAttributes(
		attribute.String("sink", s.name),
		attribute.String("trigger", trigger),
		attribute.String("cycle_id", cycleID),
	))
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reporter: %s cycle panicked: %v", s.name, rec)
		}
		r.finish(ctx, span, s.name, trigger, cycleID, time.Since(start), err)
	}()

	report := s.assemble(ctx)
	return s.sink.Send(ctx, report)
}

func (r *Reporter) finish(ctx context.Context, span trace.Span, sink, trigger, cycleID string, elapsed time.Duration, err error) {
	defer span.End()
	outcome := telemetry.OutcomeSuccess
	event := &telemetry.CycleEvent{
		CycleID:    cycleID,
		Sink:       sink,
		Trigger:    trigger,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if err != nil {
		outcome = telemetry.OutcomeFailure
		event.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("stats: report cycle failed",
			zap.String("sink", sink),
			zap.String("cycle_id", cycleID),
			zap.String("trigger", trigger),
			zap.Error(err),
		)
	} else {
		r.logger.Info("stats: report cycle complete",
			zap.String("sink", sink),
			zap.String("cycle_id", cycleID),
			zap.String("trigger", trigger),
			zap.Duration("duration", elapsed),
		)
	}
	event.Outcome = outcome

	attrs := metric.WithAttributes(attribute.String("sink", sink), attribute.String("outcome", outcome))
	if r.cycleCounter != nil {
		r.cycleCounter.Add(ctx, 1, attrs)
	}
	if r.cycleTime != nil {
		r.cycleTime.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}
	telemetry.EmitAsync(r.deps.Emitter, r.logger, event)
}

// collect returns the gateway portion of a report. Used as-is by the leaderboard cycle.
func (r *Reporter) collect(ctx context.Context) *domain.Report {
	if r.deps.Collector == nil {
		return &domain.Report{
			Shards:        []domain.ShardSnapshot{},
			ResponseCodes: map[int]uint64{},
			CollectedAt:   time.Now(),
		}
	}
	return r.deps.Collector.Collect(ctx)
}

// assembleInflux adds process metrics, command tallies and extension records to the collected report.
// It is the only cycle that samples CPU.
func (r *Reporter) assembleInflux(ctx context.Context) *domain.Report {
	report := r.collect(ctx)
	if r.deps.CPU != nil {
		if _, pct, err := r.deps.CPU.Sample(); err != nil {
			r.logger.Warn("stats: cpu sample failed, reporting 0", zap.Error(err))
		} else {
			report.CPUPercent = pct
		}
	}
	if r.deps.Memory != nil {
		report.MemoryBytes = r.deps.Memory()
	}
	if r.deps.Commands != nil {
		report.Commands = r.deps.Commands.Invoked.Snapshot()
		report.CommandErrors = r.deps.Commands.Errored.Snapshot()
	}
	report.Extensions = r.runHook(ctx)
	return report
}

type hookResult struct {
	records []domain.Record
	err     error
}

// runHook invokes the registered hook under hookTimeout. A hook that outlives the timeout is
// abandoned; its result is discarded.
func (r *Reporter) runHook(ctx context.Context) []domain.Record {
	hook := r.currentHook()
	if hook == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.hookTimeout)
	defer cancel()

	done := make(chan hookResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- hookResult{err: fmt.Errorf("extension hook panicked: %v", rec)}
			}
		}()
		records, err := hook(ctx)
		done <- hookResult{records: records, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			r.logger.Warn("stats: extension hook failed, continuing without extension records", zap.Error(res.err))
			return nil
		}
		return res.records
	case <-ctx.Done():
		r.logger.Warn("stats: extension hook timed out, continuing without extension records",
			zap.Duration("timeout", r.hookTimeout), zap.Error(ctx.Err()))
		return nil
	}
}
