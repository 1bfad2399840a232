// Package dispatch routes one decoded event to every configured channel.
//
// A dispatch decodes the input once, evaluates each channel against the same
// immutable event and configuration snapshot in declaration order, and runs
// the selected handlers either one after another or on a bounded worker pool.
// Outcomes are always returned in configuration order.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/ariel-frischer/hookrelay/internal/config"
	"github.com/ariel-frischer/hookrelay/internal/event"
	"github.com/ariel-frischer/hookrelay/internal/filter"
	"github.com/ariel-frischer/hookrelay/internal/invoker"
	"github.com/ariel-frischer/hookrelay/internal/outcome"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner validates and runs channel handlers.
// This abstraction allows testing without spawning processes.
type Runner interface {
	// CheckPath statically validates a handler reference. Errors wrapping
	// invoker.ErrInvalidPath mark the channel SkippedInvalidPath.
	CheckPath(script string) error
	// Invoke runs the handler and reports what happened. It must not panic
	// and must honor timeout.
	Invoke(ctx context.Context, ch config.Channel, ev event.Event, timeout time.Duration) outcome.Outcome
}

// Recorder persists finished reports (the activity log)
type Recorder interface {
	Record(r Report) error
}

// Report is the result of one dispatch
type Report struct {
	ID       string
	Event    event.Event
	Outcomes []outcome.Outcome
	Started  time.Time
	Duration time.Duration
}

// Failed returns the outcomes that carry an error, in configuration order
func (r Report) Failed() []outcome.Outcome {
	var failed []outcome.Outcome
	for _, o := range r.Outcomes {
		if o.Failed() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Outcome returns the outcome for the named channel
func (r Report) Outcome(channel string) (outcome.Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Channel == channel {
			return o, true
		}
	}
	return outcome.Outcome{}, false
}

// Ran counts the channels whose handler was started
func (r Report) Ran() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Decision == outcome.Ran {
			n++
		}
	}
	return n
}

// Dispatcher routes events to channels. It holds no per-dispatch state and
// may be reused.
type Dispatcher struct {
	decoder     *event.Decoder
	runner      Runner
	clock       func() time.Time
	concurrency int
	logger      *zap.Logger
	recorder    Recorder
}

// Option is a functional option for configuring a Dispatcher
type Option func(*Dispatcher)

// WithDecoder sets the event decoder (default: the standard encoding chain)
func WithDecoder(d *event.Decoder) Option {
	return func(ds *Dispatcher) {
		ds.decoder = d
	}
}

// WithClock sets the time source used for quiet-hours evaluation
func WithClock(clock func() time.Time) Option {
	return func(ds *Dispatcher) {
		ds.clock = clock
	}
}

// WithConcurrency sets how many handlers may run at once. Values below 2 run
// handlers sequentially.
func WithConcurrency(n int) Option {
	return func(ds *Dispatcher) {
		ds.concurrency = n
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(l *zap.Logger) Option {
	return func(ds *Dispatcher) {
		ds.logger = l
	}
}

// WithRecorder sets where finished reports are recorded
func WithRecorder(r Recorder) Option {
	return func(ds *Dispatcher) {
		ds.recorder = r
	}
}

// New creates a Dispatcher that runs handlers through runner
func New(runner Runner, opts ...Option) *Dispatcher {
	ds := &Dispatcher{
		runner:      runner,
		clock:       time.Now,
		concurrency: config.DefaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ds)
	}
	if ds.decoder == nil {
		ds.decoder, _ = event.NewDecoder(nil)
	}
	return ds
}

// Decode decodes raw input with the dispatcher's decoder
func (ds *Dispatcher) Decode(raw []byte) event.Event {
	return ds.decoder.Decode(raw)
}

// Dispatch decodes raw once and routes the event to channels
func (ds *Dispatcher) Dispatch(ctx context.Context, raw []byte, channels []config.Channel, global config.Global) Report {
	return ds.DispatchEvent(ctx, ds.decoder.Decode(raw), channels, global)
}

// DispatchEvent routes an already decoded event to channels. It never fails:
// every channel gets exactly one outcome and no channel's result affects
// another's eligibility.
func (ds *Dispatcher) DispatchEvent(ctx context.Context, ev event.Event, channels []config.Channel, global config.Global) Report {
	report := Report{
		ID:       uuid.NewString(),
		Event:    ev,
		Outcomes: make([]outcome.Outcome, len(channels)),
		Started:  ds.clock(),
	}
	log := ds.logger.With(
		zap.String("dispatch", report.ID),
		zap.String("event", string(ev.Type)),
		zap.String("tool", ev.ToolName),
	)
	if ev.Recovered {
		log.Debug("event recovered from malformed input")
	}

	selected := ds.plan(ev, channels, global, report.Started, report.Outcomes)
	ds.run(ctx, ev, channels, selected, report.Outcomes)
	report.Duration = ds.clock().Sub(report.Started)

	for _, o := range report.Outcomes {
		fields := []zap.Field{
			zap.String("channel", o.Channel),
			zap.String("decision", o.Decision.String()),
		}
		if o.Failed() {
			fields = append(fields, zap.String("error", o.Error))
			if o.Stderr != "" {
				fields = append(fields, zap.String("stderr", o.Stderr))
			}
			log.Warn("channel failed", fields...)
			continue
		}
		log.Debug("channel done", append(fields, zap.Duration("duration", o.Duration))...)
	}

	if ds.recorder != nil {
		if err := ds.recorder.Record(report); err != nil {
			log.Warn("recording activity", zap.Error(err))
		}
	}
	return report
}

// plan fills the outcome of every channel that will not run and returns the
// indexes of the channels to invoke. Path checks come first so an unsafe
// reference is reported even for channels the filter would skip.
func (ds *Dispatcher) plan(ev event.Event, channels []config.Channel, global config.Global, now time.Time, outcomes []outcome.Outcome) []int {
	selected := make([]int, 0, len(channels))
	for i, ch := range channels {
		outcomes[i] = outcome.Outcome{Channel: ch.Name}

		if err := ds.runner.CheckPath(ch.Script); errors.Is(err, invoker.ErrInvalidPath) {
			outcomes[i].Decision = outcome.SkippedInvalidPath
			outcomes[i].Error = err.Error()
			continue
		}

		decision := filter.Evaluate(ev, ch, global, now)
		if decision.Skipped() {
			outcomes[i].Decision = decision
			continue
		}
		selected = append(selected, i)
	}
	return selected
}

// run invokes the selected channels and stores each outcome at its channel's
// index. Handlers share nothing but the read-only event, so a slow or failing
// one never holds up the others beyond the pool limit.
func (ds *Dispatcher) run(ctx context.Context, ev event.Event, channels []config.Channel, selected []int, outcomes []outcome.Outcome) {
	if ds.concurrency < 2 || len(selected) < 2 {
		for _, i := range selected {
			outcomes[i] = ds.invoke(ctx, channels[i], ev)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(ds.concurrency)
	for _, i := range selected {
		g.Go(func() error {
			outcomes[i] = ds.invoke(ctx, channels[i], ev)
			return nil
		})
	}
	_ = g.Wait()
}

// invoke runs one handler and guarantees a well-formed outcome even if the
// runner misbehaves
func (ds *Dispatcher) invoke(ctx context.Context, ch config.Channel, ev event.Event) (o outcome.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			ds.logger.Error("handler runner panicked", zap.String("channel", ch.Name), zap.Any("panic", r))
			o = outcome.Outcome{Channel: ch.Name, Decision: outcome.Ran, Error: "runner panic"}
		}
	}()

	o = ds.runner.Invoke(ctx, ch, ev, ch.Timeout)
	o.Channel = ch.Name
	return o
}
