package processor

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixelvide/wq-go/pkg/queue"
)

type action int

const (
	actionDelete action = iota
	actionBury
	actionMove
)

// Disposition says what happens to a finished or expired job.
type Disposition struct {
	action action
	queue  string
}

var (
	// Delete removes the job from the work server.
	Delete = Disposition{action: actionDelete}
	// Bury keeps the job for inspection. Only valid for expired jobs.
	Bury = Disposition{action: actionBury}
)

// MoveTo re-queues the job into another work queue, without delay.
//
// Naming the queue the job came from makes the processor run it over and
// over; the processor logs a warning when that happens.
func MoveTo(queueName string) Disposition {
	return Disposition{action: actionMove, queue: queueName}
}

// Queue returns the target queue of a MoveTo disposition.
func (d Disposition) Queue() string {
	return d.queue
}

func (d Disposition) String() string {
	switch d.action {
	case actionDelete:
		return "delete"
	case actionBury:
		return "bury"
	default:
		return "move to " + d.queue
	}
}

// Options are the policy settings of a Processor.
type Options struct {
	// Retry allows re-queueing failed jobs whose CanRetry says so.
	// If false, every failed job is handled as if it could not be retried.
	Retry bool
	// Bury buries jobs that failed for good. If false, they are deleted.
	Bury bool
	// OnSuccess is Delete or MoveTo(queue).
	OnSuccess Disposition
	// OnExpiry is Delete, Bury or MoveTo(queue).
	OnExpiry Disposition
	// Rethrow makes ProcessNextJob return handler errors to its caller
	// after the job has been finalized.
	Rethrow bool
}

// DefaultOptions returns the settings a Processor starts with.
func DefaultOptions() Options {
	return Options{
		Retry:     true,
		Bury:      true,
		OnSuccess: Delete,
		OnExpiry:  Delete,
		Rethrow:   true,
	}
}

func (o Options) validate() error {
	if o.OnSuccess.action == actionBury {
		return &queue.OptionValueError{Option: "OnSuccess", Value: o.OnSuccess, Reason: "finished jobs can only be deleted or moved"}
	}
	for name, d := range map[string]Disposition{"OnSuccess": o.OnSuccess, "OnExpiry": o.OnExpiry} {
		if d.action == actionMove && d.queue == "" {
			return &queue.OptionValueError{Option: name, Value: d, Reason: "missing target queue name"}
		}
	}
	return nil
}

// Option configures a Processor.
type Option func(*Processor)

// WithOptions replaces all policy settings at once.
func WithOptions(o Options) Option {
	return func(p *Processor) { p.opts = o }
}

func WithRetry(enabled bool) Option {
	return func(p *Processor) { p.opts.Retry = enabled }
}

func WithBury(enabled bool) Option {
	return func(p *Processor) { p.opts.Bury = enabled }
}

func WithSuccessDisposition(d Disposition) Option {
	return func(p *Processor) { p.opts.OnSuccess = d }
}

func WithExpiryDisposition(d Disposition) Option {
	return func(p *Processor) { p.opts.OnExpiry = d }
}

func WithRethrow(enabled bool) Option {
	return func(p *Processor) { p.opts.Rethrow = enabled }
}

// WithHooks sets the lifecycle hooks. Use MultiHooks to install several.
func WithHooks(h Hooks) Option {
	return func(p *Processor) { p.hooks = h }
}

// WithLogger sets the logger the processor reports job outcomes to.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Processor) { p.logger = logger }
}

// WithTracer sets the tracer for the per-job spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Processor) { p.tracer = tracer }
}
