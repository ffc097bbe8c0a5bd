// Package processor takes jobs from a work server, runs them and decides
// what happens to them afterwards.
package processor

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixelvide/wq-go/pkg/queue"
)

const tracerName = "github.com/pixelvide/wq-go/pkg/processor"

// Handler runs a job. Returning an error fails the job; the error decides
// whether a retry is allowed (see queue.IsRecoverable). Otherwise the
// Result decides.
type Handler func(ctx context.Context, j queue.Job, jc *JobContext) (queue.Result, error)

// Processor runs the jobs of one adapter.
// It is safe for concurrent use if the adapter and hooks are.
type Processor struct {
	adapter queue.Adapter
	opts    Options
	hooks   Hooks
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// New creates a Processor. Invalid options yield a *queue.OptionValueError.
func New(adapter queue.Adapter, opts ...Option) (*Processor, error) {
	p := &Processor{
		adapter: adapter,
		opts:    DefaultOptions(),
		hooks:   NopHooks{},
		logger:  zerolog.Nop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.hooks == nil {
		p.hooks = NopHooks{}
	}
	if err := p.opts.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Processor) Adapter() queue.Adapter {
	return p.adapter
}

func (p *Processor) Options() Options {
	return p.opts
}

// CanRetry reports whether a failed job would be re-queued.
func (p *Processor) CanRetry(j queue.Job) bool {
	return p.opts.Retry && j.CanRetry()
}

// ProcessNextJob takes one job from the first of queues that has one and runs
// handler on it. Expired jobs are disposed of without running the handler.
//
// It returns nil when no job was available within timeout. Adapter errors and
// callback errors are returned as they are. A handler error is returned after
// the job has been finalized, unless rethrowing is disabled.
func (p *Processor) ProcessNextJob(ctx context.Context, queues []string, handler Handler, timeout time.Duration) error {
	ctx, span := p.tracer.Start(ctx, "wq.process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.StringSlice("wq.queues", queues)),
	)
	defer span.End()

	err := p.processNext(ctx, queues, handler, timeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (p *Processor) processNext(ctx context.Context, queues []string, handler Handler, timeout time.Duration) error {
	entry, err := p.adapter.NextEntry(ctx, queues, timeout)
	if err != nil {
		return err
	}
	if entry == nil {
		setOutcome(ctx, "none")
		p.hooks.NoJobAvailable(ctx, queues)
		return nil
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("wq.queue", entry.Queue),
		attribute.String("wq.job_id", entry.ID),
		attribute.Int("wq.try", entry.Job.TryIndex()),
	)

	jc := newJobContext(entry, p)
	if entry.Job.IsExpired() {
		return p.handleExpired(ctx, jc)
	}

	log := p.entryLogger(entry)
	log.Info().Msg("got job")
	p.hooks.JobAvailable(ctx, entry)

	result, herr := p.run(log.WithContext(ctx), handler, jc)
	if herr != nil {
		if err := p.handleFailed(ctx, jc, herr, false); err != nil {
			return err
		}
		if p.opts.Rethrow {
			return &HandlerError{Err: herr}
		}
		return nil
	}

	if !result.Valid() {
		// Unknown results count as success, but the caller gets to know.
		if err := p.handleFinished(ctx, jc); err != nil {
			return err
		}
		return &queue.CallbackReturnValueError{Result: result}
	}

	switch result {
	case queue.ResultDefault, queue.ResultSuccess:
		return p.handleFinished(ctx, jc)
	case queue.ResultFailed:
		return p.handleFailed(ctx, jc, nil, false)
	case queue.ResultAbort:
		return p.handleFailed(ctx, jc, nil, true)
	}
	// ResultExpired
	return p.handleExpired(ctx, jc)
}

// HandlerError is returned by ProcessNextJob with WithRethrow when the
// handler failed. The job has already been retried, buried or deleted by
// then, so callers can move on to the next job right away.
type HandlerError struct {
	Err error
}

func (e *HandlerError) Error() string { return e.Err.Error() }

func (e *HandlerError) Unwrap() error { return e.Err }

// IsHandlerError reports whether err came out of a job handler rather
// than from the adapter.
func IsHandlerError(err error) bool {
	var he *HandlerError
	return errors.As(err, &he)
}

func (p *Processor) run(ctx context.Context, handler Handler, jc *JobContext) (result queue.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &queue.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return handler(ctx, jc.Job(), jc)
}

func (p *Processor) handleFinished(ctx context.Context, jc *JobContext) error {
	entry := jc.Entry()
	setOutcome(ctx, "success")
	p.hooks.Succeeded(ctx, entry)
	if err := jc.fire(ctx, jc.onSuccess, nil); err != nil {
		return err
	}

	log := p.entryLogger(entry)
	d := p.opts.OnSuccess
	if d.action == actionMove {
		p.warnOriginQueue(log, entry, d)
		if err := p.adapter.Requeue(ctx, entry, 0, d.queue); err != nil {
			return err
		}
		notice(log).Str("target", d.queue).Msg("success, job moved to " + d.queue)
		return nil
	}

	if err := p.adapter.Delete(ctx, entry); err != nil {
		return err
	}
	log.Info().Msg("success, job deleted")
	return nil
}

func (p *Processor) handleFailed(ctx context.Context, jc *JobContext, cause error, abort bool) error {
	entry := jc.Entry()
	log := p.entryLogger(entry)
	reason := failureReason(cause, abort)

	retry := !abort && (cause == nil || queue.IsRecoverable(cause)) && p.CanRetry(entry.Job)
	if retry {
		delay := entry.Job.RetryDelay()
		if delay < 0 {
			delay = 0
		}
		setOutcome(ctx, "requeued")
		p.hooks.WillRequeue(ctx, entry, delay, cause)
		if err := jc.fire(ctx, jc.onTemporaryFailure, cause); err != nil {
			return err
		}
		if err := p.adapter.Requeue(ctx, entry, delay, ""); err != nil {
			return err
		}
		notice(log).Err(cause).Dur("delay", delay).
			Msgf("job failed, re-queued with %s delay (%s)", delay, reason)
		return nil
	}

	setOutcome(ctx, "failed")
	p.hooks.Failed(ctx, entry, cause)
	if err := jc.fire(ctx, jc.onFailure, cause); err != nil {
		return err
	}

	if p.opts.Bury {
		if err := p.adapter.Bury(ctx, entry); err != nil {
			return err
		}
		log.Warn().Err(cause).Msgf("job failed, buried (%s)", reason)
		return nil
	}
	if err := p.adapter.Delete(ctx, entry); err != nil {
		return err
	}
	log.Warn().Err(cause).Msgf("job failed, deleted (%s)", reason)
	return nil
}

func (p *Processor) handleExpired(ctx context.Context, jc *JobContext) error {
	entry := jc.Entry()
	setOutcome(ctx, "expired")
	p.hooks.Expired(ctx, entry)

	log := p.entryLogger(entry)
	d := p.opts.OnExpiry
	switch d.action {
	case actionMove:
		p.warnOriginQueue(log, entry, d)
		if err := p.adapter.Requeue(ctx, entry, 0, d.queue); err != nil {
			return err
		}
		notice(log).Str("target", d.queue).Msg("job expired, moved to " + d.queue)
	case actionBury:
		if err := p.adapter.Bury(ctx, entry); err != nil {
			return err
		}
		notice(log).Msg("job expired, buried")
	default:
		if err := p.adapter.Delete(ctx, entry); err != nil {
			return err
		}
		notice(log).Msg("job expired, deleted")
	}
	return nil
}

func (p *Processor) warnOriginQueue(log zerolog.Logger, entry *queue.Entry, d Disposition) {
	if d.queue == entry.Queue {
		log.Warn().Str("target", d.queue).Msg("moving job into the queue it came from, it will run again")
	}
}

func (p *Processor) entryLogger(entry *queue.Entry) zerolog.Logger {
	ctx := p.logger.With().
		Str("queue", entry.Queue).
		Int("try", entry.Job.TryIndex())
	if entry.ID != "" {
		ctx = ctx.Str("job_id", entry.ID)
	}
	return ctx.Logger()
}

// notice is the level between info and warning that zerolog does not have.
func notice(log zerolog.Logger) *zerolog.Event {
	return log.Info().Str("severity", "notice")
}

func failureReason(cause error, abort bool) string {
	switch {
	case abort:
		return "aborted"
	case cause == nil:
		return "failed"
	}
	var pe *queue.PanicError
	if errors.As(cause, &pe) {
		return "panic"
	}
	msg := cause.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

func setOutcome(ctx context.Context, outcome string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("wq.outcome", outcome))
}
