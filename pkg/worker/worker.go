package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixelvide/wq-go/pkg/processor"
	"github.com/pixelvide/wq-go/pkg/queue"
)

// DefaultErrorBackoff is how long a worker waits after an error that did
// not come from a job handler.
const DefaultErrorBackoff = time.Second

// Worker keeps a processor busy with a set of queues.
type Worker struct {
	processor    *processor.Processor
	handler      processor.Handler
	queues       []string
	concurrency  int
	timeout      time.Duration
	errorBackoff time.Duration
	liveness     *Liveness
	logger       zerolog.Logger
	wg           sync.WaitGroup
}

// Option configures a Worker.
type Option func(*Worker)

// WithConcurrency sets the number of goroutines taking jobs.
func WithConcurrency(n int) Option {
	return func(w *Worker) { w.concurrency = n }
}

// WithTimeout sets the NextEntry timeout of each poll.
func WithTimeout(d time.Duration) Option {
	return func(w *Worker) { w.timeout = d }
}

func WithErrorBackoff(d time.Duration) Option {
	return func(w *Worker) { w.errorBackoff = d }
}

// WithLiveness shares a liveness flag, e.g. one with a signal handler installed.
func WithLiveness(l *Liveness) Option {
	return func(w *Worker) { w.liveness = l }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// New creates a worker running handler on jobs from queues, in the order given.
func New(p *processor.Processor, handler processor.Handler, queues []string, opts ...Option) *Worker {
	w := &Worker{
		processor:    p,
		handler:      handler,
		queues:       queues,
		concurrency:  1,
		timeout:      queue.DefaultTimeout,
		errorBackoff: DefaultErrorBackoff,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.concurrency < 1 {
		w.concurrency = 1
	}
	if w.liveness == nil {
		w.liveness = NewLiveness()
	}
	return w
}

func (w *Worker) Liveness() *Liveness {
	return w.liveness
}

// Run starts the worker goroutines and waits until all of them have
// returned, which happens when ctx is done or the liveness flag is cleared.
func (w *Worker) Run(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processLoop(ctx, i)
	}
	w.wg.Wait()
}

func (w *Worker) processLoop(ctx context.Context, id int) {
	defer w.wg.Done()
	log := w.logger.With().Int("worker", id).Strs("queues", w.queues).Logger()
	log.Info().Msg("worker started")
	defer log.Info().Msg("worker stopped")

	for w.liveness.IsAlive() && ctx.Err() == nil {
		err := w.processor.ProcessNextJob(ctx, w.queues, w.handler, w.timeout)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		if errors.Is(err, queue.ErrDisconnected) {
			log.Error().Err(err).Msg("adapter disconnected")
			return
		}

		if processor.IsHandlerError(err) {
			// The job is already settled, the next one may be fine.
			log.Error().Err(err).Msg("job handler failed")
			continue
		}

		log.Error().Err(err).Msg("error processing job")
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.errorBackoff):
		}
	}
}
