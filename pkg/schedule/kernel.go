// Package schedule runs tasks on cron schedules. Its main use is storing
// fresh jobs into work queues at fixed times.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/pixelvide/wq-go/pkg/queue"
)

// DefaultLockTTL is how long an OnOneServer lock is held at most.
const DefaultLockTTL = time.Minute

// Task is the unit of scheduled work.
type Task func(ctx context.Context) error

// Kernel manages scheduled tasks
type Kernel struct {
	cron         *cron.Cron
	lockProvider LockProvider
	logger       zerolog.Logger
	lockTTL      time.Duration

	mu  sync.RWMutex
	ctx context.Context
}

// KernelOption configures a Kernel.
type KernelOption func(*Kernel)

// WithLogger sets the logger used for the kernel and for cron itself.
func WithLogger(logger zerolog.Logger) KernelOption {
	return func(k *Kernel) {
		k.logger = logger
	}
}

// WithLockTTL sets how long OnOneServer locks live if never released.
func WithLockTTL(d time.Duration) KernelOption {
	return func(k *Kernel) {
		k.lockTTL = d
	}
}

// JobOption configures a scheduled job
type JobOption func(*jobConfig)

type jobConfig struct {
	withoutOverlapping bool
	onOneServer        bool
	name               string
}

// NewKernel creates a new scheduler kernel. Schedules have second-level
// precision: "s m h dom mon dow", plus the usual descriptors like @every.
func NewKernel(lockProvider LockProvider, opts ...KernelOption) *Kernel {
	k := &Kernel{
		lockProvider: lockProvider,
		logger:       zerolog.Nop(),
		lockTTL:      DefaultLockTTL,
		ctx:          context.Background(),
	}
	for _, opt := range opts {
		opt(k)
	}

	logger := cronLogger{k.logger}
	k.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	return k
}

// SetLockProvider sets the distributed lock provider
func (k *Kernel) SetLockProvider(provider LockProvider) {
	k.lockProvider = provider
}

// Named sets the name used in log lines.
func Named(name string) JobOption {
	return func(c *jobConfig) {
		c.name = name
	}
}

// WithoutOverlapping prevents the job from running if the previous instance is still running (local only)
func WithoutOverlapping() JobOption {
	return func(c *jobConfig) {
		c.withoutOverlapping = true
	}
}

// OnOneServer ensures the job runs on only one server at a time (distributed lock)
func OnOneServer(name string) JobOption {
	return func(c *jobConfig) {
		c.onOneServer = true
		c.name = name
	}
}

// Register adds a task to be run on the given schedule.
func (k *Kernel) Register(spec string, task Task, opts ...JobOption) (cron.EntryID, error) {
	cfg := &jobConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.name == "" {
		cfg.name = spec
	}

	log := k.logger.With().Str("task", cfg.name).Logger()
	var job cron.Job = cron.FuncJob(func() {
		started := time.Now()
		if err := task(k.taskContext()); err != nil {
			log.Error().Err(err).Msg("scheduled task failed")
			return
		}
		log.Debug().Dur("took", time.Since(started)).Msg("scheduled task done")
	})

	if cfg.onOneServer {
		if k.lockProvider == nil {
			log.Warn().Msg("ignoring OnOneServer, no lock provider configured")
		} else {
			job = k.onOneServer(cfg.name, job, log)
		}
	}

	// The overlap guard wraps the lock so that a skipped run never touches it.
	if cfg.withoutOverlapping {
		job = cron.SkipIfStillRunning(cronLogger{log})(job)
	}

	id, err := k.cron.AddJob(spec, job)
	if err != nil {
		return 0, fmt.Errorf("schedule %s: %w", cfg.name, err)
	}
	log.Info().Str("schedule", spec).Msg("registered scheduled task")
	return id, nil
}

// Dispatch stores a new job, made by factory, into queueName on every tick.
func (k *Kernel) Dispatch(spec string, adapter queue.Adapter, queueName string, factory queue.Factory, opts ...JobOption) (cron.EntryID, error) {
	if queueName == "" {
		queueName = queue.DefaultQueue
	}
	return k.Register(spec, func(ctx context.Context) error {
		if err := adapter.Store(ctx, queueName, factory(), 0); err != nil {
			return fmt.Errorf("dispatch into %s: %w", queueName, err)
		}
		return nil
	}, opts...)
}

func (k *Kernel) onOneServer(name string, job cron.Job, log zerolog.Logger) cron.Job {
	return cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(k.taskContext(), 10*time.Second)
		defer cancel()

		acquired, err := k.lockProvider.GetLock(ctx, name, k.lockTTL)
		if err != nil {
			log.Error().Err(err).Msg("checking schedule lock failed")
			return
		}
		if !acquired {
			log.Debug().Msg("skipping, locked by another server")
			return
		}
		defer func() {
			if err := k.lockProvider.ReleaseLock(context.Background(), name); err != nil {
				log.Warn().Err(err).Msg("releasing schedule lock failed")
			}
		}()
		job.Run()
	})
}

// Entries returns the registered entries in order of their next run.
func (k *Kernel) Entries() []cron.Entry {
	return k.cron.Entries()
}

// Run starts the scheduler and blocks until ctx is done. It then waits for
// running tasks to finish.
func (k *Kernel) Run(ctx context.Context) {
	k.mu.Lock()
	k.ctx = ctx
	k.mu.Unlock()

	k.logger.Info().Int("tasks", len(k.cron.Entries())).Msg("starting task scheduler")
	k.cron.Start()

	<-ctx.Done()

	k.logger.Info().Msg("stopping task scheduler")
	<-k.cron.Stop().Done()
}

// taskContext is the context tasks run with. It keeps its values once Run's
// context is cancelled, so running tasks can finish cleanly.
func (k *Kernel) taskContext() context.Context {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return context.WithoutCancel(k.ctx)
}

// cronLogger routes cron's logr-style logging into zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
