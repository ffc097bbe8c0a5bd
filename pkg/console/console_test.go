package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvide/wq-go/pkg/config"
	"github.com/pixelvide/wq-go/pkg/driver/memory"
	"github.com/pixelvide/wq-go/pkg/processor"
	"github.com/pixelvide/wq-go/pkg/queue"
	"github.com/pixelvide/wq-go/pkg/root"
	"github.com/pixelvide/wq-go/pkg/schedule"
)

type greetJob struct {
	queue.BaseJob
	Name string `json:"name"`
}

type orphanJob struct {
	queue.BaseJob
}

type strayJob struct {
	queue.BaseJob
}

type brokenJob struct {
	queue.BaseJob
}

var greeted = make(chan string, 10)

func init() {
	Handle("console.greet", func() queue.Job { return &greetJob{} },
		func(_ context.Context, j queue.Job, _ *processor.JobContext) (queue.Result, error) {
			greeted <- j.(*greetJob).Name
			return queue.ResultSuccess, nil
		})
	Handle("console.broken", func() queue.Job { return &brokenJob{} },
		func(context.Context, queue.Job, *processor.JobContext) (queue.Result, error) {
			return queue.ResultDefault, queue.Permanent(errors.New("broken for good"))
		})
	queue.Register("console.orphan", func() queue.Job { return &orphanJob{} })
}

// execute runs the CLI with args after resetting all flags to their defaults.
func execute(t *testing.T, ctx context.Context, args ...string) error {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")

	resetFlags()
	t.Cleanup(resetFlags)

	cmd := root.GetRoot()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// resetFlags puts every command flag back to its default and clears
// Changed, since cobra keeps flag state between executions.
func resetFlags() {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd := root.GetRoot()
	for _, c := range append(cmd.Commands(), cmd) {
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
}

func useMemory(t *testing.T) *memory.Server {
	t.Helper()
	server := memory.New()
	SetAdapter(server)
	t.Cleanup(func() { SetAdapter(nil) })
	return server
}

func TestDispatch_RoutesByJobType(t *testing.T) {
	result, err := Dispatch(context.Background(), &greetJob{Name: "grace"}, nil)
	require.NoError(t, err)
	assert.Equal(t, queue.ResultSuccess, result)
	assert.Equal(t, "grace", <-greeted)
}

func TestDispatch_MissingHandlerIsPermanent(t *testing.T) {
	_, err := Dispatch(context.Background(), &orphanJob{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "console.orphan")
	assert.False(t, queue.IsRecoverable(err))
}

func TestDispatch_UnregisteredTypeIsPermanent(t *testing.T) {
	_, err := Dispatch(context.Background(), &strayJob{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, queue.ErrUnknownJobType)
	assert.False(t, queue.IsRecoverable(err))
}

func TestPushThenWorkOnce(t *testing.T) {
	server := useMemory(t)

	require.NoError(t, execute(t, context.Background(), "queue:push", "console.greet", `{"name":"ada"}`, "--queue", "greetings"))
	assert.Equal(t, 1, server.Len("greetings"))

	require.NoError(t, execute(t, context.Background(), "queue:work", "--queue", "greetings", "--once"))
	select {
	case name := <-greeted:
		assert.Equal(t, "ada", name)
	default:
		t.Fatal("handler did not run")
	}
	assert.Equal(t, 0, server.Len("greetings"))
}

func TestPush_Delay(t *testing.T) {
	server := useMemory(t)

	require.NoError(t, execute(t, context.Background(), "queue:push", "console.greet", "--queue", "later", "--delay", "1h"))
	assert.Equal(t, 1, server.Len("later"))

	entry, err := server.NextEntry(context.Background(), []string{"later"}, queue.NoBlock)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestPush_Errors(t *testing.T) {
	useMemory(t)

	assert.ErrorIs(t, execute(t, context.Background(), "queue:push", "console.nope"), queue.ErrUnknownJobType)
	assert.Error(t, execute(t, context.Background(), "queue:push", "console.greet", "{not json"))
	assert.Error(t, execute(t, context.Background(), "queue:push"))
}

func TestWorkOnce_FailedJobIsBuried(t *testing.T) {
	server := useMemory(t)
	require.NoError(t, server.Store(context.Background(), "broken", &brokenJob{}, 0))

	// Rethrow is on by default, so the handler error surfaces.
	err := execute(t, context.Background(), "queue:work", "--queue", "broken", "--once")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken for good")
	assert.Len(t, server.Buried("broken"), 1)
}

func TestWork_StopsWithContext(t *testing.T) {
	useMemory(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- execute(t, ctx, "queue:work", "--queue", "idle", "--workers", "2", "--timeout", "50ms") }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestApplyWorkerFlags(t *testing.T) {
	resetFlags()
	t.Cleanup(resetFlags)
	require.NoError(t, workerCmd.Flags().Set("queue", "high, low"))
	require.NoError(t, workerCmd.Flags().Set("timeout", "2s"))

	cfg := config.WorkerConfig{Queues: []string{"default"}, Concurrency: 3, Timeout: 5 * time.Second}
	applyWorkerFlags(workerCmd, &cfg)

	assert.Equal(t, []string{"high", "low"}, cfg.Queues)
	assert.Equal(t, 3, cfg.Concurrency, "unset flags keep the configured value")
	assert.Equal(t, 2*time.Second, cfg.Timeout)
}

func TestApplyWorkerFlags_AfterEarlierExecution(t *testing.T) {
	t.Run("work", func(t *testing.T) {
		useMemory(t)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		require.NoError(t, execute(t, ctx, "queue:work", "--queue", "idle", "--workers", "2", "--timeout", "10ms"))
	})

	assert.False(t, workerCmd.Flags().Changed("workers"))
	assert.False(t, workerCmd.Flags().Changed("queue"))

	cfg := config.WorkerConfig{Queues: []string{"default"}, Concurrency: 3, Timeout: 5 * time.Second}
	applyWorkerFlags(workerCmd, &cfg)

	assert.Equal(t, []string{"default"}, cfg.Queues)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
}

func TestScheduleRun(t *testing.T) {
	server := useMemory(t)
	Schedule(func(k *schedule.Kernel, a queue.Adapter) error {
		_, err := k.Dispatch("* * * * * *", a, "ticks", func() queue.Job { return &greetJob{Name: "tick"} })
		return err
	})
	t.Cleanup(func() {
		mu.Lock()
		schedulers = nil
		mu.Unlock()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	require.NoError(t, execute(t, ctx, "schedule:run"))

	assert.GreaterOrEqual(t, server.Len("ticks"), 1)
}
