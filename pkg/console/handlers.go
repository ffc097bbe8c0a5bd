package console

import (
	"context"
	"fmt"
	"sync"

	"github.com/pixelvide/wq-go/pkg/processor"
	"github.com/pixelvide/wq-go/pkg/queue"
	"github.com/pixelvide/wq-go/pkg/schedule"
)

var (
	mu         sync.RWMutex
	handlers   = map[string]processor.Handler{}
	schedulers []Scheduler
	adapter    queue.Adapter
)

// Scheduler registers tasks on the kernel used by schedule:run. The adapter
// is the configured work server, for tasks that dispatch jobs.
type Scheduler func(k *schedule.Kernel, adapter queue.Adapter) error

// Handle registers a job type under name, together with the handler that
// runs its jobs in queue:work.
func Handle(name string, factory queue.Factory, handler processor.Handler) {
	queue.Register(name, factory)

	mu.Lock()
	defer mu.Unlock()
	handlers[name] = handler
}

// Schedule adds tasks for schedule:run.
func Schedule(s Scheduler) {
	mu.Lock()
	defer mu.Unlock()
	schedulers = append(schedulers, s)
}

// SetAdapter makes the commands use adapter instead of the one configured
// through the environment. The commands never disconnect it.
func SetAdapter(a queue.Adapter) {
	mu.Lock()
	defer mu.Unlock()
	adapter = a
}

// Dispatch is the processor.Handler of queue:work. It runs the handler
// registered for the job's type; jobs without one fail permanently.
func Dispatch(ctx context.Context, j queue.Job, jc *processor.JobContext) (queue.Result, error) {
	name, err := queue.DefaultRegistry().NameOf(j)
	if err != nil {
		return queue.ResultDefault, queue.Permanent(err)
	}

	mu.RLock()
	handler, ok := handlers[name]
	mu.RUnlock()
	if !ok {
		return queue.ResultDefault, queue.Permanent(fmt.Errorf("no handler for job type %s", name))
	}
	return handler(ctx, j, jc)
}

func registeredSchedulers() []Scheduler {
	mu.RLock()
	defer mu.RUnlock()
	return append([]Scheduler(nil), schedulers...)
}

func injectedAdapter() queue.Adapter {
	mu.RLock()
	defer mu.RUnlock()
	return adapter
}
