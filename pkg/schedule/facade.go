package schedule

import (
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/pixelvide/wq-go/pkg/queue"
)

var (
	globalKernel *Kernel
	once         sync.Once
)

// SetGlobalKernel sets the global kernel instance
func SetGlobalKernel(k *Kernel) {
	globalKernel = k
}

// GetGlobalKernel returns the global kernel, initializing a default one if needed
func GetGlobalKernel() *Kernel {
	once.Do(func() {
		if globalKernel == nil {
			globalKernel = NewKernel(nil)
		}
	})
	return globalKernel
}

// Register adds a task to the global scheduler
func Register(spec string, task Task, opts ...JobOption) (cron.EntryID, error) {
	return GetGlobalKernel().Register(spec, task, opts...)
}

// Dispatch schedules a job on the global scheduler
func Dispatch(spec string, adapter queue.Adapter, queueName string, factory queue.Factory, opts ...JobOption) (cron.EntryID, error) {
	return GetGlobalKernel().Dispatch(spec, adapter, queueName, factory, opts...)
}
