package processor

import (
	"context"

	"github.com/pixelvide/wq-go/pkg/queue"
)

// Callback is a JobContext callback. cause is the handler error that led to
// a failure, or nil.
//
// A callback error stops the finalization: the job is left as it is
// (its reservation will run out eventually) and ProcessNextJob returns the error.
type Callback func(ctx context.Context, j queue.Job, jc *JobContext, cause error) error

// JobContext is handed to the handler together with the job. It tells the
// handler where the job came from and lets it register one callback per
// outcome. At most one of them fires, before the job is deleted, moved,
// buried or re-queued.
type JobContext struct {
	entry     *queue.Entry
	processor *Processor

	onSuccess          Callback
	onFailure          Callback
	onTemporaryFailure Callback
	fired              bool
}

func newJobContext(entry *queue.Entry, p *Processor) *JobContext {
	return &JobContext{entry: entry, processor: p}
}

func (jc *JobContext) Entry() *queue.Entry {
	return jc.entry
}

func (jc *JobContext) Job() queue.Job {
	return jc.entry.Job
}

// SourceQueue is the name of the queue the job was taken from.
func (jc *JobContext) SourceQueue() string {
	return jc.entry.Queue
}

func (jc *JobContext) Processor() *Processor {
	return jc.processor
}

func (jc *JobContext) Adapter() queue.Adapter {
	return jc.processor.adapter
}

// OnSuccess sets the callback for a finished job.
// It replaces any callback set before.
func (jc *JobContext) OnSuccess(cb Callback) *JobContext {
	jc.onSuccess = cb
	return jc
}

// OnFailure sets the callback for a job that failed and will not be retried.
func (jc *JobContext) OnFailure(cb Callback) *JobContext {
	jc.onFailure = cb
	return jc
}

// OnTemporaryFailure sets the callback for a job that failed and is about
// to be re-queued.
func (jc *JobContext) OnTemporaryFailure(cb Callback) *JobContext {
	jc.onTemporaryFailure = cb
	return jc
}

func (jc *JobContext) fire(ctx context.Context, cb Callback, cause error) error {
	if jc.fired || cb == nil {
		return nil
	}
	jc.fired = true
	return cb(ctx, jc.entry.Job, jc, cause)
}
