package queue

import "time"

// DefaultRetryDelay is the delay BaseJob reports for retried jobs.
const DefaultRetryDelay = 10 * time.Minute

// Job is a unit of work stored in a work queue.
//
// Concrete jobs are caller-defined structs that embed BaseJob, which carries
// the try counter and lets the codecs serialize them. Exported fields make up
// the job payload.
type Job interface {
	// CanRetry reports whether the job may be re-queued after a failure.
	CanRetry() bool
	// RetryDelay is how long a re-queued job waits before it becomes available again.
	RetryDelay() time.Duration
	// TryIndex is the 1-based number of the current attempt. Never zero.
	TryIndex() int
	// IsExpired reports whether the job should be discarded instead of executed.
	IsExpired() bool
}

// BaseJob implements the Job interface with sensible defaults.
//
// Embed it (by value) in a job struct and override methods as needed:
// set MaxRetry to allow retries, override RetryDelay for a different
// (probably increasing) delay, override IsExpired for jobs that can go stale.
type BaseJob struct {
	// MaxRetry is how often a failed job can be retried.
	// Zero or negative means the job is only tried once.
	MaxRetry int `json:"maxRetry,omitempty"`

	// tries is the stored try counter. It is zero until the first
	// serialization; codecs store tries+1 and restore it on decode.
	tries int
	uuid  string
}

func (b *BaseJob) CanRetry() bool {
	return b.TryIndex() <= b.MaxRetry
}

func (b *BaseJob) RetryDelay() time.Duration {
	return DefaultRetryDelay
}

func (b *BaseJob) TryIndex() int {
	// A job that was never serialized is still on its first try.
	if b.tries < 1 {
		return 1
	}
	return b.tries
}

func (b *BaseJob) IsExpired() bool {
	return false
}

// UUID returns the identifier assigned when the job was first stored,
// or an empty string for a job that was never serialized.
func (b *BaseJob) UUID() string {
	return b.uuid
}

func (b *BaseJob) baseJob() *BaseJob {
	return b
}

// serializable is satisfied by every type embedding BaseJob.
type serializable interface {
	Job
	baseJob() *BaseJob
}

func baseOf(j Job) (*BaseJob, error) {
	s, ok := j.(serializable)
	if !ok {
		return nil, ErrNotSerializable
	}
	return s.baseJob(), nil
}

// nextTryIndex is the counter value written into the stored form.
func (b *BaseJob) nextTryIndex() int {
	return b.tries + 1
}

func (b *BaseJob) restore(tries int, uuid string) {
	b.tries = tries
	b.uuid = uuid
}
