// Package queuetest provides job types, a fake clock and a conformance
// suite for testing queue.Adapter implementations and code built on them.
package queuetest

import (
	"fmt"
	"sync"
	"time"

	"github.com/pixelvide/wq-go/pkg/queue"
)

const (
	SimpleJobName       = "queuetest.SimpleJob"
	ConfigurableJobName = "queuetest.ConfigurableJob"
)

func init() {
	queue.Register(SimpleJobName, func() queue.Job { return &SimpleJob{} })
	queue.Register(ConfigurableJobName, func() queue.Job { return &ConfigurableJob{} })
}

// SimpleJob cannot be retried and carries an integer marker.
type SimpleJob struct {
	queue.BaseJob
	Marker int `json:"marker"`
}

// NewSimpleJob creates a SimpleJob with the given marker.
func NewSimpleJob(marker int) *SimpleJob {
	return &SimpleJob{Marker: marker}
}

// Execute does nothing and succeeds.
func (j *SimpleJob) Execute() error {
	return nil
}

var (
	expiredMu      sync.RWMutex
	expiredMarkers = map[int]bool{}
)

// SetExpired makes every ConfigurableJob with the given marker report
// itself as expired (or not). Tests use it to expire jobs that are already
// stored.
func SetExpired(marker int, expired bool) {
	expiredMu.Lock()
	defer expiredMu.Unlock()
	if expired {
		expiredMarkers[marker] = true
	} else {
		delete(expiredMarkers, marker)
	}
}

// ConfigurableJob can be told how often to retry, how long to wait between
// tries and on which try to succeed.
type ConfigurableJob struct {
	queue.BaseJob
	Marker       int `json:"marker"`
	MaxRetries   int `json:"maxRetries"`
	DelaySeconds int `json:"retryDelay"`
	SucceedOn    int `json:"succeedOn"`
}

// NewConfigurableJob creates a job that never retries and never succeeds.
func NewConfigurableJob(marker int) *ConfigurableJob {
	return &ConfigurableJob{Marker: marker, DelaySeconds: 1}
}

func (j *ConfigurableJob) WithMaxRetries(n int) *ConfigurableJob {
	j.MaxRetries = n
	return j
}

func (j *ConfigurableJob) WithRetryDelay(seconds int) *ConfigurableJob {
	j.DelaySeconds = seconds
	return j
}

// SucceedOnTry makes Execute succeed on the nth try. Zero means never.
func (j *ConfigurableJob) SucceedOnTry(n int) *ConfigurableJob {
	j.SucceedOn = n
	return j
}

func (j *ConfigurableJob) CanRetry() bool {
	return j.TryIndex() <= j.MaxRetries
}

func (j *ConfigurableJob) RetryDelay() time.Duration {
	return time.Duration(j.DelaySeconds) * time.Second
}

func (j *ConfigurableJob) IsExpired() bool {
	expiredMu.RLock()
	defer expiredMu.RUnlock()
	return expiredMarkers[j.Marker]
}

// Execute fails unless this is the configured successful try.
func (j *ConfigurableJob) Execute() error {
	if j.SucceedOn > 0 && j.TryIndex() == j.SucceedOn {
		return nil
	}
	if j.SucceedOn > 0 {
		return fmt.Errorf("*** failed on try #%d (will succeed on try #%d)", j.TryIndex(), j.SucceedOn)
	}
	return fmt.Errorf("*** failed on try #%d (will never succeed)", j.TryIndex())
}

// Marker returns the marker of the test jobs in this package, or 0.
func Marker(j queue.Job) int {
	switch t := j.(type) {
	case *SimpleJob:
		return t.Marker
	case *ConfigurableJob:
		return t.Marker
	}
	return 0
}
