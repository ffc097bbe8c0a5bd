package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrDisconnected is returned by adapters used after Disconnect.
	ErrDisconnected = errors.New("wq: adapter is disconnected")
	// ErrUnknownJobType is returned when a stored job names a type that was never registered.
	ErrUnknownJobType = errors.New("wq: unknown job type")
	// ErrNotSerializable is returned for jobs that do not embed BaseJob.
	ErrNotSerializable = errors.New("wq: job does not embed queue.BaseJob")
)

// ConnectionError reports a lost or unreachable work server.
type ConnectionError struct {
	Op  string
	Err error
}

// NewConnectionError wraps err as a connection problem during op.
func NewConnectionError(op string, err error) error {
	return &ConnectionError{Op: op, Err: err}
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("wq: connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is or wraps a *ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// UnserializationError is returned when a stored payload does not decode
// into a registered job type.
type UnserializationError struct {
	Queue  string
	Handle any
	Err    error
}

func (e *UnserializationError) Error() string {
	return fmt.Sprintf("wq: job %v (wq %s) contained an invalid serialization: %v", e.Handle, e.Queue, e.Err)
}

func (e *UnserializationError) Unwrap() error {
	return e.Err
}

// CallbackReturnValueError is returned by the processor when a handler
// returns a Result outside the declared set. The job has already been
// finalized as successful when this error is seen.
type CallbackReturnValueError struct {
	Result Result
}

func (e *CallbackReturnValueError) Error() string {
	return fmt.Sprintf("wq: unexpected job handler return value %s, should be one of the queue.Result constants", e.Result)
}

// OptionValueError reports an invalid processor option.
type OptionValueError struct {
	Option string
	Value  any
	Reason string
}

func (e *OptionValueError) Error() string {
	return fmt.Sprintf("wq: invalid value %v for option %s: %s", e.Value, e.Option, e.Reason)
}

// PermanentError marks a handler error as non-recoverable: the job will be
// buried or deleted even if it could be retried.
type PermanentError struct {
	Err error
}

// Permanent wraps err so that the processor never retries the job.
// Permanent(nil) returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("wq: job handler panicked: %v", e.Value)
}

// IsRecoverable reports whether a handler error qualifies for a retry.
// Errors are recoverable unless marked with Permanent or caused by a panic.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var pe *PermanentError
	if errors.As(err, &pe) {
		return false
	}
	var pa *PanicError
	return !errors.As(err, &pa)
}
