package queue

import "strconv"

// Result is the outcome a Handler reports for a job.
type Result int

const (
	// ResultDefault is the zero value, used when a handler does not pick a
	// result. It is treated as ResultSuccess.
	ResultDefault Result = iota
	// ResultSuccess deletes the job (or moves it, see the processor's success disposition).
	ResultSuccess
	// ResultFailed re-queues the job if it can be retried, otherwise buries or deletes it.
	ResultFailed
	// ResultAbort buries or deletes the job without considering retries.
	ResultAbort
	// ResultExpired handles the job like one whose IsExpired returned true.
	ResultExpired
)

// Valid reports whether r is one of the declared results.
func (r Result) Valid() bool {
	return r >= ResultDefault && r <= ResultExpired
}

func (r Result) String() string {
	switch r {
	case ResultDefault:
		return "default"
	case ResultSuccess:
		return "success"
	case ResultFailed:
		return "failed"
	case ResultAbort:
		return "abort"
	case ResultExpired:
		return "expired"
	default:
		return "Result(" + strconv.Itoa(int(r)) + ")"
	}
}
