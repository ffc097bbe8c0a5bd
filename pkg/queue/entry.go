package queue

// Entry is a job recently taken from a work queue.
//
// Besides the decoded job it records the queue it came from and the adapter's
// own handle for the stored item. The handle is opaque: only the adapter that
// created the entry may interpret it.
type Entry struct {
	Job    Job
	Queue  string
	Handle any
	// ID is the job's UUID. Only used for logging; it is empty for jobs
	// stored by producers that do not assign one.
	ID string
}

// DecodeEntry decodes a stored payload and wraps it in an Entry.
// Malformed payloads yield an *UnserializationError.
func DecodeEntry(codec Codec, payload []byte, queueName string, handle any) (*Entry, error) {
	j, err := codec.Decode(payload)
	if err != nil {
		return nil, &UnserializationError{Queue: queueName, Handle: handle, Err: err}
	}

	entry := &Entry{Job: j, Queue: queueName, Handle: handle}
	if b, err := baseOf(j); err == nil {
		entry.ID = b.UUID()
	}
	return entry, nil
}
