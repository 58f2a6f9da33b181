package queue

import (
	"context"
	"encoding/json"
)

// Job defines a queue job handler.
type Job interface {
	// Name returns the unique identifier of the job.
	Name() string

	// Type returns the type of message that the job handles.
	Type() string

	// Handle processes the job with the given payload. Returning an error
	// schedules a retry until the retry limit is reached.
	Handle(ctx context.Context, msg Message) error
}

// Permanent marks an error as not worth retrying (bad payload, invalid
// configuration). The message goes straight to the dead letter list.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Decode unmarshals a message payload into T.
func Decode[T any](msg Message) (*T, error) {
	var out T
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return nil, Permanent(err)
	}
	return &out, nil
}
