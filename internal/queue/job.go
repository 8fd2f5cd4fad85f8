package queue

import (
	"encoding/json"
	"errors"
	"time"
)

type JobStatus string

const (
	StatusWaiting   JobStatus = "waiting"
	StatusDelayed   JobStatus = "delayed"
	StatusActive    JobStatus = "active"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job is the broker's record of one unit of work. Payload is opaque plain
// data owned by the producer; delivery bookkeeping is owned by the queue.
type Job struct {
	ID           string          `json:"id"`
	Queue        string          `json:"queue"`
	Payload      json.RawMessage `json:"payload"`
	Options      JobOptions      `json:"opts"`
	Status       JobStatus       `json:"status"`
	AttemptsMade int             `json:"attemptsMade"`
	LastError    string          `json:"failedReason,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	ProcessedAt *time.Time `json:"processedOn,omitempty"`
	FinishedAt  *time.Time `json:"finishedOn,omitempty"`
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v any) error {
	return json.Unmarshal(j.Payload, v)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job fails immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// Stats are the per-state job counts of one queue.
type Stats struct {
	Queue     string `json:"queue"`
	Waiting   int64  `json:"waiting"`
	Active    int64  `json:"active"`
	Delayed   int64  `json:"delayed"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}
