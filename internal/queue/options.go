package queue

import "time"

// Queue names.
const (
	ResumeProcessing   = "resume-processing"
	EmailSending       = "email-sending"
	CandidateMatching  = "candidate-matching"
	VoiceCalls         = "voice-calls"
	InterviewReminders = "interview-reminders"
)

// Names lists every queue in the set, in declaration order.
var Names = []string{ResumeProcessing, EmailSending, CandidateMatching, VoiceCalls, InterviewReminders}

const BackoffExponential = "exponential"

type Backoff struct {
	Type    string `json:"type"`
	DelayMs int64  `json:"delay"`
}

func (b Backoff) Base() time.Duration {
	return time.Duration(b.DelayMs) * time.Millisecond
}

// JobOptions are per-job delivery settings. Zero fields in an override keep the queue default.
type JobOptions struct {
	Attempts int     `json:"attempts"`
	Backoff  Backoff `json:"backoff"`
	// RemoveOnComplete and RemoveOnFail cap the retained history; -1 keeps everything.
	RemoveOnComplete int `json:"removeOnComplete"`
	RemoveOnFail     int `json:"removeOnFail"`
	// Delay postpones the first attempt.
	Delay time.Duration `json:"-"`
	JobID string        `json:"-"`
}

var standardOptions = JobOptions{
	Attempts:         3,
	Backoff:          Backoff{Type: BackoffExponential, DelayMs: 2000},
	RemoveOnComplete: 100,
	RemoveOnFail:     500,
}

var reminderOptions = JobOptions{
	Attempts:         2,
	Backoff:          Backoff{Type: BackoffExponential, DelayMs: 5000},
	RemoveOnComplete: 50,
	RemoveOnFail:     200,
}

// DefaultOptions returns the declared defaults for a queue name.
func DefaultOptions(name string) JobOptions {
	if name == InterviewReminders {
		return reminderOptions
	}
	return standardOptions
}

func (o JobOptions) merge(override *JobOptions) JobOptions {
	if override == nil {
		return o
	}
	out := o
	if override.Attempts > 0 {
		out.Attempts = override.Attempts
	}
	if override.Backoff.Type != "" {
		out.Backoff.Type = override.Backoff.Type
	}
	if override.Backoff.DelayMs > 0 {
		out.Backoff.DelayMs = override.Backoff.DelayMs
	}
	if override.RemoveOnComplete != 0 {
		out.RemoveOnComplete = override.RemoveOnComplete
	}
	if override.RemoveOnFail != 0 {
		out.RemoveOnFail = override.RemoveOnFail
	}
	out.Delay = override.Delay
	out.JobID = override.JobID
	return out
}

// retryDelay is the wait before the next attempt after attemptsMade failures.
// Exponential backoff doubles from the base: base, 2*base, 4*base...
func retryDelay(b Backoff, attemptsMade int) time.Duration {
	base := b.Base()
	if base <= 0 {
		return 0
	}
	if b.Type != BackoffExponential || attemptsMade <= 1 {
		return base
	}
	shift := attemptsMade - 1
	if shift > 20 {
		shift = 20
	}
	return base * time.Duration(1<<shift)
}
