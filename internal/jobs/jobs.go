// Package jobs holds the queue handlers and producer helpers for the
// communication queues. resume-processing and candidate-matching have no
// handler here; their consumers live outside this service.
package jobs

import (
	"context"
	"time"

	"recruit-comms/internal/calls"
	"recruit-comms/internal/notify"
	"recruit-comms/internal/queue"
)

// CallPlacer is implemented by *calls.Orchestrator.
type CallPlacer interface {
	InitiateCall(ctx context.Context, opts calls.CallOptions) calls.InitiateResult
}

// SMSSender is implemented by *notify.Dispatcher.
type SMSSender interface {
	SendInterviewSMS(ctx context.Context, to string, in notify.Interview) bool
}

// Handlers returns the queue handler for every queue this service consumes.
func Handlers(voice *VoiceCallHandler, reminders *ReminderHandler, email *EmailHandler) map[string]queue.Handler {
	out := map[string]queue.Handler{}
	if voice != nil {
		out[queue.VoiceCalls] = voice.Handle
	}
	if reminders != nil {
		out[queue.InterviewReminders] = reminders.Handle
	}
	if email != nil {
		out[queue.EmailSending] = email.Handle
	}
	return out
}

// ScheduleCall enqueues a voice call to be placed at at (immediately when at is not in the future).
func ScheduleCall(ctx context.Context, q *queue.Queue, opts calls.CallOptions, at, now time.Time) (*queue.Job, error) {
	return q.Enqueue(ctx, opts, &queue.JobOptions{Delay: delayUntil(at, now)})
}

// ScheduleReminder enqueues an interview reminder to fire at at.
func ScheduleReminder(ctx context.Context, q *queue.Queue, p ReminderPayload, at, now time.Time) (*queue.Job, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return q.Enqueue(ctx, p, &queue.JobOptions{Delay: delayUntil(at, now)})
}

func delayUntil(at, now time.Time) time.Duration {
	if at.IsZero() || !at.After(now) {
		return 0
	}
	return at.Sub(now)
}
