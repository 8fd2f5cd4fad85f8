package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"recruit-comms/internal/calls"
	"recruit-comms/internal/notify"
	"recruit-comms/internal/queue"
)

const (
	ChannelSMS  = "sms"
	ChannelCall = "call"
)

var (
	ErrInvalidReminder     = errors.New("jobs: invalid reminder")
	ErrReminderUndelivered = errors.New("jobs: reminder sms not delivered")
)

// ReminderPayload is the interview-reminders job payload.
type ReminderPayload struct {
	To            string             `json:"to"`
	CandidateName string             `json:"candidateName"`
	JobTitle      string             `json:"jobTitle"`
	InterviewAt   time.Time          `json:"interviewAt"`
	Location      string             `json:"location,omitempty"`
	Channel       string             `json:"channel"`
	Call          *calls.CallOptions `json:"call,omitempty"`
}

func (p ReminderPayload) Validate() error {
	switch {
	case strings.TrimSpace(p.To) == "":
		return fmt.Errorf("%w: to is required", ErrInvalidReminder)
	case p.CandidateName == "" || p.JobTitle == "":
		return fmt.Errorf("%w: candidateName and jobTitle are required", ErrInvalidReminder)
	case p.InterviewAt.IsZero():
		return fmt.Errorf("%w: interviewAt is required", ErrInvalidReminder)
	}
	switch p.channel() {
	case ChannelSMS, ChannelCall:
		return nil
	default:
		return fmt.Errorf("%w: unknown channel %q", ErrInvalidReminder, p.Channel)
	}
}

func (p ReminderPayload) channel() string {
	if p.Channel == "" {
		return ChannelSMS
	}
	return strings.ToLower(p.Channel)
}

func (p ReminderPayload) interview() notify.Interview {
	return notify.Interview{CandidateName: p.CandidateName, JobTitle: p.JobTitle, At: p.InterviewAt, Location: p.Location}
}

// ReminderHandler delivers interview reminders by SMS or by an AI call.
type ReminderHandler struct {
	sms   SMSSender
	voice *VoiceCallHandler
	log   *slog.Logger
}

func NewReminderHandler(sms SMSSender, voice *VoiceCallHandler, log *slog.Logger) *ReminderHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ReminderHandler{sms: sms, voice: voice, log: log.With("component", "jobs.reminder")}
}

func (h *ReminderHandler) Handle(ctx context.Context, job *queue.Job) error {
	var p ReminderPayload
	if err := job.Decode(&p); err != nil {
		return queue.Permanent(fmt.Errorf("decode reminder: %w", err))
	}
	if err := p.Validate(); err != nil {
		return queue.Permanent(err)
	}

	switch p.channel() {
	case ChannelCall:
		if h.voice == nil {
			return queue.Permanent(errors.New("jobs: reminder calls are not enabled"))
		}
		res, err := h.voice.Place(ctx, reminderCallOptions(p))
		if err != nil {
			return err
		}
		h.log.Info("reminder call placed", "job_id", job.ID, "call_id", res.CallID)
		return nil
	default:
		if !h.sms.SendInterviewSMS(ctx, p.To, p.interview()) {
			return ErrReminderUndelivered
		}
		h.log.Info("reminder sms sent", "job_id", job.ID)
		return nil
	}
}

func reminderCallOptions(p ReminderPayload) calls.CallOptions {
	var opts calls.CallOptions
	if p.Call != nil {
		opts = *p.Call
	}
	if opts.To == "" {
		opts.To = p.To
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = reminderPrompt(p)
	}
	if opts.Greeting == "" {
		opts.Greeting = fmt.Sprintf("Hi %s, this is a quick reminder about your interview for %s.", p.CandidateName, p.JobTitle)
	}
	return opts
}

func reminderPrompt(p ReminderPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a friendly recruiting assistant calling %s to remind them of their interview for the %s position ", p.CandidateName, p.JobTitle)
	fmt.Fprintf(&b, "on %s", p.InterviewAt.Format("Monday, January 2 at 3:04 PM MST"))
	if p.Location != "" {
		fmt.Fprintf(&b, " at %s", p.Location)
	}
	b.WriteString(". Confirm they can attend, answer logistics questions briefly, and end the call politely.")
	return b.String()
}
