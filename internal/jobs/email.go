package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"

	"recruit-comms/internal/queue"
)

var (
	ErrEmailNotConfigured = errors.New("jobs: email sending is not configured")
	ErrInvalidEmail       = errors.New("jobs: invalid email")
)

// EmailPayload is the email-sending job payload.
type EmailPayload struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

func (p EmailPayload) Validate() error {
	if len(p.To) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidEmail)
	}
	for _, to := range p.To {
		if !strings.Contains(to, "@") {
			return fmt.Errorf("%w: bad recipient %q", ErrInvalidEmail, to)
		}
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidEmail)
	}
	if p.HTML == "" && p.Text == "" {
		return fmt.Errorf("%w: html or text body is required", ErrInvalidEmail)
	}
	return nil
}

// EmailClient is the Resend emails service.
type EmailClient interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type EmailHandler struct {
	client EmailClient
	from   string
	log    *slog.Logger
}

// NewResendEmailHandler returns a handler backed by Resend; an empty apiKey
// yields a handler that fails every job permanently.
func NewResendEmailHandler(apiKey, from string, log *slog.Logger) *EmailHandler {
	var client EmailClient
	if apiKey != "" {
		client = resend.NewClient(apiKey).Emails
	}
	return NewEmailHandler(client, from, log)
}

func NewEmailHandler(client EmailClient, from string, log *slog.Logger) *EmailHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EmailHandler{client: client, from: from, log: log.With("component", "jobs.email")}
}

func (h *EmailHandler) Handle(ctx context.Context, job *queue.Job) error {
	var p EmailPayload
	if err := job.Decode(&p); err != nil {
		return queue.Permanent(fmt.Errorf("decode email: %w", err))
	}
	if err := p.Validate(); err != nil {
		return queue.Permanent(err)
	}
	if h.client == nil || h.from == "" {
		return queue.Permanent(ErrEmailNotConfigured)
	}

	resp, err := h.client.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    h.from,
		To:      p.To,
		Subject: p.Subject,
		Html:    p.HTML,
		Text:    p.Text,
	})
	if err != nil {
		return fmt.Errorf("send email via resend: %w", err)
	}
	h.log.Info("email sent", "job_id", job.ID, "recipients", len(p.To), "resend_id", resp.Id)
	return nil
}
