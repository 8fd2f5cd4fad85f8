package notify

import (
	"context"
	"log/slog"
)

type MessageType string

const (
	TypeNotification MessageType = "notification"
	TypeVerification MessageType = "verification"
	TypeAlert        MessageType = "alert"
	TypeInterview    MessageType = "interview"
)

type Params struct {
	To      string
	Message string
	Type    MessageType
}

// Result is the outcome of one provider send.
// A vendor rejection is reported here with Delivered=false; the error return
// of Send is reserved for unexpected failures (transport, decoding).
type Result struct {
	Delivered  bool
	ExternalID string
	Error      string
}

// Provider is one channel/vendor implementation.
// Providers read their credentials once at construction and never fail for
// "not configured": they log and return an undelivered Result instead.
type Provider interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, p Params) (Result, error)
}

const errNotConfigured = "provider not configured"

func notConfigured(log *slog.Logger, name string) Result {
	log.Warn("notification provider not configured", "provider", name)
	return Result{Error: errNotConfigured}
}
