package calls

import (
	"encoding/json"
	"time"
)

// Call is one outbound voice call placed by the orchestrator.
//
// Rows are never deleted. Status is the latest projected state; the ordered
// Event list attached to the call is the source of truth for audit and replay.
// ExternalID is the gateway's call reference and is set on every persisted row.
type Call struct {
	ID             string       `json:"id" db:"id"`
	OrganizationID string       `json:"organizationId,omitempty" db:"organization_id"`
	To             string       `json:"to" db:"to_number"`
	From           string       `json:"from" db:"from_number"`
	Status         Status       `json:"status" db:"status"`
	ExternalID     string       `json:"externalCallId" db:"external_id"`
	Metadata       CallMetadata `json:"metadata" db:"metadata"`

	DurationSeconds int    `json:"durationSeconds" db:"duration_seconds"`
	CostCents       int64  `json:"costCents" db:"cost_cents"`
	RecordingURL    string `json:"recordingUrl,omitempty" db:"recording_url"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CallMetadata configures the AI side of the conversation.
type CallMetadata struct {
	SystemPrompt string `json:"systemPrompt,omitempty"`
	Voice        string `json:"voice,omitempty"`
	Greeting     string `json:"greeting,omitempty"`
}

type Status string

const (
	StatusInitiated          Status = "initiated"
	StatusRinging            Status = "ringing"
	StatusInProgress         Status = "in-progress"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusNoAnswer           Status = "no-answer"
	StatusBusy               Status = "busy"
	StatusCanceled           Status = "canceled"
	StatusRecordingAvailable Status = "recording-available"
)

// Event is an append-only entry in a call's history.
type Event struct {
	ID        string          `json:"id" db:"id"`
	CallID    string          `json:"callId" db:"call_id"`
	Type      string          `json:"type" db:"type"`
	Payload   json.RawMessage `json:"payload,omitempty" db:"payload"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

const (
	EventWebhookIgnored = "call.webhook_ignored"
	EventStreamStarted  = "call.stream_started"
	EventStreamStopped  = "call.stream_stopped"
)

// EventType is the event name recorded for a transition into s.
func EventType(s Status) string {
	return "call." + string(s)
}

// CallOptions is the request to place a call. It is also the exact payload of
// the voice-calls queue, so it must stay plain serializable data.
type CallOptions struct {
	To             string `json:"to"`
	OrganizationID string `json:"organizationId,omitempty"`
	SystemPrompt   string `json:"systemPrompt,omitempty"`
	Voice          string `json:"voice,omitempty"`
	Greeting       string `json:"greeting,omitempty"`
}

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindConfiguration ErrorKind = "configuration"
	KindGateway       ErrorKind = "gateway"
	// KindTimeout means the placement request outlived its deadline. The
	// gateway may still have accepted and dialed the call.
	KindTimeout  ErrorKind = "timeout"
	KindInternal ErrorKind = "internal"
	// KindUnrecorded means the gateway accepted the call but the call row
	// could not be written.
	KindUnrecorded ErrorKind = "unrecorded"
)

// InitiateResult is the structured outcome of InitiateCall.
type InitiateResult struct {
	Success        bool      `json:"success"`
	CallID         string    `json:"callId,omitempty"`
	ExternalCallID string    `json:"externalCallId,omitempty"`
	Error          string    `json:"error,omitempty"`
	Kind           ErrorKind `json:"errorKind,omitempty"`
}

// Retryable reports whether placing the same call again could succeed
// without dialing the candidate twice. Timeout and unrecorded outcomes may
// already have reached the candidate's phone, so they are final.
func (r InitiateResult) Retryable() bool {
	return r.Kind == KindGateway || r.Kind == KindInternal
}

// Organization is the minimal projection of the owning organization.
type Organization struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type CallDetails struct {
	Call
	Organization *Organization `json:"organization,omitempty"`
}

type CredentialSource string

const (
	SourceStore       CredentialSource = "store"
	SourceEnvironment CredentialSource = "environment"
	SourceNone        CredentialSource = "none"
	SourceCandidate   CredentialSource = "candidate"
)

type ConnectionStatus struct {
	Connected   bool             `json:"connected"`
	Source      CredentialSource `json:"source"`
	PhoneNumber string           `json:"phoneNumber,omitempty"`
	AccountID   string           `json:"accountId,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// StatusUpdate is a gateway status callback reduced to what drives the state machine.
type StatusUpdate struct {
	ExternalCallID  string
	Status          string
	DurationSeconds *int
}

// WebhookOutcome reports what HandleStatusWebhook did; it is informational only.
type WebhookOutcome struct {
	CallID  string `json:"callId,omitempty"`
	Applied bool   `json:"applied"`
	Status  Status `json:"status,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
