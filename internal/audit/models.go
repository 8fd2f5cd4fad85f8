package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - organization_id is required for tenancy isolation.
// - actor and ip capture are best-effort; do not block critical flows on audit failures.
// - Metadata never carries secret values, only masked forms or key names.
type Event struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`

	Type EventType `json:"type" db:"type"`

	// ActorRole may include hidden roles.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers (optional, depending on the event type).
	CallID   string `json:"call_id,omitempty" db:"call_id"`
	Category string `json:"category,omitempty" db:"category"`
	Provider string `json:"provider,omitempty" db:"provider"`

	Message  string `json:"message,omitempty" db:"message"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAdminAction        EventType = "admin_action"
	EventTypeCredentialsUpdated EventType = "credentials_updated"
	EventTypeNotificationTest   EventType = "notification_test"
)
