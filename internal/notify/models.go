package notify

import "time"

// Attempt is an immutable log record written for every send.
type Attempt struct {
	ID         string      `json:"id" db:"id"`
	Recipient  string      `json:"recipient" db:"recipient"`
	Message    string      `json:"message" db:"message"`
	Type       MessageType `json:"type" db:"type"`
	Provider   string      `json:"provider" db:"provider"`
	Success    bool        `json:"success" db:"success"`
	Error      string      `json:"error,omitempty" db:"error"`
	ExternalID string      `json:"external_id,omitempty" db:"external_id"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// Interview describes a scheduled interview for reminder messages.
type Interview struct {
	CandidateName string    `json:"candidateName"`
	JobTitle      string    `json:"jobTitle"`
	At            time.Time `json:"interviewAt"`
	Location      string    `json:"location,omitempty"`
}
