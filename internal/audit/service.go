package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. Events are never
// updated or deleted.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]Event, error)
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Actor identifies who triggered an audited action.
type Actor struct {
	UserID string
	Role   string
	IP     string
}

// Service logs internal audit information.
//
// Audit is internal-only and callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.OrganizationID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// List returns an organization's newest events first. limit is clamped to
// [1, MaxListLimit]; zero means DefaultListLimit.
func (s *Service) List(ctx context.Context, organizationID string, limit int) ([]Event, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if organizationID == "" {
		return nil, ErrInvalidEvent
	}
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return s.repo.ListByOrganization(ctx, organizationID, limit)
}

// LogAdminAction records an admin action (including hidden roles).
func (s *Service) LogAdminAction(ctx context.Context, organizationID string, actor Actor, message, metadata string) error {
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeAdminAction,
		ActorUserID:    actor.UserID,
		ActorRole:      actor.Role,
		IPAddress:      actor.IP,
		Message:        message,
		Metadata:       metadata,
	})
}

// LogCredentialsUpdated records which keys of a category changed. Values are never logged.
func (s *Service) LogCredentialsUpdated(ctx context.Context, organizationID string, actor Actor, category string, keys []string) error {
	meta, err := json.Marshal(map[string]any{"keys": keys})
	if err != nil {
		return err
	}
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeCredentialsUpdated,
		ActorUserID:    actor.UserID,
		ActorRole:      actor.Role,
		IPAddress:      actor.IP,
		Category:       category,
		Message:        "credentials updated",
		Metadata:       string(meta),
	})
}

// LogNotificationTest records a diagnostic send through a named provider.
func (s *Service) LogNotificationTest(ctx context.Context, organizationID string, actor Actor, provider string, success bool) error {
	meta, err := json.Marshal(map[string]any{"success": success})
	if err != nil {
		return err
	}
	return s.Append(ctx, Event{
		OrganizationID: organizationID,
		Type:           EventTypeNotificationTest,
		ActorUserID:    actor.UserID,
		ActorRole:      actor.Role,
		IPAddress:      actor.IP,
		Provider:       provider,
		Message:        "notification test",
		Metadata:       string(meta),
	})
}
