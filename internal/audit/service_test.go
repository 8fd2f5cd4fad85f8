package audit

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestService_AppendRequiresOrganizationAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeAdminAction}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{OrganizationID: "o"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	actor := Actor{UserID: "u", Role: "super_admin", IP: "1.2.3.4"}
	if err := svc.LogAdminAction(context.Background(), "o", actor, "did something", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeAdminAction {
		t.Fatalf("expected admin_action")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be assigned")
	}
}

func TestService_CredentialsUpdatedLogsKeysOnly(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.LogCredentialsUpdated(context.Background(), "o", Actor{UserID: "u", Role: "owner"}, "twilio", []string{"account_sid", "auth_token"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ev := repo.Events()[0]
	if ev.Type != EventTypeCredentialsUpdated || ev.Category != "twilio" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !strings.Contains(ev.Metadata, "auth_token") {
		t.Fatalf("expected key names in metadata, got %s", ev.Metadata)
	}
}

func TestService_NilIsNotConfigured(t *testing.T) {
	var svc *Service
	if err := svc.LogAdminAction(context.Background(), "o", Actor{}, "x", ""); err == nil {
		t.Fatalf("expected error from nil service")
	}
}

func TestService_ListNewestFirstPerOrganization(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, org := range []string{"o", "o", "other", "o"} {
		e := Event{OrganizationID: org, Type: EventTypeAdminAction, Message: org, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := svc.Append(context.Background(), e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := svc.List(context.Background(), "o", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || !got[0].CreatedAt.Equal(base.Add(3*time.Minute)) || !got[1].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected order: %+v", got)
	}
	all, _ := svc.List(context.Background(), "o", 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 events for o, got %d", len(all))
	}
	if _, err := svc.List(context.Background(), "", 10); err == nil {
		t.Fatalf("expected error without organization")
	}
}
