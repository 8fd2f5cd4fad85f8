package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"recruit-comms/internal/calls"
)

func seed(t *testing.T, repo *calls.MemoryRepo, c calls.Call) {
	t.Helper()
	if c.ExternalID == "" {
		c.ExternalID = "CA-" + c.ID
	}
	if err := repo.CreateWithEvent(context.Background(), c, calls.Event{ID: "e-" + c.ID, CallID: c.ID, Type: calls.EventType(c.Status)}); err != nil {
		t.Fatalf("seed %s: %v", c.ID, err)
	}
}

func TestReporting_OrganizationIsolation(t *testing.T) {
	repo := calls.NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	seed(t, repo, calls.Call{ID: "c1", OrganizationID: "o1", Status: calls.StatusCompleted, DurationSeconds: 30, CreatedAt: now})
	seed(t, repo, calls.Call{ID: "c2", OrganizationID: "o2", Status: calls.StatusCompleted, DurationSeconds: 50, CreatedAt: now})
	svc := NewService(repo)

	out, err := svc.CallsSummary(context.Background(), CallsSummaryRequest{OrganizationID: "o1", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 {
		t.Fatalf("expected 1 call, got %d", out.TotalCalls)
	}
}

func TestReporting_Aggregates(t *testing.T) {
	repo := calls.NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	seed(t, repo, calls.Call{ID: "c1", OrganizationID: "o", Status: calls.StatusRecordingAvailable, DurationSeconds: 61, CostCents: 10, RecordingURL: "https://r/1", CreatedAt: now})
	seed(t, repo, calls.Call{ID: "c2", OrganizationID: "o", Status: calls.StatusCompleted, DurationSeconds: 59, CostCents: 5, CreatedAt: now.Add(time.Minute)})
	seed(t, repo, calls.Call{ID: "c3", OrganizationID: "o", Status: calls.StatusNoAnswer, CreatedAt: now.Add(2 * time.Minute)})
	seed(t, repo, calls.Call{ID: "c4", OrganizationID: "o", Status: calls.StatusRinging, CreatedAt: now.Add(3 * time.Minute)})
	// Outside the range.
	seed(t, repo, calls.Call{ID: "c5", OrganizationID: "o", Status: calls.StatusCompleted, DurationSeconds: 600, CreatedAt: now.Add(2 * time.Hour)})

	out, err := NewService(repo).CallsSummary(context.Background(), CallsSummaryRequest{OrganizationID: "o", Range: TimeRange{From: now, To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 4 || out.CompletedCalls != 2 || out.NoAnswerCalls != 1 || out.PendingCalls != 1 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if out.TotalDurationSeconds != 120 || out.AverageDurationSeconds != 30 {
		t.Fatalf("unexpected durations: %+v", out)
	}
	if out.BillableMinutes != 3 || out.TotalCostCents != 15 {
		t.Fatalf("unexpected billing: minutes=%d cost=%d", out.BillableMinutes, out.TotalCostCents)
	}
	if out.RecordedCalls != 1 || out.ConnectionRate != 0.5 {
		t.Fatalf("unexpected recording/connection: %+v", out)
	}
}

func TestReporting_InvalidRequests(t *testing.T) {
	svc := NewService(calls.NewMemoryRepo())
	now := time.Unix(1700000000, 0).UTC()
	cases := []CallsSummaryRequest{
		{Range: TimeRange{From: now, To: now.Add(time.Hour)}},
		{OrganizationID: "o"},
		{OrganizationID: "o", Range: TimeRange{From: now, To: now}},
		{OrganizationID: "o", Range: TimeRange{From: now, To: now.Add(MaxRange + time.Hour)}},
	}
	for i, req := range cases {
		if _, err := svc.CallsSummary(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("case %d: expected ErrInvalidRequest, got %v", i, err)
		}
	}
}
