package reporting

import (
	"context"
	"errors"
	"time"

	"recruit-comms/internal/calls"
	"recruit-comms/internal/pricing"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// MaxRange bounds a single summary query.
const MaxRange = 93 * 24 * time.Hour

// Repository abstracts data access for reporting.
// Implementations must filter by organization. *calls.PostgresRepo and
// *calls.MemoryRepo satisfy it.
type Repository interface {
	ListCreatedBetween(ctx context.Context, orgID string, from, to time.Time) ([]calls.Call, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.OrganizationID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.To.Sub(req.Range.From) > MaxRange {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCreatedBetween(ctx, req.OrganizationID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	// Billable minutes only; the rate is irrelevant here.
	var minutes pricing.FlatRate
	out := CallsSummary{OrganizationID: req.OrganizationID, Range: req.Range}
	connected := 0
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		out.BillableMinutes += minutes.CallCost(c.DurationSeconds).BillableMinutes
		out.TotalCostCents += c.CostCents
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		switch c.Status {
		case calls.StatusCompleted, calls.StatusRecordingAvailable:
			out.CompletedCalls++
			connected++
		case calls.StatusFailed:
			out.FailedCalls++
		case calls.StatusNoAnswer:
			out.NoAnswerCalls++
		case calls.StatusBusy:
			out.BusyCalls++
		case calls.StatusCanceled:
			out.CanceledCalls++
		case calls.StatusInProgress:
			out.InProgressCalls++
		case calls.StatusInitiated, calls.StatusRinging:
			out.PendingCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
		out.ConnectionRate = float64(connected) / float64(out.TotalCalls)
	}
	return out, nil
}
