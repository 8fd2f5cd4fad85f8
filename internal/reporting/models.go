package reporting

import "time"

// TimeRange is half-open: From inclusive, To exclusive.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
// Organization isolation: OrganizationID is required.
type CallsSummaryRequest struct {
	OrganizationID string    `json:"organizationId"`
	Range          TimeRange `json:"range"`
}

type CallsSummary struct {
	OrganizationID string    `json:"organizationId"`
	Range          TimeRange `json:"range"`

	TotalCalls      int `json:"totalCalls"`
	CompletedCalls  int `json:"completedCalls"`
	FailedCalls     int `json:"failedCalls"`
	NoAnswerCalls   int `json:"noAnswerCalls"`
	BusyCalls       int `json:"busyCalls"`
	CanceledCalls   int `json:"canceledCalls"`
	InProgressCalls int `json:"inProgressCalls"`
	PendingCalls    int `json:"pendingCalls"`

	TotalDurationSeconds   int `json:"totalDurationSeconds"`
	AverageDurationSeconds int `json:"averageDurationSeconds"`
	BillableMinutes        int `json:"billableMinutes"`

	// TotalCostCents sums the cost stored on each call at completion.
	TotalCostCents int64 `json:"totalCostCents"`

	RecordedCalls int `json:"recordedCalls"`

	// ConnectionRate is connected (completed or recorded) calls over all calls.
	ConnectionRate float64 `json:"connectionRate"`
}
