package calls

import "strings"

// transitions is the complete set of permitted status changes.
// Anything not listed is denied; terminal statuses have no outgoing entries
// except completed, which may be refined locally to recording-available.
var transitions = map[Status]map[Status]bool{
	StatusInitiated: {
		StatusRinging:    true,
		StatusInProgress: true,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusNoAnswer:   true,
		StatusBusy:       true,
		StatusCanceled:   true,
	},
	StatusRinging: {
		StatusInProgress: true,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusNoAnswer:   true,
		StatusBusy:       true,
		StatusCanceled:   true,
	},
	StatusInProgress: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
	StatusCompleted: {
		StatusRecordingAvailable: true,
	},
}

const (
	ReasonDuplicate     = "duplicate"
	ReasonTerminal      = "terminal"
	ReasonOutOfOrder    = "out_of_order"
	ReasonUnknownStatus = "unknown_status"
	ReasonUnknownCall   = "unknown_call"
	ReasonMissingSID    = "missing_call_sid"
	ReasonConcurrent    = "concurrent_update"
	ReasonStoreFailure  = "store_failure"
)

func IsTerminal(s Status) bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusNoAnswer, StatusBusy, StatusCanceled, StatusRecordingAvailable:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// decide classifies a gateway-reported status against the current one.
// An empty reason means the transition must be applied.
func decide(current, reported Status) string {
	switch {
	case current == reported:
		if IsTerminal(current) {
			return ReasonTerminal
		}
		return ReasonDuplicate
	case IsTerminal(current):
		return ReasonTerminal
	case CanTransition(current, reported):
		return ""
	default:
		return ReasonOutOfOrder
	}
}

// NormalizeGatewayStatus maps a Twilio CallStatus value to a call Status.
// recording-available is never accepted from the gateway.
func NormalizeGatewayStatus(raw string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "queued", "initiated":
		return StatusInitiated, true
	case "ringing":
		return StatusRinging, true
	case "in-progress", "answered":
		return StatusInProgress, true
	case "completed":
		return StatusCompleted, true
	case "failed":
		return StatusFailed, true
	case "no-answer":
		return StatusNoAnswer, true
	case "busy":
		return StatusBusy, true
	case "canceled":
		return StatusCanceled, true
	default:
		return "", false
	}
}
