package pricing

// CallCost is the billed amount for one call.
// Amounts are expressed in minor units (cents) using int64.
type CallCost struct {
	BillableMinutes    int   `json:"billable_minutes"`
	RatePerMinuteMinor int64 `json:"rate_per_minute_minor"`
	TotalMinor         int64 `json:"total_minor"`
}

// FlatRate bills every started minute at the same rate.
type FlatRate struct {
	RatePerMinuteMinor int64
}

func NewFlatRate(ratePerMinuteMinor int64) FlatRate {
	return FlatRate{RatePerMinuteMinor: ratePerMinuteMinor}
}

// CallCost returns ceil(durationSeconds/60) * rate. Non-positive durations cost nothing.
func (f FlatRate) CallCost(durationSeconds int) CallCost {
	m := billableMinutesFromSeconds(durationSeconds)
	return CallCost{
		BillableMinutes:    m,
		RatePerMinuteMinor: f.RatePerMinuteMinor,
		TotalMinor:         int64(m) * f.RatePerMinuteMinor,
	}
}

func billableMinutesFromSeconds(sec int) int {
	if sec <= 0 {
		return 0
	}
	m := sec / 60
	if sec%60 != 0 {
		m++
	}
	return m
}
