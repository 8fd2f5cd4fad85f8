package pricing

import "testing"

func TestBillableMinutesFromSeconds(t *testing.T) {
	if got := billableMinutesFromSeconds(1); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := billableMinutesFromSeconds(60); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := billableMinutesFromSeconds(61); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := billableMinutesFromSeconds(0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestFlatRateCallCost(t *testing.T) {
	f := NewFlatRate(7)

	if f.CallCost(1).TotalMinor != f.CallCost(60).TotalMinor {
		t.Fatalf("expected cost(1) == cost(60)")
	}
	if got := f.CallCost(61).TotalMinor; got != 14 {
		t.Fatalf("expected cost(61) = 2*rate = 14, got %d", got)
	}
	if got := f.CallCost(-5); got.TotalMinor != 0 || got.BillableMinutes != 0 {
		t.Fatalf("expected zero cost for negative duration, got %+v", got)
	}
}
