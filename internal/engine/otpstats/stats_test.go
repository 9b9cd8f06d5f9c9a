package otpstats

import (
	"testing"
	"time"
)

func TestNewDailyAggregate(t *testing.T) {
	tests := []struct {
		name       string
		verified   int
		unverified int
		wantTotal  int
		wantPct    float64
	}{
		{name: "No Events", verified: 0, unverified: 0, wantTotal: 0, wantPct: 0},
		{name: "All Verified", verified: 40, unverified: 0, wantTotal: 40, wantPct: 0},
		{name: "All Unverified", verified: 0, unverified: 12, wantTotal: 12, wantPct: 100},
		{name: "One Third", verified: 2, unverified: 1, wantTotal: 3, wantPct: 33.33},
		{name: "Two Thirds", verified: 1, unverified: 2, wantTotal: 3, wantPct: 66.67},
		{name: "Typical Day", verified: 935, unverified: 65, wantTotal: 1000, wantPct: 6.5},
		{name: "Half Rounds To Even", verified: 799, unverified: 1, wantTotal: 800, wantPct: 0.12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewDailyAggregate("2025-03-01", tt.verified, tt.unverified)
			if agg.Total != tt.wantTotal {
				t.Errorf("Expected total %d, got %d", tt.wantTotal, agg.Total)
			}
			if agg.Verified+agg.Unverified != agg.Total {
				t.Errorf("verified %d + unverified %d != total %d", agg.Verified, agg.Unverified, agg.Total)
			}
			if agg.UnverifiedPct != tt.wantPct {
				t.Errorf("Expected percentage %v, got %v", tt.wantPct, agg.UnverifiedPct)
			}
		})
	}
}

func TestNewDateRange(t *testing.T) {
	start := time.Date(2025, 3, 10, 15, 30, 0, 0, time.UTC)
	end := time.Date(2025, 3, 12, 1, 0, 0, 0, time.UTC)

	r, err := NewDateRange(start, end)
	if err != nil {
		t.Fatalf("NewDateRange returned error: %v", err)
	}
	from, to := r.Bounds()
	if !from.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected lower bound %v", from)
	}
	if !to.Equal(time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected upper bound %v", to)
	}
	if r.String() != "2025-03-10..2025-03-12" {
		t.Errorf("Unexpected string %q", r.String())
	}

	if _, err := NewDateRange(end, start); err == nil {
		t.Error("Expected error for start after end")
	}

	same, err := NewDateRange(start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Same-day range returned error: %v", err)
	}
	if !same.IsSingleDay() || same.String() != "2025-03-10" {
		t.Errorf("Expected single day range, got %s", same)
	}
}

func TestFirstOfNextMonth(t *testing.T) {
	tests := []struct {
		in       time.Time
		expected time.Time
	}{
		{time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		if got := FirstOfNextMonth(tt.in); !got.Equal(tt.expected) {
			t.Errorf("FirstOfNextMonth(%v) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestMonthTabOfDate(t *testing.T) {
	tab, err := MonthTabOfDate("2025-04-01")
	if err != nil {
		t.Fatalf("MonthTabOfDate returned error: %v", err)
	}
	if tab != "2025-04" {
		t.Errorf("Expected 2025-04, got %s", tab)
	}

	if _, err := MonthTabOfDate("01/04/2025"); err == nil {
		t.Error("Expected error for malformed date")
	}
}
