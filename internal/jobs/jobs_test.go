package jobs

import (
	"testing"
	"time"

	"linkmarket/internal/market"
)

func TestRunKeysUseUTC(t *testing.T) {
	east := time.FixedZone("UTC+9", 9*3600)
	// 23:30 on Aug 24 in UTC+9 is 14:30 on Aug 24 UTC.
	at := time.Date(2026, 8, 24, 23, 30, 0, 0, east)

	if got := dateKey(at); got != "2026-08-24" {
		t.Fatalf("dateKey = %q, want 2026-08-24", got)
	}
	if got := hourKey(at); got != "2026082414" {
		t.Fatalf("hourKey = %q, want 2026082414", got)
	}
}

func TestDateKeyRollsOverAtUTCMidnight(t *testing.T) {
	west := time.FixedZone("UTC-5", -5*3600)
	// 20:00 on Aug 24 in UTC-5 is 01:00 on Aug 25 UTC.
	at := time.Date(2026, 8, 24, 20, 0, 0, 0, west)
	if got := dateKey(at); got != "2026-08-25" {
		t.Fatalf("dateKey = %q, want 2026-08-25", got)
	}
}

func TestCurationEligible(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-1 * time.Hour)
	old := now.Add(-30 * time.Hour)

	tests := []struct {
		name   string
		cycle  market.Cycle
		minAge time.Duration
		want   bool
	}{
		{
			name:  "open cycle never eligible",
			cycle: market.Cycle{Status: market.CycleOpen},
			want:  false,
		},
		{
			name:   "settled but too young",
			cycle:  market.Cycle{Status: market.CycleSettled, ClosedAt: &recent},
			minAge: 24 * time.Hour,
			want:   false,
		},
		{
			name:   "settled and past the window",
			cycle:  market.Cycle{Status: market.CycleSettled, ClosedAt: &old},
			minAge: 24 * time.Hour,
			want:   true,
		},
		{
			name:   "settled with no close timestamp",
			cycle:  market.Cycle{Status: market.CycleSettled},
			minAge: 24 * time.Hour,
			want:   true,
		},
		{
			name:   "zero min age pays immediately",
			cycle:  market.Cycle{Status: market.CycleSettled, ClosedAt: &recent},
			minAge: 0,
			want:   true,
		},
	}
	for _, tc := range tests {
		if got := curationEligible(tc.cycle, tc.minAge, now); got != tc.want {
			t.Fatalf("%s: curationEligible = %v, want %v", tc.name, got, tc.want)
		}
	}
}
