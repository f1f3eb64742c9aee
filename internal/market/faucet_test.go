package market

import (
	"testing"
	"time"
)

func TestMissedDays(t *testing.T) {
	day := func(y int, m time.Month, d, hour int) time.Time {
		return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
	}
	tests := []struct {
		name  string
		last  time.Time
		today time.Time
		want  int
	}{
		{"same day", day(2026, 8, 25, 9), day(2026, 8, 25, 23), 0},
		{"next day", day(2026, 8, 24, 23), day(2026, 8, 25, 0), 1},
		{"five days", day(2026, 8, 20, 12), day(2026, 8, 25, 1), 5},
		{"month boundary", day(2026, 1, 30, 8), day(2026, 2, 2, 8), 3},
		{"year boundary", day(2025, 12, 31, 8), day(2026, 1, 1, 8), 1},
		{"leap february", day(2024, 2, 28, 8), day(2024, 3, 1, 8), 2},
		{"clock in future", day(2026, 8, 26, 0), day(2026, 8, 25, 0), 0},
	}
	for _, tc := range tests {
		if got := missedDays(tc.last, tc.today); got != tc.want {
			t.Fatalf("%s: missedDays = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestMissedDaysIgnoresTimeZoneOffsets(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// 23:00 EST on the 24th is 04:00 UTC on the 25th
	last := time.Date(2026, 8, 24, 23, 0, 0, 0, est)
	today := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	if got := missedDays(last, today); got != 0 {
		t.Fatalf("missedDays = %d, want 0 (both are the 25th in UTC)", got)
	}
}

func TestFaucetChipsPerDay(t *testing.T) {
	last := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	today := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	days := missedDays(last, today)
	if chips := int64(days) * DailyChips; chips != 50 {
		t.Fatalf("five missed days pay %d chips, want 50", chips)
	}
}

func TestCivilDate(t *testing.T) {
	in := time.Date(2026, 8, 25, 17, 45, 12, 999, time.FixedZone("PST", -8*3600))
	got := civilDate(in)
	want := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("civilDate = %v, want %v", got, want)
	}
}
