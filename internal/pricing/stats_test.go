package pricing

import (
	"testing"
	"time"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse day %q: %v", s, err)
	}
	return d
}

func TestComputeStatsWindows(t *testing.T) {
	t.Parallel()
	now := day(t, "2026-06-15")
	samples := []Sample{
		{Day: day(t, "2026-06-01"), Price: 800},  // m3, m6, m12
		{Day: day(t, "2026-05-01"), Price: 900},  // m3, m6, m12
		{Day: day(t, "2026-01-10"), Price: 700},  // m6, m12
		{Day: day(t, "2025-08-01"), Price: 1000}, // m12 only
		{Day: day(t, "2024-01-01"), Price: 1200}, // all-time only
	}
	got := ComputeStats(samples, now)

	if got.Samples != 5 {
		t.Fatalf("samples = %d, want 5", got.Samples)
	}
	if got.AllTimeLow != 700 || got.AllTimeHigh != 1200 {
		t.Fatalf("all-time = %v/%v, want 700/1200", got.AllTimeLow, got.AllTimeHigh)
	}
	if got.M3 == nil || got.M3.Samples != 2 || got.M3.Avg != 850 || got.M3.Low != 800 || got.M3.High != 900 {
		t.Fatalf("m3 = %+v", got.M3)
	}
	if got.M6 == nil || got.M6.Samples != 3 || got.M6.Avg != 800 {
		t.Fatalf("m6 = %+v", got.M6)
	}
	if got.M12 == nil || got.M12.Samples != 4 || got.M12.Avg != 850 {
		t.Fatalf("m12 = %+v", got.M12)
	}
}

func TestComputeStatsSkipsFutureAndZero(t *testing.T) {
	t.Parallel()
	now := day(t, "2026-06-15")
	samples := []Sample{
		{Day: day(t, "2026-07-01"), Price: 500},
		{Day: day(t, "2026-06-01"), Price: 0},
		{Day: day(t, "2026-06-01"), Price: -10},
	}
	got := ComputeStats(samples, now)
	if got.Samples != 0 || got.M3 != nil || got.M12 != nil {
		t.Fatalf("expected empty stats, got %+v", got)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	t.Parallel()
	got := ComputeStats(nil, time.Now())
	if got.Samples != 0 || got.M3 != nil || got.M6 != nil || got.M12 != nil {
		t.Fatalf("expected zero stats, got %+v", got)
	}
}

func TestComputeStatsRoundsAverages(t *testing.T) {
	t.Parallel()
	now := day(t, "2026-06-15")
	samples := []Sample{
		{Day: day(t, "2026-06-01"), Price: 100},
		{Day: day(t, "2026-06-02"), Price: 100},
		{Day: day(t, "2026-06-03"), Price: 101},
	}
	got := ComputeStats(samples, now)
	if got.M3 == nil || got.M3.Avg != 100.33 {
		t.Fatalf("m3 avg = %+v, want 100.33", got.M3)
	}
}
