package sched

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    string
		kind  SpecKind
		cron  string
		every time.Duration
		err   bool
	}{
		{"five-field cron", "*/5 * * * *", SpecCron, "*/5 * * * *", 0, false},
		{"six-field cron", "0 30 4 * * *", SpecCron, "0 30 4 * * *", 0, false},
		{"descriptor", "@hourly", SpecCron, "@hourly", 0, false},
		{"at-every", "@every 55m", SpecCron, "@every 55m", 0, false},
		{"duration", "55m", SpecInterval, "", 55 * time.Minute, false},
		{"compound duration", "2h30m", SpecInterval, "", 2*time.Hour + 30*time.Minute, false},
		{"hhmm", "02:30", SpecInterval, "", 2*time.Hour + 30*time.Minute, false},
		{"hhmm under an hour", "00:50", SpecInterval, "", 50 * time.Minute, false},
		{"cron prefix", "cron:*/10 * * * *", SpecCron, "*/10 * * * *", 0, false},
		{"interval prefix", "interval:45m", SpecInterval, "", 45 * time.Minute, false},
		{"every prefix hhmm", "every:01:15", SpecInterval, "", time.Hour + 15*time.Minute, false},
		{"empty", "", 0, "", 0, true},
		{"negative duration", "-5m", 0, "", 0, true},
		{"bad minutes", "02:75", 0, "", 0, true},
		{"garbage", "soonish", 0, "", 0, true},
		{"empty cron prefix", "cron:", 0, "", 0, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSchedule(tt.in)
			if tt.err {
				if err == nil {
					t.Fatalf("ParseSchedule(%q) = %+v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.in, err)
			}
			if got.Kind != tt.kind || got.Cron != tt.cron || got.Every != tt.every {
				t.Fatalf("ParseSchedule(%q) = %+v, want kind=%v cron=%q every=%v",
					tt.in, got, tt.kind, tt.cron, tt.every)
			}
		})
	}
}

func TestCronSpecNormalizesIntervals(t *testing.T) {
	t.Parallel()
	ps, err := ParseSchedule("90m")
	if err != nil {
		t.Fatal(err)
	}
	if got := ps.CronSpec(); got != "@every 1h30m0s" {
		t.Fatalf("CronSpec() = %q", got)
	}
}
