package pricing

import (
	"math"
	"time"
)

// Sample is one dated price point (a daily history row).
type Sample struct {
	Day   time.Time
	Price float64
}

// Window summarizes the samples inside one rolling window.
type Window struct {
	Avg     float64 `json:"avg"`
	Low     float64 `json:"low"`
	High    float64 `json:"high"`
	Samples int     `json:"samples"`
}

// Stats are the rolling price statistics for one (product, region).
//
// A window pointer is nil when no sample falls inside it, which serializes to
// an absent key rather than a zeroed block.
type Stats struct {
	M3          *Window `json:"m3,omitempty"`
	M6          *Window `json:"m6,omitempty"`
	M12         *Window `json:"m12,omitempty"`
	AllTimeLow  float64 `json:"all_time_low,omitempty"`
	AllTimeHigh float64 `json:"all_time_high,omitempty"`
	Samples     int     `json:"samples"`
}

// ComputeStats derives the 3/6/12-month windows and all-time extremes from
// dated samples. Windows are [now - N months, now]; samples dated in the
// future are ignored. Non-positive prices are skipped.
func ComputeStats(samples []Sample, now time.Time) Stats {
	cut3 := now.AddDate(0, -3, 0)
	cut6 := now.AddDate(0, -6, 0)
	cut12 := now.AddDate(0, -12, 0)

	var (
		stats         Stats
		w3, w6, w12   windowAcc
		atLow, atHigh float64
	)
	for _, s := range samples {
		if s.Price <= 0 || s.Day.After(now) {
			continue
		}
		stats.Samples++
		if atLow == 0 || s.Price < atLow {
			atLow = s.Price
		}
		if s.Price > atHigh {
			atHigh = s.Price
		}
		if !s.Day.Before(cut12) {
			w12.add(s.Price)
			if !s.Day.Before(cut6) {
				w6.add(s.Price)
				if !s.Day.Before(cut3) {
					w3.add(s.Price)
				}
			}
		}
	}
	stats.AllTimeLow = atLow
	stats.AllTimeHigh = atHigh
	stats.M3 = w3.window()
	stats.M6 = w6.window()
	stats.M12 = w12.window()
	return stats
}

type windowAcc struct {
	sum   float64
	low   float64
	high  float64
	count int
}

func (w *windowAcc) add(price float64) {
	w.sum += price
	if w.count == 0 || price < w.low {
		w.low = price
	}
	if price > w.high {
		w.high = price
	}
	w.count++
}

func (w *windowAcc) window() *Window {
	if w.count == 0 {
		return nil
	}
	return &Window{
		Avg:     round2(w.sum / float64(w.count)),
		Low:     w.low,
		High:    w.high,
		Samples: w.count,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
