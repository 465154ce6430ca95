// Package aggregate folds activity entries into period totals.
package aggregate

import (
	"sort"
	"time"

	"github.com/louisbranch/carbontrace/internal/core/bucket"
)

// Entry is the minimal activity view the fold consumes. Callers map their
// storage records into entries so the fold stays free of persistence concerns.
type Entry struct {
	Category   string
	CO2Kg      float64
	OccurredAt time.Time
}

// WellFormed reports whether the entry can participate in aggregation.
// Negative masses and zero timestamps are excluded as soft errors.
func (e Entry) WellFormed() bool {
	return e.CO2Kg >= 0 && !e.OccurredAt.IsZero()
}

// DailyTotal is one day's total inside an aggregate, keyed by day bucket.
type DailyTotal struct {
	Day   string
	CO2Kg float64
}

// Aggregate holds period totals for a half-open window.
//
// Invariant: TotalCO2Kg equals the sum over PerCategoryCO2Kg and the sum over
// DailyBreakdown within floating-point tolerance.
type Aggregate struct {
	PeriodStart      time.Time
	PeriodEnd        time.Time
	TotalCO2Kg       float64
	PerCategoryCO2Kg map[string]float64
	// DailyBreakdown is ordered by day ascending.
	DailyBreakdown []DailyTotal
}

// DailyMean returns the mean daily total over days present in the breakdown.
// Days with no activity do not dilute the mean.
func (a Aggregate) DailyMean() float64 {
	if len(a.DailyBreakdown) == 0 {
		return 0
	}
	var sum float64
	for _, d := range a.DailyBreakdown {
		sum += d.CO2Kg
	}
	return sum / float64(len(a.DailyBreakdown))
}

// Fold aggregates entries whose timestamp falls inside the window.
//
// The fold never fails: an empty input yields a zero-valued aggregate, and
// malformed entries (negative mass, zero timestamp) are excluded and counted
// so one bad record cannot blank a whole report.
func Fold(entries []Entry, window bucket.Window, cal bucket.Calendar) (Aggregate, int) {
	agg := Aggregate{
		PeriodStart:      window.Start,
		PeriodEnd:        window.End,
		PerCategoryCO2Kg: make(map[string]float64),
	}

	malformed := 0
	daily := make(map[string]float64)
	for _, entry := range entries {
		if !entry.WellFormed() {
			malformed++
			continue
		}
		if !window.Contains(entry.OccurredAt) {
			continue
		}
		agg.TotalCO2Kg += entry.CO2Kg
		agg.PerCategoryCO2Kg[entry.Category] += entry.CO2Kg
		daily[cal.DayKey(entry.OccurredAt)] += entry.CO2Kg
	}

	agg.DailyBreakdown = make([]DailyTotal, 0, len(daily))
	for day, kg := range daily {
		agg.DailyBreakdown = append(agg.DailyBreakdown, DailyTotal{Day: day, CO2Kg: kg})
	}
	sort.Slice(agg.DailyBreakdown, func(i, j int) bool {
		return agg.DailyBreakdown[i].Day < agg.DailyBreakdown[j].Day
	})

	return agg, malformed
}
