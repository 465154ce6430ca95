// Package bucket maps timestamps to calendar-aligned intervals.
//
// Every aggregate, trend, and goal window in the report pipeline is derived
// from the windows produced here, so bucketing is deliberately free of any
// dependency on record data or iteration order: the same timestamp always
// lands in the same bucket for a given Calendar.
package bucket

import "time"

// Granularity identifies a calendar bucket size.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Calendar resolves timestamps into buckets for a fixed reference location
// and a fixed week start day.
type Calendar struct {
	loc       *time.Location
	weekStart time.Weekday
}

// New creates a Calendar. A nil location falls back to UTC.
func New(loc *time.Location, weekStart time.Weekday) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc, weekStart: weekStart}
}

// Location returns the calendar's reference location.
func (c Calendar) Location() *time.Location {
	return c.loc
}

// Key returns the stable bucket key for ts at the given granularity.
//
// Keys sort lexicographically in chronological order within a granularity:
// days as "2006-01-02", weeks as the week's start day suffixed with "/wk",
// months as "2006-01", years as "2006".
func (c Calendar) Key(ts time.Time, g Granularity) string {
	local := ts.In(c.loc)
	switch g {
	case GranularityWeek:
		return c.WeekWindow(local).Start.Format("2006-01-02") + "/wk"
	case GranularityMonth:
		return local.Format("2006-01")
	case GranularityYear:
		return local.Format("2006")
	default:
		return local.Format("2006-01-02")
	}
}

// DayKey returns the day bucket key for ts.
func (c Calendar) DayKey(ts time.Time) string {
	return c.Key(ts, GranularityDay)
}

// DayWindow returns the calendar day containing now.
func (c Calendar) DayWindow(now time.Time) Window {
	local := now.In(c.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekWindow returns the week containing now, starting on the configured weekday.
func (c Calendar) WeekWindow(now time.Time) Window {
	day := c.DayWindow(now).Start
	offset := (int(day.Weekday()) - int(c.weekStart) + 7) % 7
	start := day.AddDate(0, 0, -offset)
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthWindow returns the calendar month containing now.
func (c Calendar) MonthWindow(now time.Time) Window {
	local := now.In(c.loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, c.loc)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// YearWindow returns the calendar year containing now.
func (c Calendar) YearWindow(now time.Time) Window {
	local := now.In(c.loc)
	start := time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, c.loc)
	return Window{Start: start, End: start.AddDate(1, 0, 0)}
}

// WindowOf returns the bucket window containing now for the granularity.
func (c Calendar) WindowOf(now time.Time, g Granularity) Window {
	switch g {
	case GranularityWeek:
		return c.WeekWindow(now)
	case GranularityMonth:
		return c.MonthWindow(now)
	case GranularityYear:
		return c.YearWindow(now)
	default:
		return c.DayWindow(now)
	}
}

// Previous returns the window of equal length immediately before w.
// Trend comparisons require equal-length periods, so this shifts by the
// window's own duration rather than by calendar arithmetic.
func (c Calendar) Previous(w Window) Window {
	d := w.Duration()
	return Window{Start: w.Start.Add(-d), End: w.Start}
}

// AddMonths shifts ts by the given number of calendar months, clamping a day
// that does not exist in the target month to that month's last valid day
// (e.g. Mar 31 minus one month is Feb 28, not Mar 3).
func AddMonths(ts time.Time, months int) time.Time {
	year, month, day := ts.Date()
	hour, min, sec := ts.Clock()

	target := time.Date(year, month+time.Month(months), 1, hour, min, sec, ts.Nanosecond(), ts.Location())
	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, hour, min, sec, ts.Nanosecond(), ts.Location())
}

// AddYears shifts ts by whole years, clamping Feb 29 to Feb 28 on non-leap targets.
func AddYears(ts time.Time, years int) time.Time {
	return AddMonths(ts, years*12)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
