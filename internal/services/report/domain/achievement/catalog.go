// Package achievement holds the fixed achievement catalog, the metric
// registry it references, and the pure evaluation rules for unlock progress.
//
// The catalog is a data table: definitions carry an opaque metric reference,
// a threshold, and a point value, and nothing about rendering. Icons, colors,
// and display names live entirely in the presentation layer, keyed by ID.
package achievement

// Type groups definitions by the cadence of the behavior they reward.
type Type string

const (
	TypeDaily     Type = "daily"
	TypeWeekly    Type = "weekly"
	TypeStreak    Type = "streak"
	TypeMilestone Type = "milestone"
	TypeSpecial   Type = "special"
)

// Def is one static catalog entry.
type Def struct {
	ID        string
	Type      Type
	Metric    MetricID
	Threshold float64
	Points    int
}

// catalog is the fixed definition table. Order is presentation-neutral;
// display ordering is derived from unlock state, not catalog position.
var catalog = []Def{
	{ID: "first_activity", Type: TypeMilestone, Metric: MetricActivityCount, Threshold: 1, Points: 10},
	{ID: "getting_started", Type: TypeMilestone, Metric: MetricActivityCount, Threshold: 25, Points: 20},
	{ID: "century_logger", Type: TypeMilestone, Metric: MetricActivityCount, Threshold: 100, Points: 50},
	{ID: "three_day_streak", Type: TypeStreak, Metric: MetricLoggingStreak, Threshold: 3, Points: 15},
	{ID: "week_streak", Type: TypeStreak, Metric: MetricLoggingStreak, Threshold: 7, Points: 40},
	{ID: "month_streak", Type: TypeStreak, Metric: MetricLoggingStreak, Threshold: 30, Points: 150},
	{ID: "daily_goal_first", Type: TypeDaily, Metric: MetricDailyGoalMetDays, Threshold: 1, Points: 10},
	{ID: "daily_goal_week", Type: TypeDaily, Metric: MetricDailyGoalMetDays, Threshold: 7, Points: 50},
	{ID: "daily_goal_month", Type: TypeDaily, Metric: MetricDailyGoalMetDays, Threshold: 30, Points: 120},
	{ID: "four_week_habit", Type: TypeWeekly, Metric: MetricDistinctWeeks, Threshold: 4, Points: 30},
	{ID: "low_carbon_day", Type: TypeSpecial, Metric: MetricLowCarbonDays, Threshold: 1, Points: 15},
	{ID: "low_carbon_collector", Type: TypeSpecial, Metric: MetricLowCarbonDays, Threshold: 10, Points: 60},
}

// Catalog returns the full definition table. The returned slice is a copy;
// the catalog itself is immutable.
func Catalog() []Def {
	out := make([]Def, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a definition by ID.
func Lookup(id string) (Def, bool) {
	for _, def := range catalog {
		if def.ID == id {
			return def, true
		}
	}
	return Def{}, false
}
