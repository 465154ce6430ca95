package achievement

import (
	"sort"
	"time"

	"github.com/louisbranch/carbontrace/internal/core/bucket"
	apperrors "github.com/louisbranch/carbontrace/internal/platform/errors"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/activity"
)

// MetricID is an opaque reference from a catalog entry to a metric function.
type MetricID string

const (
	MetricActivityCount    MetricID = "activity_count"
	MetricLoggingStreak    MetricID = "logging_streak"
	MetricDailyGoalMetDays MetricID = "daily_goal_met_days"
	MetricDistinctWeeks    MetricID = "distinct_weeks"
	MetricLowCarbonDays    MetricID = "low_carbon_days"
)

// lowCarbonDayKg is the ceiling below which a logged day counts as low
// carbon. A configuration default, not a derived constant.
const lowCarbonDayKg = 2.0

// MetricInput is everything a metric function may read. Metrics are pure:
// the same input always produces the same value.
type MetricInput struct {
	History     []activity.Record
	Calendar    bucket.Calendar
	DailyGoalKg float64
}

// MetricFunc computes a progress value from the full activity history.
type MetricFunc func(MetricInput) float64

var metricRegistry = map[MetricID]MetricFunc{
	MetricActivityCount:    metricActivityCount,
	MetricLoggingStreak:    metricLoggingStreak,
	MetricDailyGoalMetDays: metricDailyGoalMetDays,
	MetricDistinctWeeks:    metricDistinctWeeks,
	MetricLowCarbonDays:    metricLowCarbonDays,
}

// MetricValue resolves and evaluates the metric referenced by a definition.
func MetricValue(id MetricID, in MetricInput) (float64, error) {
	fn, ok := metricRegistry[id]
	if !ok {
		return 0, apperrors.WithMetadata(apperrors.CodeAchievementUnknownMetric, "unknown achievement metric", map[string]string{
			"metric": string(id),
		})
	}
	return fn(in), nil
}

func metricActivityCount(in MetricInput) float64 {
	count := 0
	for _, r := range in.History {
		if r.WellFormed() {
			count++
		}
	}
	return float64(count)
}

// dailyTotals folds the history into per-day totals keyed by day bucket.
func dailyTotals(in MetricInput) map[string]float64 {
	totals := make(map[string]float64)
	for _, r := range in.History {
		if !r.WellFormed() {
			continue
		}
		totals[in.Calendar.DayKey(r.OccurredAt)] += r.CO2Kg
	}
	return totals
}

func sortedDays(totals map[string]float64) []string {
	days := make([]string, 0, len(totals))
	for day := range totals {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

func metricLoggingStreak(in MetricInput) float64 {
	totals := dailyTotals(in)
	if len(totals) == 0 {
		return 0
	}

	days := sortedDays(totals)
	longest, run := 1, 1
	prev, err := time.Parse("2006-01-02", days[0])
	if err != nil {
		return 0
	}
	for i := 1; i < len(days); i++ {
		cur, err := time.Parse("2006-01-02", days[i])
		if err != nil {
			continue
		}
		if cur.Sub(prev) == 24*time.Hour {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
		prev = cur
	}
	return float64(longest)
}

func metricDailyGoalMetDays(in MetricInput) float64 {
	if in.DailyGoalKg <= 0 {
		return 0
	}
	count := 0
	for _, total := range dailyTotals(in) {
		if total <= in.DailyGoalKg {
			count++
		}
	}
	return float64(count)
}

func metricDistinctWeeks(in MetricInput) float64 {
	weeks := make(map[string]struct{})
	for _, r := range in.History {
		if !r.WellFormed() {
			continue
		}
		weeks[in.Calendar.Key(r.OccurredAt, bucket.GranularityWeek)] = struct{}{}
	}
	return float64(len(weeks))
}

func metricLowCarbonDays(in MetricInput) float64 {
	count := 0
	for _, total := range dailyTotals(in) {
		if total <= lowCarbonDayKg {
			count++
		}
	}
	return float64(count)
}
