package api

import (
	"time"

	"github.com/louisbranch/carbontrace/internal/core/aggregate"
	"github.com/louisbranch/carbontrace/internal/core/bucket"
	"github.com/louisbranch/carbontrace/internal/core/insight"
	"github.com/louisbranch/carbontrace/internal/services/report/app"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/achievement"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/activity"
	"github.com/louisbranch/carbontrace/internal/services/report/storage"
)

type aggregatePayload struct {
	PeriodStart    time.Time          `json:"periodStart"`
	PeriodEnd      time.Time          `json:"periodEnd"`
	TotalCO2Kg     float64            `json:"totalCo2Kg"`
	PerCategoryKg  map[string]float64 `json:"perCategoryCo2Kg"`
	DailyBreakdown []dailyTotal       `json:"dailyBreakdown"`
}

type dailyTotal struct {
	Day   string  `json:"day"`
	CO2Kg float64 `json:"co2Kg"`
}

type trendPayload struct {
	Direction     string   `json:"direction"`
	CurrentValue  float64  `json:"currentValue"`
	PreviousValue float64  `json:"previousValue"`
	PercentChange *float64 `json:"percentChange,omitempty"`
}

type predictionPayload struct {
	DailyPredictions  []float64 `json:"dailyPredictions"`
	WeeklyPrediction  float64   `json:"weeklyPrediction"`
	MonthlyPrediction float64   `json:"monthlyPrediction"`
	Confidence        float64   `json:"confidence"`
	BasedOnDays       int       `json:"basedOnDays"`
}

type insightPayload struct {
	Type            string            `json:"type"`
	Impact          string            `json:"impact"`
	TitleKey        string            `json:"titleKey"`
	DescriptionKey  string            `json:"descriptionKey"`
	Params          map[string]string `json:"params,omitempty"`
	Recommendations []string          `json:"recommendationKeys,omitempty"`
}

type achievementPayload struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Points     int        `json:"points"`
	IsUnlocked bool       `json:"isUnlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
	Progress   float64    `json:"progress"`
}

type levelPayload struct {
	TotalPoints        int     `json:"totalPoints"`
	Level              int     `json:"level"`
	LevelProgress      float64 `json:"levelProgress"`
	PointsForNextLevel int     `json:"pointsForNextLevel"`
}

type goalStatusPayload struct {
	TargetKg float64 `json:"targetKg"`
	Ratio    float64 `json:"ratio"`
	OnTrack  bool    `json:"onTrack"`
}

type goalTargetsPayload struct {
	DailyKg   float64 `json:"dailyKg"`
	WeeklyKg  float64 `json:"weeklyKg"`
	MonthlyKg float64 `json:"monthlyKg"`
	YearlyKg  float64 `json:"yearlyKg"`
}

type reportPayload struct {
	UserID      string    `json:"userId"`
	GeneratedAt time.Time `json:"generatedAt"`
	Stale       bool      `json:"stale,omitempty"`

	Today aggregatePayload `json:"today"`
	Week  aggregatePayload `json:"week"`
	Month aggregatePayload `json:"month"`
	Year  aggregatePayload `json:"year"`

	WeekTrend  trendPayload `json:"weekTrend"`
	MonthTrend trendPayload `json:"monthTrend"`

	Prediction predictionPayload `json:"prediction"`
	Insights   []insightPayload  `json:"insights"`

	Achievements []achievementPayload `json:"achievements"`
	Level        levelPayload         `json:"level"`

	Targets goalTargetsPayload           `json:"goalTargets"`
	Goals   map[string]goalStatusPayload `json:"goals"`

	MalformedRecords int `json:"malformedRecords,omitempty"`
}

type activityPayload struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Category    string            `json:"category"`
	Subcategory string            `json:"subcategory,omitempty"`
	CO2Kg       float64           `json:"co2Kg"`
	OccurredAt  time.Time         `json:"occurredAt"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func toAggregatePayload(a aggregate.Aggregate) aggregatePayload {
	daily := make([]dailyTotal, 0, len(a.DailyBreakdown))
	for _, d := range a.DailyBreakdown {
		daily = append(daily, dailyTotal{Day: d.Day, CO2Kg: d.CO2Kg})
	}
	return aggregatePayload{
		PeriodStart:    a.PeriodStart,
		PeriodEnd:      a.PeriodEnd,
		TotalCO2Kg:     a.TotalCO2Kg,
		PerCategoryKg:  a.PerCategoryCO2Kg,
		DailyBreakdown: daily,
	}
}

func toReportPayload(report app.Report) reportPayload {
	payload := reportPayload{
		UserID:      report.UserID,
		GeneratedAt: report.GeneratedAt,
		Stale:       report.Stale,
		Today:       toAggregatePayload(report.Today),
		Week:        toAggregatePayload(report.Week),
		Month:       toAggregatePayload(report.Month),
		Year:        toAggregatePayload(report.Year),
		Prediction: predictionPayload{
			DailyPredictions:  report.Prediction.DailyPredictions,
			WeeklyPrediction:  report.Prediction.WeeklyPrediction,
			MonthlyPrediction: report.Prediction.MonthlyPrediction,
			Confidence:        report.Prediction.Confidence,
			BasedOnDays:       report.Prediction.BasedOnDays,
		},
		Level: levelPayload{
			TotalPoints:        report.Level.TotalPoints,
			Level:              report.Level.Level,
			LevelProgress:      report.Level.LevelProgress,
			PointsForNextLevel: report.Level.PointsForNextLevel,
		},
		Targets: goalTargetsPayload(report.Targets),
		Goals:   make(map[string]goalStatusPayload, len(report.Goals)),

		MalformedRecords: report.MalformedRecords,
	}

	payload.WeekTrend = toTrendPayload(report)
	payload.MonthTrend = trendPayload{
		Direction:     string(report.MonthTrend.Direction),
		CurrentValue:  report.MonthTrend.CurrentValue,
		PreviousValue: report.MonthTrend.PreviousValue,
	}
	if report.MonthTrend.HasBaseline {
		change := report.MonthTrend.PercentChange
		payload.MonthTrend.PercentChange = &change
	}

	payload.Insights = toInsightPayloads(report.Insights)
	payload.Achievements = toAchievementPayloads(report.Achievements)

	targetFor := map[bucket.Granularity]float64{
		bucket.GranularityDay:   report.Targets.DailyKg,
		bucket.GranularityWeek:  report.Targets.WeeklyKg,
		bucket.GranularityMonth: report.Targets.MonthlyKg,
		bucket.GranularityYear:  report.Targets.YearlyKg,
	}
	for granularity, status := range report.Goals {
		payload.Goals[string(granularity)] = goalStatusPayload{
			TargetKg: targetFor[granularity],
			Ratio:    status.Ratio,
			OnTrack:  status.OnTrack,
		}
	}
	return payload
}

func toTrendPayload(report app.Report) trendPayload {
	payload := trendPayload{
		Direction:     string(report.WeekTrend.Direction),
		CurrentValue:  report.WeekTrend.CurrentValue,
		PreviousValue: report.WeekTrend.PreviousValue,
	}
	if report.WeekTrend.HasBaseline {
		change := report.WeekTrend.PercentChange
		payload.PercentChange = &change
	}
	return payload
}

func toInsightPayloads(insights []insight.Insight) []insightPayload {
	out := make([]insightPayload, 0, len(insights))
	for _, in := range insights {
		out = append(out, insightPayload{
			Type:            string(in.Type),
			Impact:          string(in.Impact),
			TitleKey:        in.TitleKey,
			DescriptionKey:  in.DescriptionKey,
			Params:          in.Params,
			Recommendations: in.RecommendationKeys,
		})
	}
	return out
}

func toAchievementPayloads(views []achievement.View) []achievementPayload {
	out := make([]achievementPayload, 0, len(views))
	for _, v := range views {
		out = append(out, achievementPayload{
			ID:         v.Def.ID,
			Type:       string(v.Def.Type),
			Points:     v.Def.Points,
			IsUnlocked: v.State.IsUnlocked,
			UnlockedAt: v.State.UnlockedAt,
			Progress:   v.State.Progress,
		})
	}
	return out
}

func toActivityPayloads(records []activity.Record) []activityPayload {
	out := make([]activityPayload, 0, len(records))
	for _, r := range records {
		out = append(out, activityPayload{
			ID:          r.ID,
			UserID:      r.UserID,
			Category:    string(r.Category),
			Subcategory: r.Subcategory,
			CO2Kg:       r.CO2Kg,
			OccurredAt:  r.OccurredAt,
			Metadata:    r.Metadata,
		})
	}
	return out
}

func toGoalTargets(payload goalTargetsPayload) storage.GoalTargets {
	return storage.GoalTargets(payload)
}
