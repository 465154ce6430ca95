// Package insight evaluates a fixed rule set against period aggregates and
// trend results.
//
// The engine emits language-agnostic structured insights: message keys and
// typed params, never display strings. Rendering text for a locale is the
// presentation layer's job, keyed off Type, the message keys, and Params.
package insight

import (
	"sort"
	"strconv"

	"github.com/louisbranch/carbontrace/internal/core/aggregate"
	"github.com/louisbranch/carbontrace/internal/core/forecast"
	"github.com/louisbranch/carbontrace/internal/core/trend"
)

// Type identifies the rule family that produced an insight.
type Type string

const (
	TypeHighUsageDay      Type = "high_usage_day"
	TypeCategoryDominance Type = "category_dominance"
	TypeImprovement       Type = "improvement"
	TypeWarning           Type = "warning"
	TypePrediction        Type = "prediction"
)

// Impact ranks how actionable an insight is.
type Impact string

const (
	ImpactHigh     Impact = "high"
	ImpactMedium   Impact = "medium"
	ImpactLow      Impact = "low"
	ImpactPositive Impact = "positive"
)

// impactRank orders insights most actionable first.
func impactRank(i Impact) int {
	switch i {
	case ImpactHigh:
		return 0
	case ImpactMedium:
		return 1
	case ImpactPositive:
		return 2
	default:
		return 3
	}
}

// Insight is one rule outcome. TitleKey and DescriptionKey are stable message
// keys; Params carries the structured values a renderer interpolates.
type Insight struct {
	Type               Type
	Impact             Impact
	TitleKey           string
	DescriptionKey     string
	Params             map[string]string
	RecommendationKeys []string
}

// Config holds the rule thresholds. All values are configuration defaults
// carried over from the product, not derived constants; callers may override
// any of them.
type Config struct {
	// DominanceShare is the category share of the period total above which
	// the dominance rule fires.
	DominanceShare float64
	// SpikeFactor is the multiple of the period's daily mean above which a
	// single day counts as a high-usage day.
	SpikeFactor float64
	// ImprovementPercent is the minimum decreasing week-trend magnitude for
	// the improvement rule.
	ImprovementPercent float64
	// WarningPercent is the minimum increasing week-trend magnitude for the
	// warning rule.
	WarningPercent float64
	// PredictionConfidenceMin gates the prediction rule on forecast quality.
	PredictionConfidenceMin float64
}

// DefaultConfig returns the product's default rule thresholds.
func DefaultConfig() Config {
	return Config{
		DominanceShare:          0.5,
		SpikeFactor:             2,
		ImprovementPercent:      10,
		WarningPercent:          20,
		PredictionConfidenceMin: 0.5,
	}
}

// Input is the derived state the rules read.
type Input struct {
	// Current is the aggregate the dominance and spike rules inspect,
	// conventionally the current month.
	Current aggregate.Aggregate
	// WeekTrend drives the improvement and warning rules.
	WeekTrend trend.Result
	// Prediction and WeeklyGoalKg drive the prediction rule. A zero goal
	// disables it.
	Prediction   forecast.Prediction
	WeeklyGoalKg float64
}

// categoryRecommendations maps dominant categories to tailored
// recommendation keys. Categories without an entry get the generic set.
var categoryRecommendations = map[string][]string{
	"transport": {"recommend.transport.public_transit", "recommend.transport.combine_trips"},
	"energy":    {"recommend.energy.heating_setpoint", "recommend.energy.standby_devices"},
	"food":      {"recommend.food.plant_based_meals", "recommend.food.local_produce"},
	"shopping":  {"recommend.shopping.buy_used", "recommend.shopping.repair_first"},
	"waste":     {"recommend.waste.recycle_more", "recommend.waste.compost"},
}

var genericRecommendations = []string{"recommend.generic.track_daily", "recommend.generic.set_goal"}

// Evaluate runs the rule set in a fixed order. Each rule emits at most one
// insight; an empty result is a valid "no insights yet" state, not an error.
// The returned list is ordered most actionable first.
func Evaluate(in Input, cfg Config) []Insight {
	rules := []func(Input, Config) (Insight, bool){
		ruleHighUsageDay,
		ruleCategoryDominance,
		ruleWarning,
		ruleImprovement,
		rulePrediction,
	}

	var out []Insight
	for _, rule := range rules {
		if ins, ok := rule(in, cfg); ok {
			out = append(out, ins)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return impactRank(out[i].Impact) < impactRank(out[j].Impact)
	})
	return out
}

func ruleHighUsageDay(in Input, cfg Config) (Insight, bool) {
	mean := in.Current.DailyMean()
	if mean <= 0 {
		return Insight{}, false
	}

	var spikeDay aggregate.DailyTotal
	found := false
	for _, d := range in.Current.DailyBreakdown {
		if d.CO2Kg > mean*cfg.SpikeFactor && (!found || d.CO2Kg > spikeDay.CO2Kg) {
			spikeDay = d
			found = true
		}
	}
	if !found {
		return Insight{}, false
	}

	return Insight{
		Type:           TypeHighUsageDay,
		Impact:         ImpactHigh,
		TitleKey:       "insight.high_usage_day.title",
		DescriptionKey: "insight.high_usage_day.description",
		Params: map[string]string{
			"day":           spikeDay.Day,
			"day_kg":        formatKg(spikeDay.CO2Kg),
			"daily_mean_kg": formatKg(mean),
		},
		RecommendationKeys: []string{"recommend.generic.review_day"},
	}, true
}

func ruleCategoryDominance(in Input, cfg Config) (Insight, bool) {
	if in.Current.TotalCO2Kg <= 0 {
		return Insight{}, false
	}

	var topCategory string
	var topKg float64
	for category, kg := range in.Current.PerCategoryCO2Kg {
		if kg > topKg || (kg == topKg && category < topCategory) {
			topCategory = category
			topKg = kg
		}
	}
	share := topKg / in.Current.TotalCO2Kg
	if share <= cfg.DominanceShare {
		return Insight{}, false
	}

	recs := categoryRecommendations[topCategory]
	if len(recs) == 0 {
		recs = genericRecommendations
	}

	return Insight{
		Type:           TypeCategoryDominance,
		Impact:         ImpactMedium,
		TitleKey:       "insight.category_dominance.title",
		DescriptionKey: "insight.category_dominance.description",
		Params: map[string]string{
			"category":      topCategory,
			"share_percent": formatPercent(share * 100),
		},
		RecommendationKeys: recs,
	}, true
}

func ruleWarning(in Input, cfg Config) (Insight, bool) {
	t := in.WeekTrend
	if !t.HasBaseline || t.Direction != trend.DirectionIncreasing || t.PercentChange < cfg.WarningPercent {
		return Insight{}, false
	}
	return Insight{
		Type:           TypeWarning,
		Impact:         ImpactHigh,
		TitleKey:       "insight.warning.title",
		DescriptionKey: "insight.warning.description",
		Params: map[string]string{
			"percent_change": formatPercent(t.PercentChange),
		},
		RecommendationKeys: []string{"recommend.generic.review_week", "recommend.generic.set_goal"},
	}, true
}

func ruleImprovement(in Input, cfg Config) (Insight, bool) {
	t := in.WeekTrend
	if !t.HasBaseline || t.Direction != trend.DirectionDecreasing || -t.PercentChange < cfg.ImprovementPercent {
		return Insight{}, false
	}
	return Insight{
		Type:           TypeImprovement,
		Impact:         ImpactPositive,
		TitleKey:       "insight.improvement.title",
		DescriptionKey: "insight.improvement.description",
		Params: map[string]string{
			"percent_change": formatPercent(-t.PercentChange),
		},
		RecommendationKeys: []string{"recommend.generic.keep_streak"},
	}, true
}

func rulePrediction(in Input, cfg Config) (Insight, bool) {
	if in.WeeklyGoalKg <= 0 || in.Prediction.Confidence < cfg.PredictionConfidenceMin {
		return Insight{}, false
	}
	if in.Prediction.WeeklyPrediction <= in.WeeklyGoalKg {
		return Insight{}, false
	}
	return Insight{
		Type:           TypePrediction,
		Impact:         ImpactMedium,
		TitleKey:       "insight.prediction.title",
		DescriptionKey: "insight.prediction.description",
		Params: map[string]string{
			"predicted_weekly_kg": formatKg(in.Prediction.WeeklyPrediction),
			"weekly_goal_kg":      formatKg(in.WeeklyGoalKg),
			"confidence":          strconv.FormatFloat(in.Prediction.Confidence, 'f', 2, 64),
		},
		RecommendationKeys: []string{"recommend.generic.plan_low_carbon_week"},
	}, true
}

func formatKg(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
