// Package trend classifies the change between two equal-length periods.
package trend

import "math"

// Direction describes how the current period compares to the previous one.
type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionFlat       Direction = "flat"
)

// DefaultDeadbandPercent is the tolerance band within which a change is
// classified as flat. The threshold is a configuration default, not a
// load-bearing business rule.
const DefaultDeadbandPercent = 5.0

// Result is the classification of current vs previous period totals.
//
// When the previous period total is zero there is no comparable baseline:
// HasBaseline is false and PercentChange is meaningless. Callers must treat
// that case as "no baseline", never as a 0% change.
type Result struct {
	CurrentValue  float64
	PreviousValue float64
	Direction     Direction
	PercentChange float64
	HasBaseline   bool
}

// Classify compares two period totals using the default deadband.
func Classify(current, previous float64) Result {
	return ClassifyWithDeadband(current, previous, DefaultDeadbandPercent)
}

// ClassifyWithDeadband compares two period totals. Changes whose magnitude is
// below deadbandPercent are classified as flat.
func ClassifyWithDeadband(current, previous, deadbandPercent float64) Result {
	result := Result{
		CurrentValue:  current,
		PreviousValue: previous,
		Direction:     DirectionFlat,
	}
	if previous == 0 {
		return result
	}

	result.HasBaseline = true
	result.PercentChange = (current - previous) / previous * 100

	if math.Abs(result.PercentChange) < deadbandPercent {
		return result
	}
	if result.PercentChange > 0 {
		result.Direction = DirectionIncreasing
	} else {
		result.Direction = DirectionDecreasing
	}
	return result
}
