// Package forecast extrapolates short daily emission histories.
package forecast

import "math"

// Defaults for the flat-extrapolation model. Overridable per call through
// Options; the values are configuration defaults rather than derived rules.
const (
	DefaultHorizonDays = 7
	DefaultLookbackCap = 30
	minHistoryDays     = 3
)

// DailyPoint is one day of observed emissions, ordered by day ascending.
type DailyPoint struct {
	Day   string
	CO2Kg float64
}

// Prediction is a flat extrapolation of recent daily emissions.
type Prediction struct {
	// DailyPredictions holds one estimate per horizon day, in day order.
	DailyPredictions []float64
	WeeklyPrediction float64
	MonthlyPrediction float64
	// Confidence is a [0,1] score expressing how much history supports the
	// forecast. Fewer than three observed days force it to zero.
	Confidence  float64
	BasedOnDays int
}

// Options tunes the forecast model.
type Options struct {
	HorizonDays int
	LookbackCap int
}

// Predict forecasts the next horizon days from observed daily totals.
//
// The model is deliberately flat (mean of the most recent observed days, no
// trend-line fitting) to avoid overfitting on small histories. It never
// fails: with no usable history it returns zero predictions with zero
// confidence.
func Predict(history []DailyPoint, opts Options) Prediction {
	horizon := opts.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	lookback := opts.LookbackCap
	if lookback <= 0 {
		lookback = DefaultLookbackCap
	}

	recent := history
	if len(recent) > lookback {
		recent = recent[len(recent)-lookback:]
	}

	based := len(recent)
	mean := 0.0
	for _, p := range recent {
		mean += p.CO2Kg
	}
	if based > 0 {
		mean /= float64(based)
	}

	prediction := Prediction{
		DailyPredictions:  make([]float64, horizon),
		WeeklyPrediction:  mean * 7,
		MonthlyPrediction: mean * 30,
		BasedOnDays:       based,
	}
	for i := range prediction.DailyPredictions {
		prediction.DailyPredictions[i] = mean
	}

	if based < minHistoryDays || mean <= 0 {
		return prediction
	}

	stddev := sampleStdDev(recent, mean)
	spread := math.Min(stddev/mean, 1)
	coverage := math.Min(float64(based)/float64(DefaultLookbackCap), 1)
	prediction.Confidence = clamp01(coverage * (1 - spread))
	return prediction
}

func sampleStdDev(points []DailyPoint, mean float64) float64 {
	if len(points) < 2 {
		return 0
	}
	var sum float64
	for _, p := range points {
		d := p.CO2Kg - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(points)-1))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
