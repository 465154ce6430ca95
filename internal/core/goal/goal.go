// Package goal compares period totals against user-set emission targets.
package goal

// Status is the attainment state of one goal granularity.
type Status struct {
	// Ratio is emitted total divided by target. Values above 1 mean the
	// budget is exceeded.
	Ratio float64
	// OnTrack is true while the total stays within the target. Hitting the
	// target exactly still counts as on track.
	OnTrack bool
}

// Evaluate computes attainment for one granularity. A non-positive target
// yields an on-track zero ratio so an unset goal never flags the user.
func Evaluate(totalKg, targetKg float64) Status {
	if targetKg <= 0 {
		return Status{OnTrack: true}
	}
	ratio := totalKg / targetKg
	return Status{
		Ratio:   ratio,
		OnTrack: ratio <= 1.0,
	}
}
