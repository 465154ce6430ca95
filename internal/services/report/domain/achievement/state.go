package achievement

import (
	"sort"
	"time"
)

// State is the persisted unlock state for one definition and one user.
//
// IsUnlocked is monotonic: once true, a recomputation must never set it back
// to false, and UnlockedAt keeps the first-unlock timestamp forever.
type State struct {
	ID         string
	IsUnlocked bool
	UnlockedAt *time.Time
	// Progress is clamp(metric/threshold, 0, 1).
	Progress float64
}

// View joins a catalog definition with its per-user state for presentation.
type View struct {
	Def   Def
	State State
}

// Progress clamps a metric value against a threshold into [0,1].
func Progress(metricValue, threshold float64) float64 {
	if threshold <= 0 {
		return 1
	}
	p := metricValue / threshold
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Satisfied reports whether a metric value meets the unlock threshold.
func Satisfied(metricValue, threshold float64) bool {
	return metricValue >= threshold
}

// SortViews orders achievements for display: unlocked first by unlock time
// descending (most recent on top), then locked by progress descending.
func SortViews(views []View) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.State.IsUnlocked != b.State.IsUnlocked {
			return a.State.IsUnlocked
		}
		if a.State.IsUnlocked {
			at, bt := a.State.UnlockedAt, b.State.UnlockedAt
			switch {
			case at == nil:
				return false
			case bt == nil:
				return true
			default:
				return at.After(*bt)
			}
		}
		return a.State.Progress > b.State.Progress
	})
}
