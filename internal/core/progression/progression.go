// Package progression maps accumulated achievement points to a user level.
package progression

import "math"

// Curve is a leveling curve with geometrically growing level bands: the band
// for a level is BasePoints * Growth^(level-1) points wide, so each level
// requires proportionally more points than the one before.
type Curve struct {
	BasePoints int
	Growth     float64
}

// DefaultCurve is the leveling curve used by the report service.
var DefaultCurve = Curve{BasePoints: 100, Growth: 1.5}

// maxLevel bounds the band walk; totals beyond it pin to the last band.
const maxLevel = 99

// State is the level derivation for a point total. It carries no identity of
// its own and is recomputed from TotalPoints on every report request.
type State struct {
	TotalPoints int
	Level       int
	// LevelProgress is the fraction [0,1] of the current band already earned.
	LevelProgress float64
	// PointsForNextLevel is the remaining points to the next threshold.
	PointsForNextLevel int
}

// StateFor derives the level state for a cumulative point total.
func (c Curve) StateFor(totalPoints int) State {
	base := float64(c.BasePoints)
	if base <= 0 {
		base = float64(DefaultCurve.BasePoints)
	}
	growth := c.Growth
	if growth <= 0 {
		growth = DefaultCurve.Growth
	}
	if totalPoints < 0 {
		totalPoints = 0
	}

	level := 1
	remaining := float64(totalPoints)
	band := base
	for remaining >= band && level < maxLevel {
		remaining -= band
		level++
		band = base * math.Pow(growth, float64(level-1))
	}

	progress := remaining / band
	if progress > 1 {
		progress = 1
	}
	next := int(math.Ceil(band - remaining))
	if next < 0 {
		next = 0
	}

	return State{
		TotalPoints:        totalPoints,
		Level:              level,
		LevelProgress:      progress,
		PointsForNextLevel: next,
	}
}
