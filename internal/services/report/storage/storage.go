// Package storage defines the persistence boundary of the report service:
// the append-only activity log and the derived gamification state that must
// survive across sessions. Everything else the service produces is
// recomputed per request and never stored.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/carbontrace/internal/core/bucket"
	apperrors "github.com/louisbranch/carbontrace/internal/platform/errors"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/achievement"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/activity"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate legitimate "no such entity" states from
// transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// GoalTargets are the user-editable emission budgets per granularity.
// All targets must be positive.
type GoalTargets struct {
	DailyKg   float64
	WeeklyKg  float64
	MonthlyKg float64
	YearlyKg  float64
}

// Validate checks that every target is positive.
func (g GoalTargets) Validate() error {
	if g.DailyKg <= 0 || g.WeeklyKg <= 0 || g.MonthlyKg <= 0 || g.YearlyKg <= 0 {
		return apperrors.New(apperrors.CodeGoalTargetNotPositive, "goal targets must be positive")
	}
	return nil
}

// DefaultGoalTargets returns the product defaults applied before a user has
// saved any targets of their own.
func DefaultGoalTargets() GoalTargets {
	return GoalTargets{DailyKg: 8, WeeklyKg: 56, MonthlyKg: 240, YearlyKg: 2900}
}

// ActivityStore owns the append-only activity log. The report pipeline only
// reads from it; the ingest paths append.
//
// I/O failures must surface as errors, never as silent empty results: an
// empty slice is a semantically valid "no activities yet" answer.
type ActivityStore interface {
	// Append stores one validated activity record.
	Append(ctx context.Context, record activity.Record) error
	// Query returns the user's records inside the half-open window, ordered
	// by occurrence ascending. An empty category matches all categories.
	Query(ctx context.Context, userID string, window bucket.Window, category activity.Category) ([]activity.Record, error)
	// QueryAll returns the user's full history ordered by occurrence
	// ascending. The achievement evaluator depends on this being unbounded.
	QueryAll(ctx context.Context, userID string) ([]activity.Record, error)
}

// DerivedStore owns the persisted gamification state.
//
// Unlock state is monotonic: implementations must never flip IsUnlocked back
// to false or overwrite UnlockedAt. SaveAchievementStates therefore only
// writes progress; the unlock transition itself goes through
// UnlockAchievement, which is a compare-and-set.
type DerivedStore interface {
	// LoadAchievementStates returns the user's states keyed by achievement ID.
	// Definitions the user has no row for yet are simply absent.
	LoadAchievementStates(ctx context.Context, userID string) (map[string]achievement.State, error)
	// SaveAchievementStates upserts progress for the given states atomically
	// (all-or-nothing per user). Unlock fields of existing rows are preserved.
	SaveAchievementStates(ctx context.Context, userID string, states map[string]achievement.State) error
	// UnlockAchievement marks an achievement unlocked only if it is not
	// already. It reports whether this call performed the transition, so two
	// concurrent evaluations cannot both claim the unlock.
	UnlockAchievement(ctx context.Context, userID, achievementID string, unlockedAt time.Time) (bool, error)
	// LoadGoalTargets returns the user's saved targets, or ErrNotFound when
	// the user has never saved any.
	LoadGoalTargets(ctx context.Context, userID string) (GoalTargets, error)
	// SaveGoalTargets replaces the user's targets.
	SaveGoalTargets(ctx context.Context, userID string, targets GoalTargets) error
}

// TelemetryEvent captures operational observations from report computation.
type TelemetryEvent struct {
	Timestamp  time.Time
	EventName  string
	Severity   string
	UserID     string
	Attributes map[string]any
}

// TelemetryStore persists operational telemetry records for audits.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
}

// Store is the composite interface for all persistence concerns of the
// report service.
type Store interface {
	ActivityStore
	DerivedStore
	TelemetryStore
	Close() error
}
