package app

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/carbontrace/internal/platform/errors"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/achievement"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/activity"
)

// evaluateAchievements recomputes unlock progress for the full catalog and
// performs any pending unlock transitions.
//
// Unlocked states are never re-evaluated; their stored unlock timestamps are
// authoritative. A failed unlock write leaves the state locked in the result
// so a later evaluation retries the transition. Repeating the evaluation on
// unchanged history never changes the outcome.
func (s *Service) evaluateAchievements(ctx context.Context, userID string, history []activity.Record, dailyGoalKg float64, now time.Time) ([]achievement.View, int, error) {
	states, err := s.store.LoadAchievementStates(ctx, userID)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeActivityFetch, "load achievement states", err)
	}

	input := achievement.MetricInput{
		History:     history,
		Calendar:    s.cal,
		DailyGoalKg: dailyGoalKg,
	}

	defs := achievement.Catalog()
	views := make([]achievement.View, 0, len(defs))
	progressStates := make(map[string]achievement.State)
	totalPoints := 0

	for _, def := range defs {
		st, ok := states[def.ID]
		if !ok {
			st = achievement.State{ID: def.ID}
		}
		if st.IsUnlocked {
			st.Progress = 1
			totalPoints += def.Points
			views = append(views, achievement.View{Def: def, State: st})
			continue
		}

		value, err := achievement.MetricValue(def.Metric, input)
		if err != nil {
			return nil, 0, err
		}
		st.Progress = achievement.Progress(value, def.Threshold)

		if achievement.Satisfied(value, def.Threshold) {
			won, err := s.store.UnlockAchievement(ctx, userID, def.ID, now)
			if err != nil {
				// The state stays locked so the next evaluation retries.
				s.logger.Printf("unlock %s failed for %s: %v", def.ID, userID, err)
			} else {
				st.IsUnlocked = true
				st.Progress = 1
				if won {
					at := now
					st.UnlockedAt = &at
				} else if prev, ok := states[def.ID]; ok && prev.UnlockedAt != nil {
					st.UnlockedAt = prev.UnlockedAt
				} else {
					at := now
					st.UnlockedAt = &at
				}
				totalPoints += def.Points
			}
		}

		if !st.IsUnlocked {
			progressStates[def.ID] = st
		}
		views = append(views, achievement.View{Def: def, State: st})
	}

	if len(progressStates) > 0 {
		if err := s.store.SaveAchievementStates(ctx, userID, progressStates); err != nil {
			s.logger.Printf("achievement progress save failed for %s: %v", userID, err)
		}
	}

	achievement.SortViews(views)
	return views, totalPoints, nil
}

// Achievements recomputes and returns the user's achievement views with the
// points total they imply.
func (s *Service) Achievements(ctx context.Context, userID string) ([]achievement.View, int, error) {
	history, err := s.store.QueryAll(ctx, userID)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeActivityFetch, "fetch activity history", err)
	}
	targets, err := s.GoalTargets(ctx, userID)
	if err != nil {
		targets.DailyKg = 0
	}
	return s.evaluateAchievements(ctx, userID, history, targets.DailyKg, s.now())
}
