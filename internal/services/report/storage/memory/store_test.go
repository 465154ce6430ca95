package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/carbontrace/internal/core/bucket"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/achievement"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/activity"
	"github.com/louisbranch/carbontrace/internal/services/report/storage"
)

func mustAppend(t *testing.T, s *Store, r activity.Record) {
	t.Helper()
	if err := s.Append(context.Background(), r); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestQueryFiltersWindowAndCategory(t *testing.T) {
	s := New()
	base := time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC)

	mustAppend(t, s, activity.Record{ID: "a", UserID: "u", Category: activity.CategoryTransport, CO2Kg: 5, OccurredAt: base})
	mustAppend(t, s, activity.Record{ID: "b", UserID: "u", Category: activity.CategoryFood, CO2Kg: 2, OccurredAt: base.Add(time.Hour)})
	mustAppend(t, s, activity.Record{ID: "c", UserID: "u", Category: activity.CategoryTransport, CO2Kg: 1, OccurredAt: base.Add(48 * time.Hour)})
	mustAppend(t, s, activity.Record{ID: "other", UserID: "v", Category: activity.CategoryTransport, CO2Kg: 9, OccurredAt: base})

	window := bucket.Window{Start: base.Add(-time.Hour), End: base.Add(24 * time.Hour)}

	all, err := s.Query(context.Background(), "u", window, "")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d records, want 2", len(all))
	}
	if all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("unexpected order: %s, %s", all[0].ID, all[1].ID)
	}

	transport, err := s.Query(context.Background(), "u", window, activity.CategoryTransport)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(transport) != 1 || transport[0].ID != "a" {
		t.Fatalf("category filter failed: %+v", transport)
	}
}

func TestQueryAllOrdersByOccurrence(t *testing.T) {
	s := New()
	base := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	mustAppend(t, s, activity.Record{ID: "later", UserID: "u", Category: activity.CategoryEnergy, CO2Kg: 1, OccurredAt: base.Add(time.Hour)})
	mustAppend(t, s, activity.Record{ID: "earlier", UserID: "u", Category: activity.CategoryEnergy, CO2Kg: 1, OccurredAt: base})

	records, err := s.QueryAll(context.Background(), "u")
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(records) != 2 || records[0].ID != "earlier" {
		t.Fatalf("unexpected ordering: %+v", records)
	}
}

func TestUnlockAchievementIsCompareAndSet(t *testing.T) {
	s := New()
	at := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	first, err := s.UnlockAchievement(context.Background(), "u", "first_activity", at)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if !first {
		t.Fatal("first unlock should win the transition")
	}

	second, err := s.UnlockAchievement(context.Background(), "u", "first_activity", at.Add(time.Hour))
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if second {
		t.Fatal("second unlock must not claim the transition")
	}

	states, err := s.LoadAchievementStates(context.Background(), "u")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	st := states["first_activity"]
	if !st.IsUnlocked || st.UnlockedAt == nil || !st.UnlockedAt.Equal(at) {
		t.Fatalf("unlock timestamp overwritten: %+v", st)
	}
}

func TestSaveAchievementStatesPreservesUnlock(t *testing.T) {
	s := New()
	at := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.UnlockAchievement(context.Background(), "u", "week_streak", at); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	err := s.SaveAchievementStates(context.Background(), "u", map[string]achievement.State{
		"week_streak":  {ID: "week_streak", Progress: 0.4},
		"month_streak": {ID: "month_streak", Progress: 0.2},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	states, err := s.LoadAchievementStates(context.Background(), "u")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	unlocked := states["week_streak"]
	if !unlocked.IsUnlocked {
		t.Fatal("progress save must not relock an achievement")
	}
	if unlocked.Progress != 0.4 {
		t.Fatalf("progress = %v, want 0.4", unlocked.Progress)
	}
	if states["month_streak"].IsUnlocked {
		t.Fatal("progress save must not unlock")
	}
}

func TestGoalTargetsRoundTrip(t *testing.T) {
	s := New()

	if _, err := s.LoadGoalTargets(context.Background(), "u"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before save, got %v", err)
	}

	targets := storage.GoalTargets{DailyKg: 5, WeeklyKg: 35, MonthlyKg: 150, YearlyKg: 1800}
	if err := s.SaveGoalTargets(context.Background(), "u", targets); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadGoalTargets(context.Background(), "u")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != targets {
		t.Fatalf("targets = %+v, want %+v", got, targets)
	}
}
