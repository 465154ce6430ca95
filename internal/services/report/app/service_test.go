package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/louisbranch/carbontrace/internal/core/bucket"
	apperrors "github.com/louisbranch/carbontrace/internal/platform/errors"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/activity"
	"github.com/louisbranch/carbontrace/internal/services/report/storage"
	"github.com/louisbranch/carbontrace/internal/services/report/storage/memory"
)

// fixedNow keeps every window deterministic. A Wednesday.
var fixedNow = time.Date(2025, time.June, 18, 15, 0, 0, 0, time.UTC)

func newTestService(store storage.Store) *Service {
	return New(store, Options{
		Calendar: bucket.New(time.UTC, time.Monday),
		Now:      func() time.Time { return fixedNow },
	})
}

func seed(t *testing.T, store storage.Store, userID string, day time.Time, category activity.Category, kg float64) {
	t.Helper()
	id := fmt.Sprintf("%s-%s-%v", userID, day.Format("2006-01-02T15"), kg)
	err := store.Append(context.Background(), activity.Record{
		ID:         id,
		UserID:     userID,
		Category:   category,
		CO2Kg:      kg,
		OccurredAt: day,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestBuildReportRequiresUserID(t *testing.T) {
	svc := newTestService(memory.New())
	_, err := svc.BuildReport(context.Background(), "  ")
	if apperrors.CodeOf(err) != apperrors.CodeActivityEmptyUserID {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeActivityEmptyUserID)
	}
}

func TestBuildReportAggregatesWindows(t *testing.T) {
	store := memory.New()
	svc := newTestService(store)

	// Current week runs Mon Jun 16 through Sun Jun 22.
	seed(t, store, "u", fixedNow.Add(-2*time.Hour), activity.CategoryTransport, 5)      // today
	seed(t, store, "u", fixedNow.Add(-24*time.Hour), activity.CategoryTransport, 7)     // yesterday, same week
	seed(t, store, "u", fixedNow.Add(-7*24*time.Hour), activity.CategoryFood, 4)        // previous week
	seed(t, store, "u", time.Date(2025, time.May, 20, 9, 0, 0, 0, time.UTC), activity.CategoryEnergy, 30) // previous month

	report, err := svc.BuildReport(context.Background(), "u")
	if err != nil {
		t.Fatalf("build report: %v", err)
	}

	if got := report.Today.TotalCO2Kg; math.Abs(got-5) > 1e-9 {
		t.Fatalf("today total = %v, want 5", got)
	}
	if got := report.Week.TotalCO2Kg; math.Abs(got-12) > 1e-9 {
		t.Fatalf("week total = %v, want 12", got)
	}
	if got := report.Month.TotalCO2Kg; math.Abs(got-16) > 1e-9 {
		t.Fatalf("month total = %v, want 16", got)
	}
	if got := report.Year.TotalCO2Kg; math.Abs(got-46) > 1e-9 {
		t.Fatalf("year total = %v, want 46", got)
	}

	if !report.WeekTrend.HasBaseline {
		t.Fatal("week trend should have previous-week baseline")
	}
	if math.Abs(report.WeekTrend.PercentChange-200) > 1e-9 {
		t.Fatalf("week change = %v%%, want 200%%", report.WeekTrend.PercentChange)
	}

	if report.Month.PerCategoryCO2Kg["transport"] != 12 {
		t.Fatalf("month transport = %v, want 12", report.Month.PerCategoryCO2Kg["transport"])
	}
	if len(report.Goals) != 4 {
		t.Fatalf("goals = %d entries, want 4", len(report.Goals))
	}
}

func TestBuildReportCountsMalformedRecords(t *testing.T) {
	store := memory.New()
	svc := newTestService(store)

	seed(t, store, "u", fixedNow.Add(-time.Hour), activity.CategoryTransport, 5)
	// Bypass validation to simulate corrupt stored data.
	if err := store.Append(context.Background(), activity.Record{
		ID: "corrupt", UserID: "u", Category: activity.CategoryTransport, CO2Kg: -3,
		OccurredAt: fixedNow.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	report, err := svc.BuildReport(context.Background(), "u")
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.MalformedRecords != 1 {
		t.Fatalf("malformed = %d, want 1", report.MalformedRecords)
	}
	if math.Abs(report.Today.TotalCO2Kg-5) > 1e-9 {
		t.Fatalf("today total = %v, corrupt record must not count", report.Today.TotalCO2Kg)
	}
}

func TestBuildReportUnlocksAchievementsOnce(t *testing.T) {
	store := memory.New()
	svc := newTestService(store)
	seed(t, store, "u", fixedNow.Add(-time.Hour), activity.CategoryTransport, 1)

	first, err := svc.BuildReport(context.Background(), "u")
	if err != nil {
		t.Fatalf("build report: %v", err)
	}

	var unlockedAt *time.Time
	for _, v := range first.Achievements {
		if v.Def.ID == "first_activity" {
			if !v.State.IsUnlocked {
				t.Fatal("first_activity should unlock after one record")
			}
			unlockedAt = v.State.UnlockedAt
		}
	}
	if unlockedAt == nil {
		t.Fatal("first_activity missing from report")
	}
	if first.Level.TotalPoints == 0 {
		t.Fatal("unlocks should award points")
	}
	if first.Level.Level < 1 {
		t.Fatalf("level = %d, want >= 1", first.Level.Level)
	}

	second, err := svc.BuildReport(context.Background(), "u")
	if err != nil {
		t.Fatalf("rebuild report: %v", err)
	}
	for _, v := range second.Achievements {
		if v.Def.ID == "first_activity" {
			if v.State.UnlockedAt == nil || !v.State.UnlockedAt.Equal(*unlockedAt) {
				t.Fatalf("unlock timestamp changed on re-evaluation: %v vs %v", v.State.UnlockedAt, unlockedAt)
			}
		}
	}
	if second.Level.TotalPoints != first.Level.TotalPoints {
		t.Fatalf("points changed on unchanged history: %d vs %d", second.Level.TotalPoints, first.Level.TotalPoints)
	}
}

// failingStore serves one successful pass and then fails activity reads.
type failingStore struct {
	*memory.Store
	calls int
}

func (f *failingStore) QueryAll(ctx context.Context, userID string) ([]activity.Record, error) {
	f.calls++
	if f.calls > 1 {
		return nil, errors.New("backend unavailable")
	}
	return f.Store.QueryAll(ctx, userID)
}

func TestBuildReportServesLastKnownGoodOnFetchError(t *testing.T) {
	inner := memory.New()
	store := &failingStore{Store: inner}
	svc := newTestService(store)
	seed(t, inner, "u", fixedNow.Add(-time.Hour), activity.CategoryTransport, 5)

	first, err := svc.BuildReport(context.Background(), "u")
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if first.Stale {
		t.Fatal("fresh report must not be stale")
	}

	second, err := svc.BuildReport(context.Background(), "u")
	if err != nil {
		t.Fatalf("expected cached report, got error: %v", err)
	}
	if !second.Stale {
		t.Fatal("cached report must be marked stale")
	}
	if second.Today.TotalCO2Kg != first.Today.TotalCO2Kg {
		t.Fatal("cached report should carry the last good totals")
	}

	_, err = svc.BuildReport(context.Background(), "nobody")
	if apperrors.CodeOf(err) != apperrors.CodeActivityFetch {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeActivityFetch)
	}
}

func TestBuildReportEmptyHistory(t *testing.T) {
	svc := newTestService(memory.New())

	report, err := svc.BuildReport(context.Background(), "u")
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.Today.TotalCO2Kg != 0 || report.Year.TotalCO2Kg != 0 {
		t.Fatal("empty history must yield zero totals")
	}
	if report.WeekTrend.HasBaseline {
		t.Fatal("no baseline expected with empty history")
	}
	if report.Prediction.Confidence != 0 {
		t.Fatalf("confidence = %v, want 0", report.Prediction.Confidence)
	}
	if len(report.Achievements) == 0 {
		t.Fatal("catalog views should be present even with no history")
	}
	for _, v := range report.Achievements {
		if v.State.IsUnlocked {
			t.Fatalf("%s unlocked with no history", v.Def.ID)
		}
	}
	if report.Level.Level != 1 {
		t.Fatalf("level = %d, want 1", report.Level.Level)
	}
}

func TestGoalTargetsFallBackToDefaults(t *testing.T) {
	store := memory.New()
	svc := newTestService(store)

	targets, err := svc.GoalTargets(context.Background(), "u")
	if err != nil {
		t.Fatalf("goal targets: %v", err)
	}
	if targets != storage.DefaultGoalTargets() {
		t.Fatalf("targets = %+v, want defaults", targets)
	}

	custom := storage.GoalTargets{DailyKg: 4, WeeklyKg: 28, MonthlyKg: 120, YearlyKg: 1500}
	if err := svc.SaveGoalTargets(context.Background(), "u", custom); err != nil {
		t.Fatalf("save targets: %v", err)
	}
	targets, err = svc.GoalTargets(context.Background(), "u")
	if err != nil {
		t.Fatalf("goal targets: %v", err)
	}
	if targets != custom {
		t.Fatalf("targets = %+v, want %+v", targets, custom)
	}

	err = svc.SaveGoalTargets(context.Background(), "u", storage.GoalTargets{DailyKg: -1, WeeklyKg: 1, MonthlyKg: 1, YearlyKg: 1})
	if apperrors.CodeOf(err) != apperrors.CodeGoalTargetNotPositive {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeGoalTargetNotPositive)
	}
}

func TestLogActivityValidates(t *testing.T) {
	store := memory.New()
	svc := newTestService(store)

	err := svc.LogActivity(context.Background(), activity.Record{
		ID: "a", UserID: "u", Category: activity.CategoryFood, CO2Kg: -1, OccurredAt: fixedNow,
	})
	if apperrors.CodeOf(err) != apperrors.CodeActivityNegativeCO2 {
		t.Fatalf("code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeActivityNegativeCO2)
	}

	if err := svc.LogActivity(context.Background(), activity.Record{
		ID: "a", UserID: "u", Category: activity.CategoryFood, CO2Kg: 1.5, OccurredAt: fixedNow,
	}); err != nil {
		t.Fatalf("log activity: %v", err)
	}

	records, err := svc.Activities(context.Background(), "u", svc.Calendar().DayWindow(fixedNow), "")
	if err != nil {
		t.Fatalf("activities: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
}
