// Package app assembles derived carbon reports from the activity log.
//
// Everything in a Report is recomputed on demand from stored activities;
// only achievement unlocks and goal targets round-trip through storage.
package app

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/carbontrace/internal/core/aggregate"
	"github.com/louisbranch/carbontrace/internal/core/bucket"
	"github.com/louisbranch/carbontrace/internal/core/forecast"
	"github.com/louisbranch/carbontrace/internal/core/goal"
	"github.com/louisbranch/carbontrace/internal/core/insight"
	"github.com/louisbranch/carbontrace/internal/core/progression"
	"github.com/louisbranch/carbontrace/internal/core/trend"
	apperrors "github.com/louisbranch/carbontrace/internal/platform/errors"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/achievement"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/activity"
	"github.com/louisbranch/carbontrace/internal/services/report/storage"
)

// Report is one complete derived snapshot for a user.
type Report struct {
	UserID      string
	GeneratedAt time.Time

	Today aggregate.Aggregate
	Week  aggregate.Aggregate
	Month aggregate.Aggregate
	Year  aggregate.Aggregate

	WeekTrend  trend.Result
	MonthTrend trend.Result

	Prediction forecast.Prediction
	Insights   []insight.Insight

	Achievements []achievement.View
	Level        progression.State

	Targets storage.GoalTargets
	Goals   map[bucket.Granularity]goal.Status

	// MalformedRecords counts stored records excluded from every total
	// because they fail well-formedness.
	MalformedRecords int

	// Stale marks a report served from the last successful computation
	// because the activity log was unreachable.
	Stale bool
}

// Options tunes a Service. Zero values fall back to product defaults.
type Options struct {
	Calendar    bucket.Calendar
	InsightCfg  insight.Config
	ForecastOpt forecast.Options
	Curve       progression.Curve
	Now         func() time.Time
}

// Service computes reports against a storage backend.
type Service struct {
	store  storage.Store
	cal    bucket.Calendar
	icfg   insight.Config
	fopt   forecast.Options
	curve  progression.Curve
	now    func() time.Time
	tracer trace.Tracer
	logger *log.Logger

	mu       sync.Mutex
	lastGood map[string]Report
}

// New creates a report service over the given store.
func New(store storage.Store, opts Options) *Service {
	cal := opts.Calendar
	if cal.Location() == nil {
		cal = bucket.New(time.UTC, time.Monday)
	}
	icfg := opts.InsightCfg
	if icfg == (insight.Config{}) {
		icfg = insight.DefaultConfig()
	}
	curve := opts.Curve
	if curve == (progression.Curve{}) {
		curve = progression.DefaultCurve
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:    store,
		cal:      cal,
		icfg:     icfg,
		fopt:     opts.ForecastOpt,
		curve:    curve,
		now:      now,
		tracer:   otel.Tracer("carbontrace/report"),
		logger:   log.New(log.Writer(), "[REPORT] ", log.LstdFlags),
		lastGood: make(map[string]Report),
	}
}

// BuildReport computes the full derived snapshot for a user.
//
// When the activity log is unreachable and a previous snapshot exists for
// the user, that snapshot is returned with Stale set instead of an error.
func (s *Service) BuildReport(ctx context.Context, userID string) (Report, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Report{}, apperrors.New(apperrors.CodeActivityEmptyUserID, "user id is required")
	}

	ctx, span := s.tracer.Start(ctx, "report.build",
		trace.WithAttributes(attribute.String("report.user_id", userID)))
	defer span.End()

	now := s.now()

	history, err := s.store.QueryAll(ctx, userID)
	if err != nil {
		s.mu.Lock()
		cached, ok := s.lastGood[userID]
		s.mu.Unlock()
		if ok {
			s.logger.Printf("activity fetch failed for %s, serving last known report: %v", userID, err)
			cached.Stale = true
			return cached, nil
		}
		return Report{}, apperrors.Wrap(apperrors.CodeActivityFetch, "fetch activity history", err)
	}

	report := Report{UserID: userID, GeneratedAt: now}

	entries, malformed := toEntries(history)
	report.MalformedRecords = malformed

	dayWin := s.cal.DayWindow(now)
	weekWin := s.cal.WeekWindow(now)
	monthWin := s.cal.MonthWindow(now)
	yearWin := s.cal.YearWindow(now)

	report.Today, _ = aggregate.Fold(entries, dayWin, s.cal)
	report.Week, _ = aggregate.Fold(entries, weekWin, s.cal)
	report.Month, _ = aggregate.Fold(entries, monthWin, s.cal)
	report.Year, _ = aggregate.Fold(entries, yearWin, s.cal)

	prevWeek, _ := aggregate.Fold(entries, s.cal.Previous(weekWin), s.cal)
	prevMonth, _ := aggregate.Fold(entries, s.cal.Previous(monthWin), s.cal)
	report.WeekTrend = trend.Classify(report.Week.TotalCO2Kg, prevWeek.TotalCO2Kg)
	report.MonthTrend = trend.Classify(report.Month.TotalCO2Kg, prevMonth.TotalCO2Kg)

	report.Prediction = forecast.Predict(dailyHistory(entries, s.cal), s.fopt)

	targets, err := s.store.LoadGoalTargets(ctx, userID)
	if err != nil {
		if apperrors.CodeOf(err) != apperrors.CodeNotFound {
			s.logger.Printf("goal targets load failed for %s, using defaults: %v", userID, err)
		}
		targets = storage.DefaultGoalTargets()
	}
	report.Targets = targets
	report.Goals = map[bucket.Granularity]goal.Status{
		bucket.GranularityDay:   goal.Evaluate(report.Today.TotalCO2Kg, targets.DailyKg),
		bucket.GranularityWeek:  goal.Evaluate(report.Week.TotalCO2Kg, targets.WeeklyKg),
		bucket.GranularityMonth: goal.Evaluate(report.Month.TotalCO2Kg, targets.MonthlyKg),
		bucket.GranularityYear:  goal.Evaluate(report.Year.TotalCO2Kg, targets.YearlyKg),
	}

	report.Insights = insight.Evaluate(insight.Input{
		Current:      report.Month,
		WeekTrend:    report.WeekTrend,
		Prediction:   report.Prediction,
		WeeklyGoalKg: targets.WeeklyKg,
	}, s.icfg)

	views, points, err := s.evaluateAchievements(ctx, userID, history, targets.DailyKg, now)
	if err != nil {
		return Report{}, err
	}
	report.Achievements = views
	report.Level = s.curve.StateFor(points)

	if err := s.store.AppendTelemetryEvent(ctx, storage.TelemetryEvent{
		Timestamp: now,
		EventName: "report_generated",
		Severity:  "info",
		UserID:    userID,
		Attributes: map[string]any{
			"activity_records":  len(history),
			"malformed_records": malformed,
			"insights":          len(report.Insights),
		},
	}); err != nil {
		s.logger.Printf("telemetry append failed for %s: %v", userID, err)
	}
	if malformed > 0 {
		s.logger.Printf("excluded %d malformed records for %s", malformed, userID)
	}

	s.mu.Lock()
	s.lastGood[userID] = report
	s.mu.Unlock()

	return report, nil
}

// LogActivity validates and appends one activity record.
func (s *Service) LogActivity(ctx context.Context, record activity.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if err := s.store.Append(ctx, record); err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceWrite, "append activity", err)
	}
	return nil
}

// Activities returns a user's records inside a window, optionally filtered
// by category.
func (s *Service) Activities(ctx context.Context, userID string, window bucket.Window, category activity.Category) ([]activity.Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.New(apperrors.CodeActivityEmptyUserID, "user id is required")
	}
	records, err := s.store.Query(ctx, userID, window, category)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeActivityFetch, "query activities", err)
	}
	return records, nil
}

// GoalTargets returns the user's saved targets, falling back to defaults.
func (s *Service) GoalTargets(ctx context.Context, userID string) (storage.GoalTargets, error) {
	targets, err := s.store.LoadGoalTargets(ctx, userID)
	if err != nil {
		if apperrors.CodeOf(err) == apperrors.CodeNotFound {
			return storage.DefaultGoalTargets(), nil
		}
		return storage.GoalTargets{}, err
	}
	return targets, nil
}

// SaveGoalTargets validates and persists the user's targets.
func (s *Service) SaveGoalTargets(ctx context.Context, userID string, targets storage.GoalTargets) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.New(apperrors.CodeActivityEmptyUserID, "user id is required")
	}
	if err := targets.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveGoalTargets(ctx, userID, targets); err != nil {
		return apperrors.Wrap(apperrors.CodePersistenceWrite, "save goal targets", err)
	}
	return nil
}

// Calendar exposes the service calendar so transports can build windows the
// same way reports do.
func (s *Service) Calendar() bucket.Calendar { return s.cal }

// toEntries maps stored records to fold entries, counting records excluded
// for failing well-formedness.
func toEntries(history []activity.Record) ([]aggregate.Entry, int) {
	entries := make([]aggregate.Entry, 0, len(history))
	malformed := 0
	for _, r := range history {
		if !r.WellFormed() {
			malformed++
			continue
		}
		entries = append(entries, aggregate.Entry{
			Category:   string(r.Category),
			CO2Kg:      r.CO2Kg,
			OccurredAt: r.OccurredAt,
		})
	}
	return entries, malformed
}

// dailyHistory folds entries into observed per-day totals in day order.
func dailyHistory(entries []aggregate.Entry, cal bucket.Calendar) []forecast.DailyPoint {
	totals := make(map[string]float64)
	for _, e := range entries {
		totals[cal.DayKey(e.OccurredAt)] += e.CO2Kg
	}
	days := make([]string, 0, len(totals))
	for day := range totals {
		days = append(days, day)
	}
	sort.Strings(days)

	points := make([]forecast.DailyPoint, 0, len(days))
	for _, day := range days {
		points = append(points, forecast.DailyPoint{Day: day, CO2Kg: totals[day]})
	}
	return points
}
