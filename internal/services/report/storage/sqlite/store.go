// Package sqlite provides the SQLite-backed Store for the report service.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/carbontrace/internal/core/bucket"
	sqlitemigrate "github.com/louisbranch/carbontrace/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/achievement"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/activity"
	reportstorage "github.com/louisbranch/carbontrace/internal/services/report/storage"
	"github.com/louisbranch/carbontrace/internal/services/report/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for activities and derived state.
type Store struct {
	sqlDB *sql.DB
}

var _ reportstorage.Store = (*Store)(nil)

// Open opens and migrates a report SQLite store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append stores one activity record.
func (s *Store) Append(ctx context.Context, record activity.Record) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	metadataJSON := ""
	if len(record.Metadata) > 0 {
		raw, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("encode activity metadata: %w", err)
		}
		metadataJSON = string(raw)
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO activities (id, user_id, category, subcategory, co2_kg, occurred_at, metadata_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = excluded.user_id,
		   category = excluded.category,
		   subcategory = excluded.subcategory,
		   co2_kg = excluded.co2_kg,
		   occurred_at = excluded.occurred_at,
		   metadata_json = excluded.metadata_json`,
		record.ID,
		record.UserID,
		string(record.Category),
		record.Subcategory,
		record.CO2Kg,
		timeToUnixMillis(record.OccurredAt),
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// Query returns the user's records inside the half-open window.
func (s *Store) Query(ctx context.Context, userID string, window bucket.Window, category activity.Category) ([]activity.Record, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	query := `SELECT id, user_id, category, subcategory, co2_kg, occurred_at, metadata_json
		 FROM activities
		 WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?`
	args := []any{userID, timeToUnixMillis(window.Start), timeToUnixMillis(window.End)}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY occurred_at ASC`

	return s.queryActivities(ctx, query, args...)
}

// QueryAll returns the user's full activity history.
func (s *Store) QueryAll(ctx context.Context, userID string) ([]activity.Record, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	return s.queryActivities(
		ctx,
		`SELECT id, user_id, category, subcategory, co2_kg, occurred_at, metadata_json
		 FROM activities
		 WHERE user_id = ?
		 ORDER BY occurred_at ASC`,
		userID,
	)
}

func (s *Store) queryActivities(ctx context.Context, query string, args ...any) ([]activity.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []activity.Record
	for rows.Next() {
		var record activity.Record
		var categoryStr string
		var occurredAt int64
		var metadataJSON string
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&categoryStr,
			&record.Subcategory,
			&record.CO2Kg,
			&occurredAt,
			&metadataJSON,
		); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		record.Category = activity.Category(categoryStr)
		record.OccurredAt = unixMillisToTime(occurredAt)
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &record.Metadata); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return records, nil
}

// LoadAchievementStates returns the user's states keyed by achievement ID.
func (s *Store) LoadAchievementStates(ctx context.Context, userID string) (map[string]achievement.State, error) {
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT achievement_id, is_unlocked, unlocked_at, progress
		 FROM achievement_states
		 WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("load achievement states: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	states := make(map[string]achievement.State)
	for rows.Next() {
		var st achievement.State
		var unlockedInt int64
		var unlockedAt int64
		if err := rows.Scan(&st.ID, &unlockedInt, &unlockedAt, &st.Progress); err != nil {
			return nil, fmt.Errorf("scan achievement state: %w", err)
		}
		st.IsUnlocked = unlockedInt != 0
		if unlockedAt > 0 {
			at := unixMillisToTime(unlockedAt)
			st.UnlockedAt = &at
		}
		states[st.ID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate achievement states: %w", err)
	}
	return states, nil
}

// SaveAchievementStates upserts progress atomically. The upsert never touches
// is_unlocked or unlocked_at, which keeps unlocks monotonic.
func (s *Store) SaveAchievementStates(ctx context.Context, userID string, states map[string]achievement.State) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin achievement save: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for id, st := range states {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO achievement_states (user_id, achievement_id, is_unlocked, unlocked_at, progress)
			 VALUES (?, ?, 0, 0, ?)
			 ON CONFLICT(user_id, achievement_id) DO UPDATE SET
			   progress = excluded.progress`,
			userID,
			id,
			st.Progress,
		)
		if err != nil {
			return fmt.Errorf("save achievement state %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit achievement save: %w", err)
	}
	return nil
}

// UnlockAchievement flips a state to unlocked only when it is not already.
// The WHERE clause makes the transition a compare-and-set.
func (s *Store) UnlockAchievement(ctx context.Context, userID, achievementID string, unlockedAt time.Time) (bool, error) {
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO achievement_states (user_id, achievement_id, is_unlocked, unlocked_at, progress)
		 VALUES (?, ?, 1, ?, 1)
		 ON CONFLICT(user_id, achievement_id) DO UPDATE SET
		   is_unlocked = 1,
		   unlocked_at = ?,
		   progress = 1
		 WHERE achievement_states.is_unlocked = 0`,
		userID,
		achievementID,
		timeToUnixMillis(unlockedAt),
		timeToUnixMillis(unlockedAt),
	)
	if err != nil {
		return false, fmt.Errorf("unlock achievement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unlock achievement rows: %w", err)
	}
	return affected > 0, nil
}

// LoadGoalTargets returns the user's saved targets.
func (s *Store) LoadGoalTargets(ctx context.Context, userID string) (reportstorage.GoalTargets, error) {
	if s == nil || s.sqlDB == nil {
		return reportstorage.GoalTargets{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT daily_kg, weekly_kg, monthly_kg, yearly_kg
		 FROM goal_targets
		 WHERE user_id = ?`,
		userID,
	)

	var targets reportstorage.GoalTargets
	if err := row.Scan(&targets.DailyKg, &targets.WeeklyKg, &targets.MonthlyKg, &targets.YearlyKg); err != nil {
		if err == sql.ErrNoRows {
			return reportstorage.GoalTargets{}, reportstorage.ErrNotFound
		}
		return reportstorage.GoalTargets{}, fmt.Errorf("load goal targets: %w", err)
	}
	return targets, nil
}

// SaveGoalTargets replaces the user's targets.
func (s *Store) SaveGoalTargets(ctx context.Context, userID string, targets reportstorage.GoalTargets) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := targets.Validate(); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO goal_targets (user_id, daily_kg, weekly_kg, monthly_kg, yearly_kg, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   daily_kg = excluded.daily_kg,
		   weekly_kg = excluded.weekly_kg,
		   monthly_kg = excluded.monthly_kg,
		   yearly_kg = excluded.yearly_kg,
		   updated_at = excluded.updated_at`,
		userID,
		targets.DailyKg,
		targets.WeeklyKg,
		targets.MonthlyKg,
		targets.YearlyKg,
		timeToUnixMillis(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("save goal targets: %w", err)
	}
	return nil
}

// AppendTelemetryEvent stores one operational telemetry record.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt reportstorage.TelemetryEvent) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	attributesJSON := ""
	if len(evt.Attributes) > 0 {
		raw, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("encode telemetry attributes: %w", err)
		}
		attributesJSON = string(raw)
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO telemetry_events (timestamp, event_name, severity, user_id, attributes_json)
		 VALUES (?, ?, ?, ?, ?)`,
		timeToUnixMillis(evt.Timestamp),
		evt.EventName,
		evt.Severity,
		evt.UserID,
		attributesJSON,
	)
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

func timeToUnixMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func unixMillisToTime(value int64) time.Time {
	if value <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}
