// Package memory provides an in-memory Store used by tests and by the
// report service when no database path is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/carbontrace/internal/core/bucket"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/achievement"
	"github.com/louisbranch/carbontrace/internal/services/report/domain/activity"
	"github.com/louisbranch/carbontrace/internal/services/report/storage"
)

// Store keeps all records in process memory behind a single mutex.
type Store struct {
	mu         sync.Mutex
	activities map[string][]activity.Record
	states     map[string]map[string]achievement.State
	goals      map[string]storage.GoalTargets
	telemetry  []storage.TelemetryEvent
}

var _ storage.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		activities: make(map[string][]activity.Record),
		states:     make(map[string]map[string]achievement.State),
		goals:      make(map[string]storage.GoalTargets),
	}
}

func (s *Store) Append(_ context.Context, record activity.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities[record.UserID] = append(s.activities[record.UserID], record)
	return nil
}

func (s *Store) Query(_ context.Context, userID string, window bucket.Window, category activity.Category) ([]activity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []activity.Record
	for _, r := range s.activities[userID] {
		if !window.Contains(r.OccurredAt) {
			continue
		}
		if category != "" && r.Category != category {
			continue
		}
		out = append(out, r)
	}
	sortByOccurrence(out)
	return out, nil
}

func (s *Store) QueryAll(_ context.Context, userID string) ([]activity.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]activity.Record, len(s.activities[userID]))
	copy(out, s.activities[userID])
	sortByOccurrence(out)
	return out, nil
}

func (s *Store) LoadAchievementStates(_ context.Context, userID string) (map[string]achievement.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]achievement.State, len(s.states[userID]))
	for id, st := range s.states[userID] {
		out[id] = st
	}
	return out, nil
}

func (s *Store) SaveAchievementStates(_ context.Context, userID string, states map[string]achievement.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.states[userID]
	if user == nil {
		user = make(map[string]achievement.State)
		s.states[userID] = user
	}
	for id, st := range states {
		existing, ok := user[id]
		if ok && existing.IsUnlocked {
			existing.Progress = st.Progress
			user[id] = existing
			continue
		}
		st.IsUnlocked = false
		st.UnlockedAt = nil
		user[id] = st
	}
	return nil
}

func (s *Store) UnlockAchievement(_ context.Context, userID, achievementID string, unlockedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.states[userID]
	if user == nil {
		user = make(map[string]achievement.State)
		s.states[userID] = user
	}
	st := user[achievementID]
	if st.IsUnlocked {
		return false, nil
	}
	at := unlockedAt
	st.ID = achievementID
	st.IsUnlocked = true
	st.UnlockedAt = &at
	st.Progress = 1
	user[achievementID] = st
	return true, nil
}

func (s *Store) LoadGoalTargets(_ context.Context, userID string) (storage.GoalTargets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets, ok := s.goals[userID]
	if !ok {
		return storage.GoalTargets{}, storage.ErrNotFound
	}
	return targets, nil
}

func (s *Store) SaveGoalTargets(_ context.Context, userID string, targets storage.GoalTargets) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[userID] = targets
	return nil
}

func (s *Store) AppendTelemetryEvent(_ context.Context, evt storage.TelemetryEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = append(s.telemetry, evt)
	return nil
}

// TelemetryEvents returns a copy of the recorded events, for tests.
func (s *Store) TelemetryEvents() []storage.TelemetryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.TelemetryEvent, len(s.telemetry))
	copy(out, s.telemetry)
	return out
}

func (s *Store) Close() error { return nil }

func sortByOccurrence(records []activity.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].OccurredAt.Before(records[j].OccurredAt)
	})
}
