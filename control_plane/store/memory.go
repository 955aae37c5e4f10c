package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore holds all documents in process memory. It implements the Store
// interface and backs tests and single-node dev mode.
type MemoryStore struct {
	mu        sync.RWMutex
	state     *SystemState
	schedules map[string]*Schedule
	logs      map[string]*LogEntry
	emergency *EmergencyState
}

// NewMemoryStore initializes an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		schedules: make(map[string]*Schedule),
		logs:      make(map[string]*LogEntry),
	}
}

// --- System State ---

func (s *MemoryStore) SetSystemState(ctx context.Context, state *SystemState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stateCopy := *state
	s.state = &stateCopy
	return nil
}

func (s *MemoryStore) GetSystemState(ctx context.Context) (*SystemState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil, ErrNotFound
	}
	stateCopy := *s.state
	return &stateCopy, nil
}

// --- Schedules ---

func (s *MemoryStore) CreateSchedule(ctx context.Context, sch *Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	schCopy := *sch
	s.schedules[sch.ID] = &schCopy
	return nil
}

// UpdateSchedule overwrites an existing schedule document. Missing documents
// are created, matching the merge-set semantics the dashboard relies on.
func (s *MemoryStore) UpdateSchedule(ctx context.Context, sch *Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	schCopy := *sch
	s.schedules[sch.ID] = &schCopy
	return nil
}

func (s *MemoryStore) DeleteSchedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedules, id)
	return nil
}

func (s *MemoryStore) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sch, ok := s.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	schCopy := *sch
	return &schCopy, nil
}

func (s *MemoryStore) ListSchedules(ctx context.Context) ([]*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Schedule, 0, len(s.schedules))
	for _, sch := range s.schedules {
		schCopy := *sch
		result = append(result, &schCopy)
	}
	// Stable display order: date, then time, then ID
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		if result[i].Time != result[j].Time {
			return result[i].Time < result[j].Time
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *MemoryStore) MarkScheduleCompleted(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sch, ok := s.schedules[id]
	if !ok {
		return ErrNotFound
	}
	sch.Status = "Completed"
	return nil
}

// BatchShiftSchedules rewrites the display date/time of every schedule in the
// batch. All-or-nothing: unknown IDs fail the whole batch before any write.
func (s *MemoryStore) BatchShiftSchedules(ctx context.Context, shifts []ScheduleShift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, shift := range shifts {
		if _, ok := s.schedules[shift.ID]; !ok {
			return ErrNotFound
		}
	}
	for _, shift := range shifts {
		sch := s.schedules[shift.ID]
		sch.Date = shift.Date
		sch.Time = shift.Time
	}
	return nil
}

// --- Logs ---

func (s *MemoryStore) AddLog(ctx context.Context, entry *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryCopy := *entry
	s.logs[entry.ID] = &entryCopy
	return nil
}

func (s *MemoryStore) ListLogs(ctx context.Context, limit int) ([]*LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*LogEntry, 0, len(s.logs))
	for _, entry := range s.logs {
		entryCopy := *entry
		result = append(result, &entryCopy)
	}
	// Newest first
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) UpdateLog(ctx context.Context, id string, action, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.logs[id]
	if !ok {
		return ErrNotFound
	}
	if action != "" {
		entry.Action = action
	}
	if details != "" {
		entry.Details = details
	}
	return nil
}

func (s *MemoryStore) DeleteLog(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[id]; !ok {
		return ErrNotFound
	}
	delete(s.logs, id)
	return nil
}

// --- Emergency ---

func (s *MemoryStore) GetEmergencyState(ctx context.Context) (*EmergencyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.emergency == nil {
		return &EmergencyState{Active: false, History: []EmergencyEvent{}}, nil
	}
	stCopy := *s.emergency
	stCopy.History = append([]EmergencyEvent(nil), s.emergency.History...)
	return &stCopy, nil
}

func (s *MemoryStore) SetEmergencyState(ctx context.Context, st *EmergencyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stCopy := *st
	stCopy.History = append([]EmergencyEvent(nil), st.History...)
	s.emergency = &stCopy
	return nil
}
