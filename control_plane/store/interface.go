package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// Store defines the document storage backend consumed by the controller and
// the HTTP handlers. It abstracts over Postgres (durable) and Redis
// (ephemeral/fast); a memory implementation backs tests and dev mode.
//
// All mutations are idempotent by document ID. BatchShiftSchedules must apply
// the whole batch atomically.
type Store interface {
	// System state document (singleton)
	SetSystemState(ctx context.Context, state *SystemState) error
	GetSystemState(ctx context.Context) (*SystemState, error)

	// Schedule documents
	CreateSchedule(ctx context.Context, s *Schedule) error
	UpdateSchedule(ctx context.Context, s *Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	GetSchedule(ctx context.Context, id string) (*Schedule, error)
	ListSchedules(ctx context.Context) ([]*Schedule, error)
	MarkScheduleCompleted(ctx context.Context, id string) error
	BatchShiftSchedules(ctx context.Context, shifts []ScheduleShift) error

	// Broadcast audit logs
	AddLog(ctx context.Context, entry *LogEntry) error
	ListLogs(ctx context.Context, limit int) ([]*LogEntry, error)
	UpdateLog(ctx context.Context, id string, action, details string) error
	DeleteLog(ctx context.Context, id string) error

	// Emergency status document (singleton)
	GetEmergencyState(ctx context.Context) (*EmergencyState, error)
	SetEmergencyState(ctx context.Context, st *EmergencyState) error
}
