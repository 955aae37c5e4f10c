package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using a PostgreSQL backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS system_state (
	id TEXT PRIMARY KEY,
	active_task JSONB,
	priority INT NOT NULL DEFAULT 0,
	mode TEXT NOT NULL DEFAULT 'IDLE',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS schedules (
	id TEXT PRIMARY KEY,
	message TEXT NOT NULL,
	date TEXT NOT NULL,
	time TEXT NOT NULL,
	repeat TEXT NOT NULL DEFAULT '',
	zones TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT 'text',
	audio TEXT NOT NULL DEFAULT '',
	user_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'Pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS logs (
	id TEXT PRIMARY KEY,
	user_name TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL DEFAULT '',
	details TEXT NOT NULL DEFAULT '',
	timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS emergency_state (
	id TEXT PRIMARY KEY,
	active BOOLEAN NOT NULL DEFAULT FALSE,
	history JSONB NOT NULL DEFAULT '[]'
);
`

// NewPostgresStore initializes a PostgresStore with a connection pool and
// ensures the document tables exist.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// --- System State ---

func (s *PostgresStore) SetSystemState(ctx context.Context, state *SystemState) error {
	query := `
		INSERT INTO system_state (id, active_task, priority, mode, updated_at)
		VALUES ('state', $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			active_task = EXCLUDED.active_task,
			priority = EXCLUDED.priority,
			mode = EXCLUDED.mode,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.pool.Exec(ctx, query, state.ActiveTask, state.Priority, state.Mode, state.Timestamp)
	return err
}

func (s *PostgresStore) GetSystemState(ctx context.Context) (*SystemState, error) {
	query := `SELECT active_task, priority, mode, updated_at FROM system_state WHERE id = 'state'`
	var st SystemState
	err := s.pool.QueryRow(ctx, query).Scan(&st.ActiveTask, &st.Priority, &st.Mode, &st.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// --- Schedules ---

func (s *PostgresStore) CreateSchedule(ctx context.Context, sch *Schedule) error {
	query := `
		INSERT INTO schedules (id, message, date, time, repeat, zones, type, audio, user_name, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			message = EXCLUDED.message,
			date = EXCLUDED.date,
			time = EXCLUDED.time,
			repeat = EXCLUDED.repeat,
			zones = EXCLUDED.zones,
			type = EXCLUDED.type,
			audio = EXCLUDED.audio,
			user_name = EXCLUDED.user_name,
			status = EXCLUDED.status
	`
	_, err := s.pool.Exec(ctx, query,
		sch.ID, sch.Message, sch.Date, sch.Time, sch.Repeat, sch.Zones,
		sch.Type, sch.Audio, sch.User, sch.Status, sch.CreatedAt,
	)
	return err
}

func (s *PostgresStore) UpdateSchedule(ctx context.Context, sch *Schedule) error {
	return s.CreateSchedule(ctx, sch)
}

func (s *PostgresStore) DeleteSchedule(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	query := `
		SELECT id, message, date, time, repeat, zones, type, audio, user_name, status, created_at
		FROM schedules WHERE id = $1
	`
	var sch Schedule
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&sch.ID, &sch.Message, &sch.Date, &sch.Time, &sch.Repeat, &sch.Zones,
		&sch.Type, &sch.Audio, &sch.User, &sch.Status, &sch.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sch, nil
}

func (s *PostgresStore) ListSchedules(ctx context.Context) ([]*Schedule, error) {
	query := `
		SELECT id, message, date, time, repeat, zones, type, audio, user_name, status, created_at
		FROM schedules ORDER BY date, time, id
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Schedule
	for rows.Next() {
		var sch Schedule
		if err := rows.Scan(
			&sch.ID, &sch.Message, &sch.Date, &sch.Time, &sch.Repeat, &sch.Zones,
			&sch.Type, &sch.Audio, &sch.User, &sch.Status, &sch.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &sch)
	}
	return result, rows.Err()
}

func (s *PostgresStore) MarkScheduleCompleted(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE schedules SET status = 'Completed' WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BatchShiftSchedules applies the whole shift batch inside one transaction so
// the dashboard never observes a half-shifted queue.
func (s *PostgresStore) BatchShiftSchedules(ctx context.Context, shifts []ScheduleShift) error {
	if len(shifts) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, shift := range shifts {
		batch.Queue(`UPDATE schedules SET date = $1, time = $2 WHERE id = $3`,
			shift.Date, shift.Time, shift.ID)
	}

	br := tx.SendBatch(ctx, batch)
	for range shifts {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// --- Logs ---

func (s *PostgresStore) AddLog(ctx context.Context, entry *LogEntry) error {
	query := `
		INSERT INTO logs (id, user_name, type, action, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		entry.ID, entry.User, entry.Type, entry.Action, entry.Details, entry.Timestamp)
	return err
}

func (s *PostgresStore) ListLogs(ctx context.Context, limit int) ([]*LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_name, type, action, details, timestamp
		FROM logs ORDER BY timestamp DESC LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*LogEntry
	for rows.Next() {
		var entry LogEntry
		if err := rows.Scan(&entry.ID, &entry.User, &entry.Type, &entry.Action,
			&entry.Details, &entry.Timestamp); err != nil {
			return nil, err
		}
		result = append(result, &entry)
	}
	return result, rows.Err()
}

func (s *PostgresStore) UpdateLog(ctx context.Context, id string, action, details string) error {
	query := `
		UPDATE logs SET
			action = CASE WHEN $1 = '' THEN action ELSE $1 END,
			details = CASE WHEN $2 = '' THEN details ELSE $2 END
		WHERE id = $3
	`
	tag, err := s.pool.Exec(ctx, query, action, details, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteLog(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM logs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Emergency ---

func (s *PostgresStore) GetEmergencyState(ctx context.Context) (*EmergencyState, error) {
	query := `SELECT active, history FROM emergency_state WHERE id = 'emergency'`
	var st EmergencyState
	err := s.pool.QueryRow(ctx, query).Scan(&st.Active, &st.History)
	if errors.Is(err, pgx.ErrNoRows) {
		return &EmergencyState{Active: false, History: []EmergencyEvent{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if st.History == nil {
		st.History = []EmergencyEvent{}
	}
	return &st, nil
}

func (s *PostgresStore) SetEmergencyState(ctx context.Context, st *EmergencyState) error {
	query := `
		INSERT INTO emergency_state (id, active, history)
		VALUES ('emergency', $1, $2)
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			history = EXCLUDED.history
	`
	_, err := s.pool.Exec(ctx, query, st.Active, st.History)
	return err
}
