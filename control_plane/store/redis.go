package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campuscast/campuscast/control_plane/observability"
)

// RedisStore implements Store on Redis. Documents are hashes (schedules,
// logs) or JSON strings (singletons); collection indexes are sorted sets.
// Used as the fast backend when durability is delegated elsewhere.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr string, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func observeLatency(start time.Time) {
	observability.RedisLatency.Observe(time.Since(start).Seconds())
}

// --- System State ---

func (s *RedisStore) SetSystemState(ctx context.Context, state *SystemState) error {
	defer observeLatency(time.Now())

	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, DocKey(CollectionSystem, "state"), data, 0).Err()
}

func (s *RedisStore) GetSystemState(ctx context.Context) (*SystemState, error) {
	defer observeLatency(time.Now())

	data, err := s.client.Get(ctx, DocKey(CollectionSystem, "state")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var st SystemState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// --- Schedules ---

func scheduleFields(sch *Schedule) map[string]interface{} {
	return map[string]interface{}{
		"message":    sch.Message,
		"date":       sch.Date,
		"time":       sch.Time,
		"repeat":     sch.Repeat,
		"zones":      sch.Zones,
		"type":       sch.Type,
		"audio":      sch.Audio,
		"user":       sch.User,
		"status":     sch.Status,
		"created_at": sch.CreatedAt.Format(time.RFC3339Nano),
	}
}

func scheduleFromHash(id string, fields map[string]string) *Schedule {
	createdAt, _ := time.Parse(time.RFC3339Nano, fields["created_at"])
	return &Schedule{
		ID:        id,
		Message:   fields["message"],
		Date:      fields["date"],
		Time:      fields["time"],
		Repeat:    fields["repeat"],
		Zones:     fields["zones"],
		Type:      fields["type"],
		Audio:     fields["audio"],
		User:      fields["user"],
		Status:    fields["status"],
		CreatedAt: createdAt,
	}
}

func (s *RedisStore) CreateSchedule(ctx context.Context, sch *Schedule) error {
	defer observeLatency(time.Now())

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, DocKey(CollectionSchedules, sch.ID), scheduleFields(sch))
	pipe.ZAdd(ctx, IndexKey(CollectionSchedules), redis.Z{
		Score:  float64(sch.CreatedAt.UnixNano()),
		Member: sch.ID,
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) UpdateSchedule(ctx context.Context, sch *Schedule) error {
	return s.CreateSchedule(ctx, sch)
}

func (s *RedisStore) DeleteSchedule(ctx context.Context, id string) error {
	defer observeLatency(time.Now())

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, DocKey(CollectionSchedules, id))
	pipe.ZRem(ctx, IndexKey(CollectionSchedules), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	defer observeLatency(time.Now())

	fields, err := s.client.HGetAll(ctx, DocKey(CollectionSchedules, id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return scheduleFromHash(id, fields), nil
}

func (s *RedisStore) ListSchedules(ctx context.Context) ([]*Schedule, error) {
	defer observeLatency(time.Now())

	ids, err := s.client.ZRange(ctx, IndexKey(CollectionSchedules), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*Schedule, 0, len(ids))
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, DocKey(CollectionSchedules, id)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue // index/doc skew, treat as deleted
		}
		result = append(result, scheduleFromHash(id, fields))
	}
	return result, nil
}

func (s *RedisStore) MarkScheduleCompleted(ctx context.Context, id string) error {
	defer observeLatency(time.Now())

	exists, err := s.client.Exists(ctx, DocKey(CollectionSchedules, id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}
	return s.client.HSet(ctx, DocKey(CollectionSchedules, id), "status", "Completed").Err()
}

// BatchShiftSchedules rewrites date/time fields for every entry in a single
// MULTI/EXEC pipeline so readers never see a half-shifted queue.
func (s *RedisStore) BatchShiftSchedules(ctx context.Context, shifts []ScheduleShift) error {
	if len(shifts) == 0 {
		return nil
	}
	defer observeLatency(time.Now())

	pipe := s.client.TxPipeline()
	for _, shift := range shifts {
		pipe.HSet(ctx, DocKey(CollectionSchedules, shift.ID),
			"date", shift.Date, "time", shift.Time)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// --- Logs ---

func (s *RedisStore) AddLog(ctx context.Context, entry *LogEntry) error {
	defer observeLatency(time.Now())

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, DocKey(CollectionLogs, entry.ID), map[string]interface{}{
		"user":      entry.User,
		"type":      entry.Type,
		"action":    entry.Action,
		"details":   entry.Details,
		"timestamp": strconv.FormatInt(entry.Timestamp.UnixNano(), 10),
	})
	pipe.ZAdd(ctx, IndexKey(CollectionLogs), redis.Z{
		Score:  float64(entry.Timestamp.UnixNano()),
		Member: entry.ID,
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) ListLogs(ctx context.Context, limit int) ([]*LogEntry, error) {
	defer observeLatency(time.Now())

	if limit <= 0 {
		limit = 50
	}
	// Newest first
	ids, err := s.client.ZRevRange(ctx, IndexKey(CollectionLogs), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*LogEntry, 0, len(ids))
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, DocKey(CollectionLogs, id)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		nanos, _ := strconv.ParseInt(fields["timestamp"], 10, 64)
		result = append(result, &LogEntry{
			ID:        id,
			User:      fields["user"],
			Type:      fields["type"],
			Action:    fields["action"],
			Details:   fields["details"],
			Timestamp: time.Unix(0, nanos),
		})
	}
	return result, nil
}

func (s *RedisStore) UpdateLog(ctx context.Context, id string, action, details string) error {
	defer observeLatency(time.Now())

	exists, err := s.client.Exists(ctx, DocKey(CollectionLogs, id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return ErrNotFound
	}

	fields := map[string]interface{}{}
	if action != "" {
		fields["action"] = action
	}
	if details != "" {
		fields["details"] = details
	}
	if len(fields) == 0 {
		return nil
	}
	return s.client.HSet(ctx, DocKey(CollectionLogs, id), fields).Err()
}

func (s *RedisStore) DeleteLog(ctx context.Context, id string) error {
	defer observeLatency(time.Now())

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, DocKey(CollectionLogs, id))
	pipe.ZRem(ctx, IndexKey(CollectionLogs), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Emergency ---

func (s *RedisStore) GetEmergencyState(ctx context.Context) (*EmergencyState, error) {
	defer observeLatency(time.Now())

	data, err := s.client.Get(ctx, DocKey(CollectionSystem, "emergency")).Bytes()
	if errors.Is(err, redis.Nil) {
		return &EmergencyState{Active: false, History: []EmergencyEvent{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var st EmergencyState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	if st.History == nil {
		st.History = []EmergencyEvent{}
	}
	return &st, nil
}

func (s *RedisStore) SetEmergencyState(ctx context.Context, st *EmergencyState) error {
	defer observeLatency(time.Now())

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, DocKey(CollectionSystem, "emergency"), data, 0).Err()
}
