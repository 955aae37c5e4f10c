package controller

import (
	"time"

	"github.com/google/uuid"
)

// Priority tiers for the output channel. The integer values are wire-exact;
// dashboards order and color entries by them.
type Priority int

const (
	PriorityIdle       Priority = 0
	PriorityBackground Priority = 10
	PrioritySchedule   Priority = 20
	PriorityRealtime   Priority = 30
	PriorityEmergency  Priority = 100
)

// Kind identifies what a task plays on the channel.
type Kind string

const (
	KindVoice      Kind = "voice"
	KindText       Kind = "text"
	KindEmergency  Kind = "emergency"
	KindSchedule   Kind = "schedule"
	KindBackground Kind = "background"
)

// Status is the lifecycle state of a task.
type Status int

const (
	StatusPending     Status = 1
	StatusPlaying     Status = 2
	StatusInterrupted Status = 3
	StatusCompleted   Status = 4
)

// Mode is the externally visible label of the channel state.
type Mode string

const (
	ModeIdle       Mode = "IDLE"
	ModeBroadcast  Mode = "BROADCAST"
	ModeSchedule   Mode = "SCHEDULE"
	ModeEmergency  Mode = "EMERGENCY"
	ModeBackground Mode = "BACKGROUND"
)

// Mode maps a task kind to the published mode label. Voice and text are both
// live broadcasts.
func (k Kind) Mode() Mode {
	switch k {
	case KindEmergency:
		return ModeEmergency
	case KindSchedule:
		return ModeSchedule
	case KindBackground:
		return ModeBackground
	default:
		return ModeBroadcast
	}
}

// DefaultPriority returns the priority tier a kind is admitted at.
func (k Kind) DefaultPriority() Priority {
	switch k {
	case KindEmergency:
		return PriorityEmergency
	case KindVoice, KindText:
		return PriorityRealtime
	case KindSchedule:
		return PrioritySchedule
	case KindBackground:
		return PriorityBackground
	default:
		return PriorityIdle
	}
}

// Task is a playback request with identity. Payload carries the submitting
// user plus kind-specific attributes (zones, content, track).
type Task struct {
	ID            string            `json:"id"`
	Kind          Kind              `json:"kind"`
	Priority      Priority          `json:"priority"`
	Payload       map[string]string `json:"payload"`
	Status        Status            `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	ScheduledTime time.Time         `json:"scheduled_time"`
}

// NewTask builds a task at admission time. An empty id gets a generated one.
// ScheduledTime defaults to the creation instant for non-schedule kinds.
func NewTask(id string, kind Kind, priority Priority, payload map[string]string) *Task {
	if id == "" {
		id = uuid.New().String()
	}
	if payload == nil {
		payload = map[string]string{}
	}
	now := time.Now()
	return &Task{
		ID:            id,
		Kind:          kind,
		Priority:      priority,
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     now,
		ScheduledTime: now,
	}
}

// taskDoc is the serialized task shape written into the state document.
type taskDoc struct {
	ID            string            `json:"id"`
	Kind          string            `json:"kind"`
	Priority      int               `json:"priority"`
	Payload       map[string]string `json:"payload"`
	Status        int               `json:"status"`
	CreatedAt     string            `json:"created_at"`
	ScheduledTime string            `json:"scheduled_time"`
}

func (t *Task) doc() taskDoc {
	return taskDoc{
		ID:            t.ID,
		Kind:          string(t.Kind),
		Priority:      int(t.Priority),
		Payload:       t.Payload,
		Status:        int(t.Status),
		CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		ScheduledTime: t.ScheduledTime.Format(time.RFC3339),
	}
}
