package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Schedule represents a scheduled announcement document.
type Schedule struct {
	ID        string    `json:"id" db:"id"`
	Message   string    `json:"message" db:"message"`
	Date      string    `json:"date" db:"date"` // YYYY-MM-DD
	Time      string    `json:"time" db:"time"` // HH:MM (24-hour)
	Repeat    string    `json:"repeat" db:"repeat"`
	Zones     string    `json:"zones" db:"zones"` // comma separated
	Type      string    `json:"type" db:"type"`   // "text" or "voice"
	Audio     string    `json:"audio,omitempty" db:"audio"`
	User      string    `json:"user" db:"user_name"`
	Status    string    `json:"status" db:"status"` // "Pending", "Completed"
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ScheduleShift is one entry of an atomic time-shift batch. Date and Time
// carry the schedule's rewritten display fields.
type ScheduleShift struct {
	ID   string
	Date string // YYYY-MM-DD
	Time string // HH:MM
}

// LogEntry represents a broadcast audit log document.
type LogEntry struct {
	ID        string    `json:"id" db:"id"`
	User      string    `json:"user" db:"user_name"`
	Type      string    `json:"type" db:"type"`     // Voice, Text, Music, Schedule, Emergency
	Action    string    `json:"action" db:"action"` // Started, Stopped, Created, ...
	Details   string    `json:"details" db:"details"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// NewLogEntry builds a log entry with a fresh ID and timestamp.
func NewLogEntry(user, logType, action, details string) *LogEntry {
	return &LogEntry{
		ID:        uuid.New().String(),
		User:      user,
		Type:      logType,
		Action:    action,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// EmergencyEvent is one entry in the emergency toggle history.
type EmergencyEvent struct {
	ID     string `json:"id"`
	Action string `json:"action"` // ACTIVATED / DEACTIVATED
	Time   string `json:"time"`
	User   string `json:"user"`
}

// EmergencyState is the emergency status document shown on dashboards.
// History is newest-first.
type EmergencyState struct {
	Active  bool             `json:"active"`
	History []EmergencyEvent `json:"history"`
}

// SystemState is the published playback state document ("system/state").
// ActiveTask holds the serialized current task, or null when idle.
type SystemState struct {
	ActiveTask json.RawMessage `json:"active_task"`
	Priority   int             `json:"priority"`
	Mode       string          `json:"mode"`
	Timestamp  time.Time       `json:"timestamp"`
}
