package streaming

import (
	"context"
	"time"
)

// Event is one audit record emitted by the control plane.
type Event struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Payload   []byte    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Publisher delivers playback transition events to an external sink.
// Publishing is best-effort; the controller never blocks on it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}
