// Package pubsub provides a generic publish/subscribe event system.
// Log entries and syntax-set reloads are fanned out through it.
package pubsub

import "time"

// EventType represents the type of event being published.
type EventType string

const (
	// CreatedEvent announces a new payload (log entries).
	CreatedEvent EventType = "created"
	// UpdatedEvent announces that already-known definitions were reloaded.
	UpdatedEvent EventType = "updated"
	// FailedEvent announces a reload that left definitions unusable.
	FailedEvent EventType = "failed"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}
