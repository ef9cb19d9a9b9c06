// Package events publishes attempt lifecycle events. When no broker is
// configured the NoopPublisher is used and events are dropped.
package events

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type names a lifecycle event and doubles as its routing key
type Type string

const (
	AttemptCreated   Type = "attempt.created"
	AttemptFailed    Type = "attempt.failed"
	AttemptSucceeded Type = "attempt.succeeded"
)

// Event is a single attempt lifecycle event.
type Event struct {
	ID             string    `json:"id"`
	Type           Type      `json:"type"`
	JobID          int64     `json:"job_id"`
	AttemptNumber  int       `json:"attempt_number"`
	ConnectionID   string    `json:"connection_id,omitempty"`
	ConfigType     string    `json:"config_type,omitempty"`
	StreamsCleared int       `json:"streams_cleared,omitempty"`
	FailureOrigins []string  `json:"failure_origins,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// New returns an event of type t with a fresh id and timestamp.
func New(t Type, jobID int64, attemptNumber int) Event {
	return Event{
		ID:            ulid.Make().String(),
		Type:          t,
		JobID:         jobID,
		AttemptNumber: attemptNumber,
		OccurredAt:    time.Now().UTC(),
	}
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

// Publish is a no-op.
func (NoopPublisher) Publish(ctx context.Context, e Event) error {
	return nil
}

// Close is a no-op.
func (NoopPublisher) Close() error {
	return nil
}
