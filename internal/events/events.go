package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventStationAssigned   EventType = "station.assigned"
	EventStationReleased   EventType = "station.released"
	EventStudentRegistered EventType = "student.registered"
	EventUserRegistered    EventType = "user.registered"
	EventUserBlocked       EventType = "user.blocked"
	EventUserUnblocked     EventType = "user.unblocked"
	EventUserDeleted       EventType = "user.deleted"
	EventSessionLoggedIn   EventType = "session.logged_in"
	EventSessionLoggedOut  EventType = "session.logged_out"
	EventMessageSent       EventType = "chat.message_sent"
)

const (
	eventSource  = "clinic-service"
	eventVersion = "1.0"
)

// Event is the envelope for every domain event leaving the service
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher publishes domain events. Publishing is best effort:
// callers log failures and never roll back on them.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}
