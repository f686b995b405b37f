package models

import (
	"time"
)

// EventType categorizes notifications broadcast on the process-wide hub.
type EventType string

const (
	// EventTypeUnreadRefresh asks unread-count consumers to re-fetch. It
	// carries no payload.
	EventTypeUnreadRefresh EventType = "unread.refresh"

	// Session events
	EventTypeSessionLogin  EventType = "session.login"
	EventTypeSessionLogout EventType = "session.logout"

	// Thread events
	EventTypeThreadRead  EventType = "thread.read"
	EventTypeMessageSent EventType = "message.sent"

	// EventTypeNavigation reports a navigation change in the client shell.
	EventTypeNavigation EventType = "navigation"
)

// Event is a notification published on the hub. Consumers re-fetch their own
// data; events never carry authoritative state.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// ThreadID is set for thread-scoped events.
	ThreadID string `json:"thread_id,omitempty"`

	// Metadata contains additional context (e.g. navigation path).
	Metadata map[string]string `json:"metadata,omitempty"`
}
