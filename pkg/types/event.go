package types

import (
	"encoding/json"
	"time"
)

// Event kinds published on the event hub and relayed to live subscribers.
const (
	EventCreated = "created"
	EventDeleted = "deleted"

	// EventGap is synthesized for a subscriber whose buffer overflowed: it
	// reports how many events were dropped since the last delivery.
	EventGap = "gap"
)

// LogEvent is one create/delete notification. Created events carry the full
// payload; deleted events only the entry's identity. Events are published
// only after the corresponding store mutation has committed.
type LogEvent struct {
	Kind      string          `json:"event_type"`
	ID        int64           `json:"id,omitempty"`
	SchemaID  string          `json:"schema_id,omitempty"`
	Data      json.RawMessage `json:"log_data,omitempty"`
	CreatedAt string          `json:"created_at,omitempty"`
	Dropped   int             `json:"dropped,omitempty"`
}

// CreatedEvent builds the notification for a freshly committed log entry.
func CreatedEvent(entry LogEntry) LogEvent {
	return LogEvent{
		Kind:      EventCreated,
		ID:        entry.ID,
		SchemaID:  entry.SchemaID,
		Data:      entry.Data,
		CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// DeletedEvent builds the notification for a removed log entry.
func DeletedEvent(id int64, schemaID string) LogEvent {
	return LogEvent{Kind: EventDeleted, ID: id, SchemaID: schemaID}
}

// GapEvent builds the overflow marker delivered to a lagging subscriber.
func GapEvent(dropped int) LogEvent {
	return LogEvent{Kind: EventGap, Dropped: dropped}
}
