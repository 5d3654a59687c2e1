package domain

import (
	"encoding/json"
	"time"
)

// SendEventDetails identifies an event the host sent on behalf of a widget.
type SendEventDetails struct {
	RoomID  string `json:"room_id"`
	EventID string `json:"event_id"`
}

// RoomEvent is the record the host persists for every event a widget sends.
//
// StateKey distinguishes three cases: nil is a timeline event, a pointer to ""
// is a state event with the empty key, and any other value is a state event for
// that key.
type RoomEvent struct {
	ID        string
	RoomID    string
	Sender    string
	Type      string
	StateKey  *string
	Content   json.RawMessage
	WidgetID  string
	CreatedAt time.Time
}

// IsState reports whether the event carries a state key (including the empty key).
func (e *RoomEvent) IsState() bool {
	return e.StateKey != nil
}

// StateKey returns a pointer to key, for building state events in callers and tests.
func StateKey(key string) *string {
	return &key
}
