// Package notification implements the dispatcher that fans portal events out
// to connected clients and keeps a persisted record for offline retrieval.
package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Recommended event types. The dispatcher is type-agnostic: unknown types
// pass through for forward compatibility with new notification categories.
const (
	TypeAppointment  = "appointment"
	TypePrescription = "prescription"
	TypeMessage      = "message"
	TypeSystem       = "system"
)

// Event is the live payload delivered over the real-time channel. Transient
// by default; persistence is a separate, explicit concern of the dispatcher.
type Event struct {
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Notification is the persisted record behind polling-based retrieval for
// users who were offline when the event fired.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	Type      string          `db:"type" json:"type"`
	Message   string          `db:"message" json:"message"`
	Data      json.RawMessage `db:"data" json:"data,omitempty"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// AsEvent converts a persisted record into its live-channel form.
func (n *Notification) AsEvent() Event {
	return Event{
		Type:      n.Type,
		Message:   n.Message,
		Data:      n.Data,
		Timestamp: n.CreatedAt,
	}
}
