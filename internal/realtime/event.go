package realtime

import (
	"encoding/json"
	"time"
)

// EventKind identifies an event on the wire. The set is closed: the channel
// dispatches inbound kinds through an exhaustive handler map and rejects
// anything else with an error ack.
type EventKind string

// Client → server.
const (
	EventJoinRoom              EventKind = "joinRoom"
	EventJoinChat              EventKind = "joinChat"
	EventSendMessage           EventKind = "sendMessage"
	EventFetchMessages         EventKind = "fetchMessages"
	EventFetchNotifications    EventKind = "fetchNotifications"
	EventMarkNotificationsRead EventKind = "markNotificationsRead"
)

// Server → client.
const (
	EventReceiveMessage    EventKind = "receiveMessage"
	EventNotification      EventKind = "notification"
	EventUpdateOnlineUsers EventKind = "updateOnlineUsers"
	EventMessageHistory    EventKind = "messageHistory"
	EventNotifications     EventKind = "notifications"
	EventError             EventKind = "error"
)

// Event is the wire envelope: a kind plus a kind-specific payload.
type Event struct {
	Event EventKind       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEvent wraps a payload into an envelope.
func NewEvent(kind EventKind, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Event: kind, Data: data}, nil
}

// Encode serializes the envelope for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// =========== Inbound payloads ===========

type JoinRoomPayload struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
}

type JoinChatPayload struct {
	ConversationID string `json:"conversation_id"`
}

type SendMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	ReceiverID     string `json:"receiver_id"`
	Text           string `json:"text"`
}

type FetchMessagesPayload struct {
	PartnerID string `json:"partner_id"`
}

// =========== Outbound payloads ===========

// ReceiveMessagePayload carries the persisted ciphertext: decryption on the
// live path is the consumer's read-path concern, mirroring what the store
// holds. History replay (messageHistory, REST) returns plaintext instead.
type ReceiveMessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Ciphertext     string    `json:"ciphertext"`
	CreatedAt      time.Time `json:"created_at"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used in error acks.
const (
	ErrCodeValidation  = "validation_error"
	ErrCodeForbidden   = "forbidden"
	ErrCodeNotFound    = "not_found"
	ErrCodePersistence = "persistence_error"
	ErrCodeUnknown     = "unknown_event"
)
