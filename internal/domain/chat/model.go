// Package chat implements the secure messaging core: encrypted messages,
// canonical two-party conversations, and the read/unread bookkeeping the
// portal's conversation list is built on.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// PreviewLimit is the default number of characters kept in a conversation's
// last-message preview before truncation.
const PreviewLimit = 50

// MaxPlaintextBytes caps the size of a single message body.
const MaxPlaintextBytes = 10 * 1024

// Message is one encrypted message inside a conversation. Ciphertext is the
// stored form; Text is populated with the decrypted body on read paths and is
// never persisted.
type Message struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConversationID uuid.UUID `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	ReceiverID     string    `db:"receiver_id" json:"receiver_id"`
	Ciphertext     string    `db:"ciphertext" json:"-"`
	Text           string    `db:"-" json:"text"`
	Read           bool      `db:"read" json:"read"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Conversation is the durable thread linking a pair of identities. The
// participants are stored in canonical (lexicographic) order so a pair maps
// to exactly one row regardless of who messaged first.
type Conversation struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	ParticipantA       string     `db:"participant_a" json:"participant_a"`
	ParticipantB       string     `db:"participant_b" json:"participant_b"`
	LastMessagePreview string     `db:"last_message_preview" json:"last_message_preview"`
	LastMessageTime    *time.Time `db:"last_message_time" json:"last_message_time,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
	UnreadCount        int        `db:"-" json:"unread_count"`
}

// Participants returns the canonical participant pair.
func (c *Conversation) Participants() [2]string {
	return [2]string{c.ParticipantA, c.ParticipantB}
}

// HasParticipant reports whether identity is one of the two participants.
func (c *Conversation) HasParticipant(identity string) bool {
	return c.ParticipantA == identity || c.ParticipantB == identity
}

// CanonicalPair normalizes an unordered identity pair into its canonical
// (lexicographically sorted) order.
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// ParticipantKey derives the unique conversation key for an identity pair.
// The same key is produced for (a, b) and (b, a).
func ParticipantKey(a, b string) string {
	a, b = CanonicalPair(a, b)
	return a + "|" + b
}

// Preview truncates text for display in a conversation list, appending a
// truncation marker when the text exceeds limit characters. Truncation is
// rune-aware so multi-byte text is never cut mid-character.
func Preview(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
