package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// ListByConversation returns messages ordered by created_at ascending.
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*Message, error)
	// MarkRead sets read=true. Marking an already-read message is a no-op.
	MarkRead(ctx context.Context, id uuid.UUID) error
	// MarkConversationRead marks every message addressed to readerID in the
	// conversation as read.
	MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerID string) error
}

type ConversationRepository interface {
	// GetOrCreate upserts the conversation for a canonical identity pair.
	// Concurrent first calls for the same pair yield the same row.
	GetOrCreate(ctx context.Context, a, b string) (*Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	GetByParticipants(ctx context.Context, a, b string) (*Conversation, error)
	// Touch updates the denormalized last-message preview and timestamp.
	Touch(ctx context.Context, id uuid.UUID, preview string, when time.Time) error
	// ListForUser returns the identity's conversations ordered by updated_at
	// descending, each with the caller's unread message count.
	ListForUser(ctx context.Context, identity string) ([]*Conversation, error)
}
