package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Message Repository ===========

type messageRepoPG struct{ db queryable }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{db: pool}
}

const messageCols = `id, conversation_id, sender_id, receiver_id, ciphertext, read, created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID,
		&m.Ciphertext, &m.Read, &m.CreatedAt)
	return &m, err
}

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	return r.db.QueryRow(ctx, `
		INSERT INTO message (id, conversation_id, sender_id, receiver_id, ciphertext)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		m.ID, m.ConversationID, m.SenderID, m.ReceiverID, m.Ciphertext).
		Scan(&m.CreatedAt)
}

func (r *messageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `SELECT `+messageCols+` FROM message WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (r *messageRepoPG) ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]*Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+messageCols+`
		FROM message
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC`,
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *messageRepoPG) MarkRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE message SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *messageRepoPG) MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE message SET read = TRUE
		WHERE conversation_id = $1 AND receiver_id = $2 AND read = FALSE`,
		conversationID, readerID)
	return err
}

// =========== Conversation Repository ===========

type conversationRepoPG struct{ db queryable }

func NewConversationRepoPG(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepoPG{db: pool}
}

const conversationCols = `id, participant_a, participant_b, last_message_preview,
	last_message_time, created_at, updated_at`

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessagePreview,
		&c.LastMessageTime, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

// GetOrCreate is a single-statement upsert keyed on participant_key, so two
// concurrent first messages between the same pair cannot create two rows.
// The no-op DO UPDATE makes the INSERT return the existing row.
func (r *conversationRepoPG) GetOrCreate(ctx context.Context, a, b string) (*Conversation, error) {
	a, b = CanonicalPair(a, b)
	return scanConversation(r.db.QueryRow(ctx, `
		INSERT INTO conversation (id, participant_a, participant_b, participant_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant_key) DO UPDATE SET participant_key = EXCLUDED.participant_key
		RETURNING `+conversationCols,
		uuid.New(), a, b, ParticipantKey(a, b)))
}

func (r *conversationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, `SELECT `+conversationCols+` FROM conversation WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *conversationRepoPG) GetByParticipants(ctx context.Context, a, b string) (*Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, `
		SELECT `+conversationCols+` FROM conversation WHERE participant_key = $1`,
		ParticipantKey(a, b)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (r *conversationRepoPG) Touch(ctx context.Context, id uuid.UUID, preview string, when time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE conversation
		SET last_message_preview = $2, last_message_time = $3, updated_at = NOW()
		WHERE id = $1`,
		id, preview, when)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *conversationRepoPG) ListForUser(ctx context.Context, identity string) ([]*Conversation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+conversationCols+`,
			(SELECT COUNT(*) FROM message m
			 WHERE m.conversation_id = conversation.id
			   AND m.receiver_id = $1 AND m.read = FALSE) AS unread_count
		FROM conversation
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY updated_at DESC`,
		identity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Conversation
	for rows.Next() {
		var c Conversation
		err := rows.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessagePreview,
			&c.LastMessageTime, &c.CreatedAt, &c.UpdatedAt, &c.UnreadCount)
		if err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}
