package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GYB356/healthcare-origin-sub000/internal/platform/crypto"
)

var (
	// ErrNotFound indicates the requested message or conversation does not exist.
	ErrNotFound = errors.New("chat: not found")
	// ErrValidation indicates a request with missing or invalid fields.
	ErrValidation = errors.New("chat: validation failed")
	// ErrForbidden indicates the caller is not a participant of the conversation.
	ErrForbidden = errors.New("chat: not a participant")
)

// Encryptor is the at-rest cipher used for message bodies.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Service implements the messaging operations: sending (encrypt, persist,
// touch the conversation summary), history listing (decrypt, skip corrupt
// records), and read-state transitions.
type Service struct {
	messages      MessageRepository
	conversations ConversationRepository
	enc           Encryptor
	previewLen    int
	logger        zerolog.Logger
}

func NewService(messages MessageRepository, conversations ConversationRepository, enc Encryptor, previewLen int, logger zerolog.Logger) *Service {
	if previewLen <= 0 {
		previewLen = PreviewLimit
	}
	return &Service{
		messages:      messages,
		conversations: conversations,
		enc:           enc,
		previewLen:    previewLen,
		logger:        logger.With().Str("component", "chat").Logger(),
	}
}

// Send encrypts plaintext, persists the message, and updates the owning
// conversation's preview. When conversationID is uuid.Nil the conversation is
// resolved (created if absent) from the sender/receiver pair. The returned
// message carries both the stored ciphertext and the original plaintext in
// Text.
//
// A failed conversation touch does not roll back the message: the summary is
// denormalized display state and the next send repairs it.
func (s *Service) Send(ctx context.Context, conversationID uuid.UUID, senderID, receiverID, plaintext string) (*Message, error) {
	if senderID == "" || receiverID == "" {
		return nil, fmt.Errorf("%w: sender and receiver are required", ErrValidation)
	}
	if plaintext == "" {
		return nil, fmt.Errorf("%w: empty message body", ErrValidation)
	}
	if len(plaintext) > MaxPlaintextBytes {
		return nil, fmt.Errorf("%w: message body exceeds %d bytes", ErrValidation, MaxPlaintextBytes)
	}

	var conv *Conversation
	var err error
	if conversationID == uuid.Nil {
		conv, err = s.conversations.GetOrCreate(ctx, senderID, receiverID)
	} else {
		conv, err = s.conversations.GetByID(ctx, conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	if !conv.HasParticipant(senderID) {
		return nil, fmt.Errorf("%w: sender %s", ErrForbidden, senderID)
	}
	if !conv.HasParticipant(receiverID) {
		return nil, fmt.Errorf("%w: receiver %s is not in the conversation", ErrValidation, receiverID)
	}

	ciphertext, err := s.enc.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}

	msg := &Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Ciphertext:     ciphertext,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	msg.Text = plaintext

	if err := s.conversations.Touch(ctx, conv.ID, Preview(plaintext, s.previewLen), msg.CreatedAt); err != nil {
		s.logger.Warn().Err(err).
			Str("conversation_id", conv.ID.String()).
			Msg("conversation touch failed after message store")
	}

	return msg, nil
}

// ListBetween returns the full decrypted history between two identities in
// created-at ascending order. An absent conversation yields an empty list.
func (s *Service) ListBetween(ctx context.Context, identityA, identityB string) ([]*Message, error) {
	if identityA == "" || identityB == "" {
		return nil, fmt.Errorf("%w: both identities are required", ErrValidation)
	}
	conv, err := s.conversations.GetByParticipants(ctx, identityA, identityB)
	if errors.Is(err, ErrNotFound) {
		return []*Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve conversation: %w", err)
	}
	return s.listDecrypted(ctx, conv.ID)
}

// ListConversation returns the decrypted history of one conversation,
// restricted to its participants.
func (s *Service) ListConversation(ctx context.Context, conversationID uuid.UUID, requesterID string) ([]*Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, requesterID)
	}
	return s.listDecrypted(ctx, conv.ID)
}

// listDecrypted loads and decrypts a conversation's messages. A record whose
// ciphertext no longer decrypts (corruption, key mismatch) is logged and
// skipped rather than failing the whole listing.
func (s *Service) listDecrypted(ctx context.Context, conversationID uuid.UUID) ([]*Message, error) {
	stored, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	items := make([]*Message, 0, len(stored))
	for _, m := range stored {
		text, err := s.enc.Decrypt(m.Ciphertext)
		if err != nil {
			if errors.Is(err, crypto.ErrDecrypt) {
				s.logger.Error().Err(err).
					Str("message_id", m.ID.String()).
					Str("conversation_id", conversationID.String()).
					Msg("skipping undecryptable message")
				continue
			}
			return nil, fmt.Errorf("decrypt message %s: %w", m.ID, err)
		}
		m.Text = text
		items = append(items, m)
	}
	return items, nil
}

// MarkRead marks a single message read. Only the message's receiver may
// flip the flag. Repeated calls are no-ops.
func (s *Service) MarkRead(ctx context.Context, messageID uuid.UUID, readerID string) error {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.ReceiverID != readerID {
		return fmt.Errorf("%w: message is not addressed to %s", ErrForbidden, readerID)
	}
	return s.messages.MarkRead(ctx, messageID)
}

// MarkConversationRead marks every unread message addressed to readerID in
// the conversation as read.
func (s *Service) MarkConversationRead(ctx context.Context, conversationID uuid.UUID, readerID string) error {
	if readerID == "" {
		return fmt.Errorf("%w: reader is required", ErrValidation)
	}
	if _, err := s.conversations.GetByID(ctx, conversationID); err != nil {
		return err
	}
	return s.messages.MarkConversationRead(ctx, conversationID, readerID)
}

// GetOrCreateConversation resolves the conversation for an identity pair,
// creating it when absent.
func (s *Service) GetOrCreateConversation(ctx context.Context, identityA, identityB string) (*Conversation, error) {
	if identityA == "" || identityB == "" {
		return nil, fmt.Errorf("%w: both participants are required", ErrValidation)
	}
	if identityA == identityB {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", ErrValidation)
	}
	return s.conversations.GetOrCreate(ctx, identityA, identityB)
}

// ListForUser returns the identity's conversations, most recently active
// first, with unread counts.
func (s *Service) ListForUser(ctx context.Context, identity string) ([]*Conversation, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: identity is required", ErrValidation)
	}
	return s.conversations.ListForUser(ctx, identity)
}
