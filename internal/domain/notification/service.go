package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrValidation indicates a notification request with missing fields.
var ErrValidation = errors.New("notification: validation failed")

// Broadcaster delivers live events over the real-time channel. Delivery is
// best-effort, at-most-once: an identity with no connected sockets is a
// silent drop, and persistence is handled before broadcast, not by the
// Broadcaster.
type Broadcaster interface {
	ToUser(identity string, ev Event)
	ToAll(ev Event)
}

// Service dispatches notifications: it persists a record for later polling
// and pushes the live event to whoever is connected right now.
type Service struct {
	repo        Repository
	broadcaster Broadcaster
	logger      zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "notification").Logger(),
	}
}

// SetBroadcaster attaches the live delivery channel. Wired after
// construction because the channel itself depends on this service.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// NotifyUser persists a record for identity and delivers the event live if
// the user is connected. Live delivery to an offline user is a no-op, not an
// error; the persisted record covers later retrieval.
func (s *Service) NotifyUser(ctx context.Context, identity string, ev Event) (*Notification, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: recipient identity is required", ErrValidation)
	}
	if ev.Message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	n := &Notification{
		UserID:  identity,
		Type:    ev.Type,
		Message: ev.Message,
		Data:    ev.Data,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.ToUser(identity, ev)
	} else {
		s.logger.Debug().Str("user_id", identity).Msg("no broadcaster attached, record persisted only")
	}
	return n, nil
}

// NotifyAll delivers a transient event to every connected client. Nothing is
// persisted; clients that are offline simply miss it.
func (s *Service) NotifyAll(_ context.Context, ev Event) error {
	if ev.Message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if s.broadcaster != nil {
		s.broadcaster.ToAll(ev)
	}
	return nil
}

// FetchUnread returns the identity's unread persisted records.
func (s *Service) FetchUnread(ctx context.Context, identity string) ([]*Notification, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: identity is required", ErrValidation)
	}
	return s.repo.ListUnread(ctx, identity)
}

// MarkAllRead marks every persisted record for identity as read. The live
// event stream is unaffected.
func (s *Service) MarkAllRead(ctx context.Context, identity string) error {
	if identity == "" {
		return fmt.Errorf("%w: identity is required", ErrValidation)
	}
	return s.repo.MarkAllRead(ctx, identity)
}
