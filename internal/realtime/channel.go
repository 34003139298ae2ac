package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GYB356/healthcare-origin-sub000/internal/domain/chat"
	"github.com/GYB356/healthcare-origin-sub000/internal/domain/notification"
)

// ChatService is the messaging surface the channel drives.
type ChatService interface {
	Send(ctx context.Context, conversationID uuid.UUID, senderID, receiverID, plaintext string) (*chat.Message, error)
	ListBetween(ctx context.Context, identityA, identityB string) ([]*chat.Message, error)
}

// NotificationService is the dispatcher surface the channel drives.
type NotificationService interface {
	NotifyUser(ctx context.Context, identity string, ev notification.Event) (*notification.Notification, error)
	FetchUnread(ctx context.Context, identity string) ([]*notification.Notification, error)
	MarkAllRead(ctx context.Context, identity string) error
}

type eventHandler func(ctx context.Context, client *Client, data json.RawMessage) error

// Channel binds the hub and presence registry to the domain services and
// dispatches inbound events through a handler map keyed by event kind.
// Failures are reported to the offending connection only; nothing here is
// fatal to the process or visible to other connections.
type Channel struct {
	hub           *Hub
	presence      *PresenceRegistry
	chat          ChatService
	notifications NotificationService
	logger        zerolog.Logger
	handlers      map[EventKind]eventHandler
}

func NewChannel(hub *Hub, presence *PresenceRegistry, chatSvc ChatService, notifications NotificationService, logger zerolog.Logger) *Channel {
	ch := &Channel{
		hub:           hub,
		presence:      presence,
		chat:          chatSvc,
		notifications: notifications,
		logger:        logger.With().Str("component", "realtime").Logger(),
	}
	ch.handlers = map[EventKind]eventHandler{
		EventJoinRoom:              ch.handleJoinRoom,
		EventJoinChat:              ch.handleJoinChat,
		EventSendMessage:           ch.handleSendMessage,
		EventFetchMessages:         ch.handleFetchMessages,
		EventFetchNotifications:    ch.handleFetchNotifications,
		EventMarkNotificationsRead: ch.handleMarkNotificationsRead,
	}
	return ch
}

// Hub exposes the underlying hub for wiring.
func (ch *Channel) Hub() *Hub { return ch.hub }

// Presence exposes the registry for the presence REST mirror.
func (ch *Channel) Presence() *PresenceRegistry { return ch.presence }

// Connect registers a freshly-upgraded client with the hub and joins its
// personal identity room.
func (ch *Channel) Connect(client *Client) {
	ch.hub.Register(client)
	ch.hub.Join(client, UserRoom(client.Identity))
	ch.logger.Debug().
		Str("client_id", client.ID).
		Str("identity", client.Identity).
		Msg("client connected")
}

// Disconnect tears a client down: the presence entry is removed only if this
// client still owns it (a reconnected identity keeps its fresher entry), and
// an updated snapshot goes out when something actually changed.
func (ch *Channel) Disconnect(client *Client) {
	if _, removed := ch.presence.Unregister(client.ID); removed {
		ch.broadcastPresence()
	}
	ch.hub.Unregister(client)
	ch.logger.Debug().
		Str("client_id", client.ID).
		Str("identity", client.Identity).
		Msg("client disconnected")
}

// HandleEvent dispatches one inbound event. Unknown kinds and handler
// failures produce an error ack to the initiating client only.
func (ch *Channel) HandleEvent(ctx context.Context, client *Client, ev Event) {
	handler, ok := ch.handlers[ev.Event]
	if !ok {
		ch.sendError(client, ErrCodeUnknown, fmt.Sprintf("unknown event %q", ev.Event))
		return
	}
	if err := handler(ctx, client, ev.Data); err != nil {
		ch.logger.Warn().Err(err).
			Str("event", string(ev.Event)).
			Str("identity", client.Identity).
			Msg("event handling failed")
		ch.sendError(client, errorCode(err), err.Error())
	}
}

func (ch *Channel) handleJoinRoom(_ context.Context, client *Client, data json.RawMessage) error {
	var p JoinRoomPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("%w: malformed joinRoom payload", chat.ErrValidation)
		}
	}
	if p.Identity != "" && p.Identity != client.Identity {
		return fmt.Errorf("%w: identity mismatch", chat.ErrValidation)
	}
	if p.DisplayName != "" {
		client.DisplayName = p.DisplayName
	}

	ch.presence.Register(client.Identity, client.ID, client.DisplayName)
	ch.hub.Join(client, UserRoom(client.Identity))
	ch.broadcastPresence()
	return nil
}

func (ch *Channel) handleJoinChat(_ context.Context, client *Client, data json.RawMessage) error {
	var p JoinChatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: malformed joinChat payload", chat.ErrValidation)
	}
	id, err := uuid.Parse(p.ConversationID)
	if err != nil {
		return fmt.Errorf("%w: invalid conversation id", chat.ErrValidation)
	}
	ch.hub.Join(client, ConversationRoom(id.String()))
	return nil
}

func (ch *Channel) handleSendMessage(ctx context.Context, client *Client, data json.RawMessage) error {
	var p SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: malformed sendMessage payload", chat.ErrValidation)
	}

	conversationID := uuid.Nil
	if p.ConversationID != "" {
		var err error
		conversationID, err = uuid.Parse(p.ConversationID)
		if err != nil {
			return fmt.Errorf("%w: invalid conversation id", chat.ErrValidation)
		}
	}

	msg, err := ch.chat.Send(ctx, conversationID, client.Identity, p.ReceiverID, p.Text)
	if err != nil {
		return err
	}

	ch.fanOutMessage(ctx, msg, client.DisplayName)
	return nil
}

// fanOutMessage emits a stored message to its conversation room and
// dispatches a notification to the receiver. Shared by the WebSocket send
// path and the REST send path (via MessageSent).
func (ch *Channel) fanOutMessage(ctx context.Context, msg *chat.Message, senderName string) {
	payload := ReceiveMessagePayload{
		ID:             msg.ID.String(),
		ConversationID: msg.ConversationID.String(),
		SenderID:       msg.SenderID,
		Ciphertext:     msg.Ciphertext,
		CreatedAt:      msg.CreatedAt,
	}
	ev, err := NewEvent(EventReceiveMessage, payload)
	if err != nil {
		ch.logger.Error().Err(err).Msg("failed to encode receiveMessage")
		return
	}
	ch.hub.Broadcast(ConversationRoom(msg.ConversationID.String()), ev)

	if senderName == "" {
		senderName = msg.SenderID
	}
	meta, _ := json.Marshal(map[string]string{
		"conversation_id": msg.ConversationID.String(),
		"sender_id":       msg.SenderID,
	})
	if _, err := ch.notifications.NotifyUser(ctx, msg.ReceiverID, notification.Event{
		Type:      notification.TypeMessage,
		Message:   "New message from " + senderName,
		Data:      meta,
		Timestamp: msg.CreatedAt,
	}); err != nil {
		ch.logger.Warn().Err(err).
			Str("receiver_id", msg.ReceiverID).
			Msg("message notification failed")
	}
}

func (ch *Channel) handleFetchMessages(ctx context.Context, client *Client, data json.RawMessage) error {
	var p FetchMessagesPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: malformed fetchMessages payload", chat.ErrValidation)
	}

	history, err := ch.chat.ListBetween(ctx, client.Identity, p.PartnerID)
	if err != nil {
		return err
	}

	ev, err := NewEvent(EventMessageHistory, history)
	if err != nil {
		return fmt.Errorf("encode messageHistory: %w", err)
	}
	ch.hub.SendTo(client, ev)
	return nil
}

func (ch *Channel) handleFetchNotifications(ctx context.Context, client *Client, _ json.RawMessage) error {
	items, err := ch.notifications.FetchUnread(ctx, client.Identity)
	if err != nil {
		return err
	}

	ev, err := NewEvent(EventNotifications, items)
	if err != nil {
		return fmt.Errorf("encode notifications: %w", err)
	}
	ch.hub.SendTo(client, ev)
	return nil
}

func (ch *Channel) handleMarkNotificationsRead(ctx context.Context, client *Client, _ json.RawMessage) error {
	return ch.notifications.MarkAllRead(ctx, client.Identity)
}

// MessageSent implements chat.Emitter for the REST send path.
func (ch *Channel) MessageSent(msg *chat.Message) {
	ch.fanOutMessage(context.Background(), msg, "")
}

// ToUser implements notification.Broadcaster: the event goes to every
// connection in the identity's personal room.
func (ch *Channel) ToUser(identity string, ev notification.Event) {
	wire, err := NewEvent(EventNotification, ev)
	if err != nil {
		ch.logger.Error().Err(err).Msg("failed to encode notification")
		return
	}
	ch.hub.Broadcast(UserRoom(identity), wire)
}

// ToAll implements notification.Broadcaster for system-wide events.
func (ch *Channel) ToAll(ev notification.Event) {
	wire, err := NewEvent(EventNotification, ev)
	if err != nil {
		ch.logger.Error().Err(err).Msg("failed to encode notification")
		return
	}
	ch.hub.BroadcastAll(wire)
}

func (ch *Channel) broadcastPresence() {
	ev, err := NewEvent(EventUpdateOnlineUsers, ch.presence.Snapshot())
	if err != nil {
		ch.logger.Error().Err(err).Msg("failed to encode presence snapshot")
		return
	}
	ch.hub.BroadcastAll(ev)
}

func (ch *Channel) sendError(client *Client, code, message string) {
	ev, err := NewEvent(EventError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	ch.hub.SendTo(client, ev)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, chat.ErrValidation), errors.Is(err, notification.ErrValidation):
		return ErrCodeValidation
	case errors.Is(err, chat.ErrForbidden):
		return ErrCodeForbidden
	case errors.Is(err, chat.ErrNotFound):
		return ErrCodeNotFound
	default:
		return ErrCodePersistence
	}
}
