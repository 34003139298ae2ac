// Package realtime implements the room-based WebSocket channel: the hub that
// fans events out to rooms, the in-memory presence registry, and the event
// protocol spoken with portal clients.
package realtime

import (
	"sync"

	"github.com/rs/zerolog"
)

// Room name helpers. Every identity has a personal room for direct
// notifications; every conversation has a room its open chat views join.
func UserRoom(identity string) string   { return "user:" + identity }
func ConversationRoom(id string) string { return "conv:" + id }

// Hub tracks connected clients and their room memberships. All operations
// are thread-safe. Delivery is at-most-once: a client whose send buffer is
// full is skipped rather than blocking the broadcast.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	members map[*Client]map[string]struct{}
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		members: make(map[*Client]map[string]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "hub").Logger(),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	h.members[client] = make(map[string]struct{})
}

// Unregister removes a client from the hub and all of its rooms, and closes
// the client's Send channel. Safe to call for an already-removed client.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	for room := range h.members[client] {
		h.leaveLocked(client, room)
	}
	delete(h.members, client)
	delete(h.all, client)
	close(client.Send)
}

// Join adds the client to a room.
func (h *Hub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.members[client][room] = struct{}{}
}

// Leave removes the client from a room.
func (h *Hub) Leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(client, room)
	if m, ok := h.members[client]; ok {
		delete(m, room)
	}
}

func (h *Hub) leaveLocked(client *Client, room string) {
	if occupants, ok := h.rooms[room]; ok {
		delete(occupants, client)
		if len(occupants) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast sends an event to every client in the room. Missing rooms and
// full client buffers are silent drops.
func (h *Hub) Broadcast(room string, ev Event) {
	data, err := ev.Encode()
	if err != nil {
		h.logger.Error().Err(err).Str("event", string(ev.Event)).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	occupants, ok := h.rooms[room]
	if !ok {
		h.logger.Debug().Str("room", room).Str("event", string(ev.Event)).Msg("no occupants, event dropped")
		return
	}
	for client := range occupants {
		h.sendLocked(client, data)
	}
}

// BroadcastAll sends an event to every connected client.
func (h *Hub) BroadcastAll(ev Event) {
	data, err := ev.Encode()
	if err != nil {
		h.logger.Error().Err(err).Str("event", string(ev.Event)).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.all {
		h.sendLocked(client, data)
	}
}

// SendTo delivers an event to a single client.
func (h *Hub) SendTo(client *Client, ev Event) {
	data, err := ev.Encode()
	if err != nil {
		h.logger.Error().Err(err).Str("event", string(ev.Event)).Msg("failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	h.sendLocked(client, data)
}

func (h *Hub) sendLocked(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		// Buffer full; skip to avoid blocking the broadcast.
		h.logger.Debug().Str("client_id", client.ID).Msg("send buffer full, event dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// RoomCount returns the number of clients in a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
