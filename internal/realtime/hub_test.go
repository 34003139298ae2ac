package realtime

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func newHubClient(id, identity string, buffer int) *Client {
	return NewClient(id, identity, identity, nil, buffer)
}

// takeEvent pops one queued event from the client without blocking.
func takeEvent(t *testing.T, c *Client) (Event, bool) {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		if !ok {
			return Event{}, false
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return ev, true
	default:
		return Event{}, false
	}
}

func mustEvent(t *testing.T, payload interface{}, kind EventKind) Event {
	t.Helper()
	ev, err := NewEvent(kind, payload)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return ev
}

func TestHub_BroadcastToRoom(t *testing.T) {
	h := NewHub(zerolog.Nop())
	inRoom := newHubClient("c1", "doc1", 8)
	outside := newHubClient("c2", "pat1", 8)
	h.Register(inRoom)
	h.Register(outside)
	h.Join(inRoom, "conv:abc")

	h.Broadcast("conv:abc", mustEvent(t, "hello", EventReceiveMessage))

	if ev, ok := takeEvent(t, inRoom); !ok || ev.Event != EventReceiveMessage {
		t.Errorf("room member did not receive the event: %+v ok=%v", ev, ok)
	}
	if _, ok := takeEvent(t, outside); ok {
		t.Error("non-member must not receive a room broadcast")
	}
}

func TestHub_BroadcastMissingRoom(t *testing.T) {
	h := NewHub(zerolog.Nop())
	// Must not panic or error; nobody is listening.
	h.Broadcast("conv:ghost", mustEvent(t, nil, EventReceiveMessage))
}

func TestHub_BroadcastAll(t *testing.T) {
	h := NewHub(zerolog.Nop())
	a := newHubClient("c1", "doc1", 8)
	b := newHubClient("c2", "pat1", 8)
	h.Register(a)
	h.Register(b)

	h.BroadcastAll(mustEvent(t, []User{{Identity: "doc1"}}, EventUpdateOnlineUsers))

	for _, c := range []*Client{a, b} {
		if ev, ok := takeEvent(t, c); !ok || ev.Event != EventUpdateOnlineUsers {
			t.Errorf("client %s did not receive broadcast", c.ID)
		}
	}
}

func TestHub_FullBufferSkipped(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := newHubClient("c1", "doc1", 1)
	h.Register(c)
	h.Join(c, "conv:abc")

	h.Broadcast("conv:abc", mustEvent(t, 1, EventReceiveMessage))
	h.Broadcast("conv:abc", mustEvent(t, 2, EventReceiveMessage)) // dropped, buffer full

	if _, ok := takeEvent(t, c); !ok {
		t.Fatal("expected the first event")
	}
	if _, ok := takeEvent(t, c); ok {
		t.Error("second event should have been dropped")
	}
}

func TestHub_UnregisterLeavesRoomsAndClosesSend(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := newHubClient("c1", "doc1", 8)
	h.Register(c)
	h.Join(c, "conv:abc")

	h.Unregister(c)

	if h.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", h.ClientCount())
	}
	if h.RoomCount("conv:abc") != 0 {
		t.Errorf("expected empty room, got %d", h.RoomCount("conv:abc"))
	}
	if _, ok := <-c.Send; ok {
		t.Error("expected Send channel to be closed")
	}

	// A second unregister for the same client is a no-op.
	h.Unregister(c)
}

func TestHub_JoinUnregisteredClient(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := newHubClient("c1", "doc1", 8)

	h.Join(c, "conv:abc")
	if h.RoomCount("conv:abc") != 0 {
		t.Error("unregistered client must not join rooms")
	}
}

func TestHub_SendTo(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := newHubClient("c1", "doc1", 8)
	h.Register(c)

	h.SendTo(c, mustEvent(t, "direct", EventMessageHistory))
	if ev, ok := takeEvent(t, c); !ok || ev.Event != EventMessageHistory {
		t.Error("expected direct delivery")
	}

	// Unknown client: silent no-op.
	h.SendTo(newHubClient("c2", "pat1", 8), mustEvent(t, "direct", EventMessageHistory))
}

func TestHub_Leave(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := newHubClient("c1", "doc1", 8)
	h.Register(c)
	h.Join(c, "conv:abc")
	h.Leave(c, "conv:abc")

	h.Broadcast("conv:abc", mustEvent(t, nil, EventReceiveMessage))
	if _, ok := takeEvent(t, c); ok {
		t.Error("client must not receive events after leaving the room")
	}
}
