package realtime

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one live WebSocket connection. ID is the connection handle: a
// fresh identity-independent value per connection, so a reconnecting user
// holds a new handle while the old one goes stale.
type Client struct {
	ID          string
	Identity    string
	DisplayName string
	Send        chan []byte
	conn        Conn
}

// NewClient wraps a connection with a buffered outbound queue.
func NewClient(id, identity, displayName string, conn Conn, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		ID:          id,
		Identity:    identity,
		DisplayName: displayName,
		Send:        make(chan []byte, sendBuffer),
		conn:        conn,
	}
}
