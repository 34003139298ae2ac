package realtime

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin checks are delegated to the CORS layer.
	},
}

// Authenticator resolves the connecting user's identity and display name.
// Browsers cannot set headers on WebSocket upgrades, so production wiring
// reads a token from the query string; development wiring injects a fixed
// identity.
type Authenticator func(c echo.Context) (identity, displayName string, err error)

// Handler upgrades HTTP connections to WebSocket and runs the read/write
// pumps for each client.
type Handler struct {
	channel    *Channel
	auth       Authenticator
	sendBuffer int
	logger     zerolog.Logger
}

func NewHandler(channel *Channel, auth Authenticator, sendBuffer int, logger zerolog.Logger) *Handler {
	return &Handler{
		channel:    channel,
		auth:       auth,
		sendBuffer: sendBuffer,
		logger:     logger.With().Str("component", "ws").Logger(),
	}
}

// RegisterRoutes registers the upgrade endpoint.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.HandleConnect)
}

// RegisterAPIRoutes registers the REST mirror of the presence snapshot for
// polling clients.
func (h *Handler) RegisterAPIRoutes(api *echo.Group) {
	api.GET("/presence", h.HandlePresence)
}

// HandleConnect authenticates, upgrades, and starts the client pumps. The
// client joins its personal identity room immediately; presence is announced
// when the client emits joinRoom.
func (h *Handler) HandleConnect(c echo.Context) error {
	identity, displayName, err := h.auth(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(uuid.NewString(), identity, displayName, &gorillaConnAdapter{ws}, h.sendBuffer)
	h.channel.Connect(client)

	go h.writePump(client)
	go h.readPump(client)

	return nil
}

// HandlePresence returns the current online-user snapshot.
func (h *Handler) HandlePresence(c echo.Context) error {
	return c.JSON(http.StatusOK, h.channel.Presence().Snapshot())
}

// readPump parses inbound envelopes and dispatches them. Any read error,
// including a normal close, tears the client down.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.channel.Disconnect(client)
		client.conn.Close()
	}()

	ctx := context.Background()
	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			h.channel.sendError(client, ErrCodeValidation, "malformed event envelope")
			continue
		}
		h.channel.HandleEvent(ctx, client, ev)
	}
}

// writePump drains the client's send queue onto the socket. The queue is
// closed by Hub.Unregister, which ends the loop.
func (h *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}

// gorillaConnAdapter wraps a gorilla/websocket.Conn to satisfy Conn.
type gorillaConnAdapter struct {
	conn *gorillawebsocket.Conn
}

func (a *gorillaConnAdapter) ReadMessage() (int, []byte, error) {
	return a.conn.ReadMessage()
}

func (a *gorillaConnAdapter) WriteMessage(messageType int, data []byte) error {
	return a.conn.WriteMessage(messageType, data)
}

func (a *gorillaConnAdapter) Close() error {
	return a.conn.Close()
}
