package chat

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/GYB356/healthcare-origin-sub000/internal/platform/auth"
)

// Emitter pushes live events to connected clients after a successful REST
// send. A nil emitter disables live delivery; persistence is unaffected.
type Emitter interface {
	MessageSent(m *Message)
}

type Handler struct {
	svc     *Service
	emitter Emitter
}

func NewHandler(svc *Service, emitter Emitter) *Handler {
	return &Handler{svc: svc, emitter: emitter}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/conversations", h.CreateConversation)
	api.GET("/conversations", h.ListConversations)
	api.GET("/conversations/:id/messages", h.ListMessages)
	api.POST("/messages", h.SendMessage)
	api.PUT("/messages/:id/read", h.MarkMessageRead)
	api.POST("/messages/read", h.MarkConversationRead)
}

type createConversationRequest struct {
	ParticipantID string `json:"participant_id"`
}

func (h *Handler) CreateConversation(c echo.Context) error {
	identity := auth.UserIDFromContext(c.Request().Context())

	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conv, err := h.svc.GetOrCreateConversation(c.Request().Context(), identity, req.ParticipantID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *Handler) ListConversations(c echo.Context) error {
	identity := auth.UserIDFromContext(c.Request().Context())

	items, err := h.svc.ListForUser(c.Request().Context(), identity)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListMessages(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conversation id")
	}
	identity := auth.UserIDFromContext(c.Request().Context())

	items, err := h.svc.ListConversation(c.Request().Context(), id, identity)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

type sendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	ReceiverID     string `json:"receiver_id"`
	Text           string `json:"text"`
}

func (h *Handler) SendMessage(c echo.Context) error {
	identity := auth.UserIDFromContext(c.Request().Context())

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conversationID := uuid.Nil
	if req.ConversationID != "" {
		var err error
		conversationID, err = uuid.Parse(req.ConversationID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid conversation id")
		}
	}

	msg, err := h.svc.Send(c.Request().Context(), conversationID, identity, req.ReceiverID, req.Text)
	if err != nil {
		return httpError(err)
	}

	if h.emitter != nil {
		h.emitter.MessageSent(msg)
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *Handler) MarkMessageRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid message id")
	}
	identity := auth.UserIDFromContext(c.Request().Context())
	if err := h.svc.MarkRead(c.Request().Context(), id, identity); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type markConversationReadRequest struct {
	ConversationID string `json:"conversation_id"`
}

func (h *Handler) MarkConversationRead(c echo.Context) error {
	identity := auth.UserIDFromContext(c.Request().Context())

	var req markConversationReadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := uuid.Parse(req.ConversationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid conversation id")
	}

	if err := h.svc.MarkConversationRead(c.Request().Context(), id, identity); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
