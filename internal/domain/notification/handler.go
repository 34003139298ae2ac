package notification

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/GYB356/healthcare-origin-sub000/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/notifications", h.ListUnread)
	api.POST("/notifications/read", h.MarkAllRead)
	api.POST("/notifications/broadcast", h.Broadcast, auth.RequireRole("admin"))
}

func (h *Handler) ListUnread(c echo.Context) error {
	identity := auth.UserIDFromContext(c.Request().Context())

	items, err := h.svc.FetchUnread(c.Request().Context(), identity)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Notification{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	identity := auth.UserIDFromContext(c.Request().Context())

	if err := h.svc.MarkAllRead(c.Request().Context(), identity); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type broadcastRequest struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (h *Handler) Broadcast(c echo.Context) error {
	var req broadcastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Type == "" {
		req.Type = TypeSystem
	}

	ev := Event{Type: req.Type, Message: req.Message, Data: req.Data}
	if err := h.svc.NotifyAll(c.Request().Context(), ev); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, ev)
}

func httpError(err error) error {
	if errors.Is(err, ErrValidation) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
