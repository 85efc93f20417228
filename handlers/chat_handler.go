package handlers

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"barber-queue/services"
)

// ChatHandler is the UI surface for the queue-entry-scoped conversation.
type ChatHandler struct {
	chat *services.ChatService
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) Register(e *echo.Echo) {
	e.POST("/chat/open", h.OpenThread)
	e.POST("/chat/close", h.CloseThread)
	e.POST("/chat/send", h.Send)
	e.GET("/chat/thread", h.Thread)
	e.GET("/chat/unread", h.Unread)
}

// OpenThread loads history plus any pending optimistic sends and clears the
// counterpart's unread flag.
func (h *ChatHandler) OpenThread(c echo.Context) error {
	var req struct {
		CounterpartID string `json:"counterpart_id"`
	}
	if err := c.Bind(&req); err != nil || req.CounterpartID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "counterpart_id is required")
	}

	msgs, err := h.chat.OpenThread(c.Request().Context(), req.CounterpartID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *ChatHandler) CloseThread(c echo.Context) error {
	h.chat.CloseThread()
	return c.JSON(http.StatusOK, map[string]string{"status": "closed"})
}

// Send appends the message optimistically and pushes it over the socket.
// The optimistic row is returned even when the push fails; the client keeps
// showing it as pending.
func (h *ChatHandler) Send(c echo.Context) error {
	var req struct {
		CounterpartID string `json:"counterpart_id"`
		Message       string `json:"message"`
	}
	if err := c.Bind(&req); err != nil || req.CounterpartID == "" || req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "counterpart_id and message are required")
	}

	msg, err := h.chat.Send(req.CounterpartID, req.Message)
	if err != nil {
		return c.JSON(http.StatusAccepted, map[string]any{
			"message": msg,
			"error":   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *ChatHandler) Thread(c echo.Context) error {
	counterpartID := c.QueryParam("counterpart_id")
	if counterpartID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "counterpart_id is required")
	}
	return c.JSON(http.StatusOK, h.chat.Thread(counterpartID))
}

func (h *ChatHandler) Unread(c echo.Context) error {
	counterpartID := c.QueryParam("counterpart_id")
	if counterpartID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "counterpart_id is required")
	}
	return c.JSON(http.StatusOK, map[string]bool{
		"unread": h.chat.Unread(c.Request().Context(), counterpartID),
	})
}
