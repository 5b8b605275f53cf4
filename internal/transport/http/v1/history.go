package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/service"
)

// ListChats lists recent chats grouped by day.
// GET /api/chat/v2/list
func (h *Handler) ListChats(c echo.Context) error {
	groups, err := h.service.ListChats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, domain.Fail(err.Error()))
	}
	return c.JSON(http.StatusOK, domain.OK(groups))
}

// ChatDetail returns the turn records of a chat.
// GET /api/chat/v2/detail/:chat_id
func (h *Handler) ChatDetail(c echo.Context) error {
	turns, err := h.service.ChatDetail(c.Request().Context(), c.Param("chat_id"))
	if errors.Is(err, service.ErrChatNotFound) {
		return c.JSON(http.StatusNotFound, domain.Fail(err.Error()))
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, domain.Fail(err.Error()))
	}
	return c.JSON(http.StatusOK, domain.OK(turns))
}

// StopConversation terminates a conversation flow.
// POST /api/chat/v2/stop-conversation
func (h *Handler) StopConversation(c echo.Context) error {
	var req domain.StopConversationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.Fail("invalid request body"))
	}
	if req.ChatID == "" || req.ConversationID == "" {
		return c.JSON(http.StatusBadRequest, domain.Fail("chatId and conversationId are required"))
	}

	changed, err := h.service.StopConversation(c.Request().Context(), req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, domain.Fail(err.Error()))
	}
	return c.JSON(http.StatusOK, domain.OK(changed))
}
