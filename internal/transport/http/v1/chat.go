package v1

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/southdmw/zeus-ops-workorder/internal/credential"
	"github.com/southdmw/zeus-ops-workorder/internal/domain"
	"github.com/southdmw/zeus-ops-workorder/internal/service"
)

// Chat streams one generation turn as server-sent events.
// POST /api/chat/v2/chat
func (h *Handler) Chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.Fail("invalid request body"))
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.JSON(http.StatusBadRequest, domain.Fail("query is required"))
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.JSON(http.StatusInternalServerError, domain.Fail("streaming not supported"))
	}

	token := credential.FromHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	w := c.Response()
	started := false
	emit := func(ev domain.OutputEvent) error {
		if !started {
			w.Header().Set(echo.HeaderContentType, "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if err := writeEvent(w, ev); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.service.Chat(c.Request().Context(), req, token, emit)
	if err == nil {
		return nil
	}
	if started {
		// Can't change status code after streaming began.
		log.Printf("ERROR: chat stream failed: %v", err)
		return nil
	}
	if errors.Is(err, service.ErrEmptyQuery) {
		return c.JSON(http.StatusBadRequest, domain.Fail(err.Error()))
	}
	return c.JSON(http.StatusInternalServerError, domain.Fail(err.Error()))
}

// writeEvent writes ev in SSE framing. Multi-line payloads are split into
// one data line each.
func writeEvent(w *echo.Response, ev domain.OutputEvent) error {
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", ev.Kind)
	for _, line := range strings.Split(ev.Payload(), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := w.Write([]byte(b.String()))
	return err
}

// StopResponse halts the live generation of a conversation.
// POST /api/chat/v2/stop-response
func (h *Handler) StopResponse(c echo.Context) error {
	var req domain.StopRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.Fail("invalid request body"))
	}
	if req.ConversationID == "" {
		return c.JSON(http.StatusBadRequest, domain.Fail("conversationId is required"))
	}

	if !h.service.Stop(c.Request().Context(), req.ConversationID) {
		return c.JSON(http.StatusOK, domain.Result{
			Code: 1,
			Msg:  "no active stream for conversation " + req.ConversationID,
			Data: false,
		})
	}
	return c.JSON(http.StatusOK, domain.OK(true))
}

// AssistantStop is the query-parameter form of StopResponse.
// POST /api/assistant/stop?conversationId=
func (h *Handler) AssistantStop(c echo.Context) error {
	conversationID := c.QueryParam("conversationId")
	if conversationID == "" {
		return c.String(http.StatusBadRequest, "conversationId is required")
	}
	if !h.service.Stop(c.Request().Context(), conversationID) {
		return c.String(http.StatusOK, "no active stream for conversation "+conversationID)
	}
	return c.String(http.StatusOK, "stopped conversation "+conversationID)
}
