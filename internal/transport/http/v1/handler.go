// Package v1 provides the chat HTTP handlers.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/southdmw/zeus-ops-workorder/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers the chat routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Streaming chat
	e.POST("/api/chat/v2/chat", h.Chat)
	e.POST("/api/chat/v2/stop-response", h.StopResponse)
	e.POST("/api/assistant/stop", h.AssistantStop)

	// History
	e.GET("/api/chat/v2/list", h.ListChats)
	e.GET("/api/chat/v2/detail/:chat_id", h.ChatDetail)
	e.POST("/api/chat/v2/stop-conversation", h.StopConversation)

	// Patrol orders
	e.GET("/api/bookings", h.ListBookings)
	e.GET("/api/bookings/:id", h.GetBooking)

	// Recheck workflow
	e.POST("/api/dify/run-workflow", h.RunWorkflow)
	e.POST("/api/dify/inner/run-workflow", h.RunWorkflowInner)
	e.GET("/api/dify/get-support-llmAlarmTypes", h.AlarmTypes)
	e.GET("/api/dify/inner/get-support-llmAlarmTypes", h.AlarmTypesInner)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
