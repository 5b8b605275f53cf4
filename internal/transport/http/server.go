// Package http provides the HTTP server of the work-order assistant.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/southdmw/zeus-ops-workorder/internal/config"
	"github.com/southdmw/zeus-ops-workorder/internal/service"
	v1 "github.com/southdmw/zeus-ops-workorder/internal/transport/http/v1"
	"github.com/southdmw/zeus-ops-workorder/internal/transport/ws"
)

// NewServer creates and configures the HTTP server.
// It serves the chat API, the WebSocket endpoint and Prometheus metrics.
func NewServer(cfg *config.Config, svc *service.Service, hub *ws.Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	wsServer := ws.NewServer(cfg, hub, svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	wsServer.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
