package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PingHandler serves /ping for liveness.
type PingHandler struct{}

// NewPingHandler creates a ping handler.
func NewPingHandler() *PingHandler {
	return &PingHandler{}
}

// Register mounts GET /ping and HEAD /health.
func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
}

// Ping returns {"data":{"status":"ok"}}.
func (h *PingHandler) Ping(c echo.Context) error {
	return respond(c, http.StatusOK, map[string]string{"status": "ok"})
}

// PingHead returns 200 without a body.
func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
