// Package internalapi provides HTTP handlers for trusted writers that
// produce row changes and broadcasts outside this service.
package internalapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/tradiehelper/internal/service"
)

// Handler handles internal HTTP requests.
type Handler struct {
	service *service.Service
	apiKey  string
}

// NewHandler creates a new internal API handler. An empty apiKey disables
// the key check.
func NewHandler(service *service.Service, apiKey string) *Handler {
	return &Handler{
		service: service,
		apiKey:  apiKey,
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/internal", h.requireAPIKey)

	g.POST("/changes", h.IngestChange)
	g.POST("/broadcast", h.IngestBroadcast)
}

func (h *Handler) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.apiKey == "" {
			return next(c)
		}
		got := c.Request().Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.apiKey)) != 1 {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
		}
		return next(c)
	}
}
