// Package v1 provides the client-facing REST handlers.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/tradiehelper/internal/adapter/payments"
	"github.com/xiaot623/tradiehelper/internal/auth"
	"github.com/xiaot623/tradiehelper/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service  *service.Service
	verifier *auth.Verifier
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, verifier *auth.Verifier) *Handler {
	return &Handler{
		service:  service,
		verifier: verifier,
	}
}

// RegisterRoutes registers external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/v1", h.verifier.Middleware())

	// Messaging
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversations/:job_id/:other_id/messages", h.GetThread)
	g.POST("/conversations/:job_id/:other_id/messages", h.SendMessage)
	g.POST("/conversations/:job_id/:other_id/read", h.MarkAsRead)

	// Matching
	g.GET("/jobs/nearby", h.NearbyJobs)
	g.GET("/jobs/:job_id/helpers", h.NearbyHelpers)

	g.GET("/presence", h.OnlineUsers)
	g.POST("/payments/onboarding", h.StartOnboarding)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	if err := h.service.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	var policyErr *service.PolicyError
	switch {
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidConversation),
		errors.Is(err, service.ErrDisputeTooShort),
		errors.Is(err, service.ErrLocationRequired):
		return http.StatusBadRequest
	case errors.As(err, &policyErr):
		return http.StatusForbidden
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, payments.ErrNotConfigured):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c echo.Context, err error) error {
	return c.JSON(errorStatus(err), map[string]string{"error": err.Error()})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}
