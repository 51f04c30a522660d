package internalapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/service"
)

// BroadcastRequest is a trusted broadcast.
type BroadcastRequest struct {
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// IngestChange publishes a row change on the change feed.
// POST /internal/changes
func (h *Handler) IngestChange(c echo.Context) error {
	var change domain.RowChange
	if err := c.Bind(&change); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.service.IngestChange(c.Request().Context(), change); err != nil {
		if errors.Is(err, service.ErrInvalidChange) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"ok":    true,
		"table": change.Table,
	})
}

// IngestBroadcast sends a broadcast on a channel.
// POST /internal/broadcast
func (h *Handler) IngestBroadcast(c echo.Context) error {
	var req BroadcastRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.service.IngestBroadcast(c.Request().Context(), req.Channel, req.Event, req.Payload); err != nil {
		if errors.Is(err, service.ErrInvalidChange) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok": true,
	})
}
