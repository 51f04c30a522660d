package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// OnlineUsers returns the presence registry state.
// GET /v1/presence
func (h *Handler) OnlineUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users": h.service.OnlineUsers(),
	})
}
