package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/tradiehelper/internal/auth"
)

// OnboardingRequest is the body of a payment onboarding start.
type OnboardingRequest struct {
	ReturnURL string `json:"return_url"`
}

// StartOnboarding returns the hosted onboarding URL for the caller.
// POST /v1/payments/onboarding
func (h *Handler) StartOnboarding(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req OnboardingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	link, err := h.service.StartOnboarding(c.Request().Context(), userID, req.ReturnURL)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, link)
}
