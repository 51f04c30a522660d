package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/tradiehelper/internal/auth"
	"github.com/xiaot623/tradiehelper/internal/domain"
)

// SendMessageRequest is the body of a send.
type SendMessageRequest struct {
	Content string `json:"content"`
}

func conversationKey(c echo.Context) domain.ConversationKey {
	return domain.ConversationKey{JobID: c.Param("job_id"), OtherUserID: c.Param("other_id")}
}

// ListConversations returns the caller's conversations, newest first.
// GET /v1/conversations
func (h *Handler) ListConversations(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	convs, err := h.service.FetchConversations(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": convs,
	})
}

// GetThread returns one conversation, oldest message first.
// GET /v1/conversations/:job_id/:other_id/messages
func (h *Handler) GetThread(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx := c.Request().Context()
	key := conversationKey(c)

	messages, err := h.service.FetchThread(ctx, userID, key)
	if err != nil {
		return writeError(c, err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	unread, err := h.service.UnreadCount(ctx, userID, key)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages":     messages,
		"unread_count": unread,
	})
}

// SendMessage stores a message to the other participant.
// POST /v1/conversations/:job_id/:other_id/messages
func (h *Handler) SendMessage(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	msg, err := h.service.SendMessage(c.Request().Context(), userID, conversationKey(c), req.Content)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// MarkAsRead marks every unread message of the conversation addressed to the caller.
// POST /v1/conversations/:job_id/:other_id/read
func (h *Handler) MarkAsRead(c echo.Context) error {
	userID, err := auth.UserID(c)
	if err != nil {
		return unauthorized(c)
	}

	n, err := h.service.MarkAsRead(c.Request().Context(), userID, conversationKey(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":      true,
		"updated": n,
	})
}
