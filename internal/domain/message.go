package domain

import (
	"fmt"
	"strings"
	"time"
)

// Message is a single chat message exchanged about a job.
type Message struct {
	ID         string     `json:"id"`
	JobID      string     `json:"job_id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

// Counterpart returns the participant that is not userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// ConversationKey identifies a conversation from the viewer's side.
type ConversationKey struct {
	JobID       string `json:"job_id"`
	OtherUserID string `json:"other_user_id"`
}

// String renders the key as "{job_id}:{other_user_id}".
func (k ConversationKey) String() string {
	return k.JobID + ":" + k.OtherUserID
}

// ParseConversationKey parses the "{job_id}:{other_user_id}" form.
func ParseConversationKey(s string) (ConversationKey, error) {
	jobID, other, ok := strings.Cut(s, ":")
	if !ok || jobID == "" || other == "" {
		return ConversationKey{}, fmt.Errorf("invalid conversation id %q", s)
	}
	return ConversationKey{JobID: jobID, OtherUserID: other}, nil
}

// Conversation is derived from messages; it is never stored.
type Conversation struct {
	JobID       string   `json:"job_id"`
	JobTitle    string   `json:"job_title,omitempty"`
	OtherUserID string   `json:"other_user_id"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
	Status      string   `json:"status"`
}

// Key returns the conversation key.
func (c *Conversation) Key() ConversationKey {
	return ConversationKey{JobID: c.JobID, OtherUserID: c.OtherUserID}
}
