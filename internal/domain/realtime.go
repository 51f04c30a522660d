package domain

import (
	"encoding/json"
	"time"
)

// PresenceRecord is the ephemeral presence state of one user.
type PresenceRecord struct {
	UserID   string         `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"last_seen"`
}

// TypingEvent is broadcast on keystrokes in a conversation composer.
type TypingEvent struct {
	UserID   string `json:"user_id"`
	JobID    string `json:"job_id"`
	IsTyping bool   `json:"is_typing"`
}

// TypingKey returns the "{job_id}-{user_id}" key used by typing boards.
func (e TypingEvent) TypingKey() string {
	return TypingKey(e.JobID, e.UserID)
}

// TypingKey builds the "{job_id}-{user_id}" key.
func TypingKey(jobID, userID string) string {
	return jobID + "-" + userID
}

// RowChange is a single insert/update/delete from the change feed.
type RowChange struct {
	Table     string          `json:"table"`
	Type      ChangeType      `json:"type"`
	Record    json.RawMessage `json:"record"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
	CommitTs  int64           `json:"commit_ts"`
}

// Notification is the payload handed to the browser Notification API.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// MessageEvent is published to the event stream for every new message.
type MessageEvent struct {
	MessageID  string    `json:"message_id"`
	JobID      string    `json:"job_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}
