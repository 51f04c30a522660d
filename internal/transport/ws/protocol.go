package ws

import (
	"encoding/json"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/realtime"
)

// Frame types from client to server
const (
	TypeHello       = "hello"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeBroadcast   = "broadcast"
	TypePresence    = "presence"
)

// Frame types from server to client
const (
	TypeHelloAck = "hello_ack"
	TypeStatus   = "status"
	TypeChange   = "change"
	TypeError    = "error"
)

// BaseMessage contains common fields for all frames.
type BaseMessage struct {
	Type    string `json:"type"`
	Ts      int64  `json:"ts"`
	Channel string `json:"channel,omitempty"`
}

// HelloMessage authenticates the connection with a bearer token.
type HelloMessage struct {
	BaseMessage
	Token string `json:"token"`
}

// HelloAckMessage confirms the authenticated user.
type HelloAckMessage struct {
	BaseMessage
	UserID       string `json:"user_id"`
	ConnectionID string `json:"connection_id"`
}

// SubscribeMessage joins a channel. Table and Filter are set to receive row
// changes; Filter has the "column=eq.value" form.
type SubscribeMessage struct {
	BaseMessage
	Table  string `json:"table,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// BroadcastMessage carries an ephemeral event in either direction.
type BroadcastMessage struct {
	BaseMessage
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PresenceMessage is a status update from the client, or a presence event
// relayed to it.
type PresenceMessage struct {
	BaseMessage
	Status   string                    `json:"status,omitempty"`
	Event    string                    `json:"event,omitempty"`
	Presence *realtime.PresencePayload `json:"presence,omitempty"`
}

// StatusMessage reports a channel subscription state.
type StatusMessage struct {
	BaseMessage
	Status realtime.Status `json:"status"`
	Error  string          `json:"error,omitempty"`
}

// ChangeMessage relays a row change.
type ChangeMessage struct {
	BaseMessage
	Change domain.RowChange `json:"change"`
}

// ErrorMessage is sent when a frame cannot be handled.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeUnauthorized   = "unauthorized"
	ErrorCodeForbidden      = "forbidden"
	ErrorCodeHelloRequired  = "hello_required"
	ErrorCodeInternalError  = "internal_error"
)
