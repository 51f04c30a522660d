// Package realtime implements named channels over a pluggable pub/sub bus:
// row change subscriptions, ephemeral broadcasts and presence.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xiaot623/tradiehelper/internal/domain"
)

// Kind tags an envelope payload.
type Kind string

const (
	KindChange    Kind = "change"
	KindBroadcast Kind = "broadcast"
	KindPresence  Kind = "presence"
)

// Presence events. Track and untrack are requests from clients; join, leave
// and sync are emitted by the registry that owns the channel state.
const (
	PresenceTrack   = "track"
	PresenceUntrack = "untrack"
	PresenceJoin    = "join"
	PresenceLeave   = "leave"
	PresenceSync    = "sync"
)

// Envelope is the unit carried on the bus.
type Envelope struct {
	Kind     Kind              `json:"kind"`
	Channel  string            `json:"channel"`
	Event    string            `json:"event,omitempty"`
	Payload  json.RawMessage   `json:"payload,omitempty"`
	Change   *domain.RowChange `json:"change,omitempty"`
	Presence *PresencePayload  `json:"presence,omitempty"`
	Ts       int64             `json:"ts"`
}

// PresencePayload carries one record for track/untrack/join/leave and the
// full channel state for sync.
type PresencePayload struct {
	Record *domain.PresenceRecord  `json:"record,omitempty"`
	State  []domain.PresenceRecord `json:"state,omitempty"`
}

var ErrInvalidEnvelope = errors.New("invalid envelope")

// DecodeEnvelope parses and validates an envelope read off the bus.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Validate checks that the fields required by the envelope kind are present.
func (e Envelope) Validate() error {
	switch e.Kind {
	case KindChange:
		if e.Change == nil || e.Change.Table == "" {
			return fmt.Errorf("%w: change without table", ErrInvalidEnvelope)
		}
		switch e.Change.Type {
		case domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete:
		default:
			return fmt.Errorf("%w: unknown change type %q", ErrInvalidEnvelope, e.Change.Type)
		}
	case KindBroadcast:
		if e.Event == "" {
			return fmt.Errorf("%w: broadcast without event", ErrInvalidEnvelope)
		}
	case KindPresence:
		switch e.Event {
		case PresenceTrack, PresenceUntrack, PresenceJoin, PresenceLeave:
			if e.Presence == nil || e.Presence.Record == nil || e.Presence.Record.UserID == "" {
				return fmt.Errorf("%w: presence %s without record", ErrInvalidEnvelope, e.Event)
			}
		case PresenceSync:
			if e.Presence == nil {
				return fmt.Errorf("%w: presence sync without state", ErrInvalidEnvelope)
			}
		default:
			return fmt.Errorf("%w: unknown presence event %q", ErrInvalidEnvelope, e.Event)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEnvelope, e.Kind)
	}
	return nil
}
