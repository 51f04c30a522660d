package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xiaot623/tradiehelper/internal/domain"
)

// IngestChange forwards a row change produced outside this service, such as
// a database trigger, onto the change feed.
func (s *Service) IngestChange(ctx context.Context, change domain.RowChange) error {
	if change.Table == "" || len(change.Record) == 0 || !json.Valid(change.Record) {
		return fmt.Errorf("%w: table and JSON record are required", ErrInvalidChange)
	}
	switch change.Type {
	case domain.ChangeInsert, domain.ChangeUpdate, domain.ChangeDelete:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidChange, change.Type)
	}
	if err := s.transport.PublishChange(ctx, change); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// IngestBroadcast sends a trusted broadcast on channel.
func (s *Service) IngestBroadcast(ctx context.Context, channel, event string, payload json.RawMessage) error {
	if channel == "" || event == "" {
		return fmt.Errorf("%w: channel and event are required", ErrInvalidChange)
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := s.transport.Broadcast(ctx, channel, event, payload); err != nil {
		return fmt.Errorf("failed to broadcast: %w", err)
	}
	return nil
}
