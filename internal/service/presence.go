package service

import (
	"context"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/realtime"
)

// OnlineUsers returns the presence registry state.
func (s *Service) OnlineUsers() []domain.PresenceRecord {
	if s.presence == nil {
		return []domain.PresenceRecord{}
	}
	return s.presence.State()
}

// SetPresence records userID's status directly on the registry.
func (s *Service) SetPresence(ctx context.Context, userID string, status domain.PresenceStatus) {
	if s.presence == nil {
		return
	}
	s.presence.Apply(ctx, realtime.PresenceTrack, domain.PresenceRecord{
		UserID:   userID,
		Status:   status,
		LastSeen: s.now(),
	})
}

// ClearPresence drops userID from the registry.
func (s *Service) ClearPresence(ctx context.Context, userID string) {
	if s.presence == nil {
		return
	}
	s.presence.Apply(ctx, realtime.PresenceUntrack, domain.PresenceRecord{
		UserID:   userID,
		LastSeen: s.now(),
	})
}

// TouchPresence keeps a connected user's presence entry from expiring.
func (s *Service) TouchPresence(userID string) {
	if s.presence == nil {
		return
	}
	s.presence.Touch(userID)
}
