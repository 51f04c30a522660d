package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/policy"
)

const messagesTable = "messages"

// minDisputeDescription is the shortest accepted dispute description, in characters.
const minDisputeDescription = 50

// SendMessage stores a message from senderID to the other participant of key.
// Blank text is rejected before anything else is touched. The stored message
// is announced on the change feed and the event stream; it is not appended
// to any local list.
func (s *Service) SendMessage(ctx context.Context, senderID string, key domain.ConversationKey, text string) (*domain.Message, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		s.metrics.IncRejected("empty")
		return nil, ErrEmptyMessage
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	ok, err := s.limiter.Allow(ctx, "send:"+senderID)
	if err != nil {
		log.Printf("WARN: rate limiter unavailable: %v", err)
	} else if !ok {
		s.metrics.IncRejected("rate_limited")
		return nil, ErrRateLimited
	}

	if s.policyEngine != nil {
		input := policy.MessageInput{
			SenderID:   senderID,
			ReceiverID: key.OtherUserID,
			JobID:      key.JobID,
			Content:    content,
		}
		job, err := s.store.GetJob(ctx, key.JobID)
		if err != nil {
			return nil, fmt.Errorf("failed to get job: %w", err)
		}
		if job != nil {
			input.JobStatus = string(job.Status)
		}
		decision, err := s.policyEngine.Evaluate(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate message policy: %w", err)
		}
		if !decision.Allow {
			s.metrics.IncRejected("policy")
			return nil, &PolicyError{Reason: decision.Reason}
		}
	}

	msg := &domain.Message{
		ID:         s.newID(),
		JobID:      key.JobID,
		SenderID:   senderID,
		ReceiverID: key.OtherUserID,
		Content:    content,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	s.metrics.IncSent()

	s.emitChange(ctx, domain.ChangeInsert, msg, nil)

	if s.events != nil {
		ev := domain.MessageEvent{
			MessageID:  msg.ID,
			JobID:      msg.JobID,
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			Text:       msg.Content,
			SentAt:     msg.CreatedAt,
		}
		if err := s.events.PublishMessage(ctx, ev); err != nil {
			log.Printf("WARN: failed to publish message event %s: %v", msg.ID, err)
		}
	}

	return msg, nil
}

// MarkAsRead sets read_at on every unread message of the conversation
// addressed to readerID and returns how many were updated. Other
// conversations are not touched.
func (s *Service) MarkAsRead(ctx context.Context, readerID string, key domain.ConversationKey) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	ids, err := s.store.MarkConversationRead(ctx, readerID, key, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation read: %w", err)
	}
	s.metrics.AddRead(len(ids))

	for _, id := range ids {
		msg, err := s.store.GetMessage(ctx, id)
		if err != nil || msg == nil {
			log.Printf("WARN: failed to reload message %s after read: %v", id, err)
			continue
		}
		old := *msg
		old.ReadAt = nil
		s.emitChange(ctx, domain.ChangeUpdate, msg, &old)
	}
	return len(ids), nil
}

// ValidateDisputeDescription rejects descriptions shorter than 50 characters.
func ValidateDisputeDescription(description string) error {
	if utf8.RuneCountInString(strings.TrimSpace(description)) < minDisputeDescription {
		return ErrDisputeTooShort
	}
	return nil
}

func (s *Service) emitChange(ctx context.Context, typ domain.ChangeType, msg, old *domain.Message) {
	record, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WARN: failed to marshal change for %s: %v", msg.ID, err)
		return
	}
	change := domain.RowChange{Table: messagesTable, Type: typ, Record: record}
	if old != nil {
		change.OldRecord, _ = json.Marshal(old)
	}
	if err := s.transport.PublishChange(ctx, change); err != nil {
		log.Printf("WARN: failed to publish %s change for message %s: %v", typ, msg.ID, err)
	}
}
