package service

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/xiaot623/tradiehelper/internal/domain"
)

// conversationStatusActive is reported when the job row is missing.
const conversationStatusActive = "active"

// FetchConversations groups the user's messages by (job, counterpart). The
// result is recomputed from the messages on every call and ordered by the
// latest message, newest first.
func (s *Service) FetchConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	messages, err := s.store.ListMessagesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	byKey := make(map[domain.ConversationKey]*domain.Conversation)
	var order []domain.ConversationKey
	for i := range messages {
		m := &messages[i]
		key := domain.ConversationKey{JobID: m.JobID, OtherUserID: m.Counterpart(userID)}
		conv, ok := byKey[key]
		if !ok {
			conv = &domain.Conversation{JobID: key.JobID, OtherUserID: key.OtherUserID}
			byKey[key] = conv
			order = append(order, key)
		}
		if conv.LastMessage == nil || !m.CreatedAt.Before(conv.LastMessage.CreatedAt) {
			conv.LastMessage = m
		}
		if m.ReceiverID == userID && m.ReadAt == nil {
			conv.UnreadCount++
		}
	}

	jobs := make(map[string]*domain.Job)
	out := make([]domain.Conversation, 0, len(order))
	for _, key := range order {
		conv := byKey[key]
		job, seen := jobs[key.JobID]
		if !seen {
			job, err = s.store.GetJob(ctx, key.JobID)
			if err != nil {
				log.Printf("WARN: failed to load job %s for conversation: %v", key.JobID, err)
				job = nil
			}
			jobs[key.JobID] = job
		}
		conv.Status = conversationStatusActive
		if job != nil {
			conv.JobTitle = job.Title
			if job.Status != "" {
				conv.Status = string(job.Status)
			}
		}
		out = append(out, *conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out, nil
}

// FetchThread returns the messages of one conversation, oldest first, in the
// order the store returns them.
func (s *Service) FetchThread(ctx context.Context, userID string, key domain.ConversationKey) ([]domain.Message, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	messages, err := s.store.ListThread(ctx, userID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to list thread: %w", err)
	}
	return messages, nil
}

// UnreadCount returns the unread count of one conversation.
func (s *Service) UnreadCount(ctx context.Context, userID string, key domain.ConversationKey) (int, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	n, err := s.store.CountUnread(ctx, userID, key)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}
	return n, nil
}

func validateKey(key domain.ConversationKey) error {
	if key.JobID == "" || key.OtherUserID == "" {
		return ErrInvalidConversation
	}
	return nil
}
