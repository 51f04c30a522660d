// Package repository defines the storage interface and its SQL implementations.
package repository

import (
	"context"
	"time"

	"github.com/xiaot623/tradiehelper/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessage(ctx context.Context, messageID string) (*domain.Message, error)
	ListMessagesForUser(ctx context.Context, userID string) ([]domain.Message, error)
	ListThread(ctx context.Context, userID string, key domain.ConversationKey) ([]domain.Message, error)
	MarkConversationRead(ctx context.Context, readerID string, key domain.ConversationKey, readAt time.Time) ([]string, error)
	CountUnread(ctx context.Context, userID string, key domain.ConversationKey) (int, error)

	// Job operations
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	ListJobs(ctx context.Context, status domain.JobStatus) ([]domain.Job, error)

	// Profile operations
	UpsertProfile(ctx context.Context, profile *domain.Profile) error
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	ListProfiles(ctx context.Context, role domain.Role) ([]domain.Profile, error)
	UpdatePresence(ctx context.Context, userID string, status domain.PresenceStatus, lastSeen time.Time) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
