package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/tradiehelper/internal/adapter/payments"
	"github.com/xiaot623/tradiehelper/internal/config"
	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/metrics"
	"github.com/xiaot623/tradiehelper/internal/policy"
	"github.com/xiaot623/tradiehelper/internal/presence"
	"github.com/xiaot623/tradiehelper/internal/ratelimit"
	"github.com/xiaot623/tradiehelper/internal/realtime"
	"github.com/xiaot623/tradiehelper/internal/repository"
)

// EventPublisher receives an event for every stored message.
type EventPublisher interface {
	PublishMessage(ctx context.Context, ev domain.MessageEvent) error
}

// Deps carries the collaborators of Service. Only Store, Transport and
// Config are required.
type Deps struct {
	Store        repository.Store
	Transport    *realtime.Transport
	Config       *config.Config
	Presence     *presence.Registry
	PolicyEngine *policy.Engine
	Limiter      ratelimit.Limiter
	Events       EventPublisher
	Payments     *payments.Client
	Metrics      *metrics.Metrics
}

type Service struct {
	store        repository.Store
	transport    *realtime.Transport
	config       *config.Config
	presence     *presence.Registry
	policyEngine *policy.Engine
	limiter      ratelimit.Limiter
	events       EventPublisher
	payments     *payments.Client
	metrics      *metrics.Metrics

	now   func() time.Time
	newID func() string
}

func New(d Deps) *Service {
	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Service{
		store:        d.Store,
		transport:    d.Transport,
		config:       d.Config,
		presence:     d.Presence,
		policyEngine: d.PolicyEngine,
		limiter:      limiter,
		events:       d.Events,
		payments:     d.Payments,
		metrics:      d.Metrics,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
	}
}

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
