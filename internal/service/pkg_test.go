package service

import (
	"context"
	"sync"
	"testing"

	"github.com/xiaot623/tradiehelper/internal/config"
	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/metrics"
	"github.com/xiaot623/tradiehelper/internal/presence"
	"github.com/xiaot623/tradiehelper/internal/realtime"
	"github.com/xiaot623/tradiehelper/internal/repository"
	"github.com/xiaot623/tradiehelper/tests/helpers"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.MessageEvent
}

func (p *recordingPublisher) PublishMessage(_ context.Context, ev domain.MessageEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type testEnv struct {
	svc       *Service
	store     *repository.SQLStore
	transport *realtime.Transport
	events    *recordingPublisher
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()
	store := helpers.NewTestSQLiteStore(t)
	tr := realtime.NewTransport(realtime.NewMemoryBus(), nil)
	events := &recordingPublisher{}
	reg := presence.NewRegistry(tr, realtime.ChannelUserPresence, store, 0, nil)

	d := Deps{
		Store:     store,
		Transport: tr,
		Config:    &config.Config{},
		Presence:  reg,
		Events:    events,
		Metrics:   metrics.New(),
	}
	if mutate != nil {
		mutate(&d)
	}
	return &testEnv{svc: New(d), store: store, transport: tr, events: events}
}
