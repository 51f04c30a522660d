package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/metrics"
)

func newTestTransport() (*Transport, *MemoryBus) {
	bus := NewMemoryBus()
	return NewTransport(bus, metrics.New()), bus
}

func messageChange(t *testing.T, typ domain.ChangeType, receiver string) domain.RowChange {
	t.Helper()
	rec, err := json.Marshal(map[string]string{"id": "m1", "receiver_id": receiver})
	require.NoError(t, err)
	return domain.RowChange{Table: "messages", Type: typ, Record: rec}
}

func TestSubscribeToChangesFiltersRows(t *testing.T) {
	tr, bus := newTestTransport()
	ctx := context.Background()

	var mu sync.Mutex
	var got []domain.RowChange
	var statuses []Status
	unsubscribe, err := tr.SubscribeToChanges(MessagesChannel("u1"), "messages", "receiver_id=eq.u1",
		func(c domain.RowChange) {
			mu.Lock()
			got = append(got, c)
			mu.Unlock()
		},
		func(s Status, err error) { statuses = append(statuses, s) })
	require.NoError(t, err)

	require.NoError(t, tr.PublishChange(ctx, messageChange(t, domain.ChangeInsert, "u1")))
	require.NoError(t, tr.PublishChange(ctx, messageChange(t, domain.ChangeInsert, "u2")))
	require.NoError(t, tr.PublishChange(ctx, messageChange(t, domain.ChangeUpdate, "u1")))
	require.NoError(t, tr.PublishChange(ctx, messageChange(t, domain.ChangeDelete, "u1")))

	mu.Lock()
	require.Len(t, got, 2)
	assert.Equal(t, domain.ChangeInsert, got[0].Type)
	assert.Equal(t, domain.ChangeUpdate, got[1].Type)
	assert.NotZero(t, got[0].CommitTs)
	mu.Unlock()

	unsubscribe()
	assert.Equal(t, []Status{StatusSubscribed, StatusClosed}, statuses)
	assert.Equal(t, 0, bus.SubscriberCount(changeTopic("messages")))

	require.NoError(t, tr.PublishChange(ctx, messageChange(t, domain.ChangeInsert, "u1")))
	assert.Len(t, got, 2)
}

func TestSubscribeToChangesRejectsBadFilter(t *testing.T) {
	tr, _ := newTestTransport()
	_, err := tr.SubscribeToChanges("messages:u1", "messages", "receiver_id>u1", func(domain.RowChange) {}, nil)
	assert.Error(t, err)
}

func TestBroadcastDelivery(t *testing.T) {
	tr, _ := newTestTransport()
	ctx := context.Background()

	var typing []domain.TypingEvent
	var all int
	ch := tr.Channel(TypingChannel("j1")).
		OnBroadcast("typing", func(p json.RawMessage) {
			var ev domain.TypingEvent
			require.NoError(t, json.Unmarshal(p, &ev))
			typing = append(typing, ev)
		}).
		OnBroadcast("*", func(json.RawMessage) { all++ })
	require.NoError(t, ch.Subscribe(nil))
	defer ch.Unsubscribe()

	require.NoError(t, tr.Broadcast(ctx, TypingChannel("j1"), "typing", domain.TypingEvent{UserID: "u1", JobID: "j1", IsTyping: true}))
	require.NoError(t, tr.Broadcast(ctx, TypingChannel("j1"), "other", map[string]int{"n": 1}))
	require.NoError(t, tr.Broadcast(ctx, TypingChannel("j2"), "typing", domain.TypingEvent{UserID: "u1", JobID: "j2", IsTyping: true}))

	require.Len(t, typing, 1)
	assert.True(t, typing[0].IsTyping)
	assert.Equal(t, 2, all)
}

func TestSubscribeTwiceFails(t *testing.T) {
	tr, _ := newTestTransport()
	ch := tr.Channel("x")
	require.NoError(t, ch.Subscribe(nil))
	assert.ErrorIs(t, ch.Subscribe(nil), ErrAlreadySubscribed)
	assert.True(t, ch.Subscribed())
}

type failingBus struct{ *MemoryBus }

func (failingBus) Subscribe(string, func([]byte)) (Subscription, error) {
	return nil, errors.New("connection refused")
}

func TestSubscribeReportsChannelError(t *testing.T) {
	tr := NewTransport(failingBus{NewMemoryBus()}, nil)
	var got []Status
	err := tr.Channel("x").Subscribe(func(s Status, err error) {
		got = append(got, s)
	})
	assert.Error(t, err)
	assert.Equal(t, []Status{StatusChannelError}, got)
}

func TestClosedMemoryBus(t *testing.T) {
	bus := NewMemoryBus()
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(context.Background(), "x", nil), ErrBusClosed)
	_, err := bus.Subscribe("x", func([]byte) {})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestNATSSubject(t *testing.T) {
	assert.Equal(t, "tradiehelper.rt.messages:u1", natsSubject("messages:u1"))
	assert.Equal(t, "tradiehelper.rt.a_b", natsSubject("a.b"))
}
