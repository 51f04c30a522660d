package inbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/tradiehelper/internal/config"
	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/presence"
	"github.com/xiaot623/tradiehelper/internal/realtime"
	"github.com/xiaot623/tradiehelper/internal/service"
	"github.com/xiaot623/tradiehelper/internal/typing"
	"github.com/xiaot623/tradiehelper/tests/helpers"
)

func newService(t *testing.T, tr *realtime.Transport) *service.Service {
	t.Helper()
	return service.New(service.Deps{
		Store:     helpers.NewTestSQLiteStore(t),
		Transport: tr,
		Config:    &config.Config{},
	})
}

func TestInboxRefetchesOnIncomingMessage(t *testing.T) {
	ctx := context.Background()
	tr := realtime.NewTransport(realtime.NewMemoryBus(), nil)
	svc := newService(t, tr)

	_, err := svc.SendMessage(ctx, "tradie", domain.ConversationKey{JobID: "j1", OtherUserID: "helper"}, "first")
	require.NoError(t, err)

	box := New(svc, tr, "helper", time.Hour)
	var mu sync.Mutex
	updates := 0
	box.OnUpdate(func([]domain.Conversation) {
		mu.Lock()
		updates++
		mu.Unlock()
	})
	require.NoError(t, box.Start(ctx))
	defer box.Close(ctx)

	assert.True(t, box.IsConnected())
	convs := box.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, 1, convs[0].UnreadCount)

	_, err = svc.SendMessage(ctx, "tradie", domain.ConversationKey{JobID: "j1", OtherUserID: "helper"}, "second")
	require.NoError(t, err)
	convs = box.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, 2, convs[0].UnreadCount)
	assert.Equal(t, "second", convs[0].LastMessage.Content)

	// Messages the helper sends are not addressed to them and do not refetch.
	mu.Lock()
	before := updates
	mu.Unlock()
	_, err = svc.SendMessage(ctx, "helper", domain.ConversationKey{JobID: "j1", OtherUserID: "tradie"}, "reply")
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, before, updates)
	mu.Unlock()

	_, err = svc.MarkAsRead(ctx, "helper", domain.ConversationKey{JobID: "j1", OtherUserID: "tradie"})
	require.NoError(t, err)
	convs = box.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, 0, convs[0].UnreadCount)
}

func TestInboxTypingClearsAfterTimeout(t *testing.T) {
	ctx := context.Background()
	tr := realtime.NewTransport(realtime.NewMemoryBus(), nil)
	svc := newService(t, tr)

	_, err := svc.SendMessage(ctx, "tradie", domain.ConversationKey{JobID: "job-1", OtherUserID: "helper"}, "hi")
	require.NoError(t, err)

	box := New(svc, tr, "helper", typing.DefaultTimeout)
	require.NoError(t, box.Start(ctx))
	defer box.Close(ctx)

	sender := typing.NewIndicator(tr, "tradie", time.Second)
	require.NoError(t, sender.Keystroke(ctx, "job-1"))

	assert.True(t, box.IsTyping("job-1", "tradie"))
	assert.Equal(t, []string{"job-1-tradie"}, box.TypingUsers())

	assert.Eventually(t, func() bool {
		return !box.IsTyping("job-1", "tradie")
	}, 3500*time.Millisecond, 50*time.Millisecond)
}

func TestInboxWatchesTypingOnNewConversation(t *testing.T) {
	ctx := context.Background()
	tr := realtime.NewTransport(realtime.NewMemoryBus(), nil)
	svc := newService(t, tr)

	box := New(svc, tr, "helper", time.Hour)
	require.NoError(t, box.Start(ctx))
	defer box.Close(ctx)
	require.Empty(t, box.Conversations())

	_, err := svc.SendMessage(ctx, "tradie", domain.ConversationKey{JobID: "j9", OtherUserID: "helper"}, "new job")
	require.NoError(t, err)
	require.Len(t, box.Conversations(), 1)

	sender := typing.NewIndicator(tr, "tradie", time.Second)
	require.NoError(t, sender.Keystroke(ctx, "j9"))
	assert.True(t, box.IsTyping("j9", "tradie"))
}

func TestInboxPresence(t *testing.T) {
	ctx := context.Background()
	tr := realtime.NewTransport(realtime.NewMemoryBus(), nil)
	svc := newService(t, tr)

	reg := presence.NewRegistry(tr, realtime.ChannelUserPresence, nil, 0, nil)
	require.NoError(t, reg.Start())
	defer reg.Close()

	helperBox := New(svc, tr, "helper", time.Hour)
	require.NoError(t, helperBox.Start(ctx))
	defer helperBox.Close(ctx)

	tradieBox := New(svc, tr, "tradie", time.Hour)
	require.NoError(t, tradieBox.Start(ctx))

	assert.True(t, helperBox.IsOnline("tradie"))
	tradieBox.HandleLifecycle(ctx, presence.LifecycleVisibilityHidden)
	assert.False(t, helperBox.IsOnline("tradie"))

	tradieBox.Close(ctx)
	assert.False(t, helperBox.IsOnline("tradie"))
	assert.Len(t, reg.State(), 1)
}

type failingFetcher struct{ calls int }

func (f *failingFetcher) FetchConversations(context.Context, string) ([]domain.Conversation, error) {
	f.calls++
	return nil, errors.New("db down")
}

type brokenBus struct{ *realtime.MemoryBus }

func (brokenBus) Subscribe(string, func([]byte)) (realtime.Subscription, error) {
	return nil, errors.New("socket closed")
}

func TestInboxDisconnectedOnSubscribeFailure(t *testing.T) {
	tr := realtime.NewTransport(brokenBus{realtime.NewMemoryBus()}, nil)
	fetcher := &failingFetcher{}
	box := New(fetcher, tr, "u", time.Hour)

	err := box.Start(context.Background())
	assert.Error(t, err)
	assert.False(t, box.IsConnected())
	assert.Empty(t, box.Conversations())
	assert.Equal(t, 1, fetcher.calls)
}
