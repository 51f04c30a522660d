package presence

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/realtime"
)

type fakeMirror struct {
	mu      sync.Mutex
	updates map[string]domain.PresenceStatus
}

func (f *fakeMirror) UpdatePresence(_ context.Context, userID string, status domain.PresenceStatus, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = make(map[string]domain.PresenceStatus)
	}
	f.updates[userID] = status
	return nil
}

func setup(t *testing.T) (*realtime.Transport, *Registry, *fakeMirror) {
	t.Helper()
	tr := realtime.NewTransport(realtime.NewMemoryBus(), nil)
	mirror := &fakeMirror{}
	reg := NewRegistry(tr, realtime.ChannelUserPresence, mirror, time.Minute, nil)
	require.NoError(t, reg.Start())
	t.Cleanup(reg.Close)
	return tr, reg, mirror
}

func TestStatusFor(t *testing.T) {
	cases := map[Lifecycle]domain.PresenceStatus{
		LifecycleVisibilityHidden: domain.PresenceAway,
		LifecycleUnload:           domain.PresenceOffline,
		LifecycleFocus:            domain.PresenceOnline,
	}
	for ev, want := range cases {
		got, err := StatusFor(ev)
		require.NoError(t, err)
		assert.Equal(t, want, got, ev)
	}
	_, err := StatusFor("blur")
	assert.Error(t, err)
}

func TestTrackerObservesOtherUsers(t *testing.T) {
	tr, reg, mirror := setup(t)
	ctx := context.Background()

	alice := NewTracker(tr, realtime.ChannelUserPresence, "alice")
	bob := NewTracker(tr, realtime.ChannelUserPresence, "bob")
	var joins []string
	alice.OnJoin(func(r domain.PresenceRecord) { joins = append(joins, r.UserID) })
	require.NoError(t, alice.Start(nil))
	require.NoError(t, bob.Start(nil))
	defer alice.Close()
	defer bob.Close()

	require.NoError(t, alice.Track(ctx, domain.PresenceOnline))
	require.NoError(t, bob.Track(ctx, domain.PresenceOnline))

	assert.Equal(t, []string{"alice", "bob"}, alice.OnlineUsers())
	assert.True(t, bob.IsOnline("alice"))
	assert.Equal(t, []string{"alice", "bob"}, joins)
	assert.Len(t, reg.State(), 2)

	bob.HandleLifecycle(ctx, LifecycleVisibilityHidden)
	assert.Equal(t, []string{"alice"}, alice.OnlineUsers())
	assert.Equal(t, domain.PresenceAway, alice.StatusOf("bob"))
	assert.Equal(t, domain.PresenceAway, mirror.updates["bob"])

	bob.HandleLifecycle(ctx, LifecycleUnload)
	assert.Equal(t, domain.PresenceOffline, alice.StatusOf("bob"))
	assert.Len(t, reg.State(), 1)
	assert.Equal(t, domain.PresenceOffline, mirror.updates["bob"])

	bob.HandleLifecycle(ctx, LifecycleFocus)
	assert.True(t, alice.IsOnline("bob"))
}

func TestJoinDoesNotMergeIntoSet(t *testing.T) {
	tr := realtime.NewTransport(realtime.NewMemoryBus(), nil)
	ctx := context.Background()
	tracker := NewTracker(tr, "room", "me")
	require.NoError(t, tracker.Start(nil))
	defer tracker.Close()

	ch := tr.Channel("room")
	rec := domain.PresenceRecord{UserID: "x", Status: domain.PresenceOnline, LastSeen: time.Now()}
	require.NoError(t, ch.SendPresence(ctx, realtime.PresenceJoin, realtime.PresencePayload{Record: &rec}))
	assert.Empty(t, tracker.OnlineUsers())

	// A sync replaces the set wholesale.
	require.NoError(t, ch.SendPresence(ctx, realtime.PresenceSync, realtime.PresencePayload{State: []domain.PresenceRecord{rec}}))
	assert.Equal(t, []string{"x"}, tracker.OnlineUsers())

	other := domain.PresenceRecord{UserID: "y", Status: domain.PresenceOnline}
	require.NoError(t, ch.SendPresence(ctx, realtime.PresenceSync, realtime.PresencePayload{State: []domain.PresenceRecord{other}}))
	assert.Equal(t, []string{"y"}, tracker.OnlineUsers())

	require.NoError(t, ch.SendPresence(ctx, realtime.PresenceSync, realtime.PresencePayload{}))
	assert.Empty(t, tracker.OnlineUsers())
}

func TestRegistrySweepExpiresStaleEntries(t *testing.T) {
	tr, reg, mirror := setup(t)
	ctx := context.Background()

	var online []string
	ch := tr.Channel(realtime.ChannelOnlineUsers).OnBroadcast("sync", func(p json.RawMessage) {
		var body map[string][]string
		require.NoError(t, json.Unmarshal(p, &body))
		online = body["user_ids"]
	})
	require.NoError(t, ch.Subscribe(nil))
	defer ch.Unsubscribe()

	now := time.Now()
	reg.now = func() time.Time { return now }
	reg.Apply(ctx, realtime.PresenceTrack, domain.PresenceRecord{UserID: "old", Status: domain.PresenceOnline, LastSeen: now.Add(-2 * time.Minute)})
	reg.Apply(ctx, realtime.PresenceTrack, domain.PresenceRecord{UserID: "fresh", Status: domain.PresenceOnline, LastSeen: now})
	assert.Equal(t, []string{"fresh", "old"}, online)

	assert.Equal(t, 1, reg.Sweep(ctx))
	require.Len(t, reg.State(), 1)
	assert.Equal(t, "fresh", reg.State()[0].UserID)
	assert.Equal(t, []string{"fresh"}, online)
	assert.Equal(t, domain.PresenceOffline, mirror.updates["old"])

	assert.Equal(t, 0, reg.Sweep(ctx))
}

func TestRegistryHeartbeatRefreshesLastSeen(t *testing.T) {
	_, reg, _ := setup(t)
	ctx := context.Background()

	t0 := time.Now().Add(-time.Hour)
	reg.Apply(ctx, realtime.PresenceTrack, domain.PresenceRecord{UserID: "u", Status: domain.PresenceOnline, LastSeen: t0})
	t1 := time.Now()
	reg.Apply(ctx, realtime.PresenceTrack, domain.PresenceRecord{UserID: "u", Status: domain.PresenceOnline, LastSeen: t1})

	state := reg.State()
	require.Len(t, state, 1)
	assert.True(t, state[0].LastSeen.Equal(t1))
	assert.Equal(t, 0, reg.Sweep(ctx))
}

func TestRegistryTouchKeepsEntryWithoutEmitting(t *testing.T) {
	tr, reg, _ := setup(t)
	ctx := context.Background()

	now := time.Now()
	reg.now = func() time.Time { return now }
	reg.Apply(ctx, realtime.PresenceTrack, domain.PresenceRecord{UserID: "u", Status: domain.PresenceOnline, LastSeen: now.Add(-2 * time.Minute)})

	var events []string
	ch := tr.Channel(realtime.ChannelUserPresence).OnPresence("*", func(realtime.PresencePayload) {
		events = append(events, "presence")
	})
	require.NoError(t, ch.Subscribe(nil))
	defer ch.Unsubscribe()

	assert.True(t, reg.Touch("u"))
	assert.False(t, reg.Touch("nobody"))
	assert.Empty(t, events)

	assert.Equal(t, 0, reg.Sweep(ctx))
	require.Len(t, reg.State(), 1)
	assert.True(t, reg.State()[0].LastSeen.Equal(now))
}
