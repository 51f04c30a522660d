// Package presence publishes the local user's online status and tracks
// everybody else's through a presence channel.
package presence

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/realtime"
)

// Lifecycle is a client page lifecycle signal.
type Lifecycle string

const (
	LifecycleVisibilityHidden Lifecycle = "visibility_hidden"
	LifecycleUnload           Lifecycle = "unload"
	LifecycleFocus            Lifecycle = "focus"
)

// StatusFor maps a lifecycle signal to the status it publishes.
func StatusFor(ev Lifecycle) (domain.PresenceStatus, error) {
	switch ev {
	case LifecycleVisibilityHidden:
		return domain.PresenceAway, nil
	case LifecycleUnload:
		return domain.PresenceOffline, nil
	case LifecycleFocus:
		return domain.PresenceOnline, nil
	}
	return "", fmt.Errorf("unknown lifecycle event %q", ev)
}

// Tracker is one user's view of a presence channel.
type Tracker struct {
	userID string
	ch     *realtime.Channel
	now    func() time.Time

	mu      sync.RWMutex
	state   map[string]domain.PresenceRecord
	onJoin  []func(domain.PresenceRecord)
	onLeave []func(domain.PresenceRecord)
	onSync  []func([]domain.PresenceRecord)
}

// NewTracker creates a tracker for userID on channelName.
func NewTracker(tr *realtime.Transport, channelName, userID string) *Tracker {
	t := &Tracker{
		userID: userID,
		ch:     tr.Channel(channelName),
		now:    time.Now,
		state:  make(map[string]domain.PresenceRecord),
	}
	t.ch.OnPresence(realtime.PresenceSync, t.handleSync)
	t.ch.OnPresence(realtime.PresenceJoin, func(p realtime.PresencePayload) {
		t.mu.RLock()
		fns := append([]func(domain.PresenceRecord){}, t.onJoin...)
		t.mu.RUnlock()
		for _, fn := range fns {
			fn(*p.Record)
		}
	})
	t.ch.OnPresence(realtime.PresenceLeave, func(p realtime.PresencePayload) {
		t.mu.RLock()
		fns := append([]func(domain.PresenceRecord){}, t.onLeave...)
		t.mu.RUnlock()
		for _, fn := range fns {
			fn(*p.Record)
		}
	})
	return t
}

// OnJoin registers a callback for join events. Joins do not modify the
// observed set; only sync does.
func (t *Tracker) OnJoin(fn func(domain.PresenceRecord)) {
	t.mu.Lock()
	t.onJoin = append(t.onJoin, fn)
	t.mu.Unlock()
}

// OnLeave registers a callback for leave events.
func (t *Tracker) OnLeave(fn func(domain.PresenceRecord)) {
	t.mu.Lock()
	t.onLeave = append(t.onLeave, fn)
	t.mu.Unlock()
}

// OnSync registers a callback invoked after the observed set is replaced.
func (t *Tracker) OnSync(fn func([]domain.PresenceRecord)) {
	t.mu.Lock()
	t.onSync = append(t.onSync, fn)
	t.mu.Unlock()
}

// Start subscribes to the channel.
func (t *Tracker) Start(statusFn func(realtime.Status, error)) error {
	return t.ch.Subscribe(statusFn)
}

// Close leaves the channel without publishing anything.
func (t *Tracker) Close() {
	t.ch.Unsubscribe()
}

// Track publishes the local user's status.
func (t *Tracker) Track(ctx context.Context, status domain.PresenceStatus) error {
	return t.ch.Track(ctx, domain.PresenceRecord{
		UserID:   t.userID,
		Status:   status,
		LastSeen: t.now(),
	})
}

// Untrack removes the local user from the channel state.
func (t *Tracker) Untrack(ctx context.Context) error {
	return t.ch.Untrack(ctx, t.userID)
}

// HandleLifecycle publishes the status implied by a page lifecycle signal.
// Failures are logged; the signal source has nothing useful to do with them.
func (t *Tracker) HandleLifecycle(ctx context.Context, ev Lifecycle) {
	status, err := StatusFor(ev)
	if err != nil {
		log.Printf("WARN: presence %s: %v", t.userID, err)
		return
	}
	if err := t.Track(ctx, status); err != nil {
		log.Printf("WARN: presence %s: failed to publish %s: %v", t.userID, status, err)
	}
}

// OnlineUsers returns the IDs whose last synced status is online, sorted.
func (t *Tracker) OnlineUsers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.state))
	for id, rec := range t.state {
		if rec.Status == domain.PresenceOnline {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// IsOnline reports whether userID was online at the last sync.
func (t *Tracker) IsOnline(userID string) bool {
	return t.StatusOf(userID) == domain.PresenceOnline
}

// StatusOf returns userID's status at the last sync, offline when absent.
func (t *Tracker) StatusOf(userID string) domain.PresenceStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if rec, ok := t.state[userID]; ok {
		return rec.Status
	}
	return domain.PresenceOffline
}

func (t *Tracker) handleSync(p realtime.PresencePayload) {
	next := make(map[string]domain.PresenceRecord, len(p.State))
	for _, rec := range p.State {
		next[rec.UserID] = rec
	}

	t.mu.Lock()
	t.state = next
	fns := append([]func([]domain.PresenceRecord){}, t.onSync...)
	t.mu.Unlock()

	for _, fn := range fns {
		fn(p.State)
	}
}
