package presence

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/metrics"
	"github.com/xiaot623/tradiehelper/internal/realtime"
)

// Mirror receives status changes for persistence on the profile row.
type Mirror interface {
	UpdatePresence(ctx context.Context, userID string, status domain.PresenceStatus, lastSeen time.Time) error
}

// Registry owns the authoritative state of a presence channel. It applies
// track/untrack requests, emits join/leave diffs each followed by a full
// sync, and expires entries that stop heartbeating.
type Registry struct {
	tr      *realtime.Transport
	ch      *realtime.Channel
	mirror  Mirror
	ttl     time.Duration
	metrics *metrics.Metrics
	now     func() time.Time

	// emitMu serializes apply+publish so syncs go out in state order.
	emitMu sync.Mutex
	mu     sync.RWMutex
	state  map[string]domain.PresenceRecord
}

// NewRegistry creates a registry for channelName. mirror and m may be nil;
// a zero ttl disables expiry.
func NewRegistry(tr *realtime.Transport, channelName string, mirror Mirror, ttl time.Duration, m *metrics.Metrics) *Registry {
	r := &Registry{
		tr:      tr,
		ch:      tr.Channel(channelName),
		mirror:  mirror,
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
		state:   make(map[string]domain.PresenceRecord),
	}
	r.ch.OnPresence(realtime.PresenceTrack, func(p realtime.PresencePayload) {
		r.Apply(context.Background(), realtime.PresenceTrack, *p.Record)
	})
	r.ch.OnPresence(realtime.PresenceUntrack, func(p realtime.PresencePayload) {
		r.Apply(context.Background(), realtime.PresenceUntrack, *p.Record)
	})
	return r
}

// Start subscribes the registry to its channel.
func (r *Registry) Start() error {
	return r.ch.Subscribe(func(s realtime.Status, err error) {
		if err != nil {
			log.Printf("WARN: presence registry %s: %s: %v", r.ch.Name(), s, err)
			return
		}
		log.Printf("presence registry %s: %s", r.ch.Name(), s)
	})
}

// Close unsubscribes the registry.
func (r *Registry) Close() {
	r.ch.Unsubscribe()
}

// Apply handles one track or untrack request. Tracking offline is treated as
// an untrack.
func (r *Registry) Apply(ctx context.Context, event string, rec domain.PresenceRecord) {
	if rec.LastSeen.IsZero() {
		rec.LastSeen = r.now()
	}
	if event == realtime.PresenceTrack && rec.Status == domain.PresenceOffline {
		event = realtime.PresenceUntrack
	}

	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	prev, existed := r.state[rec.UserID]
	var diff string
	switch event {
	case realtime.PresenceTrack:
		r.state[rec.UserID] = rec
		if !existed || prev.Status != rec.Status {
			diff = realtime.PresenceJoin
		}
	case realtime.PresenceUntrack:
		if existed {
			delete(r.state, rec.UserID)
			diff = realtime.PresenceLeave
		}
		rec.Status = domain.PresenceOffline
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	if existed && prev.Status == rec.Status && diff == "" {
		// Heartbeat only.
		return
	}
	r.mirrorStatus(ctx, rec)
	if diff == "" {
		return
	}
	r.emit(ctx, diff, rec, snapshot)
}

// Touch refreshes the heartbeat of a tracked user without emitting anything.
// It reports whether the user was tracked.
func (r *Registry) Touch(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.state[userID]
	if !ok {
		return false
	}
	rec.LastSeen = r.now()
	r.state[userID] = rec
	return true
}

// Sweep expires entries whose last heartbeat is older than the TTL.
func (r *Registry) Sweep(ctx context.Context) int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	var expired []domain.PresenceRecord
	for id, rec := range r.state {
		if rec.LastSeen.Before(cutoff) {
			expired = append(expired, rec)
			delete(r.state, id)
		}
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool { return expired[i].UserID < expired[j].UserID })
	for _, rec := range expired {
		rec.Status = domain.PresenceOffline
		r.mirrorStatus(ctx, rec)
		if err := r.ch.SendPresence(ctx, realtime.PresenceLeave, realtime.PresencePayload{Record: &rec}); err != nil {
			log.Printf("WARN: presence leave for %s failed: %v", rec.UserID, err)
		}
	}
	if len(expired) > 0 {
		r.sync(ctx, snapshot)
	}
	return len(expired)
}

// RunSweeper calls Sweep on every tick until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if n := r.Sweep(sweepCtx); n > 0 {
				log.Printf("presence: expired %d stale entries", n)
			}
			cancel()
		}
	}
}

// State returns the current channel state sorted by user ID.
func (r *Registry) State() []domain.PresenceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() []domain.PresenceRecord {
	out := make([]domain.PresenceRecord, 0, len(r.state))
	for _, rec := range r.state {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (r *Registry) emit(ctx context.Context, event string, rec domain.PresenceRecord, snapshot []domain.PresenceRecord) {
	if err := r.ch.SendPresence(ctx, event, realtime.PresencePayload{Record: &rec}); err != nil {
		log.Printf("WARN: presence %s for %s failed: %v", event, rec.UserID, err)
	}
	r.sync(ctx, snapshot)
}

func (r *Registry) sync(ctx context.Context, snapshot []domain.PresenceRecord) {
	if err := r.ch.SendPresence(ctx, realtime.PresenceSync, realtime.PresencePayload{State: snapshot}); err != nil {
		log.Printf("WARN: presence sync failed: %v", err)
	}

	online := make([]string, 0, len(snapshot))
	for _, rec := range snapshot {
		if rec.Status == domain.PresenceOnline {
			online = append(online, rec.UserID)
		}
	}
	r.metrics.SetOnlineUsers(len(online))
	if err := r.tr.Broadcast(ctx, realtime.ChannelOnlineUsers, "sync", map[string][]string{"user_ids": online}); err != nil {
		log.Printf("WARN: online users broadcast failed: %v", err)
	}
}

func (r *Registry) mirrorStatus(ctx context.Context, rec domain.PresenceRecord) {
	if r.mirror == nil {
		return
	}
	if err := r.mirror.UpdatePresence(ctx, rec.UserID, rec.Status, rec.LastSeen); err != nil {
		log.Printf("WARN: failed to mirror presence for %s: %v", rec.UserID, err)
	}
}
