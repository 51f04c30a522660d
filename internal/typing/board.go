// Package typing carries per-conversation typing state over broadcast
// channels. State is never persisted.
package typing

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/realtime"
)

const (
	// DefaultTimeout is how long a typing flag survives without a refresh.
	DefaultTimeout = 3 * time.Second

	// EventTyping is the broadcast event name on typing channels.
	EventTyping = "typing"
)

type entry struct {
	deadline time.Time
	timer    *time.Timer
	gen      uint64
}

// Board is the receiving side: it stores "{job_id}-{user_id}" flags that
// clear themselves after the timeout.
type Board struct {
	timeout time.Duration
	now     func() time.Time

	mu       sync.Mutex
	entries  map[string]*entry
	gen      uint64
	onChange []func(key string, typing bool)
}

// NewBoard creates a board. A non-positive timeout uses DefaultTimeout.
func NewBoard(timeout time.Duration) *Board {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Board{
		timeout: timeout,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// OnChange registers a callback fired when a key flips.
func (b *Board) OnChange(fn func(key string, typing bool)) {
	b.mu.Lock()
	b.onChange = append(b.onChange, fn)
	b.mu.Unlock()
}

// Listen applies typing broadcasts received on ch. Call before ch.Subscribe.
func (b *Board) Listen(ch *realtime.Channel) {
	ch.OnBroadcast(EventTyping, func(payload json.RawMessage) {
		var ev domain.TypingEvent
		if err := json.Unmarshal(payload, &ev); err != nil || ev.UserID == "" || ev.JobID == "" {
			log.Printf("WARN: dropping malformed typing event on %s", ch.Name())
			return
		}
		b.Apply(ev)
	})
}

// Apply records a typing event. A true event (re)arms the expiry timer; a
// false event clears the key immediately and cancels the timer.
func (b *Board) Apply(ev domain.TypingEvent) {
	key := ev.TypingKey()

	b.mu.Lock()
	prev, existed := b.entries[key]
	wasTyping := existed && b.now().Before(prev.deadline)
	if existed {
		prev.timer.Stop()
		delete(b.entries, key)
	}
	if ev.IsTyping {
		b.gen++
		gen := b.gen
		b.entries[key] = &entry{
			deadline: b.now().Add(b.timeout),
			gen:      gen,
			timer:    time.AfterFunc(b.timeout, func() { b.expire(key, gen) }),
		}
	}
	fns := b.callbacksLocked()
	b.mu.Unlock()

	if wasTyping != ev.IsTyping {
		for _, fn := range fns {
			fn(key, ev.IsTyping)
		}
	}
}

// IsTyping reports whether key is set and its deadline has not passed, even
// if the expiry timer has not fired yet.
func (b *Board) IsTyping(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	return ok && b.now().Before(e.deadline)
}

// Snapshot returns the keys currently typing, sorted.
func (b *Board) Snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	keys := make([]string, 0, len(b.entries))
	for k, e := range b.entries {
		if now.Before(e.deadline) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Close cancels all pending timers.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, e := range b.entries {
		e.timer.Stop()
		delete(b.entries, k)
	}
}

func (b *Board) expire(key string, gen uint64) {
	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok || e.gen != gen {
		b.mu.Unlock()
		return
	}
	delete(b.entries, key)
	fns := b.callbacksLocked()
	b.mu.Unlock()

	for _, fn := range fns {
		fn(key, false)
	}
}

func (b *Board) callbacksLocked() []func(string, bool) {
	return append([]func(string, bool){}, b.onChange...)
}
