// Package inbox keeps one user's conversation list live: an initial fetch,
// a refetch on every incoming message change, plus presence and typing state
// for the counterparts.
package inbox

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/presence"
	"github.com/xiaot623/tradiehelper/internal/realtime"
	"github.com/xiaot623/tradiehelper/internal/typing"
)

// Fetcher loads the conversation list.
type Fetcher interface {
	FetchConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
}

// Inbox is safe for concurrent use.
type Inbox struct {
	fetcher Fetcher
	tr      *realtime.Transport
	userID  string
	tracker *presence.Tracker
	board   *typing.Board

	mu            sync.RWMutex
	ctx           context.Context
	conversations []domain.Conversation
	connected     bool
	unsubscribe   func()
	typingChans   map[string]*realtime.Channel
	closed        bool
	onUpdate      []func([]domain.Conversation)
}

// New creates an inbox for userID. typingTimeout <= 0 uses the default.
func New(fetcher Fetcher, tr *realtime.Transport, userID string, typingTimeout time.Duration) *Inbox {
	return &Inbox{
		fetcher:     fetcher,
		tr:          tr,
		userID:      userID,
		tracker:     presence.NewTracker(tr, realtime.ChannelUserPresence, userID),
		board:       typing.NewBoard(typingTimeout),
		typingChans: make(map[string]*realtime.Channel),
	}
}

// OnUpdate registers a callback run after every successful refetch.
func (i *Inbox) OnUpdate(fn func([]domain.Conversation)) {
	i.mu.Lock()
	i.onUpdate = append(i.onUpdate, fn)
	i.mu.Unlock()
}

// Start fetches the initial list, subscribes to incoming message changes and
// joins presence as online. A failed subscription leaves the inbox
// disconnected; it is not retried.
func (i *Inbox) Start(ctx context.Context) error {
	i.mu.Lock()
	i.ctx = ctx
	i.mu.Unlock()

	i.Refresh(ctx)

	unsubscribe, err := i.tr.SubscribeToChanges(
		realtime.MessagesChannel(i.userID),
		"messages",
		"receiver_id=eq."+i.userID,
		func(domain.RowChange) { i.Refresh(i.context()) },
		i.setStatus,
	)
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.unsubscribe = unsubscribe
	i.mu.Unlock()

	if err := i.tracker.Start(nil); err != nil {
		log.Printf("WARN: inbox %s: presence subscribe failed: %v", i.userID, err)
	} else if err := i.tracker.Track(ctx, domain.PresenceOnline); err != nil {
		log.Printf("WARN: inbox %s: presence track failed: %v", i.userID, err)
	}
	return nil
}

// Refresh refetches the conversation list and watches typing on every listed
// job, including ones that appeared since the last fetch. On failure the
// previous list is kept.
func (i *Inbox) Refresh(ctx context.Context) {
	convs, err := i.fetcher.FetchConversations(ctx, i.userID)
	if err != nil {
		log.Printf("WARN: inbox %s: failed to fetch conversations: %v", i.userID, err)
		return
	}

	i.mu.Lock()
	i.conversations = convs
	fns := append([]func([]domain.Conversation){}, i.onUpdate...)
	i.mu.Unlock()

	for _, c := range convs {
		if err := i.WatchTyping(c.JobID); err != nil {
			log.Printf("WARN: inbox %s: typing subscribe for %s failed: %v", i.userID, c.JobID, err)
		}
	}
	for _, fn := range fns {
		fn(convs)
	}
}

// WatchTyping subscribes to the typing channel of jobID once. It is a no-op
// after Close.
func (i *Inbox) WatchTyping(jobID string) error {
	i.mu.Lock()
	if _, ok := i.typingChans[jobID]; ok || i.closed {
		i.mu.Unlock()
		return nil
	}
	ch := i.tr.Channel(realtime.TypingChannel(jobID))
	i.typingChans[jobID] = ch
	i.mu.Unlock()

	i.board.Listen(ch)
	if err := ch.Subscribe(nil); err != nil {
		i.mu.Lock()
		delete(i.typingChans, jobID)
		i.mu.Unlock()
		return err
	}
	return nil
}

// Conversations returns the last fetched list.
func (i *Inbox) Conversations() []domain.Conversation {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]domain.Conversation(nil), i.conversations...)
}

// IsConnected reports whether the message subscription is live.
func (i *Inbox) IsConnected() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.connected
}

// IsTyping reports whether userID is typing about jobID.
func (i *Inbox) IsTyping(jobID, userID string) bool {
	return i.board.IsTyping(domain.TypingKey(jobID, userID))
}

// TypingUsers returns the "{job_id}-{user_id}" keys currently typing.
func (i *Inbox) TypingUsers() []string {
	return i.board.Snapshot()
}

// IsOnline reports whether userID was online at the last presence sync.
func (i *Inbox) IsOnline(userID string) bool {
	return i.tracker.IsOnline(userID)
}

// HandleLifecycle forwards page lifecycle signals to the presence tracker.
func (i *Inbox) HandleLifecycle(ctx context.Context, ev presence.Lifecycle) {
	i.tracker.HandleLifecycle(ctx, ev)
}

// Close publishes offline and releases every subscription.
func (i *Inbox) Close(ctx context.Context) {
	if err := i.tracker.Track(ctx, domain.PresenceOffline); err != nil {
		log.Printf("WARN: inbox %s: presence offline failed: %v", i.userID, err)
	}
	i.tracker.Close()

	i.mu.Lock()
	unsubscribe := i.unsubscribe
	i.unsubscribe = nil
	i.closed = true
	chans := i.typingChans
	i.typingChans = make(map[string]*realtime.Channel)
	i.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, ch := range chans {
		ch.Unsubscribe()
	}
	i.board.Close()
}

func (i *Inbox) setStatus(s realtime.Status, err error) {
	if err != nil {
		log.Printf("WARN: inbox %s: message channel %s: %v", i.userID, s, err)
	}
	i.mu.Lock()
	i.connected = s == realtime.StatusSubscribed
	i.mu.Unlock()
}

func (i *Inbox) context() context.Context {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.ctx == nil {
		return context.Background()
	}
	return i.ctx
}
