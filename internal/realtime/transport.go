package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/metrics"
)

// Status is the subscription state reported to a channel's status callback.
type Status string

const (
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusClosed       Status = "CLOSED"
)

// Well-known channel names.
const (
	ChannelUserPresence = "user-presence"
	ChannelOnlineUsers  = "online_users"
)

func MessagesChannel(userID string) string      { return "messages:" + userID }
func TypingChannel(jobID string) string         { return "typing-indicators:" + jobID }
func NotificationsChannel(userID string) string { return "notifications:" + userID }

var ErrAlreadySubscribed = errors.New("channel already subscribed")

// Transport creates channels on top of a Bus.
type Transport struct {
	bus     Bus
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewTransport creates a new Transport. m may be nil.
func NewTransport(bus Bus, m *metrics.Metrics) *Transport {
	return &Transport{bus: bus, metrics: m, now: time.Now}
}

// Channel returns a new, unsubscribed channel handle for name. Handles are
// independent; two handles on the same name each receive every envelope.
func (t *Transport) Channel(name string) *Channel {
	return &Channel{
		name:      name,
		transport: t,
		broadcast: make(map[string][]func(json.RawMessage)),
		presence:  make(map[string][]func(PresencePayload)),
	}
}

// SubscribeToChanges invokes onEvent for every insert or update on table whose
// row matches filter ("column=eq.value"). The returned function unsubscribes.
func (t *Transport) SubscribeToChanges(channelName, table, filter string, onEvent func(domain.RowChange), onStatus func(Status, error)) (func(), error) {
	f, err := ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	ch := t.Channel(channelName)
	ch.OnChange(table, f, func(c domain.RowChange) {
		if c.Type == domain.ChangeDelete {
			return
		}
		onEvent(c)
	})
	if err := ch.Subscribe(onStatus); err != nil {
		return nil, err
	}
	return func() { ch.Unsubscribe() }, nil
}

// Broadcast sends a fire-and-forget event on channelName.
func (t *Transport) Broadcast(ctx context.Context, channelName, event string, payload interface{}) error {
	return t.Channel(channelName).Broadcast(ctx, event, payload)
}

// PublishChange emits a row change to every channel listening on its table.
func (t *Transport) PublishChange(ctx context.Context, change domain.RowChange) error {
	if change.CommitTs == 0 {
		change.CommitTs = t.now().UnixMilli()
	}
	return t.publish(ctx, changeTopic(change.Table), Envelope{
		Kind:    KindChange,
		Channel: changeTopic(change.Table),
		Change:  &change,
	})
}

func (t *Transport) publish(ctx context.Context, topic string, env Envelope) error {
	if env.Ts == 0 {
		env.Ts = t.now().UnixMilli()
	}
	if err := env.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := t.bus.Publish(ctx, topic, data); err != nil {
		return err
	}
	t.metrics.IncEnvelope(string(env.Kind))
	return nil
}

type changeBinding struct {
	table  string
	filter Filter
	fn     func(domain.RowChange)
}

// Channel is a named realtime channel. Register handlers, then Subscribe.
type Channel struct {
	name      string
	transport *Transport

	mu         sync.RWMutex
	changes    []changeBinding
	broadcast  map[string][]func(json.RawMessage)
	presence   map[string][]func(PresencePayload)
	raw        []func(Envelope)
	subs       []Subscription
	onStatus   func(Status, error)
	subscribed bool
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// OnChange registers a row change handler for table.
func (c *Channel) OnChange(table string, filter Filter, fn func(domain.RowChange)) *Channel {
	c.mu.Lock()
	c.changes = append(c.changes, changeBinding{table: table, filter: filter, fn: fn})
	c.mu.Unlock()
	return c
}

// OnBroadcast registers a handler for a broadcast event. "*" matches all events.
func (c *Channel) OnBroadcast(event string, fn func(payload json.RawMessage)) *Channel {
	c.mu.Lock()
	c.broadcast[event] = append(c.broadcast[event], fn)
	c.mu.Unlock()
	return c
}

// OnPresence registers a handler for a presence event. "*" matches all events.
func (c *Channel) OnPresence(event string, fn func(PresencePayload)) *Channel {
	c.mu.Lock()
	c.presence[event] = append(c.presence[event], fn)
	c.mu.Unlock()
	return c
}

// OnEnvelope registers a handler that sees every envelope delivered to the
// channel, after filtering.
func (c *Channel) OnEnvelope(fn func(Envelope)) *Channel {
	c.mu.Lock()
	c.raw = append(c.raw, fn)
	c.mu.Unlock()
	return c
}

// Subscribe attaches the channel to the bus and reports the outcome through
// statusFn. There is no automatic retry; callers subscribe again on error.
func (c *Channel) Subscribe(statusFn func(Status, error)) error {
	c.mu.Lock()
	if c.subscribed {
		c.mu.Unlock()
		return ErrAlreadySubscribed
	}
	c.onStatus = statusFn
	topics := []string{c.name}
	seen := map[string]bool{}
	for _, b := range c.changes {
		if !seen[b.table] {
			seen[b.table] = true
			topics = append(topics, changeTopic(b.table))
		}
	}
	c.mu.Unlock()

	var subs []Subscription
	for _, topic := range topics {
		sub, err := c.transport.bus.Subscribe(topic, c.dispatch)
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			c.report(StatusChannelError, err)
			return fmt.Errorf("failed to subscribe channel %s: %w", c.name, err)
		}
		subs = append(subs, sub)
	}

	c.mu.Lock()
	c.subs = subs
	c.subscribed = true
	c.mu.Unlock()
	c.report(StatusSubscribed, nil)
	return nil
}

// Unsubscribe detaches the channel from the bus.
func (c *Channel) Unsubscribe() {
	c.mu.Lock()
	subs := c.subs
	wasSubscribed := c.subscribed
	c.subs = nil
	c.subscribed = false
	c.mu.Unlock()

	for _, s := range subs {
		if err := s.Unsubscribe(); err != nil {
			log.Printf("WARN: failed to unsubscribe channel %s: %v", c.name, err)
		}
	}
	if wasSubscribed {
		c.report(StatusClosed, nil)
	}
}

// Fail reports a transport error to the status callback.
func (c *Channel) Fail(err error) {
	c.report(StatusChannelError, err)
}

// Subscribed reports whether the channel is attached to the bus.
func (c *Channel) Subscribed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribed
}

// Broadcast publishes an ephemeral event on the channel.
func (c *Channel) Broadcast(ctx context.Context, event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast payload: %w", err)
	}
	return c.transport.publish(ctx, c.name, Envelope{
		Kind:    KindBroadcast,
		Channel: c.name,
		Event:   event,
		Payload: raw,
	})
}

// Track asks the presence registry to record the user's state.
func (c *Channel) Track(ctx context.Context, record domain.PresenceRecord) error {
	return c.SendPresence(ctx, PresenceTrack, PresencePayload{Record: &record})
}

// Untrack asks the presence registry to drop the user.
func (c *Channel) Untrack(ctx context.Context, userID string) error {
	return c.SendPresence(ctx, PresenceUntrack, PresencePayload{Record: &domain.PresenceRecord{
		UserID:   userID,
		Status:   domain.PresenceOffline,
		LastSeen: c.transport.now(),
	}})
}

// SendPresence publishes a presence envelope on the channel.
func (c *Channel) SendPresence(ctx context.Context, event string, payload PresencePayload) error {
	return c.transport.publish(ctx, c.name, Envelope{
		Kind:     KindPresence,
		Channel:  c.name,
		Event:    event,
		Presence: &payload,
	})
}

func (c *Channel) report(s Status, err error) {
	c.mu.RLock()
	fn := c.onStatus
	c.mu.RUnlock()
	if fn != nil {
		fn(s, err)
	}
}

func (c *Channel) dispatch(data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		log.Printf("WARN: channel %s dropped envelope: %v", c.name, err)
		return
	}

	c.mu.RLock()
	var changeFns []func(domain.RowChange)
	var broadcastFns []func(json.RawMessage)
	var presenceFns []func(PresencePayload)
	switch env.Kind {
	case KindChange:
		for _, b := range c.changes {
			if b.table == env.Change.Table && b.filter.Matches(env.Change.Record) {
				changeFns = append(changeFns, b.fn)
			}
		}
		if len(changeFns) == 0 {
			c.mu.RUnlock()
			return
		}
	case KindBroadcast:
		broadcastFns = append(broadcastFns, c.broadcast[env.Event]...)
		broadcastFns = append(broadcastFns, c.broadcast["*"]...)
	case KindPresence:
		presenceFns = append(presenceFns, c.presence[env.Event]...)
		presenceFns = append(presenceFns, c.presence["*"]...)
	}
	raw := append([]func(Envelope){}, c.raw...)
	c.mu.RUnlock()

	for _, fn := range changeFns {
		fn(*env.Change)
	}
	for _, fn := range broadcastFns {
		fn(env.Payload)
	}
	for _, fn := range presenceFns {
		fn(*env.Presence)
	}
	for _, fn := range raw {
		fn(env)
	}
}
