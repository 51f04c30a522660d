package realtime

import (
	"context"
	"errors"
	"sync"
)

var ErrBusClosed = errors.New("bus closed")

// MemoryBus is an in-process Bus. Publish delivers synchronously on the
// caller's goroutine, outside the bus lock.
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]func([]byte)
	nextID uint64
	closed bool
}

// NewMemoryBus creates a new MemoryBus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{topics: make(map[string]map[uint64]func([]byte))}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	handlers := make([]func([]byte), 0, len(b.topics[topic]))
	for _, h := range b.topics[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		buf := make([]byte, len(data))
		copy(buf, data)
		h(buf)
	}
	return nil
}

func (b *MemoryBus) Subscribe(topic string, handler func([]byte)) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	b.nextID++
	id := b.nextID
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]func([]byte))
	}
	b.topics[topic][id] = handler
	return &memorySubscription{bus: b, topic: topic, id: id}, nil
}

// SubscriberCount returns the number of handlers on a topic.
func (b *MemoryBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.topics = make(map[string]map[uint64]func([]byte))
	return nil
}

type memorySubscription struct {
	bus   *MemoryBus
	topic string
	id    uint64
	once  sync.Once
}

func (s *memorySubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if subs, ok := s.bus.topics[s.topic]; ok {
			delete(subs, s.id)
			if len(subs) == 0 {
				delete(s.bus.topics, s.topic)
			}
		}
	})
	return nil
}
