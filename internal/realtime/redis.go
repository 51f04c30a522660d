package realtime

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

const redisChannelPrefix = "tradiehelper:rt:"

// RedisBus maps topics onto Redis pub/sub channels.
type RedisBus struct {
	rdb *redis.Client
}

// NewRedisBus wraps an existing client.
func NewRedisBus(rdb *redis.Client) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, data []byte) error {
	if err := b.rdb.Publish(ctx, redisChannelPrefix+topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(topic string, handler func([]byte)) (Subscription, error) {
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, redisChannelPrefix+topic)
	// Wait for the subscription confirmation so publishes issued right after
	// Subscribe returns are not missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for msg := range ps.Channel() {
			sub.delivering.Store(true)
			handler([]byte(msg.Payload))
			sub.delivering.Store(false)
		}
		log.Printf("redis subscription to %s ended", topic)
	}()
	return sub, nil
}

func (b *RedisBus) Close() error {
	return nil
}

type redisSubscription struct {
	ps         *redis.PubSub
	done       chan struct{}
	closing    atomic.Bool
	delivering atomic.Bool
}

// Unsubscribe closes the subscription and waits for the delivery goroutine
// to exit. While a handler is running the wait is skipped, so a handler may
// unsubscribe its own subscription.
func (s *redisSubscription) Unsubscribe() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	err := s.ps.Close()
	if !s.delivering.Load() {
		<-s.done
	}
	return err
}
