package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisBus(t *testing.T) *RedisBus {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisBus(rdb)
}

func TestRedisBusDelivers(t *testing.T) {
	bus := newTestRedisBus(t)

	got := make(chan string, 1)
	sub, err := bus.Subscribe("messages:u1", func(data []byte) { got <- string(data) })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), "messages:u1", []byte("hi")))
	select {
	case msg := <-got:
		assert.Equal(t, "hi", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	assert.NoError(t, sub.Unsubscribe())
	assert.NoError(t, sub.Unsubscribe())
}

func TestRedisUnsubscribeFromHandler(t *testing.T) {
	bus := newTestRedisBus(t)

	handoff := make(chan Subscription, 1)
	returned := make(chan error, 1)
	sub, err := bus.Subscribe("typing-indicators:j1", func([]byte) {
		returned <- (<-handoff).Unsubscribe()
	})
	require.NoError(t, err)
	handoff <- sub

	require.NoError(t, bus.Publish(context.Background(), "typing-indicators:j1", []byte("{}")))
	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("unsubscribe from inside a handler did not return")
	}
}
