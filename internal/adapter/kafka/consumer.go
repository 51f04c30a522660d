package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	k "github.com/segmentio/kafka-go"

	"github.com/xiaot623/tradiehelper/internal/domain"
)

// Handler processes one decoded message event.
type Handler func(ctx context.Context, ev domain.MessageEvent) error

// Consumer reads message events in a consumer group.
type Consumer struct {
	reader *k.Reader
}

// NewConsumer creates a new Consumer.
func NewConsumer(brokers, groupID, topic string) *Consumer {
	return &Consumer{
		reader: k.NewReader(k.ReaderConfig{
			Brokers:        splitBrokers(brokers),
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10 << 20,
			StartOffset:    k.LastOffset,
			CommitInterval: time.Second,
		}),
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }

// Run fetches until ctx is cancelled. Undecodable messages are committed and
// skipped; handler failures leave the offset uncommitted.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			log.Printf("WARN: kafka fetch: %v", err)
			continue
		}

		ev, err := decodeEvent(m.Value)
		if err != nil {
			log.Printf("WARN: kafka decode: %v (key=%s)", err, string(m.Key))
			_ = c.reader.CommitMessages(ctx, m)
			continue
		}

		if err := handle(ctx, ev); err != nil {
			log.Printf("WARN: message event %s: %v", ev.MessageID, err)
			continue
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Printf("WARN: kafka commit: %v", err)
		}
	}
}

func decodeEvent(data []byte) (domain.MessageEvent, error) {
	var ev domain.MessageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, err
	}
	if ev.MessageID == "" || ev.ReceiverID == "" {
		return ev, errors.New("message event missing ids")
	}
	return ev, nil
}
