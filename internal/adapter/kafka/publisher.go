// Package kafka streams message events through Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	k "github.com/segmentio/kafka-go"

	"github.com/xiaot623/tradiehelper/internal/domain"
)

// Publisher writes message events keyed by job ID, so events of one job stay
// on one partition.
type Publisher struct {
	w *k.Writer
}

// NewPublisher creates a publisher for a comma-separated broker list.
func NewPublisher(brokers, topic string) *Publisher {
	return &Publisher{w: &k.Writer{
		Addr:         k.TCP(splitBrokers(brokers)...),
		Topic:        topic,
		Balancer:     &k.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: k.RequireOne,
	}}
}

// PublishMessage publishes one message event.
func (p *Publisher) PublishMessage(ctx context.Context, ev domain.MessageEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal message event: %w", err)
	}
	if err := p.w.WriteMessages(ctx, k.Message{
		Key:   []byte(ev.JobID),
		Value: value,
		Time:  ev.SentAt,
	}); err != nil {
		return fmt.Errorf("failed to publish message event: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }

func splitBrokers(brokers string) []string {
	var out []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
