package realtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

const natsSubjectPrefix = "tradiehelper.rt"

// NATSBus maps topics onto core NATS subjects.
type NATSBus struct {
	nc *nats.Conn
}

// NewNATSBus connects to the NATS server at url.
func NewNATSBus(url string) (*NATSBus, error) {
	nc, err := nats.Connect(url, nats.Name("tradiehelper"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBus{nc: nc}, nil
}

// natsSubject turns a topic such as "messages:u1" into a single subject token.
func natsSubject(topic string) string {
	r := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")
	return natsSubjectPrefix + "." + r.Replace(topic)
}

func (b *NATSBus) Publish(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.nc.Publish(natsSubject(topic), data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (b *NATSBus) Subscribe(topic string, handler func([]byte)) (Subscription, error) {
	sub, err := b.nc.Subscribe(natsSubject(topic), func(m *nats.Msg) {
		handler(m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return sub, nil
}

func (b *NATSBus) Close() error {
	if b.nc != nil {
		return b.nc.Drain()
	}
	return nil
}
