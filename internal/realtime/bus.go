package realtime

import "context"

// Bus moves opaque payloads between topics. Implementations deliver to every
// subscriber of a topic at least once with best-effort ordering.
type Bus interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Subscribe(topic string, handler func(data []byte)) (Subscription, error)
	Close() error
}

// Subscription is an active bus subscription.
type Subscription interface {
	Unsubscribe() error
}

// changeTopic is the bus topic carrying row changes of one table.
func changeTopic(table string) string {
	return "changes:" + table
}
