// Package notify turns message events into browser notification payloads
// pushed on each recipient's notifications channel.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/metrics"
	"github.com/xiaot623/tradiehelper/internal/realtime"
)

// EventNotification is the broadcast event name on notifications channels.
const EventNotification = "notification"

const maxBodyRunes = 100

// Profiles resolves sender display names.
type Profiles interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// Notifier builds and pushes notifications.
type Notifier struct {
	tr       *realtime.Transport
	profiles Profiles
	icon     string
	metrics  *metrics.Metrics
}

// New creates a Notifier. profiles and m may be nil.
func New(tr *realtime.Transport, profiles Profiles, icon string, m *metrics.Metrics) *Notifier {
	return &Notifier{tr: tr, profiles: profiles, icon: icon, metrics: m}
}

// Build renders the notification for ev. The tag groups notifications of one
// job so the browser replaces rather than stacks them.
func Build(ev domain.MessageEvent, senderName, icon string) domain.Notification {
	title := "New message"
	if senderName != "" {
		title = "New message from " + senderName
	}
	body := []rune(ev.Text)
	if len(body) > maxBodyRunes {
		body = append(body[:maxBodyRunes-1], '…')
	}
	return domain.Notification{
		Title: title,
		Body:  string(body),
		Icon:  icon,
		Tag:   "message-" + ev.JobID,
	}
}

// Handle pushes the notification for ev to its receiver.
func (n *Notifier) Handle(ctx context.Context, ev domain.MessageEvent) error {
	name := ""
	if n.profiles != nil {
		p, err := n.profiles.GetProfile(ctx, ev.SenderID)
		if err != nil {
			log.Printf("WARN: notify: failed to load sender %s: %v", ev.SenderID, err)
		} else if p != nil {
			name = p.FullName
		}
	}

	note := Build(ev, name, n.icon)
	if err := n.tr.Broadcast(ctx, realtime.NotificationsChannel(ev.ReceiverID), EventNotification, note); err != nil {
		return fmt.Errorf("failed to push notification: %w", err)
	}
	n.metrics.IncNotifications()
	return nil
}

// PublishMessage lets a Notifier stand in for the event stream when Kafka is
// not configured.
func (n *Notifier) PublishMessage(ctx context.Context, ev domain.MessageEvent) error {
	return n.Handle(ctx, ev)
}
