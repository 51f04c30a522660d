// Package metrics exposes Prometheus collectors for the realtime backend.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	MessagesSent     prometheus.Counter
	MessagesRead     prometheus.Counter
	MessagesRejected *prometheus.CounterVec
	Envelopes        *prometheus.CounterVec
	Connections      prometheus.Gauge
	OnlineUsers      prometheus.Gauge
	Notifications    prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradiehelper",
			Name:      "messages_sent_total",
			Help:      "Messages accepted and stored.",
		}),
		MessagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradiehelper",
			Name:      "messages_read_total",
			Help:      "Messages marked as read.",
		}),
		MessagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradiehelper",
			Name:      "messages_rejected_total",
			Help:      "Messages rejected before storage, by reason.",
		}, []string{"reason"}),
		Envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradiehelper",
			Name:      "realtime_envelopes_total",
			Help:      "Realtime envelopes published, by kind.",
		}, []string{"kind"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradiehelper",
			Name:      "ws_connections",
			Help:      "Open WebSocket connections.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tradiehelper",
			Name:      "presence_online_users",
			Help:      "Users currently tracked as online or away.",
		}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tradiehelper",
			Name:      "notifications_total",
			Help:      "Notifications pushed to recipients.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		m.MessagesSent,
		m.MessagesRead,
		m.MessagesRejected,
		m.Envelopes,
		m.Connections,
		m.OnlineUsers,
		m.Notifications,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncSent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

func (m *Metrics) AddRead(n int) {
	if m != nil && n > 0 {
		m.MessagesRead.Add(float64(n))
	}
}

func (m *Metrics) IncRejected(reason string) {
	if m != nil {
		m.MessagesRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncEnvelope(kind string) {
	if m != nil {
		m.Envelopes.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) SetConnections(n int) {
	if m != nil {
		m.Connections.Set(float64(n))
	}
}

func (m *Metrics) SetOnlineUsers(n int) {
	if m != nil {
		m.OnlineUsers.Set(float64(n))
	}
}

func (m *Metrics) IncNotifications() {
	if m != nil {
		m.Notifications.Inc()
	}
}
