package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/tradiehelper/internal/auth"
	"github.com/xiaot623/tradiehelper/internal/config"
	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/realtime"
	"github.com/xiaot623/tradiehelper/internal/service"
	"github.com/xiaot623/tradiehelper/internal/typing"
)

const messagesTable = "messages"

var errForbidden = errors.New("channel not allowed for this user")

// Server handles WebSocket connections.
type Server struct {
	hub       *Hub
	service   *service.Service
	transport *realtime.Transport
	verifier  *auth.Verifier
	upgrader  websocket.Upgrader

	pingInterval   time.Duration
	writeTimeout   time.Duration
	readTimeout    time.Duration
	maxMessageSize int64
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *Hub, svc *service.Service, tr *realtime.Transport, verifier *auth.Verifier) *Server {
	s := &Server{
		hub:            h,
		service:        svc,
		transport:      tr,
		verifier:       verifier,
		pingInterval:   cfg.PingInterval,
		writeTimeout:   cfg.WriteTimeout,
		readTimeout:    cfg.ReadTimeout,
		maxMessageSize: cfg.MaxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if s.pingInterval <= 0 {
		s.pingInterval = 30 * time.Second
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = 10 * time.Second
	}
	if s.readTimeout <= 0 {
		s.readTimeout = 60 * time.Second
	}
	if s.maxMessageSize <= 0 {
		s.maxMessageSize = 64 * 1024
	}
	return s
}

// ServeHTTP upgrades the request and runs the connection pumps.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.maxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)
}

// readPump reads frames until the connection fails, then releases every
// channel the connection holds.
func (s *Server) readPump(conn *Connection) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.release(conn)
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		s.heartbeat(conn)
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: websocket %s: %v", conn.ID, err)
			}
			break
		}

		s.heartbeat(conn)
		s.handleMessage(ctx, conn, message)
	}
}

// heartbeat keeps a bound user's presence alive for as long as the socket is.
func (s *Server) heartbeat(conn *Connection) {
	if userID := conn.UserID(); userID != "" {
		s.service.TouchPresence(userID)
	}
}

// writePump writes queued frames and pings to the connection.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: failed to write to %s: %v", conn.ID, err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// release unsubscribes every channel and clears presence when this was the
// user's last connection.
func (s *Server) release(conn *Connection) {
	conn.stateMu.Lock()
	chans := conn.channels
	conn.channels = make(map[string]*realtime.Channel)
	userID := conn.userID
	conn.stateMu.Unlock()

	for _, ch := range chans {
		ch.Unsubscribe()
	}
	if userID != "" && s.hub.UnbindUser(conn) == 0 {
		s.service.ClearPresence(context.Background(), userID)
	}
}

// handleMessage dispatches incoming frames to the matching handler.
func (s *Server) handleMessage(ctx context.Context, conn *Connection, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	if baseMsg.Type != TypeHello && conn.UserID() == "" {
		s.sendError(conn, baseMsg.Channel, ErrorCodeHelloRequired, "must send hello first")
		return
	}

	switch baseMsg.Type {
	case TypeHello:
		s.handleHello(conn, data)
	case TypeSubscribe:
		s.handleSubscribe(conn, data)
	case TypeUnsubscribe:
		s.handleUnsubscribe(conn, baseMsg.Channel)
	case TypeBroadcast:
		s.handleBroadcast(ctx, conn, data)
	case TypePresence:
		s.handlePresence(ctx, conn, data)
	default:
		s.sendError(conn, "", ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

// handleHello authenticates the connection.
func (s *Server) handleHello(conn *Connection, data []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	userID, err := s.verifier.Verify(msg.Token)
	if err != nil {
		s.sendError(conn, "", ErrorCodeUnauthorized, "invalid token")
		return
	}

	s.hub.BindUser(conn, userID)
	conn.EnqueueJSON(HelloAckMessage{
		BaseMessage:  BaseMessage{Type: TypeHelloAck, Ts: time.Now().UnixMilli()},
		UserID:       userID,
		ConnectionID: conn.ID,
	})
	log.Printf("Hello handshake completed for user %s on %s", userID, conn.ID)
}

// handleSubscribe joins a channel and relays everything it delivers.
func (s *Server) handleSubscribe(conn *Connection, data []byte) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Channel == "" {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid subscribe message")
		return
	}
	filter, err := realtime.ParseFilter(msg.Filter)
	if err != nil {
		s.sendError(conn, msg.Channel, ErrorCodeInvalidMessage, err.Error())
		return
	}
	if err := authorize(conn.UserID(), msg.Channel, msg.Table, filter); err != nil {
		s.sendError(conn, msg.Channel, ErrorCodeForbidden, err.Error())
		return
	}

	conn.stateMu.Lock()
	if _, ok := conn.channels[msg.Channel]; ok {
		conn.stateMu.Unlock()
		s.sendError(conn, msg.Channel, ErrorCodeInvalidMessage, "already subscribed")
		return
	}
	ch := s.transport.Channel(msg.Channel)
	conn.channels[msg.Channel] = ch
	conn.stateMu.Unlock()

	name := msg.Channel
	if msg.Table != "" {
		ch.OnChange(msg.Table, filter, func(change domain.RowChange) {
			if change.Type == domain.ChangeDelete {
				return
			}
			s.relay(conn, ChangeMessage{
				BaseMessage: BaseMessage{Type: TypeChange, Ts: time.Now().UnixMilli(), Channel: name},
				Change:      change,
			})
		})
	}
	ch.OnEnvelope(func(env realtime.Envelope) {
		switch env.Kind {
		case realtime.KindBroadcast:
			s.relay(conn, BroadcastMessage{
				BaseMessage: BaseMessage{Type: TypeBroadcast, Ts: env.Ts, Channel: name},
				Event:       env.Event,
				Payload:     env.Payload,
			})
		case realtime.KindPresence:
			s.relay(conn, PresenceMessage{
				BaseMessage: BaseMessage{Type: TypePresence, Ts: env.Ts, Channel: name},
				Event:       env.Event,
				Presence:    env.Presence,
			})
		}
	})

	err = ch.Subscribe(func(status realtime.Status, err error) {
		frame := StatusMessage{
			BaseMessage: BaseMessage{Type: TypeStatus, Ts: time.Now().UnixMilli(), Channel: name},
			Status:      status,
		}
		if err != nil {
			frame.Error = err.Error()
		}
		s.relay(conn, frame)
	})
	if err != nil {
		conn.stateMu.Lock()
		delete(conn.channels, name)
		conn.stateMu.Unlock()
	}
}

// handleUnsubscribe leaves a channel.
func (s *Server) handleUnsubscribe(conn *Connection, name string) {
	conn.stateMu.Lock()
	ch, ok := conn.channels[name]
	delete(conn.channels, name)
	conn.stateMu.Unlock()

	if !ok {
		s.sendError(conn, name, ErrorCodeInvalidMessage, "not subscribed")
		return
	}
	ch.Unsubscribe()
}

// handleBroadcast relays a client broadcast. Clients may only broadcast on
// typing channels, and typing events always carry the sender's own ID.
func (s *Server) handleBroadcast(ctx context.Context, conn *Connection, data []byte) {
	var msg BroadcastMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Channel == "" || msg.Event == "" {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid broadcast message")
		return
	}
	typingPrefix := realtime.TypingChannel("")
	if !strings.HasPrefix(msg.Channel, typingPrefix) {
		s.sendError(conn, msg.Channel, ErrorCodeForbidden, "broadcast not allowed on this channel")
		return
	}

	payload := msg.Payload
	if msg.Event == typing.EventTyping {
		var ev domain.TypingEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			s.sendError(conn, msg.Channel, ErrorCodeInvalidMessage, "invalid typing payload")
			return
		}
		ev.UserID = conn.UserID()
		ev.JobID = strings.TrimPrefix(msg.Channel, typingPrefix)
		payload, _ = json.Marshal(ev)
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	if err := s.transport.Broadcast(ctx, msg.Channel, msg.Event, payload); err != nil {
		log.Printf("WARN: broadcast on %s failed: %v", msg.Channel, err)
		s.sendError(conn, msg.Channel, ErrorCodeInternalError, "broadcast failed")
	}
}

// handlePresence records the user's status on the presence registry.
func (s *Server) handlePresence(ctx context.Context, conn *Connection, data []byte) {
	var msg PresenceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid presence message")
		return
	}
	status, err := domain.ParsePresenceStatus(msg.Status)
	if err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, err.Error())
		return
	}
	s.service.SetPresence(ctx, conn.UserID(), status)
}

func (s *Server) relay(conn *Connection, v interface{}) {
	if err := conn.EnqueueJSON(v); err != nil && !errors.Is(err, ErrConnectionClosed) {
		log.Printf("WARN: dropped frame for %s: %v", conn.ID, err)
	}
}

// sendError sends an error frame to a connection.
func (s *Server) sendError(conn *Connection, channel, code, message string) {
	s.relay(conn, ErrorMessage{
		BaseMessage: BaseMessage{Type: TypeError, Ts: time.Now().UnixMilli(), Channel: channel},
		Code:        code,
		Message:     message,
	})
}

// authorize keeps private channels and message rows to their owner.
func authorize(userID, channel, table string, filter realtime.Filter) error {
	for _, private := range []string{realtime.MessagesChannel(""), realtime.NotificationsChannel("")} {
		if strings.HasPrefix(channel, private) && strings.TrimPrefix(channel, private) != userID {
			return errForbidden
		}
	}
	if table == messagesTable {
		if (filter.Column != "receiver_id" && filter.Column != "sender_id") || filter.Value != userID {
			return fmt.Errorf("%w: messages require a receiver_id or sender_id filter on yourself", errForbidden)
		}
	}
	return nil
}
