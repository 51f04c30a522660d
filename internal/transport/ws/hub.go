// Package ws provides the WebSocket gateway onto realtime channels.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/tradiehelper/internal/metrics"
	"github.com/xiaot623/tradiehelper/internal/realtime"
)

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

// ErrConnectionClosed is returned when sending to an unregistered connection.
var ErrConnectionClosed = errors.New("connection closed")

// Connection represents a single WebSocket connection.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	// writeMu guards Conn writes, sendMu guards Send against close.
	writeMu sync.Mutex
	sendMu  sync.Mutex
	closed  bool

	stateMu  sync.Mutex
	userID   string
	channels map[string]*realtime.Channel
}

// UserID returns the authenticated user, empty before hello.
func (c *Connection) UserID() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.userID
}

func (c *Connection) setUserID(userID string) {
	c.stateMu.Lock()
	c.userID = userID
	c.stateMu.Unlock()
}

// Enqueue queues data for the write pump without blocking.
func (c *Connection) Enqueue(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// EnqueueJSON marshals v and queues it.
func (c *Connection) EnqueueJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Enqueue(data)
}

func (c *Connection) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// Hub manages all WebSocket connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Users maps user_id to the set of its connection IDs
	users map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	done       chan struct{}
	metrics    *metrics.Metrics

	mu sync.RWMutex
}

// NewHub creates a new Hub. m may be nil.
func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		users:       make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		done:        make(chan struct{}),
		metrics:     m,
	}
}

// Run starts the hub's main loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			n := len(h.connections)
			h.mu.Unlock()
			h.metrics.SetConnections(n)
			log.Printf("Connection registered: %s", conn.ID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				if userID := conn.UserID(); userID != "" && h.users[userID] != nil {
					delete(h.users[userID], conn.ID)
					if len(h.users[userID]) == 0 {
						delete(h.users, userID)
					}
				}
				conn.closeSend()
			}
			n := len(h.connections)
			h.mu.Unlock()
			h.metrics.SetConnections(n)
			log.Printf("Connection unregistered: %s", conn.ID)

		case <-ctx.Done():
			return
		}
	}
}

// NewConnection creates a new, unregistered connection.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:       uuid.New().String(),
		Conn:     ws,
		Send:     make(chan []byte, 256),
		channels: make(map[string]*realtime.Channel),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister unregisters a connection from the hub and closes its send queue.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
		conn.closeSend()
	}
}

// BindUser binds a connection to an authenticated user.
func (h *Hub) BindUser(conn *Connection, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old := conn.UserID(); old != "" && h.users[old] != nil {
		delete(h.users[old], conn.ID)
		if len(h.users[old]) == 0 {
			delete(h.users, old)
		}
	}

	conn.setUserID(userID)
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]bool)
	}
	h.users[userID][conn.ID] = true
}

// UnbindUser removes conn from its user's connection set and returns how many
// connections the user still has. The removal and the count happen under one
// lock, so exactly one of several closing connections sees zero.
func (h *Hub) UnbindUser(conn *Connection) int {
	userID := conn.UserID()
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns := h.users[userID]; conns != nil {
		delete(conns, conn.ID)
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}
	return len(h.users[userID])
}

// UserConnectionCount returns how many live connections userID has.
func (h *Hub) UserConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}
