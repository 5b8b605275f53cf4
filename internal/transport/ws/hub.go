package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned when sending on a closed connection.
var ErrConnectionClosed = errors.New("connection closed")

// Connection represents a single WebSocket connection.
// Only the write pump writes to Conn.
type Connection struct {
	ID    string
	Conn  *websocket.Conn
	Token string

	send      chan []byte
	done      chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Context is cancelled when the connection closes.
func (c *Connection) Context() context.Context { return c.ctx }

// Send queues data for the write pump. It blocks while the buffer is full
// and fails once the connection is closed.
func (c *Connection) Send(data []byte) error {
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	}
}

// SendJSON queues v encoded as JSON.
func (c *Connection) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// Close closes the connection. Only the first call has an effect.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		c.Conn.Close()
	})
}

// Hub tracks open connections.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{connections: make(map[string]*Connection)}
}

// NewConnection wraps ws and registers it.
func (h *Hub) NewConnection(ws *websocket.Conn, token string) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	conn := &Connection{
		ID:     uuid.New().String(),
		Conn:   ws,
		Token:  token,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()
	log.Printf("INFO: connection registered: %s", conn.ID)
	return conn
}

// Unregister closes conn and forgets it.
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	delete(h.connections, conn.ID)
	h.mu.Unlock()
	conn.Close()
	log.Printf("INFO: connection unregistered: %s", conn.ID)
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// CloseAll closes every open connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.connections))
	for _, c := range h.connections {
		conns = append(conns, c)
	}
	h.connections = make(map[string]*Connection)
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
