// Package ws holds the live websocket subscriber registry and the HTTP
// handler that feeds it. Delivery is best-effort at-most-once: a subscriber
// that fails a send is dropped on the spot and never retried.
package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"badgetrack/internal/models"
)

const writeTimeout = 5 * time.Second

// Conn is one subscriber's push channel.
type Conn interface {
	Write(ctx context.Context, data []byte) error
	Close()
}

// Hub is the process-wide registry of live subscriber connections.
type Hub struct {
	mu     sync.Mutex
	conns  map[Conn]struct{}
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		conns:  make(map[Conn]struct{}),
		logger: logger,
	}
}

// Register adds a connection. Registering twice is a no-op.
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	count := len(h.conns)
	h.mu.Unlock()
	h.logger.Infof("Subscriber connected (total: %d)", count)
}

// Unregister removes a connection; safe to call if already removed.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	_, present := h.conns[conn]
	delete(h.conns, conn)
	count := len(h.conns)
	h.mu.Unlock()
	if present {
		h.logger.Infof("Subscriber disconnected (total: %d)", count)
	}
}

// Broadcast delivers the message to a snapshot of the current members.
// A failed send drops that member; other members are unaffected.
func (h *Hub) Broadcast(ctx context.Context, msg models.BroadcastMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("Failed to marshal broadcast message: %v", err)
		return
	}

	h.mu.Lock()
	snapshot := make([]Conn, 0, len(h.conns))
	for conn := range h.conns {
		snapshot = append(snapshot, conn)
	}
	h.mu.Unlock()

	for _, conn := range snapshot {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := conn.Write(writeCtx, data)
		cancel()
		if err != nil {
			h.logger.Warnf("Dropping subscriber after failed send: %v", err)
			h.Unregister(conn)
			conn.Close()
		}
	}
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll disconnects every subscriber, used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	snapshot := make([]Conn, 0, len(h.conns))
	for conn := range h.conns {
		snapshot = append(snapshot, conn)
	}
	h.conns = make(map[Conn]struct{})
	h.mu.Unlock()

	for _, conn := range snapshot {
		conn.Close()
	}
}
