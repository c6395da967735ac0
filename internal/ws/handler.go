package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// wsConn adapts *websocket.Conn to the hub's Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() {
	_ = c.conn.Close(websocket.StatusGoingAway, "")
}

// Handler upgrades HTTP requests to websocket subscriptions on the hub.
type Handler struct {
	hub            *Hub
	originPatterns []string
	logger         *logrus.Logger
}

func NewHandler(hub *Hub, allowOrigin string, logger *logrus.Logger) *Handler {
	patterns := []string{"*"}
	if allowOrigin != "" {
		patterns = []string{allowOrigin}
	}
	return &Handler{
		hub:            hub,
		originPatterns: patterns,
		logger:         logger,
	}
}

// ServeHTTP upgrades the connection, registers it, and holds it open until
// the client goes away. Client messages are drained and ignored; the socket
// is push-only.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	sub := &wsConn{conn: conn}
	h.hub.Register(sub)
	defer func() {
		h.hub.Unregister(sub)
		sub.Close()
	}()

	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
	}
}
