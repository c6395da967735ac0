// Package natsrelay optionally mirrors change broadcasts onto a NATS
// subject, so out-of-process consumers can follow log changes without
// holding a websocket. Disabled unless a broker URL is configured.
package natsrelay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"badgetrack/internal/models"
)

// Relay publishes broadcast messages to one NATS subject.
type Relay struct {
	conn    *nats.Conn
	subject string
	logger  *logrus.Logger
}

// New connects to the broker with automatic reconnect handling.
func New(url, subject string, maxReconnect int, reconnectWait time.Duration, logger *logrus.Logger) (*Relay, error) {
	opts := []nats.Option{
		nats.MaxReconnects(maxReconnect),
		nats.ReconnectWait(reconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Warn("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Infof("Connected to NATS at %s", url)

	return &Relay{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Publish mirrors one broadcast message onto the subject.
func (r *Relay) Publish(msg models.BroadcastMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := r.conn.Publish(r.subject, data); err != nil {
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}
	r.logger.Debugf("Relayed %s message to %s", msg.Type, r.subject)
	return nil
}

// Close drops the broker connection.
func (r *Relay) Close() {
	if r.conn != nil {
		r.conn.Close()
	}
}
