// Package listener holds the dedicated Postgres connection that receives
// LISTEN/NOTIFY change events and relays them into the event queue. The
// connection is exclusive: it is never drawn from the shared pool and spends
// most of its life blocked waiting for the next notification.
package listener

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"badgetrack/internal/models"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Sink receives relayed change events. Push must not block.
type Sink interface {
	Push(models.ChangeEvent)
}

// Conn is the subset of *pgx.Conn the listener uses.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Connect opens a fresh dedicated connection.
type Connect func(ctx context.Context) (Conn, error)

// Listener relays notifications from one channel into the sink. Payloads are
// never inspected; arrival is the only signal.
type Listener struct {
	connect Connect
	channel string
	sink    Sink
	logger  *logrus.Logger
}

// New builds a listener for the given notification channel.
func New(connect Connect, channel string, sink Sink, logger *logrus.Logger) *Listener {
	return &Listener{
		connect: connect,
		channel: channel,
		sink:    sink,
		logger:  logger,
	}
}

// PgxConnect adapts pgx.Connect to the Connect type for the given DSN.
func PgxConnect(dsn string) Connect {
	return func(ctx context.Context) (Conn, error) {
		return pgx.Connect(ctx, dsn)
	}
}

// Run holds the listen connection until ctx is cancelled. A dropped
// connection is re-established with capped exponential backoff rather than
// killing the task, so a database restart does not silently stop change
// propagation.
func (l *Listener) Run(ctx context.Context) error {
	backoff := initialBackoff

	for {
		conn, err := l.listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.logger.Errorf("Listen connection failed: %v (retrying in %s)", err, backoff)
			if err := sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff)
			continue
		}

		l.logger.Infof("Listening on channel %q", l.channel)
		backoff = initialBackoff

		err = l.relay(ctx, conn)
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = conn.Close(closeCtx)
		cancel()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.Errorf("Listen connection lost: %v (reconnecting)", err)
	}
}

func (l *Listener) listen(ctx context.Context) (Conn, error) {
	conn, err := l.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	listenSQL := "LISTEN " + pgx.Identifier{l.channel}.Sanitize()
	if _, err := conn.Exec(ctx, listenSQL); err != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = conn.Close(closeCtx)
		cancel()
		return nil, fmt.Errorf("failed to listen on %q: %w", l.channel, err)
	}
	return conn, nil
}

// relay forwards notifications until the connection or the context dies.
func (l *Listener) relay(ctx context.Context, conn Conn) error {
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.logger.Debugf("Notification on %q from pid %d", notification.Channel, notification.PID)
		l.sink.Push(models.ChangeEvent{
			Channel: notification.Channel,
			Payload: notification.Payload,
		})
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
