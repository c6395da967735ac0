package listener

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badgetrack/internal/models"
)

type recordingSink struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func (s *recordingSink) Push(ev models.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) snapshot() []models.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChangeEvent(nil), s.events...)
}

// fakeConn serves queued notifications, then blocks until ctx cancellation
// or fails with failAfter.
type fakeConn struct {
	mu            sync.Mutex
	notifications []*pgconn.Notification
	failAfter     error
	listenSQL     string
	closed        bool
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listenSQL = sql
	return pgconn.CommandTag{}, nil
}

func (c *fakeConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	c.mu.Lock()
	if len(c.notifications) > 0 {
		n := c.notifications[0]
		c.notifications = c.notifications[1:]
		c.mu.Unlock()
		return n, nil
	}
	fail := c.failAfter
	c.mu.Unlock()

	if fail != nil {
		return nil, fail
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *fakeConn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRelaysNotificationsInOrder(t *testing.T) {
	conn := &fakeConn{
		notifications: []*pgconn.Notification{
			{Channel: "log_changes", Payload: "first"},
			{Channel: "log_changes", Payload: "second"},
			{Channel: "log_changes", Payload: "third"},
		},
	}
	sink := &recordingSink{}
	l := New(func(ctx context.Context) (Conn, error) { return conn, nil },
		"log_changes", sink, newLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 3
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop on cancellation")
	}

	events := sink.snapshot()
	assert.Equal(t, "first", events[0].Payload)
	assert.Equal(t, "second", events[1].Payload)
	assert.Equal(t, "third", events[2].Payload)
	assert.Equal(t, "log_changes", events[0].Channel)
	assert.True(t, conn.closed)
	assert.Equal(t, `LISTEN "log_changes"`, conn.listenSQL)
}

func TestReconnectsAfterConnectionLoss(t *testing.T) {
	first := &fakeConn{
		notifications: []*pgconn.Notification{{Channel: "log_changes", Payload: "before"}},
		failAfter:     errors.New("connection reset"),
	}
	second := &fakeConn{
		notifications: []*pgconn.Notification{{Channel: "log_changes", Payload: "after"}},
	}

	var mu sync.Mutex
	conns := []Conn{first, second}
	connect := func(ctx context.Context) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		require.NotEmpty(t, conns)
		c := conns[0]
		conns = conns[1:]
		return c, nil
	}

	sink := &recordingSink{}
	l := New(connect, "log_changes", sink, newLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	require.Eventually(t, func() bool {
		events := sink.snapshot()
		return len(events) == 2 && events[1].Payload == "after"
	}, 5*time.Second, 10*time.Millisecond)

	assert.True(t, first.closed)
}

func TestConnectFailureRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	conn := &fakeConn{
		notifications: []*pgconn.Notification{{Channel: "log_changes", Payload: "ok"}},
	}
	connect := func(ctx context.Context) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return nil, errors.New("refused")
		}
		return conn, nil
	}

	sink := &recordingSink{}
	l := New(connect, "log_changes", sink, newLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 1
	}, 5*time.Second, 10*time.Millisecond)
}
