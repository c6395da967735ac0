package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badgetrack/internal/models"
)

func TestHandlerEndToEnd(t *testing.T) {
	hub := NewHub(newLogger())
	server := httptest.NewServer(NewHandler(hub, "", newLogger()))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		return hub.Count() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(ctx, models.BroadcastMessage{
		Type:    models.MessageTypeLogsChanged,
		Channel: "log_changes",
		Payload: "row inserted",
	})

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg models.BroadcastMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "logs_changed", msg.Type)
	assert.Equal(t, "row inserted", msg.Payload)
}

func TestHandlerUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(newLogger())
	server := httptest.NewServer(NewHandler(hub, "", newLogger()))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return hub.Count() == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))

	require.Eventually(t, func() bool {
		return hub.Count() == 0
	}, time.Second, 10*time.Millisecond)
}
