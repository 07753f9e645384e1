package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/p25-nexus/pkg/logger"
	"github.com/dbehnke/p25-nexus/pkg/p25"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func waitForClients(t *testing.T, hub *WebSocketHub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.GetClientCount() == n },
		2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewWebSocketHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// must not block or panic
	hub.Broadcast(Event{Type: "test", Data: map[string]interface{}{"message": "hello"}})
	assert.Equal(t, 0, hub.GetClientCount())
}

func TestWebSocketHub_DeliversMessageEvent(t *testing.T) {
	hub := NewWebSocketHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	conn := dial(t, server.URL)
	defer func() { _ = conn.Close() }()
	waitForClients(t, hub, 1)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	hub.BroadcastMessage(tduEvent("ev-1", "cc1", at))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type      string          `json:"type"`
		Timestamp time.Time       `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, EventMessage, got.Type)
	assert.True(t, at.Equal(got.Timestamp))

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(got.Data, &msg))
	assert.Equal(t, "ev-1", msg["id"])
	assert.Equal(t, "cc1", msg["channel"])
	assert.Equal(t, "TDU", msg["duid"])
	assert.Equal(t, "293", msg["nac"])
}

func TestWebSocketHub_StatsAndCallsUpdates(t *testing.T) {
	hub := NewWebSocketHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	conn := dial(t, server.URL)
	defer func() { _ = conn.Close() }()
	waitForClients(t, hub, 1)

	hub.BroadcastStatsUpdate(map[string]p25.ProcessorStats{"cc1": {Frames: 7}})
	hub.BroadcastCallsUpdate([]string{})

	var types []string
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := 0; i < 2; i++ {
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		assert.False(t, ev.Timestamp.IsZero())
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{EventStatsUpdate, EventCallsUpdate}, types)
}

func TestWebSocketHub_ClientDisconnect(t *testing.T) {
	hub := NewWebSocketHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	conn := dial(t, server.URL)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, hub, 0)
}

func TestWebSocketHub_ShutdownClosesClients(t *testing.T) {
	hub := NewWebSocketHub(quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(hub.Handler())
	defer server.Close()

	conn := dial(t, server.URL)
	defer func() { _ = conn.Close() }()
	waitForClients(t, hub, 1)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.GetClientCount())

	// connections after shutdown are refused without blocking
	late := dial(t, server.URL)
	defer func() { _ = late.Close() }()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
}

func TestEvent_Marshal(t *testing.T) {
	ev := Event{Type: "test", Timestamp: time.Unix(0, 0).UTC(), Data: map[string]int{"n": 1}}
	data, err := ev.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"test","timestamp":"1970-01-01T00:00:00Z","data":{"n":1}}`, string(data))
}
