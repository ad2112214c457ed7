package hub

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/echoguard/echoguard-go/internal/conf"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := New(&conf.RealtimeSettings{
		KeepaliveInterval: time.Minute,
		SendBuffer:        8,
	}, nil)

	e := echo.New()
	e.GET("/ws", h.HandleWS)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	t.Cleanup(h.Shutdown)
	return h, server
}

func dialTestHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var event Event
	require.NoError(t, json.Unmarshal(payload, &event))
	return event
}

func waitForSubscribers(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.SubscriberCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, want, h.SubscriberCount())
}

func TestConnectionGreeting(t *testing.T) {
	leakOpt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpt) })

	_, server := newTestHub(t)
	conn := dialTestHub(t, server)

	event := readEvent(t, conn)
	assert.Equal(t, EventConnection, event.Type)
	data, ok := event.Data.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, data["client_id"])
	assert.Equal(t, "connected", data["status"])
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	leakOpt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpt) })

	h, server := newTestHub(t)
	first := dialTestHub(t, server)
	second := dialTestHub(t, server)
	waitForSubscribers(t, h, 2)

	// Skip the connection greetings.
	readEvent(t, first)
	readEvent(t, second)

	h.Publish(EventNewDetection, map[string]any{"event_type": "vessel", "confidence": 0.9})

	for _, conn := range []*websocket.Conn{first, second} {
		event := readEvent(t, conn)
		assert.Equal(t, EventNewDetection, event.Type)
		data, ok := event.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "vessel", data["event_type"])
	}
}

func TestDisconnectedSubscriberIsRemoved(t *testing.T) {
	leakOpt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpt) })

	h, server := newTestHub(t)
	staying := dialTestHub(t, server)
	leaving := dialTestHub(t, server)
	waitForSubscribers(t, h, 2)

	readEvent(t, staying)
	readEvent(t, leaving)

	require.NoError(t, leaving.Close())
	waitForSubscribers(t, h, 1)

	// Publishing after a disconnect still reaches the remaining subscriber.
	h.Publish(EventAlert, map[string]any{"alert_id": 1})
	event := readEvent(t, staying)
	assert.Equal(t, EventAlert, event.Type)
}

func TestPingPong(t *testing.T) {
	leakOpt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpt) })

	h, server := newTestHub(t)
	conn := dialTestHub(t, server)
	waitForSubscribers(t, h, 1)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	event := readEvent(t, conn)
	assert.Equal(t, EventPong, event.Type)
}

func TestShutdownDisconnectsSubscribers(t *testing.T) {
	leakOpt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpt) })

	h, server := newTestHub(t)
	conn := dialTestHub(t, server)
	waitForSubscribers(t, h, 1)
	readEvent(t, conn)

	h.Shutdown()
	assert.Zero(t, h.SubscriberCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestPublishWithNoSubscribers(t *testing.T) {
	h := New(&conf.RealtimeSettings{KeepaliveInterval: time.Minute, SendBuffer: 8}, nil)
	defer h.Shutdown()

	// Must not panic or block.
	h.Publish(EventNewDetection, map[string]any{"event_type": "ambient"})
	assert.Zero(t, h.SubscriberCount())
}
