// Package hub fans detection and alert events out to websocket subscribers.
package hub

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/echoguard/echoguard-go/internal/conf"
	"github.com/echoguard/echoguard-go/internal/errors"
	"github.com/echoguard/echoguard-go/internal/logging"
	"github.com/echoguard/echoguard-go/internal/observability/metrics"
)

// Event types pushed to subscribers.
const (
	EventConnection   = "connection"
	EventNewDetection = "new_detection"
	EventAlert        = "alert"
	EventKeepalive    = "keepalive"
	EventPong         = "pong"
	EventSubscription = "subscription"
)

// Event is the envelope for every message pushed over a websocket.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// client is one connected subscriber with its own outbound queue. A slow
// client loses messages rather than stalling the hub.
type client struct {
	id   string
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Hub tracks websocket subscribers and broadcasts events to all of them.
type Hub struct {
	settings *conf.RealtimeSettings
	upgrader websocket.Upgrader
	metrics  *metrics.RealtimeMetrics
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

// New creates a hub. Metrics may be nil.
func New(settings *conf.RealtimeSettings, m *metrics.RealtimeMetrics) *Hub {
	return &Hub{
		settings: settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		metrics: m,
		logger:  logging.ForService("hub"),
		clients: make(map[string]*client),
	}
}

// SubscriberCount returns the number of currently connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts an event to every connected subscriber. Subscribers
// whose queue is full simply miss the event.
func (h *Hub) Publish(eventType string, data any) {
	event := Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}

	h.mu.RLock()
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		select {
		case c.send <- event:
		case <-c.done:
		default:
			if h.metrics != nil {
				h.metrics.RecordDropped()
			}
			h.logger.Warn("dropping event for slow subscriber",
				"client_id", c.id,
				"event_type", eventType)
		}
	}

	if h.metrics != nil {
		h.metrics.RecordBroadcast(eventType)
	}
}

// HandleWS upgrades the request to a websocket and registers the subscriber.
func (h *Hub) HandleWS(c echo.Context) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "hub is shut down")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.New(err).
			Component("hub").
			Category(errors.CategoryBroadcast).
			Context("remote", c.RealIP()).
			Build()
	}

	bufferSize := h.settings.SendBuffer
	if bufferSize <= 0 {
		bufferSize = 32
	}
	subscriber := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan Event, bufferSize),
		done: make(chan struct{}),
	}

	h.register(subscriber)

	// Greeting delivered through the queue so ordering matches later events.
	subscriber.send <- Event{
		Type:      EventConnection,
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"client_id": subscriber.id, "status": "connected"},
	}

	go h.writeLoop(subscriber)
	go h.readLoop(subscriber)
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetSubscribers(count)
	}
	h.logger.Info("subscriber connected", "client_id", c.id, "subscribers", count)
}

// unregister removes a subscriber. Safe to call more than once.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, present := h.clients[c.id]
	delete(h.clients, c.id)
	count := len(h.clients)
	h.mu.Unlock()

	c.close()
	if !present {
		return
	}
	if h.metrics != nil {
		h.metrics.SetSubscribers(count)
	}
	h.logger.Info("subscriber disconnected", "client_id", c.id, "subscribers", count)
}

// writeLoop serializes all writes to one connection, interleaving queued
// events with periodic keepalives.
func (h *Hub) writeLoop(c *client) {
	interval := h.settings.KeepaliveInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer h.unregister(c)

	for {
		select {
		case event := <-c.send:
			if err := h.writeEvent(c, event); err != nil {
				return
			}
		case <-ticker.C:
			keepalive := Event{
				Type:      EventKeepalive,
				Timestamp: time.Now().UTC(),
				Data:      map[string]any{"client_id": c.id},
			}
			if err := h.writeEvent(c, keepalive); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (h *Hub) writeEvent(c *client, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event", "event_type", event.Type, "error", err)
		return nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop consumes inbound messages. Clients may send {"type":"ping"} and
// get a pong event back; everything else is ignored.
func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var inbound struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &inbound); err != nil {
			continue
		}
		if inbound.Type == "ping" {
			pong := Event{
				Type:      EventPong,
				Timestamp: time.Now().UTC(),
			}
			select {
			case c.send <- pong:
			case <-c.done:
				return
			default:
			}
		}
	}
}

// Shutdown disconnects every subscriber and rejects new connections.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	snapshot := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range snapshot {
		c.close()
	}
	if h.metrics != nil {
		h.metrics.SetSubscribers(0)
	}
	h.logger.Info("hub shut down", "disconnected", len(snapshot))
}
