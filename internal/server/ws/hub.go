// Package ws bridges the broadcast fan-out to WebSocket clients. Each
// connected client registers as a fan-out subscriber; a client that cannot
// keep up or whose connection drops is removed without affecting the rest.
package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/fanout"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// Hub upgrades HTTP requests to WebSocket connections and registers each
// client with the fan-out. It also records the latest connectivity status
// per venue so a freshly joined client sees the current venue states
// immediately instead of waiting for the next event.
type Hub struct {
	fan    *fanout.Fanout
	logger *slog.Logger

	statusMu sync.RWMutex
	statuses map[domain.Venue]string
}

// NewHub creates a hub delivering through the given fan-out.
func NewHub(fan *fanout.Fanout, logger *slog.Logger) *Hub {
	return &Hub{
		fan:      fan,
		logger:   logger.With(slog.String("component", "ws_hub")),
		statuses: make(map[domain.Venue]string),
	}
}

// RecordStatus remembers the latest connectivity state for a venue. Call it
// alongside broadcasting the status event itself.
func (h *Hub) RecordStatus(venue domain.Venue, status string) {
	h.statusMu.Lock()
	h.statuses[venue] = status
	h.statusMu.Unlock()
}

// HandleWS upgrades the request, registers the client as a subscriber, and
// pushes the current venue states to it.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	h.sendInitialStatuses(c)
	h.fan.Subscribe(c)
}

// sendInitialStatuses queues the latest known state of every venue for the
// new client before it joins the broadcast set.
func (h *Hub) sendInitialStatuses(c *client) {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()

	for venue, status := range h.statuses {
		payload, err := domain.EncodeStatus(venue, status)
		if err != nil {
			continue
		}
		_ = c.Send(payload)
	}
}

// client is one WebSocket connection acting as a fan-out subscriber.
// Outgoing messages pass through a buffered channel so Broadcast never
// blocks on a slow peer; a full buffer counts as a delivery failure.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// Send queues a payload for delivery. It fails when the client has shut
// down or its buffer is full, which causes the fan-out to drop the client.
func (c *client) Send(payload []byte) error {
	select {
	case <-c.done:
		return domain.ErrClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return domain.ErrClosed
	}
}

// Close shuts the client down. Safe to call multiple times and from both
// the fan-out and the pump goroutines.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}

// readPump consumes (and discards) incoming frames so pings/pongs and close
// handshakes are processed. The stream to clients is one-directional.
func (c *client) readPump() {
	defer func() {
		c.hub.fan.Unsubscribe(c)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// writePump moves queued payloads onto the wire and sends periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Compile-time interface check.
var _ fanout.Subscriber = (*client)(nil)
