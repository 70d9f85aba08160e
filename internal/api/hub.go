package api

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/config"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/logging"
	"github.com/nerrad567/virtuaplant-core/internal/telemetry"
)

// Hub defaults for a zero websocket config.
const (
	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30
	defaultWSPongTimeout    = 10
)

// Channels are the event types a client may subscribe to.
var Channels = []string{telemetry.EventTagsChanged, telemetry.EventFillCompleted}

// Ensure Hub implements telemetry.Broadcaster.
var _ telemetry.Broadcaster = (*Hub)(nil)

// HubStats counts websocket fan-out.
type HubStats struct {
	Clients int    `json:"connected_clients"`
	Sent    uint64 `json:"messages_sent"`
	Dropped uint64 `json:"messages_dropped"`
}

// Hub fans recorder events out to websocket clients. A client whose send
// buffer is full misses the event rather than slowing the others.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewHub creates a hub. Zero config values take the defaults.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultWSMaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultWSPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultWSPongTimeout
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run waits for ctx, then disconnects every client and refuses new ones.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Broadcast sends payload as an event to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(eventMessage(channel, payload))
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subscribed(channel) {
			continue
		}
		if c.enqueue(data) {
			h.sent.Add(1)
		} else {
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the fan-out counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Clients: h.ClientCount(),
		Sent:    h.sent.Load(),
		Dropped: h.dropped.Load(),
	}
}

// add registers c. It fails once the hub has shut down.
func (h *Hub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("websocket client connected", "clients", len(h.clients))
	return true
}

// remove drops c and stops its writer.
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.stop()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		c.stop()
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) pingInterval() time.Duration {
	return time.Duration(h.cfg.PingInterval) * time.Second
}

func (h *Hub) pongTimeout() time.Duration {
	return time.Duration(h.cfg.PongTimeout) * time.Second
}
