package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/virtuaplant-core/internal/telemetry"
)

// Message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// wsSendBuffer is how many messages may queue for one client.
const wsSendBuffer = 256

// WSMessage is the envelope for every message in both directions.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload lists channels to subscribe to or drop.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// wsRequest is an incoming WSMessage with its payload left undecoded.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are checked by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsClient is one websocket connection.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	channels map[string]bool
	stopped  bool
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[channel]
}

// enqueue queues data without blocking. It reports false when the buffer is
// full or the client is gone.
func (c *wsClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// stop closes the send queue once, ending the writer.
func (c *wsClient) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stopped {
		c.stopped = true
		close(c.send)
	}
}

// handleWebSocket upgrades the request. ?channels=a,b subscribes up front;
// a tags.changed subscriber gets the current tags straight away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	channels, ok := parseChannels(r.URL.Query().Get("channels"))
	if !ok {
		writeBadRequest(w, "unknown channel in: "+r.URL.Query().Get("channels"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBuffer),
		channels: make(map[string]bool, len(channels)),
	}
	for _, ch := range channels {
		c.channels[ch] = true
	}
	if !s.hub.add(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}

	if c.channels[telemetry.EventTagsChanged] {
		f := s.plant.Latest()
		snap := telemetry.TagsMessage{Time: f.Time, Tags: f.Tags, Observation: f.Observation}
		if data, err := json.Marshal(eventMessage(telemetry.EventTagsChanged, snap)); err == nil {
			c.enqueue(data)
		}
	}

	go c.writeLoop()
	go c.readLoop()
}

// parseChannels splits a comma separated channel list. Empty is valid.
func parseChannels(raw string) ([]string, bool) {
	if raw == "" {
		return nil, true
	}
	var out []string
	for ch := range strings.SplitSeq(raw, ",") {
		ch = strings.TrimSpace(ch)
		if !slices.Contains(Channels, ch) {
			return nil, false
		}
		out = append(out, ch)
	}
	return out, true
}

// readLoop handles client requests until the connection fails, then
// unregisters the client.
func (c *wsClient) readLoop() {
	defer func() {
		c.hub.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(c.hub.cfg.MaxMessageSize))
	alive := c.hub.pingInterval() + c.hub.pongTimeout()
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(alive)) }
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		_ = extend()
		c.handle(data)
	}
}

// writeLoop drains the send queue and pings on the configured interval.
func (c *wsClient) writeLoop() {
	ping := time.NewTicker(c.hub.pingInterval())
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()
	deadline := func() { _ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.pongTimeout())) }

	for {
		select {
		case data, ok := <-c.send:
			deadline()
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			deadline()
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handle(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		c.subscribe(req, req.Type == WSTypeSubscribe)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

func (c *wsClient) subscribe(req wsRequest, on bool) {
	var p WSSubscribePayload
	if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &p) != nil || len(p.Channels) == 0 {
		c.reply(req.ID, WSTypeError, errorPayload("payload must list channels"))
		return
	}
	for _, ch := range p.Channels {
		if !slices.Contains(Channels, ch) {
			c.reply(req.ID, WSTypeError, errorPayload("unknown channel: "+ch))
			return
		}
	}

	c.mu.Lock()
	for _, ch := range p.Channels {
		if on {
			c.channels[ch] = true
		} else {
			delete(c.channels, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if on {
		key = "subscribed"
	}
	c.reply(req.ID, WSTypeResponse, map[string]any{key: p.Channels})
}

func (c *wsClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err == nil {
		c.enqueue(data)
	}
}

func errorPayload(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func eventMessage(channel string, payload any) WSMessage {
	return WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	}
}
