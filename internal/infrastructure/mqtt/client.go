package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/config"
)

// Logger is the logging used for connection changes and handler failures.
// *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler receives one message. Paho calls it on its own goroutine;
// a returned error is logged and counted.
type MessageHandler func(topic string, payload []byte) error

// Stats counts traffic since Connect.
type Stats struct {
	Published     uint64 `json:"published"`
	PublishErrors uint64 `json:"publish_errors"`
	Received      uint64 `json:"received"`
	HandlerErrors uint64 `json:"handler_errors"`
	Reconnects    uint64 `json:"reconnects"`
	Connected     bool   `json:"connected"`
}

// Client is the plant's broker connection.
//
// It publishes the tag snapshot and fill events, receives tag commands, and
// announces itself retained on virtuaplant/system/status (with a will
// message for crashes). Paho reconnects on its own; subscriptions are
// replayed on every connect.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	cfg    config.MQTTConfig
	client pahomqtt.Client

	connected atomic.Bool
	everUp    atomic.Bool

	subsMu sync.Mutex
	subs   map[string]route

	loggerMu sync.RWMutex
	logger   Logger

	published     atomic.Uint64
	publishErrors atomic.Uint64
	received      atomic.Uint64
	handlerErrors atomic.Uint64
	reconnects    atomic.Uint64
}

// route is a subscription kept for replay after a reconnect.
type route struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker once and returns a connected client.
//
// An unreachable broker is reported as ErrConnectionFailed rather than
// retried, so the caller can carry on without MQTT.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		subs:   make(map[string]route),
		logger: noopLogger{},
	}

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onLost(err) })

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: %s: no answer after %v", ErrConnectionFailed, brokerURL(cfg), connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, brokerURL(cfg), err)
	}

	// The connect handler runs asynchronously; don't report disconnected in
	// the gap before it fires.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) onConnect() {
	c.connected.Store(true)
	if c.everUp.Swap(true) {
		c.reconnects.Add(1)
		c.log().Info("MQTT reconnected", "broker", brokerURL(c.cfg))
	}

	c.subsMu.Lock()
	for topic, r := range c.subs {
		c.client.Subscribe(topic, r.qos, c.dispatch(r.handler))
	}
	c.subsMu.Unlock()

	c.client.Publish(Topics{}.SystemStatus(), c.qos(), true, statusPayload(c.cfg.Broker.ClientID, statusOnline, ""))
}

func (c *Client) onLost(err error) {
	c.connected.Store(false)
	c.log().Warn("MQTT connection lost", "broker", brokerURL(c.cfg), "error", err)
}

// Close announces a clean shutdown and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	if c.IsConnected() {
		token := c.client.Publish(Topics{}.SystemStatus(), c.qos(), true,
			statusPayload(c.cfg.Broker.ClientID, statusOffline, reasonShutdown))
		token.WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesceMS)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.connected.Load() && c.client.IsConnected()
}

// Stats returns the traffic counters.
func (c *Client) Stats() Stats {
	return Stats{
		Published:     c.published.Load(),
		PublishErrors: c.publishErrors.Load(),
		Received:      c.received.Load(),
		HandlerErrors: c.handlerErrors.Load(),
		Reconnects:    c.reconnects.Load(),
		Connected:     c.IsConnected(),
	}
}

// SetLogger replaces the logger. Nil restores the silent default.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) log() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	if c.logger == nil {
		return noopLogger{}
	}
	return c.logger
}

func (c *Client) qos() byte {
	return byte(c.cfg.QoS) //nolint:gosec // validated 0..2 by config
}
