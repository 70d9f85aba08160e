package modbus

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gomodbus "github.com/goburrow/modbus"

	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// Client defaults.
const (
	// defaultRequestTimeout keeps a stalled bank from holding up the tick loop.
	defaultRequestTimeout = 250 * time.Millisecond

	// defaultIdleClose releases idle connections.
	defaultIdleClose = 60 * time.Second

	// defaultUnitID is the Modbus unit addressed by every request.
	defaultUnitID = 1
)

// ClientConfig holds remote bank connection settings.
type ClientConfig struct {
	// Name is the remote device name, used in errors and logs.
	Name string

	// Address is the host:port of the bank listener.
	Address string

	// Timeout bounds each request. Default: 250ms.
	Timeout time.Duration

	// Size is the remote bank size, used to reject out-of-range requests
	// locally. Default: register.DefaultSize.
	Size int
}

// ClientStats holds client-side statistics.
type ClientStats struct {
	Requests   uint64
	Failures   uint64
	Reconnects uint64
	Connected  bool
}

// Ensure Client implements register.Accessor.
var _ register.Accessor = (*Client)(nil)

// Client is a register.Accessor for a bank reached over Modbus/TCP.
//
// The connection is opened lazily on first use. A transport failure closes
// it and returns register.ErrBankUnavailable; the next call reconnects.
//
// Thread Safety: All methods are safe for concurrent use. Requests on one
// client are serialised, as on any single Modbus/TCP connection.
type Client struct {
	cfg     ClientConfig
	handler *gomodbus.TCPClientHandler
	client  gomodbus.Client

	mu        sync.Mutex
	connected bool

	requests   atomic.Uint64
	failures   atomic.Uint64
	reconnects atomic.Uint64
	dialedOnce atomic.Bool
}

// NewClient creates a client for a remote bank. No connection is made yet.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if cfg.Size <= 0 {
		cfg.Size = register.DefaultSize
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Address
	}

	handler := gomodbus.NewTCPClientHandler(cfg.Address)
	handler.Timeout = cfg.Timeout
	handler.IdleTimeout = defaultIdleClose
	handler.SlaveId = defaultUnitID

	return &Client{
		cfg:     cfg,
		handler: handler,
		client:  gomodbus.NewClient(handler),
	}, nil
}

// Name returns the remote device name.
func (c *Client) Name() string {
	return c.cfg.Name
}

// Read returns the word at addr.
func (c *Client) Read(addr uint16) (uint16, error) {
	words, err := c.ReadRange(addr, 1)
	if err != nil {
		return 0, err
	}
	return words[0], nil
}

// ReadRange returns count words starting at addr.
func (c *Client) ReadRange(addr, count uint16) ([]uint16, error) {
	if err := c.check(addr, int(count)); err != nil {
		return nil, err
	}
	if count > maxReadQuantity {
		return nil, fmt.Errorf("%w: %s: %d words exceeds %d per request", register.ErrOutOfRange, c.cfg.Name, count, maxReadQuantity)
	}

	var results []byte
	err := c.do(func() (err error) {
		results, err = c.client.ReadHoldingRegisters(addr, count)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(results) < 2*int(count) {
		c.failures.Add(1)
		return nil, fmt.Errorf("%w: %w: %s: got %d of %d words", register.ErrBankUnavailable, register.ErrShortRead, c.cfg.Name, len(results)/2, count)
	}
	return bytesToWords(results[:2*int(count)]), nil
}

// Write stores value at addr.
func (c *Client) Write(addr, value uint16) error {
	if err := c.check(addr, 1); err != nil {
		return err
	}
	return c.do(func() error {
		_, err := c.client.WriteSingleRegister(addr, value)
		return err
	})
}

// WriteRange stores values starting at addr.
func (c *Client) WriteRange(addr uint16, values []uint16) error {
	if err := c.check(addr, len(values)); err != nil {
		return err
	}
	if len(values) > maxWriteQuantity {
		return fmt.Errorf("%w: %s: %d words exceeds %d per request", register.ErrOutOfRange, c.cfg.Name, len(values), maxWriteQuantity)
	}
	return c.do(func() error {
		_, err := c.client.WriteMultipleRegisters(addr, uint16(len(values)), wordsToBytes(values)) //nolint:gosec // bounded above
		return err
	})
}

// Close drops the connection. The client stays usable and redials on next use.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return c.handler.Close()
}

// IsConnected reports whether the last request succeeded.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Stats returns client statistics.
func (c *Client) Stats() ClientStats {
	return ClientStats{
		Requests:   c.requests.Load(),
		Failures:   c.failures.Load(),
		Reconnects: c.reconnects.Load(),
		Connected:  c.IsConnected(),
	}
}

// do runs one request, translating failures and resetting the connection.
func (c *Client) do(request func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests.Add(1)
	if !c.connected && c.dialedOnce.Swap(true) {
		c.reconnects.Add(1)
	}

	err := request()
	if err == nil {
		c.connected = true
		return nil
	}
	c.failures.Add(1)

	// A Modbus exception is a valid answer; the connection stays up.
	var mbErr *gomodbus.ModbusError
	if errors.As(err, &mbErr) {
		c.connected = true
		if mbErr.ExceptionCode == gomodbus.ExceptionCodeIllegalDataAddress {
			return fmt.Errorf("%w: %s: %w", register.ErrOutOfRange, c.cfg.Name, err)
		}
		return fmt.Errorf("%w: %s: %w", register.ErrBankUnavailable, c.cfg.Name, err)
	}

	// Transport failure: drop the connection so the next call redials.
	c.connected = false
	_ = c.handler.Close()
	return fmt.Errorf("%w: %s: %w", register.ErrBankUnavailable, c.cfg.Name, err)
}

// check rejects requests outside the remote bank before they hit the wire.
func (c *Client) check(addr uint16, count int) error {
	if count < 1 || int(addr)+count > c.cfg.Size {
		return fmt.Errorf("%w: %s: addr %#x count %d size %d", register.ErrOutOfRange, c.cfg.Name, addr, count, c.cfg.Size)
	}
	return nil
}
