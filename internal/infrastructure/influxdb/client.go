package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// At 60 ticks/s a batch of 600 is ten seconds of tag snapshots.
	defaultBatchSize       = 600
	defaultFlushIntervalMS = 1000
)

// Stats counts points handed to the batch writer and the errors it reported.
type Stats struct {
	Points      uint64 `json:"points"`
	WriteErrors uint64 `json:"write_errors"`
}

// Client writes plant points through the batched, non-blocking write API.
// Write errors arrive asynchronously via SetOnError.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	closed atomic.Bool
	done   chan struct{}

	points      atomic.Uint64
	writeErrors atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// Connect pings the server and starts the batch writer.
//
// Returns ErrDisabled when influxdb.enabled is false, and
// ErrConnectionFailed when the server cannot be reached or reports
// itself unhealthy.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(defaultBatchSize)).
		SetFlushInterval(uint(defaultFlushIntervalMS))
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(uint(cfg.BatchSize))
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval) * 1000) //nolint:gosec // positive, checked above
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		done:     make(chan struct{}),
	}
	go c.forwardErrors()
	return c, nil
}

// forwardErrors counts batch failures and hands them to the callback.
func (c *Client) forwardErrors() {
	errs := c.writeAPI.Errors()
	for {
		select {
		case <-c.done:
			return
		case err, ok := <-errs:
			if !ok {
				return
			}
			c.writeErrors.Add(1)
			c.mu.RLock()
			fn := c.onError
			c.mu.RUnlock()
			if fn != nil {
				fn(err)
			}
		}
	}
}

// SetOnError installs the callback for asynchronous write failures.
func (c *Client) SetOnError(fn func(err error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// write queues p unless the client is closed.
func (c *Client) write(p *write.Point) {
	if c.closed.Load() {
		return
	}
	c.points.Add(1)
	c.writeAPI.WritePoint(p)
}

// Flush sends buffered points now. No-op after Close.
func (c *Client) Flush() {
	if c.closed.Load() {
		return
	}
	c.writeAPI.Flush()
}

// Close flushes what is buffered and releases the client. Later writes are
// dropped.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.writeAPI.Flush()
	close(c.done)
	c.client.Close()
	return nil
}

// IsConnected reports whether the client is still open. HealthCheck does a
// live ping.
func (c *Client) IsConnected() bool {
	return !c.closed.Load()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Stats returns the write counters.
func (c *Client) Stats() Stats {
	return Stats{Points: c.points.Load(), WriteErrors: c.writeErrors.Load()}
}

func ping(ctx context.Context, client influxdb2.Client) error {
	ok, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnhealthy
	}
	return nil
}
