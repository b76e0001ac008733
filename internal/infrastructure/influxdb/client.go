package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/actuator-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds

	// Failed batches are retried by the write API a few times before they
	// are reported and dropped. Telemetry is best effort.
	maxWriteRetries = 3
	retryInterval   = 2 * time.Second
)

// Client writes execution telemetry through the batched, non-blocking
// InfluxDB write API. Every point carries a site tag.
//
// Callers never see write errors. They are counted and handed to the
// SetOnError callback from a background goroutine.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	open    atomic.Bool
	written atomic.Uint64
	failed  atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// Stats counts points handed to the write API and batches that failed.
type Stats struct {
	Points       uint64
	FailedWrites uint64
}

// Connect checks the server is reachable and starts the write API. It
// returns ErrDisabled when InfluxDB is turned off, so callers can treat
// telemetry as optional.
func Connect(cfg config.InfluxDBConfig, site string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	raw := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg, site))

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	if err := ping(ctx, raw); err != nil {
		raw.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := &Client{
		client:   raw,
		writeAPI: raw.WriteAPI(cfg.Org, cfg.Bucket),
	}
	c.open.Store(true)
	go c.drainErrors(c.writeAPI.Errors())
	return c, nil
}

// writeOptions maps the config onto the client's batching options.
func writeOptions(cfg config.InfluxDBConfig, site string) *influxdb2.Options {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushInterval
	}

	flushMillis := (time.Duration(flush) * time.Second).Milliseconds()

	// #nosec G115 -- batch and flushMillis are positive
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flushMillis)).
		SetPrecision(time.Millisecond).
		SetMaxRetries(maxWriteRetries).
		SetRetryInterval(uint(retryInterval.Milliseconds()))
	if site != "" {
		opts.AddDefaultTag("site", site)
	}
	return opts
}

func ping(ctx context.Context, raw influxdb2.Client) error {
	healthy, err := raw.Ping(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return ErrUnhealthy
	}
	return nil
}

func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		c.failed.Add(1)

		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// Close flushes what is buffered and releases the client. Later writes are
// dropped.
func (c *Client) Close() error {
	if c == nil || c.client == nil || !c.open.Swap(false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open for writes.
func (c *Client) IsConnected() bool {
	return c != nil && c.open.Load()
}

// Stats returns the write counters.
func (c *Client) Stats() Stats {
	return Stats{Points: c.written.Load(), FailedWrites: c.failed.Load()}
}

// SetOnError sets the callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}

// Flush blocks until buffered points are written. No-op after Close.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}
