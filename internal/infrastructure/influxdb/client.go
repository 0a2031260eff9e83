package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/logging"
)

// Client defaults.
const (
	// defaultConnectTimeout bounds the ping performed by Connect.
	defaultConnectTimeout = 10 * time.Second

	// defaultPingTimeout bounds each HealthCheck ping.
	defaultPingTimeout = 5 * time.Second

	// defaultBatchSize is the number of points buffered before a write.
	defaultBatchSize = 100

	// defaultFlushInterval is the longest a point waits in the buffer.
	defaultFlushInterval = 10 // seconds

	// millisecondsPerSecond converts the flush interval for the client.
	millisecondsPerSecond = 1000
)

// Client wraps the InfluxDB v2 client.
//
// Writes are non-blocking and batched. All methods are safe for
// concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig
	logger   *logging.Logger

	// Connection state, cleared by Close
	connected bool
	mu        sync.RWMutex
}

// Connect creates the client, pings the server and starts the
// non-blocking write API. Async write errors are logged.
//
// Parameters:
//   - cfg: InfluxDB configuration section; must be enabled
//   - logger: Logger for write failures; nil uses logging.Default()
//
// Returns:
//   - *Client: Connected client
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the cause
func Connect(cfg config.InfluxDBConfig, logger *logging.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = logging.Default()
	}

	// Apply defaults for unset batching options
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	// Verify the server before accepting writes
	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		logger:    logger.Component("influxdb"),
		connected: true,
	}
	// The channel closes when the client does, ending the goroutine
	go c.logWriteErrors(c.writeAPI.Errors())

	return c, nil
}

// logWriteErrors drains the async write error channel.
func (c *Client) logWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.logger.Warn("async write failed", "bucket", c.cfg.Bucket, "error", err)
	}
}

// Close flushes pending writes and closes the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	c.Flush()

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.client.Close()

	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}

	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Flush forces pending writes out. It is a no-op after Close.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// WritePoint queues a point. Dropped silently when not connected.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}
