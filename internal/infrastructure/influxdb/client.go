package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/nerrad567/seplos-sink/internal/infrastructure/config"
)

// Default timeouts for InfluxDB operations.
const (
	defaultRequestTimeout = 10 * time.Second
	defaultHealthTimeout  = 5 * time.Second
)

// Client wraps the InfluxDB v2 client for the telemetry sink.
//
// Writes go through the blocking write API so every failure is reported
// to the caller. Batching and retries are left to the sink's own policy.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	cfg      config.InfluxDBConfig

	// closed tracks whether Close has run.
	closed bool
	mu     sync.RWMutex
}

// Connect creates a client for the configured server.
//
// No request is made: reachability is established by HealthCheck.
//
// Parameters:
//   - cfg: [influxdb] section of the configuration
//   - timeout: per-request HTTP timeout; zero selects 10s
//
// Returns:
//   - *Client: client ready for HealthCheck and WritePoint
//   - error: If the store is disabled or the URL is empty
func Connect(cfg config.InfluxDBConfig, timeout time.Duration) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: url is empty", ErrConnectionFailed)
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	// #nosec G115 -- timeout is positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetHTTPRequestTimeout(uint(timeout/time.Second)),
	)

	return &Client{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		cfg:      cfg,
	}, nil
}

// Close shuts down the InfluxDB client. Safe to call multiple times.
//
// Returns:
//   - error: nil (InfluxDB client Close doesn't return errors)
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.client == nil {
		return nil
	}
	c.closed = true
	c.client.Close()
	return nil
}

// HealthCheck queries the server's /health endpoint.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if the server reports "pass", error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()

	health, err := c.client.Health(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if health == nil {
		return fmt.Errorf("influxdb health check failed: empty response")
	}
	if health.Status != domain.HealthCheckStatusPass {
		msg := ""
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influxdb health check failed: status %q: %s", health.Status, msg)
	}

	return nil
}

// IsConnected reports whether the client is open.
//
// Note: This does not touch the network. Use HealthCheck for an active
// probe.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client != nil && !c.closed
}
