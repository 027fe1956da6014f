package tsdb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/seplos-sink/internal/infrastructure/config"
)

// Default timeouts for TSDB operations.
const (
	defaultWriteTimeout  = 10 * time.Second
	defaultHealthTimeout = 5 * time.Second
)

// Client writes time-series data to VictoriaMetrics using InfluxDB line protocol.
//
// Each WritePoint is a single synchronous HTTP POST to /write, so the
// caller sees every failure. There is no internal batching or retry.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	url        string
	db         string
	token      string
	httpClient *http.Client

	connected bool
	mu        sync.RWMutex
}

// Connect prepares a client for VictoriaMetrics.
//
// No request is made: reachability is established by HealthCheck.
//
// Parameters:
//   - cfg: [influxdb] section; URL is the VictoriaMetrics base URL, Bucket
//     is sent as the db label and Token, when set, as a bearer token
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
		timeout = defaultWriteTimeout
	}

	return &Client{
		url:   strings.TrimRight(cfg.URL, "/"),
		db:    cfg.Bucket,
		token: cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		connected: true,
	}, nil
}

// Close marks the client closed and releases idle connections.
// Safe to call multiple times.
//
// Returns:
//   - error: always nil
func (c *Client) Close() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.httpClient.CloseIdleConnections()
	return nil
}

// HealthCheck verifies VictoriaMetrics answers GET /health with 200.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, c.url+"/health", nil)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tsdb health check: %w", err)
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tsdb health check: status %d", resp.StatusCode)
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
	return c.connected
}

// post sends newline-delimited line protocol to /write.
func (c *Client) post(ctx context.Context, body string) error {
	endpoint := c.url + "/write"
	if c.db != "" {
		endpoint += "?" + url.Values{"db": {c.db}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	req.Header.Set("Content-Type", "text/plain")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrWriteFailed, resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
