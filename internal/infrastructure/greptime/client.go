package greptime

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	ingester "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"github.com/nerrad567/seplos-sink/internal/infrastructure/config"
)

const (
	defaultWriteTimeout  = 10 * time.Second
	defaultHealthTimeout = 5 * time.Second
	defaultGRPCPort      = 4001
)

// rowWriter is the part of the ingester client used for inserts.
type rowWriter interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// Client writes points to GreptimeDB over the gRPC ingester and probes
// liveness over the HTTP API.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	writer     rowWriter
	healthURL  string
	httpClient *http.Client

	closed bool
	mu     sync.RWMutex
}

// Connect builds an ingester client for the configured server.
//
// The URL names the HTTP API (normally port 4000). Its host is reused for
// gRPC ingest on cfg.GRPCPort. Bucket selects the database. When Token is
// set it is sent as the password with Org as the user name.
func Connect(cfg config.InfluxDBConfig, timeout time.Duration) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: invalid url %q", ErrConnectionFailed, cfg.URL)
	}
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	port := cfg.GRPCPort
	if port == 0 {
		port = defaultGRPCPort
	}

	icfg := ingester.NewConfig(u.Hostname()).WithPort(port).WithDatabase(cfg.Bucket)
	if cfg.Token != "" {
		icfg = icfg.WithAuth(cfg.Org, cfg.Token)
	}

	cli, err := ingester.NewClient(icfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return newClient(cli, strings.TrimRight(cfg.URL, "/")+"/health", timeout), nil
}

func newClient(w rowWriter, healthURL string, timeout time.Duration) *Client {
	return &Client{
		writer:     w,
		healthURL:  healthURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Close marks the client closed. Safe to call multiple times.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
	return nil
}

// IsConnected reports whether Close has not yet been called.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// HealthCheck verifies the HTTP API answers GET /health with 200.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("greptime health check: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("greptime health check: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("greptime health check: status %d", resp.StatusCode)
	}
	return nil
}
