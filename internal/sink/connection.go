package sink

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// defaultWriteTimeout bounds a single WritePoint call when the config
// does not set one.
const defaultWriteTimeout = 10 * time.Second

// defaultHealthTimeout bounds the health probe run after each connect.
const defaultHealthTimeout = 5 * time.Second

// Store is the measurement store capability the sink writes to.
//
// Implementations live in internal/infrastructure (influxdb, tsdb,
// greptime). The sink never retries through a Store; it only calls
// WritePoint once per accepted measurement.
type Store interface {
	// HealthCheck probes the store. nil means pass.
	HealthCheck(ctx context.Context) error

	// WritePoint delivers a single point.
	WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]float64, ts time.Time) error

	// Close releases the store's resources.
	Close() error
}

// Opener creates a new Store handle. It returns an error wrapping
// ErrCapabilityUnavailable when the store can never be used.
type Opener func(ctx context.Context) (Store, error)

// Connection owns the lifecycle of one logical connection to the store.
//
// It never retries: retry policy belongs to Supervisor.
//
// Thread Safety: Connection is not synchronised. Sink serialises access.
type Connection struct {
	open         Opener
	store        Store
	writeTimeout time.Duration
	logger       Logger
}

// NewConnection creates an unconnected Connection.
func NewConnection(open Opener, writeTimeout time.Duration, logger Logger) *Connection {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Connection{
		open:         open,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Connect opens a fresh store handle and verifies it with a health probe.
//
// Any handle already held is closed first. On failure no handle is kept.
// The returned error wraps ErrCapabilityUnavailable for permanent
// failures and ErrConnect otherwise.
func (c *Connection) Connect(ctx context.Context) error {
	c.Close()

	if c.open == nil {
		return fmt.Errorf("%w: no store opener configured", ErrCapabilityUnavailable)
	}

	store, err := c.open(ctx)
	if err != nil {
		if errors.Is(err, ErrCapabilityUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	if err := c.probe(ctx, store); err != nil {
		if closeErr := store.Close(); closeErr != nil {
			c.logger.Debug("error closing store after failed health check", "error", closeErr)
		}
		return fmt.Errorf("%w: health check: %w", ErrConnect, err)
	}

	c.store = store
	return nil
}

// HealthCheck probes the current handle.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c.store == nil {
		return ErrNotConnected
	}
	if err := c.probe(ctx, c.store); err != nil {
		return fmt.Errorf("%w: health check: %w", ErrConnect, err)
	}
	return nil
}

// Write delivers p through the current handle, bounded by the write timeout.
func (c *Connection) Write(ctx context.Context, p Point) error {
	if c.store == nil {
		return ErrNotConnected
	}

	writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	if err := c.store.WritePoint(writeCtx, p.Measurement, p.Tags, p.Fields, p.Time); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

// Close releases the current handle. Safe to call repeatedly.
// Release errors are logged, never returned.
func (c *Connection) Close() {
	if c.store == nil {
		return
	}
	if err := c.store.Close(); err != nil {
		c.logger.Debug("error closing store", "error", err)
	}
	c.store = nil
}

func (c *Connection) probe(ctx context.Context, store Store) error {
	checkCtx, cancel := context.WithTimeout(ctx, defaultHealthTimeout)
	defer cancel()
	return store.HealthCheck(checkCtx)
}
