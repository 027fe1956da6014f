package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/seplos-sink/internal/clock"
)

// Target identifies the remote store.
type Target struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// Anonymous marks stores that accept writes without a token, so an
	// empty Token does not skip the startup connect loop.
	Anonymous bool
}

// hasCredentials reports whether enough is known to attempt a connection.
func (t Target) hasCredentials() bool {
	return t.URL != "" && (t.Token != "" || t.Anonymous)
}

// Config holds sink settings. It is copied on Open and never mutated.
type Config struct {
	Target  Target
	Enabled bool

	// Backend names the store implementation. Reported in Stats only.
	Backend string

	// WriteInterval is the minimum time between write attempts per key.
	WriteInterval time.Duration

	PublishMode PublishMode

	// ChangeEpsilon is the absolute difference below which a numeric field
	// counts as unchanged in ModeChanged. Zero means exact equality.
	ChangeEpsilon float64

	// WriteTimeout bounds one write call. Zero selects 10s.
	WriteTimeout time.Duration
}

// Option configures optional Sink dependencies.
type Option func(*options)

type options struct {
	clock    clock.Clock
	logger   Logger
	recorder EventRecorder
	startup  StartupPolicy
	lazy     LazyPolicy
}

// WithClock sets the time source. Defaults to clock.Real().
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEventRecorder sets a recorder for connection lifecycle events.
func WithEventRecorder(r EventRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithStartupPolicy overrides DefaultStartupPolicy.
func WithStartupPolicy(p StartupPolicy) Option {
	return func(o *options) { o.startup = p }
}

// WithLazyPolicy overrides DefaultLazyPolicy.
func WithLazyPolicy(p LazyPolicy) Option {
	return func(o *options) { o.lazy = p }
}

// Sink is the telemetry sink façade used by producers.
//
// It gates each measurement per publish key, keeps the store connection
// alive through a Supervisor and writes accepted measurements as points.
// Delivery is best effort: write methods never return errors, and
// failures are visible only through Stats.
//
// Thread Safety: all methods are safe for concurrent use. A single mutex
// guards the gate caches, the supervisor, the connection and the
// counters. It is held across the bounded write call.
type Sink struct {
	cfg    Config
	clock  clock.Clock
	logger Logger
	events *eventSink

	mu     sync.Mutex
	conn   *Connection
	sup    *Supervisor
	gate   *Gate
	stats  counters
	closed bool
}

// Open creates a Sink and, when enabled and credentials are present,
// runs the blocking startup connect loop.
//
// Failing to connect is not an error: the sink falls back to lazy
// reconnection on the next write. Open returns an error only for an
// unusable Config or when ctx is cancelled during startup.
func Open(ctx context.Context, cfg Config, open Opener, opts ...Option) (*Sink, error) {
	if cfg.WriteInterval < 0 {
		return nil, fmt.Errorf("sink: write interval must not be negative, got %s", cfg.WriteInterval)
	}
	if cfg.ChangeEpsilon < 0 {
		return nil, fmt.Errorf("sink: change epsilon must not be negative, got %g", cfg.ChangeEpsilon)
	}
	if cfg.PublishMode == "" {
		cfg.PublishMode = ModeChanged
	}
	if _, err := ParsePublishMode(string(cfg.PublishMode)); err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}

	o := options{
		clock:   clock.Real(),
		logger:  noopLogger{},
		startup: DefaultStartupPolicy,
		lazy:    DefaultLazyPolicy,
	}
	for _, opt := range opts {
		opt(&o)
	}

	events := &eventSink{recorder: o.recorder, logger: o.logger}
	conn := NewConnection(open, cfg.WriteTimeout, o.logger)
	sup := NewSupervisor(conn, o.clock, o.startup, o.lazy, o.logger)
	sup.events = events

	s := &Sink{
		cfg:    cfg,
		clock:  o.clock,
		logger: o.logger,
		events: events,
		conn:   conn,
		sup:    sup,
		gate:   NewGate(cfg.PublishMode, cfg.WriteInterval, cfg.ChangeEpsilon),
	}

	if !cfg.Enabled {
		s.logger.Info("telemetry sink disabled by configuration")
		return s, nil
	}
	if !cfg.Target.hasCredentials() {
		s.logger.Warn("store url or token missing, skipping startup connect")
		return s, nil
	}

	s.mu.Lock()
	err := s.sup.Startup(ctx)
	s.mu.Unlock()

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		s.Close()
		return nil, fmt.Errorf("sink: startup cancelled: %w", err)
	}

	if err == nil {
		s.logger.Info("telemetry sink ready",
			"url", cfg.Target.URL,
			"bucket", cfg.Target.Bucket,
			"mode", string(cfg.PublishMode),
			"backend", cfg.Backend,
		)
	}
	return s, nil
}

// WriteBatteryMeasurement offers one battery observation to the sink.
func (s *Sink) WriteBatteryMeasurement(ctx context.Context, id string, data Measurement) {
	s.write(ctx, BatteryKey(id), data, func(ts time.Time) Point {
		return batteryPoint(id, data, ts)
	})
}

// WritePackMeasurement offers one pack aggregate observation to the sink.
func (s *Sink) WritePackMeasurement(ctx context.Context, data Measurement) {
	s.write(ctx, PackKey(), data, func(ts time.Time) Point {
		return packPoint(data, ts)
	})
}

func (s *Sink) write(ctx context.Context, key string, data Measurement, build func(time.Time) Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.cfg.Enabled || s.sup.State() == StateDisabled {
		return
	}

	now := s.clock.Now()
	if !s.gate.ShouldPublish(key, data, now) {
		s.stats.writesFiltered++
		return
	}

	point := build(now)
	if len(point.Fields) == 0 {
		s.stats.writesDropped++
		s.logger.Debug("measurement has no writable fields", "key", key)
		return
	}

	if !s.sup.Connected() {
		connected, attempted := s.sup.TryReconnect(ctx)
		if !connected {
			if attempted {
				s.stats.writesFailed++
			} else {
				s.stats.writesDropped++
			}
			return
		}
	}

	s.gate.MarkAttempted(key, now)

	if err := s.conn.Write(ctx, point); err != nil {
		s.stats.writesFailed++
		s.sup.MarkBroken()
		s.logger.Error("store write failed", "key", key, "error", err)
		s.events.emit(ctx, EventWriteFailed, 0, err.Error(), now)
		return
	}

	s.stats.writesTotal++
	s.stats.lastSuccessfulWrite = now
}

// Stats returns a snapshot of the sink's counters and state.
func (s *Sink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Connected:           s.sup.Connected(),
		State:               s.sup.State().String(),
		WritesTotal:         s.stats.writesTotal,
		WritesFailed:        s.stats.writesFailed,
		WritesFiltered:      s.stats.writesFiltered,
		WritesDropped:       s.stats.writesDropped,
		LastSuccessfulWrite: s.stats.lastSuccessfulWrite,
		ReconnectAttempts:   s.sup.Attempts(),
		ReconnectCount:      s.sup.ReconnectCount(),
		PublishMode:         string(s.gate.Mode()),
		Backend:             s.cfg.Backend,
	}
}

// Close releases the store connection. Safe to call multiple times.
// Writes after Close are ignored.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.conn.Close()
	s.sup.MarkBroken()
}
