package sink

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/seplos-sink/internal/clock"
)

// State is the connection state tracked by Supervisor.
type State int

const (
	// StateDisconnected means no usable connection; reconnects are allowed
	// subject to the lazy policy.
	StateDisconnected State = iota

	// StateConnecting is held for the duration of one connect attempt.
	StateConnecting

	// StateConnected means the last connect succeeded and no write has
	// failed since.
	StateConnected

	// StateDisabled is terminal: the store capability is permanently
	// unavailable.
	StateDisabled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// StartupPolicy bounds the blocking connect loop run when the sink opens.
type StartupPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// LazyPolicy bounds reconnects attempted from the write path.
type LazyPolicy struct {
	MaxAttempts int
	Floor       time.Duration
	Ceiling     time.Duration

	// EpisodeReset is the quiet gap after which an exhausted episode
	// starts over.
	EpisodeReset time.Duration
}

// Default retry policies.
var (
	DefaultStartupPolicy = StartupPolicy{
		MaxAttempts:  10,
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
	}

	DefaultLazyPolicy = LazyPolicy{
		MaxAttempts:  10,
		Floor:        5 * time.Second,
		Ceiling:      300 * time.Second,
		EpisodeReset: 300 * time.Second,
	}
)

const backoffFactor = 2

// Supervisor owns retry and backoff policy around a Connection.
//
// It decides when a connect attempt is permitted and records the outcome.
// All mutable connection state lives here.
//
// Thread Safety: Supervisor is not synchronised. Sink serialises access.
type Supervisor struct {
	conn    *Connection
	clock   clock.Clock
	logger  Logger
	events  *eventSink
	startup StartupPolicy
	lazy    LazyPolicy

	state          State
	attempts       int
	delay          time.Duration
	lastAttempt    time.Time
	reconnectCount uint64
}

// NewSupervisor creates a Supervisor in StateDisconnected.
func NewSupervisor(conn *Connection, clk clock.Clock, startup StartupPolicy, lazy LazyPolicy, logger Logger) *Supervisor {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Supervisor{
		conn:    conn,
		clock:   clk,
		logger:  logger,
		events:  &eventSink{logger: logger},
		startup: startup,
		lazy:    lazy,
		state:   StateDisconnected,
		delay:   lazy.Floor,
	}
}

// State returns the current state.
func (s *Supervisor) State() State {
	return s.state
}

// Connected reports whether the state is StateConnected.
func (s *Supervisor) Connected() bool {
	return s.state == StateConnected
}

// Attempts returns the number of lazy attempts in the current episode.
func (s *Supervisor) Attempts() int {
	return s.attempts
}

// Delay returns the current lazy backoff delay.
func (s *Supervisor) Delay() time.Duration {
	return s.delay
}

// ReconnectCount returns the number of successful lazy reconnects.
func (s *Supervisor) ReconnectCount() uint64 {
	return s.reconnectCount
}

// Startup runs the blocking connect loop.
//
// It makes up to StartupPolicy.MaxAttempts attempts, sleeping between
// them with exponential backoff. Exhausting every attempt leaves the
// supervisor disconnected with lazy counters untouched, so the first
// lazy attempt is permitted immediately. A nil return means connected.
// ctx cancellation aborts the loop and returns ctx.Err().
func (s *Supervisor) Startup(ctx context.Context) error {
	if s.state == StateDisabled {
		return ErrCapabilityUnavailable
	}

	delay := s.startup.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= s.startup.MaxAttempts; attempt++ {
		s.state = StateConnecting
		err := s.conn.Connect(ctx)
		if err == nil {
			s.state = StateConnected
			s.attempts = 0
			s.delay = s.lazy.Floor
			s.logger.Info("store connected", "attempt", attempt)
			s.events.emit(ctx, EventConnected, attempt, "", s.clock.Now())
			return nil
		}
		if errors.Is(err, ErrCapabilityUnavailable) {
			s.disable(ctx, err)
			return err
		}

		s.state = StateDisconnected
		lastErr = err
		s.events.emit(ctx, EventConnectFailed, attempt, err.Error(), s.clock.Now())

		if attempt == s.startup.MaxAttempts {
			break
		}

		s.logger.Info("store connection attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", s.startup.MaxAttempts,
			"retry_in", delay,
			"error", err,
		)

		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(delay):
		}

		delay = min(delay*backoffFactor, s.startup.MaxDelay)
	}

	s.logger.Warn("all startup connection attempts failed, will retry on next write",
		"max_attempts", s.startup.MaxAttempts,
		"error", lastErr,
	)
	return lastErr
}

// TryReconnect makes a lazy connect attempt if the policy permits one.
//
// connected reports the state afterwards; attempted reports whether a
// connect was actually tried on this call. A permitted
// attempt requires at least the current delay since the previous attempt
// and fewer than LazyPolicy.MaxAttempts attempts in this episode. An
// exhausted episode resets once EpisodeReset has passed since the
// previous attempt.
func (s *Supervisor) TryReconnect(ctx context.Context) (connected, attempted bool) {
	switch s.state {
	case StateConnected:
		return true, false
	case StateDisabled:
		return false, false
	}

	now := s.clock.Now()
	first := s.lastAttempt.IsZero()
	since := now.Sub(s.lastAttempt)

	if !first && since < s.delay {
		return false, false
	}

	if s.attempts >= s.lazy.MaxAttempts {
		if !first && since <= s.lazy.EpisodeReset {
			return false, false
		}
		s.logger.Info("reconnect episode reset", "idle", since)
		s.attempts = 0
		s.delay = s.lazy.Floor
	}

	s.lastAttempt = now
	s.attempts++
	s.state = StateConnecting

	s.logger.Info("store reconnect attempt", "attempt", s.attempts, "max_attempts", s.lazy.MaxAttempts)

	err := s.conn.Connect(ctx)
	if err == nil {
		attempt := s.attempts
		s.state = StateConnected
		s.attempts = 0
		s.delay = s.lazy.Floor
		s.reconnectCount++
		s.logger.Info("store reconnected", "reconnect_count", s.reconnectCount)
		s.events.emit(ctx, EventReconnected, attempt, "", now)
		return true, true
	}

	if errors.Is(err, ErrCapabilityUnavailable) {
		s.disable(ctx, err)
		return false, true
	}

	s.state = StateDisconnected
	s.delay = min(s.delay*backoffFactor, s.lazy.Ceiling)
	s.logger.Warn("store reconnect failed", "attempt", s.attempts, "next_delay", s.delay, "error", err)
	s.events.emit(ctx, EventConnectFailed, s.attempts, err.Error(), now)
	return false, true
}

// MarkBroken records a failed write. A connected supervisor becomes
// disconnected; attempt and delay counters are left as they are. The
// broken handle is released by the next connect attempt.
func (s *Supervisor) MarkBroken() {
	if s.state == StateConnected {
		s.state = StateDisconnected
	}
}

func (s *Supervisor) disable(ctx context.Context, err error) {
	if s.state == StateDisabled {
		return
	}
	s.state = StateDisabled
	s.conn.Close()
	s.logger.Warn("store capability unavailable, sink disabled", "error", err)
	s.events.emit(ctx, EventDisabled, 0, err.Error(), s.clock.Now())
}
