package sink

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// PublishMode selects which measurements the gate forwards.
type PublishMode string

const (
	// ModeAll forwards every measurement that passes the rate limit.
	ModeAll PublishMode = "all"

	// ModeChanged forwards a measurement only when a numeric field differs
	// from the last forwarded set for the same key.
	ModeChanged PublishMode = "changed"
)

// ParsePublishMode converts a configuration string to a PublishMode.
// Matching is case-insensitive.
func ParsePublishMode(s string) (PublishMode, error) {
	switch PublishMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAll:
		return ModeAll, nil
	case ModeChanged:
		return ModeChanged, nil
	default:
		return "", fmt.Errorf("invalid publish mode %q (want %q or %q)", s, ModeAll, ModeChanged)
	}
}

// Gate decides, per publish key, whether a measurement should be forwarded.
//
// It combines a minimum-interval rate limiter with a last-value change
// detector. Each key owns independent state.
//
// Thread Safety: Gate is not synchronised. Sink serialises access under
// its own lock.
type Gate struct {
	mode     PublishMode
	interval time.Duration
	epsilon  float64

	lastValues  map[string]map[string]float64
	lastAttempt map[string]time.Time

	// pending holds the set accepted by ShouldPublish until the write is
	// attempted. A measurement that never reaches the store leaves
	// lastValues untouched.
	pending map[string]map[string]float64
}

// NewGate creates a Gate. An epsilon of zero means exact comparison.
func NewGate(mode PublishMode, interval time.Duration, epsilon float64) *Gate {
	if epsilon < 0 {
		epsilon = 0
	}
	return &Gate{
		mode:        mode,
		interval:    interval,
		epsilon:     epsilon,
		lastValues:  make(map[string]map[string]float64),
		lastAttempt: make(map[string]time.Time),
		pending:     make(map[string]map[string]float64),
	}
}

// Mode returns the configured publish mode.
func (g *Gate) Mode() PublishMode {
	return g.mode
}

// ShouldPublish reports whether m should be forwarded for key at now.
//
// The rate limit is checked first and rejects without touching any
// cache. In changed mode an accepted measurement is compared against the
// last attempted set for key and only replaces it once MarkAttempted is
// called.
func (g *Gate) ShouldPublish(key string, m Measurement, now time.Time) bool {
	delete(g.pending, key)

	if last, ok := g.lastAttempt[key]; ok && now.Sub(last) < g.interval {
		return false
	}

	if g.mode == ModeAll {
		return true
	}

	current := numericFields(m)
	previous, seen := g.lastValues[key]
	if !seen || g.differs(previous, current) {
		g.pending[key] = current
		return true
	}
	return false
}

// MarkAttempted records that a write for key was attempted at now and
// commits the set accepted by the preceding ShouldPublish. Rate limiting
// counts attempts, so a failed write is not retried on the very next call.
func (g *Gate) MarkAttempted(key string, now time.Time) {
	g.lastAttempt[key] = now
	if current, ok := g.pending[key]; ok {
		g.lastValues[key] = current
		delete(g.pending, key)
	}
}

// differs reports whether any field was added, removed or changed.
func (g *Gate) differs(previous, current map[string]float64) bool {
	if len(previous) != len(current) {
		return true
	}
	for name, v := range current {
		old, ok := previous[name]
		if !ok {
			return true
		}
		if g.epsilon == 0 {
			if v != old {
				return true
			}
			continue
		}
		if math.Abs(v-old) > g.epsilon {
			return true
		}
	}
	return false
}
