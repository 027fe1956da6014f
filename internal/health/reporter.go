package health

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/seplos-sink/internal/clock"
	"github.com/nerrad567/seplos-sink/internal/sink"
)

// StatsSource provides the sink snapshot published with each report.
type StatsSource interface {
	Stats() sink.Stats
}

// StatusPublisher receives each stats snapshot, e.g. the MQTT client.
type StatusPublisher interface {
	PublishStatus(v any) error
	IsConnected() bool
}

// Logger is the logging interface used by the reporter.
type Logger interface {
	Warn(msg string, args ...any)
}

// Config holds reporter settings.
type Config struct {
	// Path is the health file. Empty disables the file.
	Path string

	// Interval between reports. Zero or negative disables Run.
	Interval time.Duration

	// StaleTimeout is how long without a measurement before the status
	// turns stale. Zero disables staleness.
	StaleTimeout time.Duration
}

// Reporter periodically writes the health file and publishes sink stats.
//
// Thread Safety: Touch may be called from any goroutine while Run is active.
type Reporter struct {
	cfg       Config
	stats     StatsSource
	publisher StatusPublisher
	clock     clock.Clock
	logger    Logger

	mu           sync.Mutex
	lastActivity time.Time
}

// NewReporter creates a reporter. publisher may be nil when MQTT is
// disabled; logger may be nil.
func NewReporter(cfg Config, stats StatsSource, publisher StatusPublisher, clk clock.Clock, logger Logger) *Reporter {
	if clk == nil {
		clk = clock.Real()
	}
	return &Reporter{
		cfg:          cfg,
		stats:        stats,
		publisher:    publisher,
		clock:        clk,
		logger:       logger,
		lastActivity: clk.Now(),
	}
}

// Touch records that the producer delivered a measurement.
func (r *Reporter) Touch() {
	now := r.clock.Now()
	r.mu.Lock()
	r.lastActivity = now
	r.mu.Unlock()
}

// Snapshot computes the current health record without writing it.
func (r *Reporter) Snapshot() Snapshot {
	now := r.clock.Now()

	r.mu.Lock()
	last := r.lastActivity
	r.mu.Unlock()

	status := StatusHealthy
	if r.cfg.StaleTimeout > 0 && now.Sub(last) > r.cfg.StaleTimeout {
		status = StatusStale
	}

	mqttState := MQTTDisabled
	if r.publisher != nil {
		mqttState = MQTTDisconnected
		if r.publisher.IsConnected() {
			mqttState = MQTTConnected
		}
	}

	return Snapshot{At: now, Status: status, MQTT: mqttState}
}

// Report writes the health file and publishes the stats once.
func (r *Reporter) Report() {
	snap := r.Snapshot()

	if r.cfg.Path != "" {
		if err := WriteFile(r.cfg.Path, snap); err != nil {
			r.warn("failed to write health file", err)
		}
	}

	if r.publisher != nil && r.stats != nil && r.publisher.IsConnected() {
		if err := r.publisher.PublishStatus(r.stats.Stats()); err != nil {
			r.warn("failed to publish sink status", err)
		}
	}
}

// Run reports immediately and then every Interval until ctx is done.
func (r *Reporter) Run(ctx context.Context) {
	if r.cfg.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.Report()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Report()
		}
	}
}

func (r *Reporter) warn(msg string, err error) {
	if r.logger != nil {
		r.logger.Warn(msg, "error", err)
	}
}
