package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/seplos-sink/internal/clock"
	"github.com/nerrad567/seplos-sink/internal/sink"
)

type fakeStats struct{}

func (fakeStats) Stats() sink.Stats {
	return sink.Stats{Connected: true, WritesTotal: 7}
}

type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	err       error
	published []any
}

func (p *fakePublisher) PublishStatus(v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, v)
	return nil
}

func (p *fakePublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func TestReporter_Snapshot(t *testing.T) {
	clk := clock.Fake(now)

	tests := []struct {
		name      string
		publisher *fakePublisher
		advance   time.Duration
		touch     bool
		status    string
		mqtt      string
	}{
		{"fresh without mqtt", nil, 0, false, StatusHealthy, MQTTDisabled},
		{"mqtt connected", &fakePublisher{connected: true}, 0, false, StatusHealthy, MQTTConnected},
		{"mqtt disconnected", &fakePublisher{}, 0, false, StatusHealthy, MQTTDisconnected},
		{"no measurements past timeout", nil, 121 * time.Second, false, StatusStale, MQTTDisabled},
		{"measurement resets staleness", nil, 121 * time.Second, true, StatusHealthy, MQTTDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pub StatusPublisher
			if tt.publisher != nil {
				pub = tt.publisher
			}
			r := NewReporter(Config{StaleTimeout: 120 * time.Second}, fakeStats{}, pub, clk, nil)

			clk.Advance(tt.advance)
			if tt.touch {
				r.Touch()
			}

			snap := r.Snapshot()
			if snap.Status != tt.status || snap.MQTT != tt.mqtt {
				t.Errorf("Snapshot() = %s/%s, want %s/%s", snap.Status, snap.MQTT, tt.status, tt.mqtt)
			}
		})
	}
}

func TestReporter_StaleDisabled(t *testing.T) {
	clk := clock.Fake(now)
	r := NewReporter(Config{}, nil, nil, clk, nil)
	clk.Advance(24 * time.Hour)

	if got := r.Snapshot().Status; got != StatusHealthy {
		t.Errorf("Status = %s, want healthy when stale timeout is 0", got)
	}
}

func TestReporter_Report(t *testing.T) {
	clk := clock.Fake(now)
	path := filepath.Join(t.TempDir(), "seplos_health")
	pub := &fakePublisher{connected: true}

	r := NewReporter(Config{Path: path, StaleTimeout: time.Minute}, fakeStats{}, pub, clk, nil)
	r.Report()

	msg, err := Check(path, DefaultMaxAge, clk.Now())
	if err != nil {
		t.Fatalf("Check() after Report error = %v", err)
	}
	if msg == "" {
		t.Error("Check() returned empty summary")
	}

	if pub.count() != 1 {
		t.Fatalf("published %d snapshots, want 1", pub.count())
	}
	stats, ok := pub.published[0].(sink.Stats)
	if !ok || stats.WritesTotal != 7 {
		t.Errorf("published %#v, want sink stats", pub.published[0])
	}
}

func TestReporter_ReportSkipsDisconnectedPublisher(t *testing.T) {
	pub := &fakePublisher{}
	r := NewReporter(Config{}, fakeStats{}, pub, clock.Fake(now), nil)
	r.Report()

	if pub.count() != 0 {
		t.Errorf("published %d snapshots while disconnected", pub.count())
	}
}

func TestReporter_ReportLogsFailures(t *testing.T) {
	logger := &recordingLogger{}
	pub := &fakePublisher{connected: true, err: errors.New("broker gone")}
	path := filepath.Join(t.TempDir(), "missing", "seplos_health")

	r := NewReporter(Config{Path: path}, fakeStats{}, pub, clock.Fake(now), logger)
	r.Report()

	logger.mu.Lock()
	defer logger.mu.Unlock()
	if len(logger.msgs) != 2 {
		t.Errorf("warnings = %v, want file and publish failures", logger.msgs)
	}
}

func TestReporter_Run(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seplos_health")
	r := NewReporter(Config{Path: path, Interval: 10 * time.Millisecond}, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("health file not written")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestReporter_RunDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seplos_health")
	r := NewReporter(Config{Path: path}, nil, nil, nil, nil)

	r.Run(context.Background()) // returns immediately with zero interval

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("health file written with reporting disabled: %v", err)
	}
}
