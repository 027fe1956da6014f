package producer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitDone(t *testing.T, m *Manager, timeout time.Duration) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(timeout):
		t.Fatalf("manager did not finish within %v (status %s)", timeout, m.Status())
	}
}

func waitStatus(t *testing.T, m *Manager, want Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for m.Status() != want {
		if time.Now().After(deadline) {
			t.Fatalf("Status() = %q, want %q", m.Status(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// lineCollector is a Consume func that records stdout lines.
type lineCollector struct {
	mu    sync.Mutex
	lines []string
	runs  int
}

func (c *lineCollector) consume(_ context.Context, r io.Reader) {
	c.mu.Lock()
	c.runs++
	c.mu.Unlock()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.mu.Lock()
		c.lines = append(c.lines, scanner.Text())
		c.mu.Unlock()
	}
}

func (c *lineCollector) snapshot() ([]string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...), c.runs
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Config{
		Name:   "seplos-poller",
		Binary: "/usr/local/bin/seplos-poller",
		Args:   []string{"--port", "/dev/ttyUSB0"},
	})

	if m.config.RestartDelay != 5*time.Second {
		t.Errorf("RestartDelay = %v, want %v", m.config.RestartDelay, 5*time.Second)
	}
	if m.config.MaxRestartDelay != 5*time.Minute {
		t.Errorf("MaxRestartDelay = %v, want %v", m.config.MaxRestartDelay, 5*time.Minute)
	}
	if m.config.StableThreshold != 2*time.Minute {
		t.Errorf("StableThreshold = %v, want %v", m.config.StableThreshold, 2*time.Minute)
	}
	if m.config.GracefulTimeout != 10*time.Second {
		t.Errorf("GracefulTimeout = %v, want %v", m.config.GracefulTimeout, 10*time.Second)
	}
	if m.config.HealthCheckInterval != 30*time.Second {
		t.Errorf("HealthCheckInterval = %v, want %v", m.config.HealthCheckInterval, 30*time.Second)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("poller", "/usr/bin/poller", []string{"--once"})

	if cfg.Name != "poller" || cfg.Binary != "/usr/bin/poller" {
		t.Errorf("Name/Binary = %q/%q", cfg.Name, cfg.Binary)
	}
	if len(cfg.Args) != 1 || cfg.Args[0] != "--once" {
		t.Errorf("Args = %v, want [--once]", cfg.Args)
	}
	if !cfg.RestartOnFailure {
		t.Error("RestartOnFailure = false, want true")
	}
	if cfg.MaxRestartAttempts != 0 {
		t.Errorf("MaxRestartAttempts = %d, want 0 (unlimited)", cfg.MaxRestartAttempts)
	}
}

func TestManager_InitialState(t *testing.T) {
	m := NewManager(Config{Name: "test", Binary: "/bin/true"})

	if m.Status() != StatusStopped {
		t.Errorf("initial Status() = %q, want %q", m.Status(), StatusStopped)
	}
	if m.IsRunning() {
		t.Error("IsRunning() = true, want false")
	}
	if m.PID() != 0 {
		t.Errorf("PID() = %d, want 0", m.PID())
	}
	if m.LastError() != nil {
		t.Errorf("LastError() = %v, want nil", m.LastError())
	}
	if err := m.Stop(); err != nil {
		t.Errorf("Stop() before Start error = %v", err)
	}

	stats := m.Stats()
	if stats.Name != "test" || stats.Status != StatusStopped || stats.Uptime != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestManager_ConsumesStdout(t *testing.T) {
	c := &lineCollector{}
	m := NewManager(Config{
		Name:    "echo",
		Binary:  "/bin/sh",
		Args:    []string{"-c", `echo '{"source":"pack","data":{}}'; echo second; echo oops >&2`},
		Consume: c.consume,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, m, 5*time.Second)

	lines, runs := c.snapshot()
	if runs != 1 {
		t.Errorf("Consume runs = %d, want 1", runs)
	}
	if len(lines) != 2 || lines[1] != "second" {
		t.Errorf("lines = %q, want 2 lines ending in %q", lines, "second")
	}
	// Without restart an exit is still unexpected for a poller.
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
	if m.LastError() == nil {
		t.Error("LastError() = nil after unexpected exit")
	}
}

func TestManager_RestartsUntilLimit(t *testing.T) {
	c := &lineCollector{}
	var restarts atomic.Int32
	m := NewManager(Config{
		Name:               "flaky",
		Binary:             "/bin/sh",
		Args:               []string{"-c", "echo tick; exit 1"},
		Consume:            c.consume,
		RestartOnFailure:   true,
		RestartDelay:       10 * time.Millisecond,
		MaxRestartDelay:    20 * time.Millisecond,
		MaxRestartAttempts: 2,
		OnRestart:          func(int) { restarts.Add(1) },
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, m, 5*time.Second)

	if got := restarts.Load(); got != 2 {
		t.Errorf("OnRestart calls = %d, want 2", got)
	}
	if _, runs := c.snapshot(); runs != 3 {
		t.Errorf("Consume runs = %d, want 3", runs)
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}
}

func TestManager_StopRunning(t *testing.T) {
	m := NewManager(Config{
		Name:            "sleeper",
		Binary:          "/bin/sh",
		Args:            []string{"-c", "sleep 30"},
		GracefulTimeout: 2 * time.Second,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}
	if m.PID() == 0 {
		t.Error("PID() = 0 while running")
	}

	start := time.Now()
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Stop() took %v, want a graceful stop", elapsed)
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusStopped)
	}
	if err := m.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestManager_StopDuringRestartDelay(t *testing.T) {
	m := NewManager(Config{
		Name:             "crasher",
		Binary:           "/bin/sh",
		Args:             []string{"-c", "exit 3"},
		RestartOnFailure: true,
		RestartDelay:     time.Hour,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitStatus(t, m, StatusFailed)

	done := make(chan error, 1)
	go func() { done <- m.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() blocked on restart delay")
	}
	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusStopped)
	}
}

func TestManager_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(Config{
		Name:             "sleeper",
		Binary:           "/bin/sh",
		Args:             []string{"-c", "exec sleep 30"},
		RestartOnFailure: true,
	})

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()
	waitDone(t, m, 5*time.Second)

	if m.Status() != StatusStopped {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusStopped)
	}
}

func TestManager_WatchdogKillsUnhealthy(t *testing.T) {
	m := NewManager(Config{
		Name:                "hung",
		Binary:              "/bin/sh",
		Args:                []string{"-c", "exec sleep 30"},
		HealthCheckFunc:     func(context.Context) error { return errors.New("no measurements") },
		HealthCheckInterval: 10 * time.Millisecond,
	})

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, m, 5*time.Second)

	err := m.LastError()
	if err == nil || !strings.Contains(err.Error(), "failed health checks") {
		t.Errorf("LastError() = %v, want watchdog kill", err)
	}
}

func TestManager_StartErrors(t *testing.T) {
	m := NewManager(Config{Name: "missing", Binary: "/nonexistent/seplos-poller"})
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail for a missing binary")
	}
	if m.Status() != StatusFailed {
		t.Errorf("Status() = %q, want %q", m.Status(), StatusFailed)
	}

	running := NewManager(Config{Name: "sleeper", Binary: "/bin/sh", Args: []string{"-c", "exec sleep 30"}})
	if err := running.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer running.Stop() //nolint:errcheck // test cleanup

	if err := running.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}
