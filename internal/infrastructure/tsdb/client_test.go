package tsdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/seplos-sink/internal/infrastructure/config"
	"github.com/nerrad567/seplos-sink/internal/infrastructure/tsdb"
)

// fakeVM emulates the VictoriaMetrics /health and /write endpoints.
type fakeVM struct {
	mu         sync.Mutex
	healthCode int
	writeCode  int
	bodies     []string
	queries    []string
	auth       []string
}

func newFakeVM(t *testing.T) (*fakeVM, *httptest.Server) {
	t.Helper()
	f := &fakeVM{healthCode: http.StatusOK, writeCode: http.StatusNoContent}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		code := f.healthCode
		f.mu.Unlock()
		w.WriteHeader(code)
		_, _ = io.WriteString(w, "OK")
	})
	mux.HandleFunc("/write", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.bodies = append(f.bodies, string(body))
		f.queries = append(f.queries, r.URL.RawQuery)
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		code := f.writeCode
		f.mu.Unlock()

		w.WriteHeader(code)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled: true,
		Backend: config.BackendVictoriaMetrics,
		URL:     url,
		Bucket:  "seplos",
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8428")
	cfg.Enabled = false

	client, err := tsdb.Connect(cfg, 0)
	if !errors.Is(err, tsdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned non-nil client when disabled")
	}
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := tsdb.Connect(testConfig(""), 0)
	if !errors.Is(err, tsdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestClose(t *testing.T) {
	client, err := tsdb.Connect(testConfig("http://127.0.0.1:8428"), time.Second)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, tsdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Health Check Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	f, srv := newFakeVM(t)
	client, err := tsdb.Connect(testConfig(srv.URL), time.Second)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	f.mu.Lock()
	f.healthCode = http.StatusServiceUnavailable
	f.mu.Unlock()

	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() = nil for unhealthy server")
	}
}

func TestHealthCheck_Cancelled(t *testing.T) {
	_, srv := newFakeVM(t)
	client, err := tsdb.Connect(testConfig(srv.URL), time.Second)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() with cancelled context should return error")
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWritePoint(t *testing.T) {
	f, srv := newFakeVM(t)
	cfg := testConfig(srv.URL)
	cfg.Token = "vm-token"
	client, err := tsdb.Connect(cfg, time.Second)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err = client.WritePoint(context.Background(), "seplos_battery",
		map[string]string{"battery_id": "1", "device": "battery_1"},
		map[string]float64{"soc": 80, "pack_voltage": 53.25},
		ts,
	)
	if err != nil {
		t.Fatalf("WritePoint() error = %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.bodies) != 1 {
		t.Fatalf("write requests = %d, want 1", len(f.bodies))
	}
	want := "seplos_battery,battery_id=1,device=battery_1 pack_voltage=53.25,soc=80 1772366400000000000\n"
	if f.bodies[0] != want {
		t.Errorf("body = %q, want %q", f.bodies[0], want)
	}
	if f.queries[0] != "db=seplos" {
		t.Errorf("query = %q, want db=seplos", f.queries[0])
	}
	if f.auth[0] != "Bearer vm-token" {
		t.Errorf("Authorization = %q, want bearer token", f.auth[0])
	}
}

func TestWritePoint_NoBucketNoToken(t *testing.T) {
	f, srv := newFakeVM(t)
	cfg := testConfig(srv.URL)
	cfg.Bucket = ""
	client, err := tsdb.Connect(cfg, time.Second)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.WritePoint(context.Background(), "seplos_pack", nil, map[string]float64{"total_power": 1}, time.Now()); err != nil {
		t.Fatalf("WritePoint() error = %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queries[0] != "" {
		t.Errorf("query = %q, want empty", f.queries[0])
	}
	if f.auth[0] != "" {
		t.Errorf("Authorization = %q, want empty", f.auth[0])
	}
}

func TestWritePoint_ServerError(t *testing.T) {
	f, srv := newFakeVM(t)
	f.writeCode = http.StatusBadRequest

	client, err := tsdb.Connect(testConfig(srv.URL), time.Second)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	err = client.WritePoint(context.Background(), "seplos_pack", nil, map[string]float64{"total_power": 1}, time.Now())
	if !errors.Is(err, tsdb.ErrWriteFailed) {
		t.Errorf("WritePoint() error = %v, want ErrWriteFailed", err)
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("WritePoint() error = %v, want status code", err)
	}
}

func TestWritePoint_AfterClose(t *testing.T) {
	_, srv := newFakeVM(t)
	client, err := tsdb.Connect(testConfig(srv.URL), time.Second)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	client.Close()

	err = client.WritePoint(context.Background(), "seplos_pack", nil, map[string]float64{"total_power": 1}, time.Now())
	if !errors.Is(err, tsdb.ErrNotConnected) {
		t.Errorf("WritePoint() error = %v, want ErrNotConnected", err)
	}
}
