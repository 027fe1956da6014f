package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_SectionedINI(t *testing.T) {
	path := writeConfig(t, "seplos_bms_mqtt.ini", `
[general]
log_level = DEBUG

[influxdb]
enabled = true
url = http://influx.local:8086
token = s3cret
org = home
bucket = seplos
write_interval = 2.5
publish_mode = ALL

[mqtt]
server = 192.168.1.100
port = 1884
username = bms
prefix = rack1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Path != path {
		t.Errorf("Path = %q, want %q", cfg.Path, path)
	}
	if !cfg.InfluxDB.Enabled {
		t.Error("InfluxDB.Enabled = false, want true")
	}
	if cfg.InfluxDB.URL != "http://influx.local:8086" {
		t.Errorf("InfluxDB.URL = %q", cfg.InfluxDB.URL)
	}
	if cfg.InfluxDB.PublishMode != "all" {
		t.Errorf("InfluxDB.PublishMode = %q, want %q", cfg.InfluxDB.PublishMode, "all")
	}
	if got := cfg.GetWriteInterval(); got != 2500*time.Millisecond {
		t.Errorf("GetWriteInterval() = %v, want 2.5s", got)
	}
	if cfg.InfluxDB.Backend != BackendInfluxDB {
		t.Errorf("InfluxDB.Backend = %q, want default %q", cfg.InfluxDB.Backend, BackendInfluxDB)
	}
	if cfg.MQTT.Port != 1884 || cfg.MQTT.Username != "bms" || cfg.MQTT.Prefix != "rack1" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if !cfg.MQTTActive() {
		t.Error("MQTTActive() = false, want true")
	}
	if cfg.General.Level != "DEBUG" {
		t.Errorf("General.Level = %q, want DEBUG", cfg.General.Level)
	}
	if got := cfg.GetStaleTimeout(); got != 120*time.Second {
		t.Errorf("GetStaleTimeout() = %v, want default 120s", got)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
influxdb:
  enabled: true
  backend: victoriametrics
  url: "http://victoria:8428"
  bucket: seplos
  change_epsilon: 0.005
health:
  check_interval: 30
  file: /run/seplos/health
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.InfluxDB.Backend != BackendVictoriaMetrics {
		t.Errorf("Backend = %q", cfg.InfluxDB.Backend)
	}
	if cfg.InfluxDB.ChangeEpsilon != 0.005 {
		t.Errorf("ChangeEpsilon = %v, want 0.005", cfg.InfluxDB.ChangeEpsilon)
	}
	if cfg.GetCheckInterval() != 30*time.Second {
		t.Errorf("GetCheckInterval() = %v", cfg.GetCheckInterval())
	}
	if cfg.Health.File != "/run/seplos/health" {
		t.Errorf("Health.File = %q", cfg.Health.File)
	}
	if cfg.MQTTActive() {
		t.Error("MQTTActive() = true with no server")
	}
}

func TestLoad_LegacyFlatSection(t *testing.T) {
	path := writeConfig(t, "seplos_bms_mqtt.ini", `
[seplos3mqtt]
serial = /dev/ttyUSB0
mqtt_server = broker.local
mqtt_port = 1885
mqtt_user = legacy
mqtt_pass = pw
mqtt_prefix = old
influxdb_enabled = true
influxdb_url = https://influx.example
influxdb_token = tok
influxdb_org = org
influxdb_bucket = bucket
influxdb_write_interval = 10
influxdb_publish_mode = all
log_level = WARNING
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Server != "broker.local" || cfg.MQTT.Port != 1885 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.MQTT.Username != "legacy" || cfg.MQTT.Password != "pw" || cfg.MQTT.Prefix != "old" {
		t.Errorf("MQTT credentials = %+v", cfg.MQTT)
	}
	if !cfg.InfluxDB.Enabled || cfg.InfluxDB.URL != "https://influx.example" || cfg.InfluxDB.Token != "tok" {
		t.Errorf("InfluxDB = %+v", cfg.InfluxDB)
	}
	if cfg.InfluxDB.WriteInterval != 10 || cfg.InfluxDB.PublishMode != "all" {
		t.Errorf("InfluxDB write settings = %+v", cfg.InfluxDB)
	}
	if cfg.General.Level != "WARNING" {
		t.Errorf("General.Level = %q", cfg.General.Level)
	}
}

func TestLoad_EnvPrecedence(t *testing.T) {
	path := writeConfig(t, "seplos_bms_mqtt.ini", `
[influxdb]
enabled = true
url = http://from-file:8086
org = home
bucket = seplos
`)

	t.Setenv("INFLUXDB_URL", "http://legacy-env:8086")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.InfluxDB.URL != "http://legacy-env:8086" {
		t.Errorf("URL = %q, want legacy env value", cfg.InfluxDB.URL)
	}

	t.Setenv("SEPLOS_INFLUXDB_URL", "http://explicit-env:8086")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.InfluxDB.URL != "http://explicit-env:8086" {
		t.Errorf("URL = %q, want explicit env value", cfg.InfluxDB.URL)
	}
}

func TestLoad_MissingMandatory(t *testing.T) {
	path := writeConfig(t, "seplos_bms_mqtt.ini", `
[influxdb]
enabled = true
token = abc
`)

	_, err := Load(path)
	if !errors.Is(err, ErrMissing) {
		t.Fatalf("Load() error = %v, want ErrMissing", err)
	}
	for _, key := range []string{"url", "bucket", "org"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %q", err, key)
		}
	}
}

func TestLoad_MandatoryOnlyWhenEnabled(t *testing.T) {
	path := writeConfig(t, "seplos_bms_mqtt.ini", `
[influxdb]
enabled = false
`)

	if _, err := Load(path); err != nil {
		t.Errorf("Load() error = %v, want nil for disabled store", err)
	}
}

func TestLoad_Producer(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
producer:
  command: "/usr/local/bin/seplos-poller  --port /dev/ttyUSB0"
  restart_delay: 2.5
  max_restarts: 4
  watchdog: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	binary, args := cfg.ProducerArgs()
	if binary != "/usr/local/bin/seplos-poller" {
		t.Errorf("binary = %q", binary)
	}
	if len(args) != 2 || args[0] != "--port" || args[1] != "/dev/ttyUSB0" {
		t.Errorf("args = %q", args)
	}
	if cfg.GetRestartDelay() != 2500*time.Millisecond {
		t.Errorf("GetRestartDelay() = %v", cfg.GetRestartDelay())
	}
	if cfg.GetMaxRestartDelay() != 5*time.Minute {
		t.Errorf("GetMaxRestartDelay() = %v, want default 5m", cfg.GetMaxRestartDelay())
	}
	if cfg.Producer.MaxRestarts != 4 || cfg.Producer.Watchdog {
		t.Errorf("Producer = %+v", cfg.Producer)
	}

	empty := &Config{}
	if binary, args := empty.ProducerArgs(); binary != "" || args != nil {
		t.Errorf("ProducerArgs() on empty command = %q %q", binary, args)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "bad publish mode",
			content: "[influxdb]\npublish_mode = sometimes\n",
		},
		{
			name:    "bad url scheme",
			content: "[influxdb]\nenabled = true\nurl = influx:8086\norg = o\nbucket = b\n",
		},
		{
			name:    "mqtt port out of range",
			content: "[mqtt]\nport = 70000\n",
		},
		{
			name:    "mqtt port not a number",
			content: "[mqtt]\nport = abc\n",
		},
		{
			name:    "negative stale timeout",
			content: "[health]\nstale_timeout = -1\n",
		},
		{
			name:    "negative restart delay",
			content: "[producer]\nrestart_delay = -5\n",
		},
		{
			name:    "bad enabled flag",
			content: "[influxdb]\nenabled = maybe\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "seplos_bms_mqtt.ini", tt.content)
			_, err := Load(path)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Load() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/seplos_bms_mqtt.ini")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", "invalid: [yaml: content")

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestWarnings(t *testing.T) {
	cfg := &Config{
		General: LoggingConfig{Level: "chatty", Format: "text"},
		InfluxDB: InfluxDBConfig{
			Enabled:       true,
			Backend:       BackendInfluxDB,
			Token:         placeholderToken,
			WriteInterval: 0.5,
		},
	}

	warnings := cfg.Warnings()
	want := []string{"placeholder", "very low", "log_level"}
	for _, w := range want {
		found := false
		for _, got := range warnings {
			if strings.Contains(got, w) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Warnings() = %v, missing one containing %q", warnings, w)
		}
	}

	cfg.InfluxDB.Backend = "carbon"
	if joined := strings.Join(cfg.Warnings(), "\n"); !strings.Contains(joined, "unknown store backend") {
		t.Errorf("Warnings() = %q, want unknown backend warning", joined)
	}
}

func TestHelp(t *testing.T) {
	help := Help()
	for _, section := range []string{"[general]", "[influxdb]", "[mqtt]", "[health]", "[producer]", "publish_mode"} {
		if !strings.Contains(help, section) {
			t.Errorf("Help() missing %q", section)
		}
	}
}
