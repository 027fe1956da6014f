package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Config is the root configuration structure for the telemetry sink.
// Values come from an INI or YAML file and can be overridden by
// environment variables.
type Config struct {
	General  LoggingConfig  `mapstructure:"general"`
	InfluxDB InfluxDBConfig `mapstructure:"influxdb"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Health   HealthConfig   `mapstructure:"health"`
	Database DatabaseConfig `mapstructure:"database"`
	Producer ProducerConfig `mapstructure:"producer"`

	// Path is the file the configuration was read from, or "" when only
	// environment variables and defaults were used.
	Path string `mapstructure:"-"`
}

// LoggingConfig contains logging settings from the [general] section.
type LoggingConfig struct {
	Level  string `mapstructure:"log_level"`
	Format string `mapstructure:"log_format"`
	File   string `mapstructure:"log_file"`
}

// InfluxDBConfig contains the measurement store settings.
//
// The section keeps its historical name even when Backend selects a store
// other than InfluxDB.
type InfluxDBConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	Backend       string  `mapstructure:"backend"`
	URL           string  `mapstructure:"url"`
	Token         string  `mapstructure:"token"`
	Org           string  `mapstructure:"org"`
	Bucket        string  `mapstructure:"bucket"`
	WriteInterval float64 `mapstructure:"write_interval"`
	PublishMode   string  `mapstructure:"publish_mode"`
	ChangeEpsilon float64 `mapstructure:"change_epsilon"`
	WriteTimeout  float64 `mapstructure:"write_timeout"`
	GRPCPort      int     `mapstructure:"grpc_port"`
}

// MQTTConfig contains settings for the status publisher.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Server   string `mapstructure:"server"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
	ClientID string `mapstructure:"client_id"`
}

// HealthConfig contains liveness file settings. Intervals are seconds.
type HealthConfig struct {
	CheckInterval int    `mapstructure:"check_interval"`
	StaleTimeout  int    `mapstructure:"stale_timeout"`
	File          string `mapstructure:"file"`
}

// DatabaseConfig contains the SQLite event journal settings.
// An empty Path disables the journal.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ProducerConfig contains settings for running the BMS poller as a child
// process. An empty Command means measurements are read from stdin.
type ProducerConfig struct {
	Command         string  `mapstructure:"command"`
	RestartDelay    float64 `mapstructure:"restart_delay"`
	MaxRestartDelay float64 `mapstructure:"max_restart_delay"`
	MaxRestarts     int     `mapstructure:"max_restarts"`

	// Watchdog restarts a poller that delivers nothing for the health
	// stale_timeout.
	Watchdog bool `mapstructure:"watchdog"`
}

// Store backends.
const (
	BackendInfluxDB        = "influxdb"
	BackendVictoriaMetrics = "victoriametrics"
	BackendGreptime        = "greptime"
)

// placeholderToken is the token shipped in the example configuration.
const placeholderToken = "your-influxdb-token"

// setting describes one recognised key and its default.
type setting struct {
	section string
	key     string
	def     string
}

// settings lists every key Load resolves, in help-text order.
var settings = []setting{
	{"general", "log_level", "INFO"},
	{"general", "log_format", "text"},
	{"general", "log_file", ""},

	{"influxdb", "enabled", "false"},
	{"influxdb", "backend", BackendInfluxDB},
	{"influxdb", "url", ""},
	{"influxdb", "token", ""},
	{"influxdb", "org", ""},
	{"influxdb", "bucket", ""},
	{"influxdb", "write_interval", "5"},
	{"influxdb", "publish_mode", "changed"},
	{"influxdb", "change_epsilon", "0"},
	{"influxdb", "write_timeout", "10"},
	{"influxdb", "grpc_port", "4001"},

	{"mqtt", "enabled", "true"},
	{"mqtt", "server", ""},
	{"mqtt", "port", "1883"},
	{"mqtt", "username", ""},
	{"mqtt", "password", ""},
	{"mqtt", "prefix", "seplos"},
	{"mqtt", "client_id", "seplos-sink"},

	{"health", "check_interval", "60"},
	{"health", "stale_timeout", "120"},
	{"health", "file", "/tmp/seplos_health"},

	{"database", "path", ""},

	{"producer", "command", ""},
	{"producer", "restart_delay", "5"},
	{"producer", "max_restart_delay", "300"},
	{"producer", "max_restarts", "0"},
	{"producer", "watchdog", "true"},
}

// Load reads configuration and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. File values: the explicit path, else the first of DefaultSearchPaths
//  3. Legacy environment variables: SECTION_KEY
//  4. Environment variables: SEPLOS_SECTION_KEY
//
// Mandatory store settings missing while the store is enabled yield an
// error wrapping ErrMissing. Type and range failures wrap ErrInvalid.
func Load(path string) (*Config, error) {
	found, err := FindFile(path)
	if err != nil {
		return nil, err
	}

	var src Source
	if found != "" {
		if src, err = OpenSource(found); err != nil {
			return nil, err
		}
	}

	cfg, err := FromLoader(NewLoader(src))
	if err != nil {
		return nil, err
	}
	cfg.Path = found
	return cfg, nil
}

// FromLoader resolves every setting through l, decodes the result into a
// Config and validates it.
func FromLoader(l *Loader) (*Config, error) {
	raw := make(map[string]any)
	for _, s := range settings {
		section, ok := raw[s.section].(map[string]any)
		if !ok {
			section = make(map[string]any)
			raw[s.section] = section
		}
		section[s.key] = strings.TrimSpace(l.Get(s.section, s.key, s.def, envName(s.section, s.key)))
	}

	if err := requireStore(l, raw["influxdb"].(map[string]any)); err != nil {
		return nil, err
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	cfg.InfluxDB.Backend = strings.ToLower(cfg.InfluxDB.Backend)
	cfg.InfluxDB.PublishMode = strings.ToLower(cfg.InfluxDB.PublishMode)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// requireStore enforces the keys a store cannot run without. Org is an
// InfluxDB concept; the other backends ignore it.
func requireStore(l *Loader, store map[string]any) error {
	enabled, _ := store["enabled"].(string)
	if !strings.EqualFold(enabled, "true") && enabled != "1" {
		return nil
	}

	required := []string{"url", "bucket"}
	if backend, _ := store["backend"].(string); strings.EqualFold(backend, BackendInfluxDB) {
		required = append(required, "org")
	}

	var missing []error
	for _, key := range required {
		if _, err := l.Require("influxdb", key, envName("influxdb", key)); err != nil {
			missing = append(missing, err)
		}
	}
	return errors.Join(missing...)
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure wrapping ErrInvalid, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.InfluxDB.PublishMode {
	case "changed", "all":
	default:
		errs = append(errs, fmt.Sprintf("influxdb.publish_mode %q must be 'changed' or 'all'", c.InfluxDB.PublishMode))
	}

	if c.InfluxDB.Enabled {
		if !strings.HasPrefix(c.InfluxDB.URL, "http://") && !strings.HasPrefix(c.InfluxDB.URL, "https://") {
			errs = append(errs, fmt.Sprintf("influxdb.url %q must start with http:// or https://", c.InfluxDB.URL))
		}
	}
	if c.InfluxDB.WriteInterval < 0 {
		errs = append(errs, "influxdb.write_interval cannot be negative")
	}
	if c.InfluxDB.ChangeEpsilon < 0 {
		errs = append(errs, "influxdb.change_epsilon cannot be negative")
	}
	if c.InfluxDB.WriteTimeout < 0 {
		errs = append(errs, "influxdb.write_timeout cannot be negative")
	}
	if c.InfluxDB.GRPCPort < 1 || c.InfluxDB.GRPCPort > 65535 {
		errs = append(errs, "influxdb.grpc_port must be between 1 and 65535")
	}

	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		errs = append(errs, fmt.Sprintf("mqtt.port %d out of range (1-65535)", c.MQTT.Port))
	}

	if c.Health.CheckInterval < 0 {
		errs = append(errs, "health.check_interval cannot be negative")
	}
	if c.Health.StaleTimeout < 0 {
		errs = append(errs, "health.stale_timeout cannot be negative")
	}

	if c.Producer.RestartDelay < 0 || c.Producer.MaxRestartDelay < 0 {
		errs = append(errs, "producer restart delays cannot be negative")
	}
	if c.Producer.MaxRestarts < 0 {
		errs = append(errs, "producer.max_restarts cannot be negative")
	}

	switch strings.ToLower(c.General.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("general.log_format %q must be 'json' or 'text'", c.General.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// Warnings returns non-fatal configuration issues worth logging.
func (c *Config) Warnings() []string {
	var warnings []string

	if c.InfluxDB.Enabled {
		if c.InfluxDB.Backend == BackendInfluxDB && (c.InfluxDB.Token == "" || c.InfluxDB.Token == placeholderToken) {
			warnings = append(warnings, "influxdb token not configured or using placeholder value")
		}
		if c.InfluxDB.WriteInterval < 1 {
			warnings = append(warnings, fmt.Sprintf("influxdb write_interval %gs is very low, may cause high load", c.InfluxDB.WriteInterval))
		}
		switch c.InfluxDB.Backend {
		case BackendInfluxDB, BackendVictoriaMetrics, BackendGreptime:
		default:
			warnings = append(warnings, fmt.Sprintf("unknown store backend %q, telemetry sink will be disabled", c.InfluxDB.Backend))
		}
	}

	switch strings.ToLower(c.General.Level) {
	case "debug", "info", "warn", "warning", "error", "critical":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown log_level %q, using INFO", c.General.Level))
	}

	return warnings
}

// MQTTActive reports whether the status publisher should run.
func (c *Config) MQTTActive() bool {
	return c.MQTT.Enabled && c.MQTT.Server != ""
}

// GetWriteInterval returns the per-key write interval as a Duration.
func (c *Config) GetWriteInterval() time.Duration {
	return seconds(c.InfluxDB.WriteInterval)
}

// GetWriteTimeout returns the store write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return seconds(c.InfluxDB.WriteTimeout)
}

// GetCheckInterval returns the liveness file refresh interval.
func (c *Config) GetCheckInterval() time.Duration {
	return time.Duration(c.Health.CheckInterval) * time.Second
}

// GetStaleTimeout returns how long without producer data counts as stale.
func (c *Config) GetStaleTimeout() time.Duration {
	return time.Duration(c.Health.StaleTimeout) * time.Second
}

// GetRestartDelay returns the first poller restart delay.
func (c *Config) GetRestartDelay() time.Duration {
	return seconds(c.Producer.RestartDelay)
}

// GetMaxRestartDelay returns the poller restart backoff cap.
func (c *Config) GetMaxRestartDelay() time.Duration {
	return seconds(c.Producer.MaxRestartDelay)
}

// ProducerArgs splits the poller command on whitespace. No shell quoting
// is applied.
func (c *Config) ProducerArgs() (binary string, args []string) {
	fields := strings.Fields(c.Producer.Command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
