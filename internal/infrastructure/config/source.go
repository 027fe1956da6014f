package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// legacySection is the flat section used by old configuration files.
const legacySection = "seplos3mqtt"

// envPrefix prefixes the explicit environment override for every key.
const envPrefix = "SEPLOS_"

// DefaultSearchPaths are tried in order when no path is given.
var DefaultSearchPaths = []string{
	"/app/seplos_bms_mqtt.ini",
	"/app/config/seplos_bms_mqtt.ini",
	"seplos_bms_mqtt.ini",
	"config.yaml",
}

// legacyKeys maps section/key pairs to their flat legacy names.
// Pairs not listed fall back to the bare key.
var legacyKeys = map[[2]string]string{
	{"serial", "port"}:             "serial",
	{"mqtt", "server"}:             "mqtt_server",
	{"mqtt", "port"}:               "mqtt_port",
	{"mqtt", "username"}:           "mqtt_user",
	{"mqtt", "password"}:           "mqtt_pass",
	{"mqtt", "prefix"}:             "mqtt_prefix",
	{"influxdb", "enabled"}:        "influxdb_enabled",
	{"influxdb", "url"}:            "influxdb_url",
	{"influxdb", "token"}:          "influxdb_token",
	{"influxdb", "org"}:            "influxdb_org",
	{"influxdb", "bucket"}:         "influxdb_bucket",
	{"influxdb", "write_interval"}: "influxdb_write_interval",
	{"influxdb", "publish_mode"}:   "influxdb_publish_mode",
	{"health", "check_interval"}:   "health_check_interval",
	{"general", "log_level"}:       "log_level",
}

// Source is a sectioned key/value store read from a configuration file.
type Source interface {
	// Lookup returns the raw value of section/key and whether it is set.
	Lookup(section, key string) (string, bool)
}

// OpenSource reads the file at path. Files ending in .yaml or .yml are
// parsed as YAML; everything else as INI.
func OpenSource(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return newYAMLSource(path)
	default:
		return newINISource(path)
	}
}

// FindFile returns the first existing configuration file.
//
// An explicit path must exist. With an empty path the DefaultSearchPaths
// are tried; if none exists FindFile returns "" and a nil error, and
// configuration comes from the environment and defaults alone.
func FindFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("reading config file: %w", err)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

// iniSource reads INI files through viper. Viper exposes INI sections as
// "section.key" paths.
type iniSource struct {
	v *viper.Viper
}

func newINISource(path string) (*iniSource, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &iniSource{v: v}, nil
}

func (s *iniSource) Lookup(section, key string) (string, bool) {
	path := strings.ToLower(section + "." + key)
	if !s.v.IsSet(path) {
		return "", false
	}
	return s.v.GetString(path), true
}

// yamlSource reads the two-level YAML layout:
//
//	influxdb:
//	  enabled: true
//	  url: http://localhost:8086
type yamlSource struct {
	sections map[string]map[string]any
}

func newYAMLSource(path string) (*yamlSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var sections map[string]map[string]any
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &yamlSource{sections: sections}, nil
}

func (s *yamlSource) Lookup(section, key string) (string, bool) {
	sec, ok := s.sections[section]
	if !ok {
		return "", false
	}
	v, ok := sec[key]
	if !ok || v == nil {
		return "", false
	}
	return fmt.Sprint(v), true
}

// Loader resolves configuration values with the following precedence:
//  1. explicit environment variable (if named)
//  2. legacy environment variable SECTION_KEY
//  3. section/key in the file
//  4. the flat legacy section, via the legacy key map
//
// A nil Source means no file was found.
type Loader struct {
	src Source
}

// NewLoader creates a Loader over src.
func NewLoader(src Source) *Loader {
	return &Loader{src: src}
}

// Lookup resolves section/key and reports whether any layer set it.
func (l *Loader) Lookup(section, key, env string) (string, bool) {
	if env != "" {
		if v, ok := os.LookupEnv(env); ok {
			return v, true
		}
	}
	if v, ok := os.LookupEnv(strings.ToUpper(section + "_" + key)); ok {
		return v, true
	}
	if l.src == nil {
		return "", false
	}
	if v, ok := l.src.Lookup(section, key); ok {
		return v, true
	}
	legacy, ok := legacyKeys[[2]string{section, key}]
	if !ok {
		legacy = key
	}
	return l.src.Lookup(legacySection, legacy)
}

// Get resolves section/key, returning def when nothing sets it.
func (l *Loader) Get(section, key, def, env string) string {
	if v, ok := l.Lookup(section, key, env); ok {
		return v
	}
	return def
}

// Require resolves section/key and fails with ErrMissing when unset.
func (l *Loader) Require(section, key, env string) (string, error) {
	if v, ok := l.Lookup(section, key, env); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: [%s] %s", ErrMissing, section, key)
}

// envName returns the explicit override variable for section/key.
func envName(section, key string) string {
	return envPrefix + strings.ToUpper(section+"_"+key)
}

// Sentinel errors for configuration loading.
var (
	// ErrMissing indicates a mandatory value is not set anywhere.
	ErrMissing = errors.New("config: mandatory value missing")

	// ErrInvalid indicates a value failed type conversion or validation.
	ErrInvalid = errors.New("config: invalid value")
)
