// Package logging provides structured logging for the telemetry sink.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the application.
//
// # Features
//
//   - Text output by default, JSON for log shippers
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Optional copy of every entry appended to a log file
//
// # Configuration
//
// Logging is configured in the [general] section:
//
//	[general]
//	log_level = INFO     # DEBUG, INFO, WARNING, ERROR
//	log_format = text    # text, json
//	log_file =           # optional path
//
// # Usage
//
//	logger := logging.New(cfg.General, "1.0.0")
//	defer logger.Close()
//	logger.Info("sink ready", "backend", "influxdb")
//
// # Security
//
// Never log store tokens or MQTT passwords.
package logging
