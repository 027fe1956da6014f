package config

// Help returns the usage text printed when configuration is missing or
// invalid.
func Help() string {
	return helpText
}

const helpText = `
Usage:
  seplos-sink [run] [--config PATH]
  seplos-sink healthcheck [--file PATH] [--max-age 2m]
  seplos-sink events [--kind KIND] [--limit N] [--json]
  seplos-sink config-help | version

seplos-sink reads its configuration from seplos_bms_mqtt.ini (INI) or
config.yaml (YAML). Searched, in order: --config, /app/seplos_bms_mqtt.ini,
/app/config/seplos_bms_mqtt.ini, ./seplos_bms_mqtt.ini, ./config.yaml.

Every key can be overridden by SEPLOS_<SECTION>_<KEY> or <SECTION>_<KEY>,
e.g. SEPLOS_INFLUXDB_TOKEN or INFLUXDB_TOKEN.

Configuration file format (section-based):

[general]
# Logging level: DEBUG, INFO, WARNING, ERROR
log_level = INFO
# Log format: text or json
log_format = text
# Log file path (optional, leave empty to disable)
log_file = /var/log/seplos_sink.log

[influxdb]
# Enable the telemetry sink
enabled = false
# Store backend: influxdb, victoriametrics or greptime
backend = influxdb
url = http://localhost:8086
token = your-influxdb-token
org = your-org
# Bucket (InfluxDB) or database (GreptimeDB)
bucket = seplos
# Minimum interval between writes per battery (seconds)
write_interval = 5
# Publish mode: 'changed' or 'all'
publish_mode = changed
# Absolute difference below which a value counts as unchanged (0 = exact)
change_epsilon = 0
# Store write timeout (seconds)
write_timeout = 10
# GreptimeDB gRPC port
grpc_port = 4001

[mqtt]
# Sink status publisher (leave server empty to disable)
server = 192.168.1.100
port = 1883
username =
password =
# Topic prefix for all MQTT messages
prefix = seplos

[health]
# Health check interval in seconds (0 to disable)
check_interval = 60
# Stale data timeout in seconds
stale_timeout = 120
# Liveness file read by 'seplos-sink healthcheck'
file = /tmp/seplos_health

[database]
# SQLite connection event journal (optional, leave empty to disable)
path = /app/data/seplos_sink.db

[producer]
# BMS poller to run as a child process; its stdout is read as
# newline-delimited JSON. Leave empty to read measurements from stdin.
command = /usr/local/bin/seplos-poller --port /dev/ttyUSB0
# Restart backoff in seconds: first delay and cap
restart_delay = 5
max_restart_delay = 300
# Consecutive restarts before giving up (0 = unlimited)
max_restarts = 0
# Restart a poller that delivers nothing for [health] stale_timeout
watchdog = true

The legacy flat [seplos3mqtt] section (influxdb_url, mqtt_server, ...) is
still read when a sectioned key is absent.

publish_mode options:
  changed - Only write when values change (reduces traffic)
  all     - Write all data at each interval
`
