package tsdb

import "errors"

// The sink wraps every store error in its own ErrConnect or ErrWrite, so
// callers outside this package only need these to tell a VictoriaMetrics
// refusal apart from a local misconfiguration in logs and tests.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("tsdb: store disabled")

	// ErrConnectionFailed is returned by Connect when the configured URL
	// cannot be used to build a /write endpoint.
	ErrConnectionFailed = errors.New("tsdb: cannot build client")

	// ErrNotConnected is returned by WritePoint and HealthCheck after Close.
	ErrNotConnected = errors.New("tsdb: client closed")

	// ErrWriteFailed wraps a transport error or a /write response other
	// than 200 or 204. One failed post is one failed point.
	ErrWriteFailed = errors.New("tsdb: write rejected")
)
