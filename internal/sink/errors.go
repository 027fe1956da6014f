package sink

import "errors"

// Sentinel errors for sink operations.
//
// Transient errors are logged and absorbed by Sink; none of them reach the
// producer. They are exported so store adapters and tests can classify
// failures with errors.Is:
//
//	if errors.Is(err, sink.ErrCapabilityUnavailable) {
//	    // Permanent: stop retrying
//	}
var (
	// ErrCapabilityUnavailable indicates the store client cannot be used at
	// all (e.g. the configured backend is not built in). The sink disables
	// itself for the rest of the process lifetime.
	ErrCapabilityUnavailable = errors.New("sink: store capability unavailable")

	// ErrConnect indicates a connection attempt or health probe failed.
	ErrConnect = errors.New("sink: connect failed")

	// ErrWrite indicates a point could not be delivered. The point is dropped.
	ErrWrite = errors.New("sink: write failed")

	// ErrNotConnected is returned by Connection.Write when no handle is open.
	ErrNotConnected = errors.New("sink: not connected")
)
