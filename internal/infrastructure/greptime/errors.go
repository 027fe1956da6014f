package greptime

import "errors"

// Sentinel errors for GreptimeDB operations.
var (
	// ErrNotConnected indicates the client has been closed.
	ErrNotConnected = errors.New("greptime: not connected")

	// ErrConnectionFailed indicates the ingester client could not be created.
	ErrConnectionFailed = errors.New("greptime: connection failed")

	// ErrWriteFailed indicates a row was not accepted.
	ErrWriteFailed = errors.New("greptime: write failed")

	// ErrDisabled indicates the store is disabled in config.
	ErrDisabled = errors.New("greptime: disabled in configuration")
)
