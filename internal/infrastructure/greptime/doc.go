// Package greptime provides the GreptimeDB store for the telemetry sink.
//
// Rows are inserted through the official gRPC ingester. Each point becomes
// a one-row table whose tag columns are strings, whose field columns are
// float64 and whose time index is "ts" in milliseconds. Liveness is probed
// on the HTTP API's /health endpoint.
package greptime
