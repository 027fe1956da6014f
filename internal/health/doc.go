// Package health maintains the liveness file used by container
// healthchecks.
//
// The file has three lines: a unix timestamp, "healthy" or "stale", and
// mqtt:True, mqtt:False or mqtt:disabled. A Reporter rewrites it on every
// interval; Check validates it from a separate process.
package health
