// seplos-sink writes Seplos BMS battery and pack measurements to a
// time-series store.
//
// Measurements arrive as newline-delimited JSON on stdin. The sink keeps
// the store connection alive across outages, rate-limits and de-duplicates
// writes, and reports its own liveness through a health file and MQTT.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := Execute(ctx)
	cancel()
	os.Exit(code)
}
