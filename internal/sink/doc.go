// Package sink relays battery and pack telemetry to a time-series store.
//
// The sink tolerates store outages without blocking the producer's
// cadence. It is built from four parts:
//   - Connection: one store handle with connect, health check, write, close
//   - Supervisor: startup retry loop and lazy reconnect backoff
//   - Gate: per-key rate limiting and publish-on-change filtering
//   - Stats: counters for health reporting
//
// Sink combines them behind WriteBatteryMeasurement, WritePackMeasurement,
// Stats and Close. Store implementations live in internal/infrastructure
// and are supplied through an Opener.
//
// Example usage:
//
//	s, err := sink.Open(ctx, sink.Config{
//	    Target:        sink.Target{URL: url, Token: token, Org: "home", Bucket: "battery"},
//	    Enabled:       true,
//	    WriteInterval: 5 * time.Second,
//	    PublishMode:   sink.ModeChanged,
//	}, opener, sink.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	s.WriteBatteryMeasurement(ctx, "1", sink.Measurement{"soc": 80.0})
package sink
