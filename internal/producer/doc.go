// Package producer runs the BMS poller as a supervised child process.
//
// The poller's stdout is handed to a Consume function, normally an
// ingest.Reader, for as long as the process lives. Its stderr is logged.
//
// Features:
//   - Graceful stop: SIGTERM to the process group, SIGKILL after a timeout
//   - Restart on exit with exponential backoff, reset after a stable run
//   - Watchdog: a failing HealthCheckFunc kills a hung poller so it restarts
//
// Example usage:
//
//	mgr := producer.NewManager(producer.Config{
//	    Name:    "seplos-poller",
//	    Binary:  "/usr/local/bin/seplos-poller",
//	    Args:    []string{"--port", "/dev/ttyUSB0"},
//	    Consume: func(ctx context.Context, r io.Reader) { reader.Run(ctx, r) },
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package producer
