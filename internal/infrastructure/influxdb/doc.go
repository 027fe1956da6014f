// Package influxdb provides the InfluxDB v2 store for the telemetry sink.
//
// It wraps the official influxdb-client-go v2 library behind the
// HealthCheck/WritePoint/Close methods the sink expects of a store.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, 10*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if err := client.HealthCheck(ctx); err != nil {
//	    return err
//	}
//	err = client.WritePoint(ctx, "seplos_battery",
//	    map[string]string{"battery_id": "1"},
//	    map[string]float64{"soc": 80},
//	    time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes are blocking: every failure is returned wrapped in ErrWriteFailed.
// The client never retries; reconnect policy belongs to the caller.
package influxdb
