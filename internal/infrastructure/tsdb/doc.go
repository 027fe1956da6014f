// Package tsdb provides the VictoriaMetrics store for the telemetry sink.
//
// Points are sent as InfluxDB line protocol to the /write endpoint over
// plain net/http. VictoriaMetrics accepts this format natively, so no
// client library is involved.
//
// # Usage
//
//	client, err := tsdb.Connect(cfg.InfluxDB, 10*time.Second)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.WritePoint(ctx, "seplos_pack",
//	    map[string]string{"device": "pack_aggregate"},
//	    map[string]float64{"total_power": -640.5},
//	    time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Every write is one synchronous POST. Failures are returned wrapped in
// ErrWriteFailed; there is no internal batching or retry.
package tsdb
