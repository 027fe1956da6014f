package influxdb

import (
	"context"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePoint writes one point and waits for the server to accept it.
//
// Parameters:
//   - ctx: bounds the HTTP request
//   - measurement: The measurement name (e.g. "seplos_battery")
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: numeric values, written as floats
//   - timestamp: The exact time for this data point
//
// Example:
//
//	err := client.WritePoint(ctx, "seplos_pack",
//	    map[string]string{"device": "pack_aggregate"},
//	    map[string]float64{"total_power": -640.5},
//	    time.Now())
func (c *Client) WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]float64, timestamp time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	point := write.NewPoint(measurement, tags, values, timestamp)
	if err := c.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
