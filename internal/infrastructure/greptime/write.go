package greptime

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// timeIndex is the name of the timestamp column in every table.
const timeIndex = "ts"

// WritePoint inserts one row into the table named after measurement.
//
// Tags become STRING tag columns and fields become FLOAT64 field columns.
// GreptimeDB creates the table, or adds missing columns, on first write.
func (c *Client) WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]float64, timestamp time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	tbl, err := buildTable(measurement, tags, fields, timestamp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if _, err := c.writer.Write(ctx, tbl); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// buildTable lays out a single-row table with sorted columns.
func buildTable(measurement string, tags map[string]string, fields map[string]float64, timestamp time.Time) (*table.Table, error) {
	tbl, err := table.New(measurement)
	if err != nil {
		return nil, err
	}

	tagKeys := sortedKeys(tags)
	fieldKeys := sortedKeys(fields)
	row := make([]any, 0, len(tagKeys)+len(fieldKeys)+1)

	for _, k := range tagKeys {
		if err := tbl.AddTagColumn(k, types.STRING); err != nil {
			return nil, err
		}
		row = append(row, tags[k])
	}
	for _, k := range fieldKeys {
		if err := tbl.AddFieldColumn(k, types.FLOAT64); err != nil {
			return nil, err
		}
		row = append(row, fields[k])
	}
	if err := tbl.AddTimestampColumn(timeIndex, types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	row = append(row, timestamp)

	if err := tbl.AddRow(row...); err != nil {
		return nil, err
	}
	return tbl, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
