package tsdb

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"
)

// WritePoint writes one point and waits for VictoriaMetrics to accept it.
//
// Parameters:
//   - ctx: bounds the HTTP request
//   - measurement: The measurement name (e.g. "seplos_battery")
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: numeric values
//   - timestamp: The exact time for this data point
func (c *Client) WritePoint(ctx context.Context, measurement string, tags map[string]string, fields map[string]float64, timestamp time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.post(ctx, formatLineProtocol(measurement, tags, fields, timestamp)+"\n")
}

// formatLineProtocol formats a data point as an InfluxDB line protocol string.
//
// Format: measurement,tag1=val1,tag2=val2 field1=val1,field2=val2 timestamp_ns
//
// VictoriaMetrics accepts this format on the /write endpoint.
func formatLineProtocol(measurement string, tags map[string]string, fields map[string]float64, t time.Time) string {
	var b strings.Builder

	b.WriteString(escapeMeasurement(measurement))

	// Tags sorted for deterministic output
	tagKeys := make([]string, 0, len(tags))
	for k := range tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		if tags[k] == "" {
			continue
		}
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(tags[k]))
	}

	fieldKeys := make([]string, 0, len(fields))
	for k := range fields {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)
	b.WriteByte(' ')
	for i, k := range fieldKeys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(fields[k], 'g', -1, 64))
	}

	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(t.UnixNano(), 10))

	return b.String()
}

// escapeTag escapes special characters in tag keys/values per line protocol escaping rules.
// Commas, equals signs, and spaces must be backslash-escaped.
// Newlines are stripped to prevent line protocol injection.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

// escapeMeasurement escapes special characters in measurement names.
// Newlines are stripped to prevent line protocol injection.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}
