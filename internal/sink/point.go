package sink

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Measurement is one observation for one publish key: field name to value.
// Values may be numeric (any Go integer or float type, or json.Number) or
// strings such as the pack status. Other types are carried but never
// written or compared.
type Measurement map[string]any

// Point is a store-agnostic time-series point.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]float64
	Time        time.Time
}

// Measurement names written to the store.
const (
	batteryMeasurement = "seplos_battery"
	packMeasurement    = "seplos_pack"

	packKey = "pack"
)

// Cell series carried by battery measurements.
const (
	cellVoltageCount     = 16
	cellTemperatureCount = 4
)

// batteryFields are the numeric battery fields forwarded to the store.
var batteryFields = []string{
	"pack_voltage", "current", "power", "remaining_capacity", "total_capacity",
	"soc", "soh", "cycles", "average_cell_voltage", "average_cell_temp",
	"max_cell_voltage", "min_cell_voltage", "max_cell_temp", "min_cell_temp",
	"maxdiscurt", "maxchgcurt", "cell_delta", "alarm_count", "protection_count",
	"balancing_count", "ambient_temp", "mosfet_temp",
}

// packFields are the numeric pack aggregate fields forwarded to the store.
var packFields = []string{
	"total_voltage", "total_current", "total_power",
	"total_capacity", "remaining_capacity",
	"energy_remaining", "energy_to_full",
	"average_soc", "min_soc", "max_soc", "soc_spread",
	"min_soh", "max_cycles",
	"min_cell_voltage", "max_cell_voltage", "cell_delta", "avg_cell_voltage",
	"min_temp", "max_temp", "avg_temp",
	"batteries_online", "total_alarms", "total_protections", "balancing_cells",
	"max_discharge_current", "max_charge_current",
}

// tagFields are string fields written as tags rather than values.
var tagFields = []string{"status"}

// BatteryKey returns the publish key for a battery identifier.
func BatteryKey(id string) string {
	return "battery_" + id
}

// PackKey returns the publish key for the pack aggregate.
func PackKey() string {
	return packKey
}

// numericFields projects m onto its numeric fields. Non-numeric, nil,
// NaN and infinite values are dropped.
func numericFields(m Measurement) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if f, ok := toFloat(v); ok {
			out[k] = f
		}
	}
	return out
}

// toFloat converts a numeric value to float64.
// Booleans are not numbers here even though some producers encode them as 0/1.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// batteryPoint translates a battery measurement into a store point.
func batteryPoint(id string, m Measurement, ts time.Time) Point {
	fields := selectFields(m, batteryFields)
	for i := 1; i <= cellVoltageCount; i++ {
		copyField(fields, m, fmt.Sprintf("cell_%d", i))
	}
	for i := 1; i <= cellTemperatureCount; i++ {
		copyField(fields, m, fmt.Sprintf("cell_temp_%d", i))
	}

	tags := map[string]string{
		"battery_id": id,
		"device":     BatteryKey(id),
	}
	addTags(tags, m)

	return Point{
		Measurement: batteryMeasurement,
		Tags:        tags,
		Fields:      fields,
		Time:        ts,
	}
}

// packPoint translates a pack aggregate measurement into a store point.
func packPoint(m Measurement, ts time.Time) Point {
	tags := map[string]string{
		"device": "pack_aggregate",
	}
	addTags(tags, m)

	return Point{
		Measurement: packMeasurement,
		Tags:        tags,
		Fields:      selectFields(m, packFields),
		Time:        ts,
	}
}

func selectFields(m Measurement, names []string) map[string]float64 {
	fields := make(map[string]float64, len(names))
	for _, name := range names {
		copyField(fields, m, name)
	}
	return fields
}

func copyField(dst map[string]float64, m Measurement, name string) {
	if f, ok := toFloat(m[name]); ok {
		dst[name] = f
	}
}

func addTags(tags map[string]string, m Measurement) {
	for _, name := range tagFields {
		v, ok := m[name]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		if s != "" {
			tags[name] = s
		}
	}
}
