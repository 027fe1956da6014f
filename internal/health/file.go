package health

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxAge is how old the health file may be before Check fails.
const DefaultMaxAge = 120 * time.Second

// Status values for the second line of the health file.
const (
	StatusHealthy = "healthy"
	StatusStale   = "stale"
)

// MQTT states for the third line of the health file.
const (
	MQTTConnected    = "True"
	MQTTDisconnected = "False"
	MQTTDisabled     = "disabled"
)

// ErrUnhealthy is wrapped by every Check failure.
var ErrUnhealthy = errors.New("health: unhealthy")

// Snapshot is one health file record.
type Snapshot struct {
	At     time.Time
	Status string // StatusHealthy or StatusStale
	MQTT   string // MQTTConnected, MQTTDisconnected or MQTTDisabled
}

// Format renders the three-line file body:
//
//	1772366400
//	healthy
//	mqtt:True
func (s Snapshot) Format() string {
	return fmt.Sprintf("%d\n%s\nmqtt:%s\n", s.At.Unix(), s.Status, s.MQTT)
}

// WriteFile replaces path with s atomically: the body is written to a
// temporary file in the same directory and renamed into place.
func WriteFile(path string, s Snapshot) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing health file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(s.Format()); err != nil {
		tmp.Close()        //nolint:errcheck // Already failing
		os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("writing health file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("writing health file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) //nolint:errcheck // Best effort cleanup
		return fmt.Errorf("writing health file: %w", err)
	}
	return nil
}

// Check reads the health file at path and decides whether the service
// is healthy at now.
//
// It fails when the file is missing or has fewer than two lines, when the
// timestamp is unparseable or older than maxAge, when the status is not
// "healthy", or when the third line is exactly "mqtt:False". On success
// it returns a one-line summary.
func Check(path string, maxAge time.Duration, now time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: health file not found, service may still be starting", ErrUnhealthy)
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading health file: %w", ErrUnhealthy, err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) < 2 {
		return "", fmt.Errorf("%w: invalid health file format", ErrUnhealthy)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(lines[0]), 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid timestamp %q", ErrUnhealthy, lines[0])
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > maxAge {
		return "", fmt.Errorf("%w: health file is stale (%ds old, max %ds)",
			ErrUnhealthy, int(age.Seconds()), int(maxAge.Seconds()))
	}

	if status := strings.TrimSpace(lines[1]); status != StatusHealthy {
		return "", fmt.Errorf("%w: service status %s", ErrUnhealthy, status)
	}

	if len(lines) >= 3 && strings.TrimSpace(lines[2]) == "mqtt:"+MQTTDisconnected {
		return "", fmt.Errorf("%w: MQTT disconnected", ErrUnhealthy)
	}

	return fmt.Sprintf("Healthy (last check %ds ago)", int(age.Seconds())), nil
}
