package sink

import "time"

// Stats is a point-in-time snapshot of sink counters and state.
//
// Counters are monotonic for the life of the sink. Connected, State and
// LastSuccessfulWrite reflect current state. LastSuccessfulWrite is the
// zero time until the first successful write.
type Stats struct {
	Connected           bool      `json:"connected"`
	State               string    `json:"state"`
	WritesTotal         uint64    `json:"writes_total"`
	WritesFailed        uint64    `json:"writes_failed"`
	WritesFiltered      uint64    `json:"writes_filtered"`
	WritesDropped       uint64    `json:"writes_dropped"`
	LastSuccessfulWrite time.Time `json:"last_successful_write"`
	ReconnectAttempts   int       `json:"reconnect_attempts"`
	ReconnectCount      uint64    `json:"reconnect_count"`
	PublishMode         string    `json:"publish_mode"`
	Backend             string    `json:"backend"`
}

// counters holds the sink's mutable statistics. Guarded by Sink.mu.
type counters struct {
	writesTotal         uint64
	writesFailed        uint64
	writesFiltered      uint64
	writesDropped       uint64
	lastSuccessfulWrite time.Time
}
