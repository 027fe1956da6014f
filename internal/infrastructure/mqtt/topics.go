package mqtt

import "strings"

// DefaultPrefix is the topic root used when none is configured.
const DefaultPrefix = "seplos"

// Topics builds the sink's MQTT topics under a configurable root.
//
//	topics := mqtt.NewTopics("seplos")
//	topics.Status()       // "seplos/sink/status"
//	topics.Availability() // "seplos/sink/availability"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix. Leading and trailing
// slashes are trimmed; an empty prefix selects DefaultPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	return t.prefix
}

// Status returns the topic carrying the retained sink statistics snapshot.
func (t Topics) Status() string {
	return t.prefix + "/sink/status"
}

// Availability returns the topic carrying "online" or "offline".
// The broker publishes "offline" through the Last Will if the process dies.
func (t Topics) Availability() string {
	return t.prefix + "/sink/availability"
}
