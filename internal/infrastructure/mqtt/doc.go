// Package mqtt publishes the telemetry sink's status to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with paho's auto-reconnect
//   - Retained JSON statistics on <prefix>/sink/status
//   - Availability on <prefix>/sink/availability, with a Last Will of
//     "offline" for crash detection
//
// Measurements are not carried over MQTT here; the client never subscribes.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishStatus(s.Stats())
package mqtt
