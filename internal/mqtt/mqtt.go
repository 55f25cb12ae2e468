// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/edge-sampler/internal/dispatch"
)

// Topic is the MQTT topic for dispatched toggles and samples.
const Topic = "device/edge-sampler/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "device/edge-sampler/system"

// ClientID identifies the daemon to the broker.
const ClientID = "edge-sampler"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a dispatched event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(r dispatch.Result) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Device DevicePayload `json:"device"`
}

// DevicePayload contains the dispatched event details.
type DevicePayload struct {
	Timestamp string       `json:"timestamp"`
	Event     string       `json:"event"`
	Code      uint32       `json:"code"`
	Output    *OutputState `json:"output,omitempty"`
	Sample    *SampleState `json:"sample,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// OutputState is the output line level after a toggle.
type OutputState struct {
	Level string `json:"level"`
}

// SampleState is one analog reading.
type SampleState struct {
	Channel int `json:"channel"`
	Percent int `json:"percent"`
}

// LevelString renders a line level.
func LevelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

// FormatPayload creates the JSON payload for a dispatched event.
// A failed operation carries the error and no reading.
func FormatPayload(r dispatch.Result) ([]byte, error) {
	inner := DevicePayload{
		Timestamp: r.Time.UTC().Format(time.RFC3339),
		Event:     r.Event.Kind.String(),
		Code:      uint32(r.Event.Code),
	}

	switch {
	case r.Err != nil:
		inner.Error = r.Err.Error()
	case r.Event.Kind == dispatch.KindToggle:
		inner.Output = &OutputState{Level: LevelString(r.Level)}
	case r.Event.Kind == dispatch.KindSample:
		inner.Sample = &SampleState{Channel: int(r.Event.Channel), Percent: r.Percent}
	}

	return json.Marshal(Payload{Device: inner})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}
