package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Output        string       `json:"output"`
	Worker        string       `json:"worker"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Channel       ChannelJSON  `json:"channel"`
	LastSample    *SampleJSON  `json:"last_sample,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of dispatch counts.
type CountsJSON struct {
	Toggles      int `json:"toggles"`
	Samples      int `json:"samples"`
	Timeouts     int `json:"timeouts"`
	Unrecognized int `json:"unrecognized"`
	Errors       int `json:"errors"`
}

// ChannelJSON reports notification channel activity.
// Superseded counts codes overwritten before the worker read them.
type ChannelJSON struct {
	Writes     uint64 `json:"writes"`
	Superseded uint64 `json:"superseded"`
}

// SampleJSON is the last analog reading.
type SampleJSON struct {
	Channel   int    `json:"channel"`
	Percent   int    `json:"percent"`
	Timestamp string `json:"timestamp"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Backend          string `json:"backend"`
	Chip             string `json:"chip,omitempty"`
	PinIn            int    `json:"pin_in"`
	PinOut           int    `json:"pin_out"`
	ADCChannel       int    `json:"adc_channel"`
	WaitTimeoutMs    int64  `json:"wait_timeout_ms"`
	SampleIntervalMs int64  `json:"sample_interval_ms"`
	HeartbeatMs      int64  `json:"heartbeat_ms"`
	Broker           string `json:"broker"`
	HTTPPort         string `json:"http_port"`
	WSBroker         string `json:"ws_broker,omitempty"`
}

// OutputString renders the output level, or UNKNOWN before it has been read.
func (s Snapshot) OutputString() string {
	if !s.OutputKnown {
		return "UNKNOWN"
	}
	if s.OutputHigh {
		return "HIGH"
	}
	return "LOW"
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Output:        snap.OutputString(),
		Worker:        snap.Worker.String(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Toggles:      snap.Counts.Toggles,
			Samples:      snap.Counts.Samples,
			Timeouts:     snap.Counts.Timeouts,
			Unrecognized: snap.Counts.Unrecognized,
			Errors:       snap.Counts.Errors,
		},
		Channel: ChannelJSON{
			Writes:     snap.Channel.Writes,
			Superseded: snap.Channel.Superseded,
		},
		LastError: snap.LastError,
		Config: ConfigJSON{
			Backend:          snap.Config.Backend,
			Chip:             snap.Config.Chip,
			PinIn:            snap.Config.PinIn,
			PinOut:           snap.Config.PinOut,
			ADCChannel:       snap.Config.ADCChannel,
			WaitTimeoutMs:    snap.Config.WaitTimeoutMs,
			SampleIntervalMs: snap.Config.SampleIntervalMs,
			HeartbeatMs:      snap.Config.HeartbeatMs,
			Broker:           snap.Config.Broker,
			HTTPPort:         snap.Config.HTTPPort,
			WSBroker:         snap.Config.WSBroker,
		},
	}

	if snap.HasSample {
		inner.LastSample = &SampleJSON{
			Channel:   int(snap.LastSample.Channel),
			Percent:   snap.LastSample.Percent,
			Timestamp: snap.LastSample.Time.UTC().Format(time.RFC3339),
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
