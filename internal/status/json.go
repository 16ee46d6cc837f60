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
	Light         string       `json:"light"`
	Mode          string       `json:"mode"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"run_counts"`
	LastRun       *Report      `json:"last_run,omitempty"`
	Network       *NetworkInfo `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of run counters.
type CountsJSON struct {
	Runs     int `json:"runs"`
	Failures int `json:"failures"`
	Reverts  int `json:"auto_reverts"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	DeviceID      string `json:"device_id"`
	Location      string `json:"location"`
	Timezone      string `json:"timezone"`
	OffHour       int    `json:"off_hour"`
	IntervalSec   int64  `json:"interval_seconds"`
	CommandSource string `json:"command_source"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	WSBroker      string `json:"ws_broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Light:         "UNKNOWN",
		Mode:          "UNKNOWN",
		Ready:         snap.Last != nil,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Runs:     snap.Runs,
			Failures: snap.Failures,
			Reverts:  snap.Reverts,
		},
		LastRun: snap.Last,
		Network: snap.Network,
		Config: ConfigJSON{
			DeviceID:      snap.Config.DeviceID,
			Location:      snap.Config.Location,
			Timezone:      snap.Config.Timezone,
			OffHour:       snap.Config.OffHour,
			IntervalSec:   int64(snap.Config.Interval / time.Second),
			CommandSource: snap.Config.CommandSource,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			WSBroker:      snap.Config.WSBroker,
		},
	}

	if snap.Last != nil {
		if snap.Last.Relay != "" {
			inner.Light = snap.Last.Relay
		}
		inner.Mode = snap.Last.OverrideMode
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
