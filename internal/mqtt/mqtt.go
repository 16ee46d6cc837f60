// Package mqtt publishes light-timer telemetry and reads the retained
// override command, with abstraction for testing.
package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/light-timer/internal/status"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "home/light-timer"

// UpdatedByAutoRevert marks commands written back after an override expired.
const UpdatedByAutoRevert = "auto_revert"

// Topics holds the per-device topic names.
type Topics struct {
	Command string
	Status  string
	System  string
}

// NewTopics builds the topic names for a device under prefix.
func NewTopics(prefix, deviceID string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	base := prefix + "/" + deviceID
	return Topics{
		Command: base + "/command",
		Status:  base + "/status",
		System:  base + "/system",
	}
}

// Publisher publishes telemetry to MQTT.
type Publisher interface {
	// PublishStatus sends the invocation report as a retained message.
	// Returns error if publishing fails (should not crash the process).
	PublishStatus(ctx context.Context, r status.Report) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// FormatStatusPayload creates the JSON payload for an invocation report.
func FormatStatusPayload(r status.Report) ([]byte, error) {
	return json.Marshal(r)
}

// CommandPayload is the JSON form of a command message.
type CommandPayload struct {
	Mode      string `json:"mode"`
	UpdatedAt string `json:"updated_at,omitempty"`
	UpdatedBy string `json:"updated_by,omitempty"`
}

// FormatCommand creates the JSON payload for a command message.
func FormatCommand(mode string, at time.Time, by string) ([]byte, error) {
	return json.Marshal(CommandPayload{
		Mode:      mode,
		UpdatedAt: at.UTC().Format(time.RFC3339),
		UpdatedBy: by,
	})
}

// ParseCommand extracts the mode text from a command payload.
// The payload is either JSON ({"mode": "force_on"}) or the bare mode text.
// An empty payload (a cleared retained message) is reported as not found.
// The returned text is not normalized.
func ParseCommand(payload []byte) (string, bool) {
	p := bytes.TrimSpace(payload)
	if len(p) == 0 {
		return "", false
	}
	if p[0] == '{' {
		var cmd CommandPayload
		if err := json.Unmarshal(p, &cmd); err != nil {
			return "", true
		}
		return cmd.Mode, true
	}
	return string(p), true
}
