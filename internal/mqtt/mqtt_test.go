package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/light-timer/internal/status"
)

func TestNewTopics(t *testing.T) {
	tests := []struct {
		prefix, device string
		want           Topics
	}{
		{"home/light-timer", "porch", Topics{
			Command: "home/light-timer/porch/command",
			Status:  "home/light-timer/porch/status",
			System:  "home/light-timer/porch/system",
		}},
		{"lights/", "lpi-1", Topics{
			Command: "lights/lpi-1/command",
			Status:  "lights/lpi-1/status",
			System:  "lights/lpi-1/system",
		}},
		{"", "porch", Topics{
			Command: "home/light-timer/porch/command",
			Status:  "home/light-timer/porch/status",
			System:  "home/light-timer/porch/system",
		}},
	}

	for _, tt := range tests {
		if got := NewTopics(tt.prefix, tt.device); got != tt.want {
			t.Errorf("NewTopics(%q, %q) = %+v, want %+v", tt.prefix, tt.device, got, tt.want)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantMode  string
		wantFound bool
	}{
		{"bare mode", "force_on", "force_on", true},
		{"bare mode with newline", "force_off\n", "force_off", true},
		{"json", `{"mode":"force_on","updated_by":"dashboard"}`, "force_on", true},
		{"json with spaces", ` { "mode": "AUTO" } `, "AUTO", true},
		{"json without mode", `{"updated_by":"dashboard"}`, "", true},
		{"broken json", `{"mode":`, "", true},
		{"bogus text", "bogus", "bogus", true},
		{"empty", "", "", false},
		{"whitespace", "  \n", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, found := ParseCommand([]byte(tt.payload))
			if mode != tt.wantMode || found != tt.wantFound {
				t.Errorf("got (%q, %v), want (%q, %v)", mode, found, tt.wantMode, tt.wantFound)
			}
		})
	}
}

func TestFormatCommandExactJSON(t *testing.T) {
	at := time.Date(2025, 7, 25, 5, 0, 0, 0, time.UTC)

	payload, err := FormatCommand("auto", at, UpdatedByAutoRevert)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"mode":"auto","updated_at":"2025-07-25T05:00:00Z","updated_by":"auto_revert"}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}

	mode, found := ParseCommand(payload)
	if mode != "auto" || !found {
		t.Errorf("ParseCommand on reset payload: got (%q, %v)", mode, found)
	}
}

func TestFormatStatusPayload(t *testing.T) {
	r := status.NewReport("porch", "lpi", "run-1", time.Date(2026, 1, 27, 18, 0, 0, 0, time.UTC))
	r.Relay = "ON"
	r.OverrideMode = "force_on"

	payload, err := FormatStatusPayload(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed["device_id"] != "porch" {
		t.Errorf("device_id: got %v", parsed["device_id"])
	}
	if parsed["override_mode"] != "force_on" {
		t.Errorf("override_mode: got %v", parsed["override_mode"])
	}
	if parsed["relay"] != "ON" {
		t.Errorf("relay: got %v", parsed["relay"])
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "STARTUP"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	system := parsed["system"].(map[string]interface{})
	if _, exists := system["reason"]; exists {
		t.Error("reason field should be omitted for startup events")
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	r := status.NewReport("porch", "lpi", "run-1", time.Now())

	if err := f.PublishStatus(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Reports) != 1 || f.Reports[0].RunID != "run-1" {
		t.Fatalf("Reports: got %+v", f.Reports)
	}
	if len(f.Payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(f.Payloads))
	}

	if err := f.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.SystemEvents) != 1 || len(f.SystemPayloads) != 1 {
		t.Errorf("system events: got %d/%d", len(f.SystemEvents), len(f.SystemPayloads))
	}
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")

	if err := f.PublishStatus(context.Background(), status.Report{}); err == nil {
		t.Error("expected error")
	}
	if len(f.Reports) != 0 {
		t.Errorf("expected no reports recorded on error, got %d", len(f.Reports))
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.PublishStatus(context.Background(), status.Report{})
	f.Close()
	f.Connected = true
	f.PublishError = errors.New("error")

	f.Reset()

	if len(f.Reports) != 0 || len(f.Payloads) != 0 {
		t.Error("reports should be cleared")
	}
	if f.Closed || f.Connected {
		t.Error("flags should be reset")
	}
	if f.PublishError != nil {
		t.Error("error should be cleared")
	}
}
