package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/light-timer/internal/logic"
	"github.com/sweeney/light-timer/internal/store"
)

// Error tags carried in Report.Error.
const (
	ErrTagDecision = "decision_failed"
	ErrTagRelay    = "relay_failed"
	ErrTagStore    = "store_failed"
)

// lineLayout formats instants in human-readable output lines.
const lineLayout = "2006-01-02 15:04:05"

// NetworkInfo contains network state reported by the pi-helper env file.
type NetworkInfo struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// Report is the outcome of one invocation. It is written to the local status
// file and published to the telemetry sinks.
type Report struct {
	DeviceID          string       `json:"device_id"`
	Hostname          string       `json:"hostname"`
	RunID             string       `json:"run_id"`
	Online            bool         `json:"online"`
	TimerOK           bool         `json:"timer_ok"`
	ReturnCode        int          `json:"return_code"`
	OverrideMode      string       `json:"override_mode"`
	Relay             string       `json:"relay,omitempty"`
	LightOn           string       `json:"light_on,omitempty"`
	LightOff          string       `json:"light_off,omitempty"`
	Sunset            string       `json:"sunset,omitempty"`
	AutoRevert        string       `json:"auto_revert,omitempty"`
	ScriptOutputLines []string     `json:"script_output_lines"`
	StderrLines       []string     `json:"stderr_lines"`
	Error             string       `json:"error,omitempty"`
	LastUpdated       string       `json:"last_updated"`
	Network           *NetworkInfo `json:"network,omitempty"`
}

// NewReport starts a report for an invocation at now. The report is
// optimistic until Fail is called.
func NewReport(deviceID, hostname, runID string, now time.Time) Report {
	return Report{
		DeviceID:          deviceID,
		Hostname:          hostname,
		RunID:             runID,
		Online:            true,
		TimerOK:           true,
		OverrideMode:      string(logic.ModeAuto),
		ScriptOutputLines: []string{},
		StderrLines:       []string{},
		LastUpdated:       now.Format(time.RFC3339),
	}
}

// ApplyDecision copies the decision into the report.
func (r *Report) ApplyDecision(d logic.Decision) {
	r.OverrideMode = string(d.Mode)
	r.Relay = string(d.State())
	if d.Window != nil {
		r.Sunset = d.Window.Sunset.Format(time.RFC3339)
		r.LightOn = d.Window.On.Format(time.RFC3339)
		r.LightOff = d.Window.Off.Format(time.RFC3339)
	}
	if d.Revert != nil {
		r.AutoRevert = d.Revert.Message
	}
	r.ScriptOutputLines = append(r.ScriptOutputLines, DecisionLines(d)...)
}

// Fail marks the invocation as failed with the given tag.
func (r *Report) Fail(tag string, err error) {
	r.Online = false
	r.TimerOK = false
	r.ReturnCode = 1
	r.Error = tag
	if err != nil {
		r.StderrLines = append(r.StderrLines, err.Error())
	}
}

// Warn records a non-fatal problem without failing the invocation.
func (r *Report) Warn(format string, args ...any) {
	r.StderrLines = append(r.StderrLines, "WARN: "+fmt.Sprintf(format, args...))
}

// Failed reports whether Fail has been called.
func (r Report) Failed() bool {
	return r.ReturnCode != 0
}

// DecisionLines renders a decision as human-readable output lines. The
// auto-revert message, if any, comes first.
func DecisionLines(d logic.Decision) []string {
	var lines []string
	if d.Revert != nil {
		lines = append(lines, d.Revert.Message)
	}

	switch {
	case d.Window != nil:
		w := d.Window
		lines = append(lines,
			"===== DEBUG TIMING =====",
			"Current local time:      "+d.Now.Format(lineLayout),
			"Sunset date used:        "+w.ReferenceDate.String(),
			"Sunset time (local):     "+w.Sunset.Format(lineLayout),
			"Light ON time:           "+w.On.Format(lineLayout),
			"Light OFF time:          "+w.Off.Format(lineLayout),
			"========================",
		)
		if d.On {
			lines = append(lines, "Light ON (GPIO HIGH)")
		} else {
			lines = append(lines, "Light OFF (GPIO LOW)")
		}
	case d.On:
		lines = append(lines, "Override ON")
	default:
		lines = append(lines, "Override OFF")
	}
	return lines
}

// WriteFile writes the report as indented JSON, replacing path atomically.
func WriteFile(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status report: %w", err)
	}
	if err := store.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return fmt.Errorf("write status report: %w", err)
	}
	return nil
}
