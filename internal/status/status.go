// Package status builds the per-invocation status report and keeps a
// thread-safe view of the resident daemon for the HTTP handlers.
package status

import (
	"sync"
	"time"
)

// Config contains daemon configuration for display.
type Config struct {
	DeviceID      string
	Location      string
	Timezone      string
	OffHour       int
	Interval      time.Duration
	CommandSource string
	Broker        string
	HTTPAddr      string
	WSBroker      string // Websocket broker URL for browser MQTT (empty = disabled)
	StatusTopic   string // Topic the browser subscribes to for live updates
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Last          *Report
	Runs          int
	Failures      int
	Reverts       int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Record stores the report of a finished invocation.
// Called from runLoop after every run.
func (t *Tracker) Record(r Report) {
	r.ScriptOutputLines = append([]string(nil), r.ScriptOutputLines...)
	r.StderrLines = append([]string(nil), r.StderrLines...)

	t.mu.Lock()
	t.snap.Last = &r
	t.snap.Runs++
	if r.Failed() {
		t.snap.Failures++
	}
	if r.AutoRevert != "" {
		t.snap.Reverts++
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
