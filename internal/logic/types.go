// Package logic contains the pure decision logic for the light timer.
// This package has NO I/O (no GPIO, MQTT, HTTP, files or clock reads).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode is the override mode requested by the operator.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeForceOn  Mode = "force_on"
	ModeForceOff Mode = "force_off"
)

// NormalizeMode maps free-form mode text to a Mode.
// Anything that is not one of the three known modes (after trimming and
// lower-casing) becomes ModeAuto.
func NormalizeMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeAuto, ModeForceOn, ModeForceOff:
		return m
	default:
		return ModeAuto
	}
}

// State is the relay verdict.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// StateOf converts a boolean relay level to a State.
func StateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// ErrNoSunset is returned when the sun does not set on the reference date
// at the configured location (polar day or night).
var ErrNoSunset = errors.New("logic: no sunset on date")

// Location is the fixed geographic point the schedule is computed for.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
	TZ        *time.Location
}

// ScheduleConfig holds the fixed schedule parameters.
type ScheduleConfig struct {
	// OffHour is the local hour (0-23) at which the light turns off.
	OffHour int
	// OnBeforeSunset is how long before sunset the light turns on.
	OnBeforeSunset time.Duration
}

// DefaultScheduleConfig turns the light on an hour before sunset and off at 01:00.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{OffHour: 1, OnBeforeSunset: time.Hour}
}

// Date is a calendar date without a time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Override is the durable override record: the only state carried between
// invocations. A zero SetAt means the anchor is absent.
type Override struct {
	Mode  Mode
	SetAt time.Time
}

// Window is the light-on/light-off bracket for a reference date.
type Window struct {
	ReferenceDate Date
	Sunset        time.Time
	On            time.Time
	Off           time.Time
}

// Contains reports whether t falls within [On, Off).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.On) && t.Before(w.Off)
}

// RevertEvent records an override expiring back to auto.
type RevertEvent struct {
	From    Mode
	Cutoff  time.Time
	At      time.Time
	Message string
}

// Decision is the result of one Decide call.
type Decision struct {
	// Mode is the effective mode after any auto-revert.
	Mode Mode
	// On is the relay verdict.
	On bool
	// Record is the override record to carry forward.
	Record Override
	// Persist is true when Record differs from the record passed in.
	Persist bool
	// Revert is set when an override expired during this call.
	Revert *RevertEvent
	// Window is the schedule bracket; only set on the automatic path.
	Window *Window
	// Now is the evaluation instant in the location's zone.
	Now time.Time
}

// State returns the relay verdict as a State.
func (d Decision) State() State {
	return StateOf(d.On)
}
