package logic

import (
	"fmt"
	"time"
)

// revertLayout is the wall-clock format used in auto-revert messages.
const revertLayout = "2006-01-02 15:04:05"

// ApplyCommand folds a remote command into the stored record.
// The anchor moves only when the mode actually changes, or when the stored
// record has no anchor yet. Returns the new record and whether it changed.
func ApplyCommand(rec Override, command string, now time.Time) (Override, bool) {
	mode := NormalizeMode(command)
	current := NormalizeMode(string(rec.Mode))

	if mode != current || rec.SetAt.IsZero() {
		return Override{Mode: mode, SetAt: now}, true
	}
	if current != rec.Mode {
		// Same effective mode, but the stored text was not canonical.
		return Override{Mode: current, SetAt: rec.SetAt}, true
	}
	return rec, false
}

// Cutoff returns the instant at which an override set at anchor expires.
// The boolean is false for ModeAuto, which never expires.
func (s *Scheduler) Cutoff(mode Mode, anchor time.Time) (time.Time, bool, error) {
	switch mode {
	case ModeForceOn:
		return s.FirstOffAfter(anchor), true, nil
	case ModeForceOff:
		on, err := s.FirstOnAfter(anchor)
		if err != nil {
			return time.Time{}, false, err
		}
		return on, true, nil
	default:
		return time.Time{}, false, nil
	}
}

// Evaluate decides whether rec has expired at now.
//
// It returns the record to carry forward and, when the override expired, a
// RevertEvent. A non-auto record without an anchor is treated as set at now,
// so it can never revert the moment it is read.
func (s *Scheduler) Evaluate(rec Override, now time.Time) (Override, *RevertEvent, error) {
	mode := NormalizeMode(string(rec.Mode))
	next := Override{Mode: mode, SetAt: rec.SetAt}
	if mode == ModeAuto {
		return next, nil, nil
	}

	anchor := rec.SetAt
	if anchor.IsZero() {
		anchor = now
	}

	cutoff, expires, err := s.Cutoff(mode, anchor)
	if err != nil {
		return rec, nil, fmt.Errorf("cutoff for %s: %w", mode, err)
	}
	if !expires || now.Before(cutoff) {
		return next, nil, nil
	}

	cutoff = cutoff.In(s.loc.TZ)
	event := &RevertEvent{
		From:    mode,
		Cutoff:  cutoff,
		At:      now,
		Message: revertMessage(mode, cutoff),
	}
	return Override{Mode: ModeAuto, SetAt: now}, event, nil
}

func revertMessage(from Mode, cutoff time.Time) string {
	boundary := "off-time"
	if from == ModeForceOff {
		boundary = "on-time"
	}
	return fmt.Sprintf("AUTO-REVERT: %s ended at %s (%s)", from, boundary, cutoff.Format(revertLayout))
}
