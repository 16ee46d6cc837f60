package logic

import "time"

// Decide computes what the relay should be doing at now.
// It is a pure function of its arguments.
func Decide(loc Location, cfg ScheduleConfig, rec Override, now time.Time) (Decision, error) {
	return NewScheduler(loc, cfg).Decide(rec, now)
}

// Decide evaluates rec at now: applies any auto-revert, then picks the relay
// verdict. force_on is ON, force_off is OFF, auto follows the sunset window.
func (s *Scheduler) Decide(rec Override, now time.Time) (Decision, error) {
	now = now.In(s.loc.TZ)

	next, revert, err := s.Evaluate(rec, now)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Mode:    next.Mode,
		Record:  next,
		Persist: next.Mode != rec.Mode || !next.SetAt.Equal(rec.SetAt),
		Revert:  revert,
		Now:     now,
	}

	switch next.Mode {
	case ModeForceOn:
		d.On = true
	case ModeForceOff:
		d.On = false
	default:
		w, err := s.Window(now)
		if err != nil {
			return Decision{}, err
		}
		d.Window = &w
		d.On = w.Contains(now)
	}
	return d, nil
}
