package logic

import (
	"fmt"
	"time"
)

// Scheduler computes light-on/light-off times for one location and schedule.
// It holds no mutable state; the same inputs always give the same outputs.
type Scheduler struct {
	loc Location
	cfg ScheduleConfig
	sun SunCalculator
}

// NewScheduler creates a Scheduler using the NOAA sunset calculation.
func NewScheduler(loc Location, cfg ScheduleConfig) *Scheduler {
	return NewSchedulerWithSun(loc, cfg, NOAASun{})
}

// NewSchedulerWithSun creates a Scheduler with a custom sunset calculation.
func NewSchedulerWithSun(loc Location, cfg ScheduleConfig, sun SunCalculator) *Scheduler {
	if loc.TZ == nil {
		loc.TZ = time.UTC
	}
	return &Scheduler{loc: loc, cfg: cfg, sun: sun}
}

// Location returns the scheduler's location.
func (s *Scheduler) Location() Location {
	return s.loc
}

// Config returns the scheduler's schedule configuration.
func (s *Scheduler) Config() ScheduleConfig {
	return s.cfg
}

// ReferenceDate returns the date whose sunset opens the window containing now.
// Before the off-hour, the early morning belongs to the previous evening.
func (s *Scheduler) ReferenceDate(now time.Time) Date {
	local := now.In(s.loc.TZ)
	if local.Hour() < s.cfg.OffHour {
		return DateOf(local).AddDays(-1)
	}
	return DateOf(local)
}

// Window returns the light-on/light-off bracket for now.
func (s *Scheduler) Window(now time.Time) (Window, error) {
	ref := s.ReferenceDate(now)

	sunset, err := s.sun.Sunset(s.loc, ref)
	if err != nil {
		return Window{}, fmt.Errorf("sunset for %s: %w", ref, err)
	}

	return Window{
		ReferenceDate: ref,
		Sunset:        sunset,
		On:            sunset.Add(-s.cfg.OnBeforeSunset),
		Off:           s.offOn(ref.AddDays(1)),
	}, nil
}

// LightOn returns the light-on instant (sunset minus the configured lead) for date.
func (s *Scheduler) LightOn(date Date) (time.Time, error) {
	sunset, err := s.sun.Sunset(s.loc, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("sunset for %s: %w", date, err)
	}
	return sunset.Add(-s.cfg.OnBeforeSunset), nil
}

// FirstOffAfter returns the first off-hour instant strictly after x.
func (s *Scheduler) FirstOffAfter(x time.Time) time.Time {
	local := x.In(s.loc.TZ)
	d := DateOf(local)
	if off := s.offOn(d); local.Before(off) {
		return off
	}
	return s.offOn(d.AddDays(1))
}

// FirstOnAfter returns the first light-on instant strictly after x.
func (s *Scheduler) FirstOnAfter(x time.Time) (time.Time, error) {
	local := x.In(s.loc.TZ)
	d := DateOf(local)

	on, err := s.LightOn(d)
	if err != nil {
		return time.Time{}, err
	}
	if local.Before(on) {
		return on, nil
	}
	return s.LightOn(d.AddDays(1))
}

func (s *Scheduler) offOn(d Date) time.Time {
	return Localize(s.loc.TZ, d, s.cfg.OffHour, 0, 0)
}
