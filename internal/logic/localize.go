package logic

import "time"

// zoneProbe is how far either side of a wall time we look for zone offsets.
// Real zones never change offset twice within this span.
const zoneProbe = 36 * time.Hour

// Localize returns the single instant at which the wall clock in loc reads
// date hour:min:sec.
//
// A wall time that occurs twice (fall-back) resolves to the later occurrence.
// A wall time that never occurs (spring-forward gap) is moved one hour later.
func Localize(loc *time.Location, date Date, hour, min, sec int) time.Time {
	naive := time.Date(date.Year, date.Month, date.Day, hour, min, sec, 0, time.UTC)
	if t, ok := localizeWall(loc, naive); ok {
		return t
	}
	if t, ok := localizeWall(loc, naive.Add(time.Hour)); ok {
		return t
	}
	// Only reachable for zones with gaps longer than an hour.
	bumped := naive.Add(time.Hour)
	return time.Date(bumped.Year(), bumped.Month(), bumped.Day(), bumped.Hour(), bumped.Minute(), bumped.Second(), 0, loc)
}

// localizeWall resolves a naive wall time (carried in a UTC time.Time) in loc.
// It returns false when the wall time does not exist in loc.
func localizeWall(loc *time.Location, naive time.Time) (time.Time, bool) {
	wall := naive.Unix()

	var (
		best  time.Time
		found bool
		seen  = make(map[int]bool, 3)
	)
	for _, probe := range []time.Duration{-zoneProbe, 0, zoneProbe} {
		_, offset := time.Unix(wall+int64(probe/time.Second), 0).In(loc).Zone()
		if seen[offset] {
			continue
		}
		seen[offset] = true

		candidate := time.Unix(wall-int64(offset), 0).In(loc)
		if _, got := candidate.Zone(); got != offset {
			continue
		}
		if !found || candidate.After(best) {
			best = candidate
			found = true
		}
	}
	if !found {
		return time.Time{}, false
	}
	return best, true
}
